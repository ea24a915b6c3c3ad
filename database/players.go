package database

import (
	"fmt"
	"time"

	"github.com/bitterfly/go-chaos/whoami/schema"
	"gorm.io/gorm"
)

func (s *Store) AddPlayer(code string, userID int64, userName string) error {
	if _, err := s.GetPlayer(code, userID); err == nil {
		return newConflictError(fmt.Errorf("player %d already in game %s", userID, code))
	} else if !IsNotFound(err) {
		return err
	}

	player := &schema.Player{
		GameCode: code,
		UserID:   userID,
		UserName: userName,
	}
	return newInsertError(s.db.Create(player).Error)
}

// GetPlayers returns the roster in join order.
func (s *Store) GetPlayers(code string) ([]schema.Player, error) {
	var players []schema.Player
	if err := s.db.Where("game_code = ?", code).Order("id").Find(&players).Error; err != nil {
		return nil, newQueryError(err)
	}
	return players, nil
}

func (s *Store) GetPlayer(code string, userID int64) (*schema.Player, error) {
	var player schema.Player
	err := s.db.Where("game_code = ? AND user_id = ?", code, userID).First(&player).Error
	if err != nil {
		return nil, newQueryError(err)
	}
	return &player, nil
}

func (s *Store) SetWordForOthers(code string, userID int64, word string) error {
	return newUpdateError(
		s.db.Model(&schema.Player{}).
			Where("game_code = ? AND user_id = ?", code, userID).
			Update("word_for_others", word).Error)
}

func (s *Store) IncrementGuessed(code string, userID int64, at time.Time) error {
	return newUpdateError(
		s.db.Model(&schema.Player{}).
			Where("game_code = ? AND user_id = ?", code, userID).
			Updates(map[string]interface{}{
				"guessed_count":   gorm.Expr("guessed_count + ?", 1),
				"last_guessed_at": at,
			}).Error)
}

package database

import (
	"fmt"

	"github.com/bitterfly/go-chaos/whoami/schema"
)

// CreateGame registers a new game and its owner as the first player.
func (s *Store) CreateGame(code string, ownerID int64, ownerName string) error {
	if _, err := s.GetGame(code); err == nil {
		return newConflictError(fmt.Errorf("game %s already exists", code))
	} else if !IsNotFound(err) {
		return err
	}

	game := &schema.Game{
		Code:    code,
		OwnerID: ownerID,
		Status:  schema.StatusCreated,
	}
	if err := s.db.Create(game).Error; err != nil {
		return newInsertError(err)
	}
	return s.AddPlayer(code, ownerID, ownerName)
}

func (s *Store) GetGame(code string) (*schema.Game, error) {
	var game schema.Game
	if err := s.db.Where("code = ?", code).First(&game).Error; err != nil {
		return nil, newQueryError(err)
	}
	return &game, nil
}

func (s *Store) SetStatus(code string, status schema.GameStatus) error {
	return newUpdateError(
		s.db.Model(&schema.Game{}).
			Where("code = ?", code).
			Update("status", status).Error)
}

// GamesForUser lists the games userID plays in, newest first.
func (s *Store) GamesForUser(userID int64) ([]schema.Game, error) {
	var games []schema.Game
	err := s.db.
		Joins("JOIN players ON players.game_code = games.code").
		Where("players.user_id = ?", userID).
		Order("games.created_at DESC").
		Order("games.code").
		Find(&games).Error
	if err != nil {
		return nil, newQueryError(err)
	}
	return games, nil
}

// DeleteGame removes the game with its players, pairs and words.
func (s *Store) DeleteGame(code string) error {
	if err := s.db.Where("game_code = ?", code).Delete(&schema.PlayerWord{}).Error; err != nil {
		return newUpdateError(err)
	}
	if err := s.db.Where("game_code = ?", code).Delete(&schema.Pair{}).Error; err != nil {
		return newUpdateError(err)
	}
	if err := s.db.Where("game_code = ?", code).Delete(&schema.Player{}).Error; err != nil {
		return newUpdateError(err)
	}
	return newUpdateError(s.db.Where("code = ?", code).Delete(&schema.Game{}).Error)
}

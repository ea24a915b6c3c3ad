package database

import (
	"time"

	"github.com/bitterfly/go-chaos/whoami/schema"
)

// WordView is a word assignment joined with the display names of both ends.
type WordView struct {
	ID         uint
	FromUserID int64
	ToUserID   int64
	FromName   string
	ToName     string
	Text       string
	Guessed    bool
}

func (s *Store) AddWord(code string, fromUserID, toUserID int64, text string) (*schema.PlayerWord, error) {
	word := &schema.PlayerWord{
		GameCode:   code,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Text:       text,
	}
	if err := s.db.Create(word).Error; err != nil {
		return nil, newInsertError(err)
	}
	return word, nil
}

// ClearWords drops every word of the game and resets what players
// submitted for the collection round.
func (s *Store) ClearWords(code string) error {
	if err := s.db.Where("game_code = ?", code).Delete(&schema.PlayerWord{}).Error; err != nil {
		return newUpdateError(err)
	}
	return newUpdateError(
		s.db.Model(&schema.Player{}).
			Where("game_code = ?", code).
			Update("word_for_others", "").Error)
}

func (s *Store) CountWords(code string) (int64, error) {
	var n int64
	if err := s.db.Model(&schema.PlayerWord{}).Where("game_code = ?", code).Count(&n).Error; err != nil {
		return 0, newQueryError(err)
	}
	return n, nil
}

func (s *Store) CountWordsFrom(code string, fromUserID int64) (int64, error) {
	var n int64
	err := s.db.Model(&schema.PlayerWord{}).
		Where("game_code = ? AND from_user_id = ?", code, fromUserID).
		Count(&n).Error
	if err != nil {
		return 0, newQueryError(err)
	}
	return n, nil
}

// OldestUnguessedFor returns the first word still waiting for toUserID.
func (s *Store) OldestUnguessedFor(code string, toUserID int64) (*schema.PlayerWord, error) {
	var word schema.PlayerWord
	err := s.db.
		Where("game_code = ? AND to_user_id = ? AND guessed = ?", code, toUserID, false).
		Order("id").
		First(&word).Error
	if err != nil {
		return nil, newQueryError(err)
	}
	return &word, nil
}

func (s *Store) UnguessedFor(code string, toUserID int64) ([]schema.PlayerWord, error) {
	var words []schema.PlayerWord
	err := s.db.
		Where("game_code = ? AND to_user_id = ? AND guessed = ?", code, toUserID, false).
		Order("id").
		Find(&words).Error
	if err != nil {
		return nil, newQueryError(err)
	}
	return words, nil
}

func (s *Store) CountUnguessedFor(code string, toUserID int64) (int64, error) {
	var n int64
	err := s.db.Model(&schema.PlayerWord{}).
		Where("game_code = ? AND to_user_id = ? AND guessed = ?", code, toUserID, false).
		Count(&n).Error
	if err != nil {
		return 0, newQueryError(err)
	}
	return n, nil
}

// UnguessedTargetsFrom lists the players still holding an unguessed word
// from fromUserID.
func (s *Store) UnguessedTargetsFrom(code string, fromUserID int64) ([]int64, error) {
	var ids []int64
	err := s.db.Model(&schema.PlayerWord{}).
		Distinct("to_user_id").
		Where("game_code = ? AND from_user_id = ? AND guessed = ?", code, fromUserID, false).
		Pluck("to_user_id", &ids).Error
	if err != nil {
		return nil, newQueryError(err)
	}
	return ids, nil
}

// MarkGuessed flips the guessed flag once. It reports false when the word
// was already guessed or does not exist.
func (s *Store) MarkGuessed(id uint, at time.Time) (bool, error) {
	res := s.db.Model(&schema.PlayerWord{}).
		Where("id = ? AND guessed = ?", id, false).
		Updates(map[string]interface{}{
			"guessed":    true,
			"guessed_at": at,
		})
	if res.Error != nil {
		return false, newUpdateError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) wordViews() *Store {
	return &Store{
		db: s.db.Table("player_words AS w").
			Select("w.id, w.from_user_id, w.to_user_id, f.user_name AS from_name, t.user_name AS to_name, w.text, w.guessed").
			Joins("LEFT JOIN players f ON f.user_id = w.from_user_id AND f.game_code = w.game_code").
			Joins("LEFT JOIN players t ON t.user_id = w.to_user_id AND t.game_code = w.game_code"),
		locks: s.locks,
	}
}

// VisibleWordsFor returns every unguessed word of the game except those
// addressed to viewerID.
func (s *Store) VisibleWordsFor(code string, viewerID int64) ([]WordView, error) {
	var views []WordView
	err := s.wordViews().db.
		Where("w.game_code = ? AND w.to_user_id <> ? AND w.guessed = ?", code, viewerID, false).
		Order("w.id").
		Scan(&views).Error
	if err != nil {
		return nil, newQueryError(err)
	}
	return views, nil
}

func (s *Store) AllWords(code string) ([]WordView, error) {
	var views []WordView
	err := s.wordViews().db.
		Where("w.game_code = ?", code).
		Order("w.id").
		Scan(&views).Error
	if err != nil {
		return nil, newQueryError(err)
	}
	return views, nil
}

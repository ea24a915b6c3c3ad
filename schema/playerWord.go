package schema

import "time"

type PlayerWord struct {
	ID         uint   `gorm:"primaryKey"`
	GameCode   string `gorm:"size:4;not null;index:idx_word_game_to"`
	FromUserID int64  `gorm:"not null"`
	ToUserID   int64  `gorm:"not null;index:idx_word_game_to"`
	Text       string `gorm:"not null"`
	Guessed    bool   `gorm:"not null;default:false"`
	GuessedAt  *time.Time
	CreatedAt  time.Time
}

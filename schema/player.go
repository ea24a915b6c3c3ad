package schema

import "time"

// Player is a participant of exactly one game. ID doubles as join order.
type Player struct {
	ID            uint   `gorm:"primaryKey"`
	GameCode      string `gorm:"size:4;not null;uniqueIndex:idx_player_game_user"`
	UserID        int64  `gorm:"not null;uniqueIndex:idx_player_game_user"`
	UserName      string
	WordForOthers string
	GuessedCount  int `gorm:"not null;default:0"`
	LastGuessedAt *time.Time
}

package schema

import "time"

type GameStatus string

const (
	StatusCreated    GameStatus = "created"
	StatusCollecting GameStatus = "collecting"
	StatusStarted    GameStatus = "started"
)

type Game struct {
	Code      string     `gorm:"primaryKey;size:4"`
	OwnerID   int64      `gorm:"not null;index"`
	Status    GameStatus `gorm:"size:16;not null;default:created"`
	CreatedAt time.Time

	Players []Player     `gorm:"foreignKey:GameCode;references:Code;constraint:OnDelete:CASCADE"`
	Pairs   []Pair       `gorm:"foreignKey:GameCode;references:Code;constraint:OnDelete:CASCADE"`
	Words   []PlayerWord `gorm:"foreignKey:GameCode;references:Code;constraint:OnDelete:CASCADE"`
}

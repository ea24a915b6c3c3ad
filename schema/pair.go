package schema

// Pair means FromUserID invents a word for ToUserID in the current
// collection round.
type Pair struct {
	ID         uint   `gorm:"primaryKey"`
	GameCode   string `gorm:"size:4;not null;index"`
	FromUserID int64  `gorm:"not null"`
	ToUserID   int64  `gorm:"not null"`
}

func (Pair) TableName() string {
	return "player_pairs"
}

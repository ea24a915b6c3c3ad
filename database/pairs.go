package database

import "github.com/bitterfly/go-chaos/whoami/schema"

// ReplacePairs drops the pairs of the previous round and stores the new ones.
func (s *Store) ReplacePairs(code string, pairs []schema.Pair) error {
	if err := s.db.Where("game_code = ?", code).Delete(&schema.Pair{}).Error; err != nil {
		return newUpdateError(err)
	}
	if len(pairs) == 0 {
		return nil
	}
	for i := range pairs {
		pairs[i].GameCode = code
	}
	return newInsertError(s.db.Create(&pairs).Error)
}

func (s *Store) GetPair(code string, fromUserID int64) (*schema.Pair, error) {
	var pair schema.Pair
	err := s.db.Where("game_code = ? AND from_user_id = ?", code, fromUserID).First(&pair).Error
	if err != nil {
		return nil, newQueryError(err)
	}
	return &pair, nil
}

func (s *Store) CountPairs(code string) (int64, error) {
	var n int64
	if err := s.db.Model(&schema.Pair{}).Where("game_code = ?", code).Count(&n).Error; err != nil {
		return 0, newQueryError(err)
	}
	return n, nil
}

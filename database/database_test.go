package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bitterfly/go-chaos/whoami/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "store.db"), zap.NewNop(), false)
	require.NoError(t, err)
	require.NoError(t, Automigrate(db))
	store := NewStore(db)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "", zap.NewNop(), false)
	var derr *DatabaseError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, ConfigError, derr.ErrorType)
}

func TestCreateGame(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateGame("ABCD", 1, "Owner"))
	assert.True(t, IsConflict(s.CreateGame("ABCD", 2, "Other")))

	game, err := s.GetGame("ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(1), game.OwnerID)
	assert.Equal(t, schema.StatusCreated, game.Status)

	players, err := s.GetPlayers("ABCD")
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Owner", players[0].UserName)

	_, err = s.GetGame("NONE")
	assert.True(t, IsNotFound(err))
}

func TestPlayers(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateGame("ABCD", 1, "P1"))
	require.NoError(t, s.AddPlayer("ABCD", 2, "P2"))
	require.NoError(t, s.AddPlayer("ABCD", 3, "P3"))
	assert.True(t, IsConflict(s.AddPlayer("ABCD", 2, "P2")))

	players, err := s.GetPlayers("ABCD")
	require.NoError(t, err)
	require.Len(t, players, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{players[0].UserID, players[1].UserID, players[2].UserID})

	now := time.Now()
	require.NoError(t, s.IncrementGuessed("ABCD", 2, now))
	require.NoError(t, s.IncrementGuessed("ABCD", 2, now))
	require.NoError(t, s.SetWordForOthers("ABCD", 2, "kettle"))

	p2, err := s.GetPlayer("ABCD", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, p2.GuessedCount)
	assert.Equal(t, "kettle", p2.WordForOthers)
	require.NotNil(t, p2.LastGuessedAt)

	_, err = s.GetPlayer("ABCD", 9)
	assert.True(t, IsNotFound(err))
}

func TestPairs(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateGame("ABCD", 1, "P1"))

	require.NoError(t, s.ReplacePairs("ABCD", []schema.Pair{
		{FromUserID: 1, ToUserID: 2},
		{FromUserID: 2, ToUserID: 1},
	}))
	require.NoError(t, s.ReplacePairs("ABCD", []schema.Pair{
		{FromUserID: 1, ToUserID: 3},
		{FromUserID: 3, ToUserID: 2},
		{FromUserID: 2, ToUserID: 1},
	}))

	n, err := s.CountPairs("ABCD")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	pair, err := s.GetPair("ABCD", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pair.ToUserID)

	_, err = s.GetPair("ABCD", 7)
	assert.True(t, IsNotFound(err))
}

func TestWords(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateGame("ABCD", 1, "P1"))
	require.NoError(t, s.AddPlayer("ABCD", 2, "P2"))
	require.NoError(t, s.AddPlayer("ABCD", 3, "P3"))

	first, err := s.AddWord("ABCD", 1, 2, "first")
	require.NoError(t, err)
	_, err = s.AddWord("ABCD", 3, 2, "second")
	require.NoError(t, err)
	_, err = s.AddWord("ABCD", 2, 3, "third")
	require.NoError(t, err)

	oldest, err := s.OldestUnguessedFor("ABCD", 2)
	require.NoError(t, err)
	assert.Equal(t, "first", oldest.Text)

	n, err := s.CountUnguessedFor("ABCD", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.CountWordsFrom("ABCD", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	visible, err := s.VisibleWordsFor("ABCD", 2)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, WordView{
		ID:         visible[0].ID,
		FromUserID: 2,
		ToUserID:   3,
		FromName:   "P2",
		ToName:     "P3",
		Text:       "third",
	}, visible[0])

	targets, err := s.UnguessedTargetsFrom("ABCD", 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, targets)

	ok, err := s.MarkGuessed(first.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.MarkGuessed(first.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	oldest, err = s.OldestUnguessedFor("ABCD", 2)
	require.NoError(t, err)
	assert.Equal(t, "second", oldest.Text)

	targets, err = s.UnguessedTargetsFrom("ABCD", 1)
	require.NoError(t, err)
	assert.Empty(t, targets)

	unguessed, err := s.UnguessedFor("ABCD", 2)
	require.NoError(t, err)
	assert.Len(t, unguessed, 1)

	all, err := s.AllWords("ABCD")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Guessed)
	assert.Equal(t, "P1", all[0].FromName)

	_, err = s.OldestUnguessedFor("ABCD", 1)
	assert.True(t, IsNotFound(err))
}

func TestClearWords(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateGame("ABCD", 1, "P1"))
	require.NoError(t, s.AddPlayer("ABCD", 2, "P2"))
	_, err := s.AddWord("ABCD", 1, 2, "word")
	require.NoError(t, err)
	require.NoError(t, s.SetWordForOthers("ABCD", 1, "word"))

	require.NoError(t, s.ClearWords("ABCD"))

	n, err := s.CountWords("ABCD")
	require.NoError(t, err)
	assert.Zero(t, n)
	p1, err := s.GetPlayer("ABCD", 1)
	require.NoError(t, err)
	assert.Empty(t, p1.WordForOthers)
}

func TestDeleteGame(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateGame("ABCD", 1, "P1"))
	require.NoError(t, s.AddPlayer("ABCD", 2, "P2"))
	require.NoError(t, s.ReplacePairs("ABCD", []schema.Pair{{FromUserID: 1, ToUserID: 2}, {FromUserID: 2, ToUserID: 1}}))
	_, err := s.AddWord("ABCD", 1, 2, "word")
	require.NoError(t, err)

	require.NoError(t, s.CreateGame("WXYZ", 1, "P1"))

	require.NoError(t, s.DeleteGame("ABCD"))

	_, err = s.GetGame("ABCD")
	assert.True(t, IsNotFound(err))
	players, err := s.GetPlayers("ABCD")
	require.NoError(t, err)
	assert.Empty(t, players)
	n, err := s.CountPairs("ABCD")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.CountWords("ABCD")
	require.NoError(t, err)
	assert.Zero(t, n)

	games, err := s.GamesForUser(1)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, "WXYZ", games[0].Code)
}

func TestAtomically_RollsBack(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateGame("ABCD", 1, "P1"))

	boom := errors.New("boom")
	err := s.Atomically(context.Background(), "ABCD", func(tx *Store) error {
		if err := tx.AddPlayer("ABCD", 2, "P2"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	players, err := s.GetPlayers("ABCD")
	require.NoError(t, err)
	assert.Len(t, players, 1)
}

func TestAtomically_Serializes(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateGame("ABCD", 1, "P1"))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Atomically(context.Background(), "ABCD", func(tx *Store) error {
				return tx.IncrementGuessed("ABCD", 1, time.Now())
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p1, err := s.GetPlayer("ABCD", 1)
	require.NoError(t, err)
	assert.Equal(t, 10, p1.GuessedCount)
	assert.Empty(t, s.locks.locks)
}

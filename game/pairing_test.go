package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkDerangement(t *testing.T, ids []int64, pairs []Pair) {
	t.Helper()
	require.Len(t, pairs, len(ids))

	from := make(map[int64]int)
	to := make(map[int64]int)
	for _, p := range pairs {
		assert.NotEqual(t, p.From, p.To, "player %d paired with self", p.From)
		from[p.From]++
		to[p.To]++
	}
	for _, id := range ids {
		assert.Equal(t, 1, from[id], "player %d should invent exactly one word", id)
		assert.Equal(t, 1, to[id], "player %d should receive exactly one word", id)
	}
}

func TestPair_Derangement(t *testing.T) {
	for n := 3; n <= 12; n++ {
		ids := make([]int64, n)
		for i := range ids {
			ids[i] = int64(100 + i)
		}
		for seed := int64(0); seed < 200; seed++ {
			pairs, err := NewPairer(seed).Pair(ids)
			require.NoError(t, err)
			checkDerangement(t, ids, pairs)
		}
	}
}

func TestPair_TwoPlayersSwap(t *testing.T) {
	pairs, err := NewPairer(7).Pair([]int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, []Pair{{From: 1, To: 2}, {From: 2, To: 1}}, pairs)
}

func TestPair_TooFewPlayers(t *testing.T) {
	for _, ids := range [][]int64{nil, {1}} {
		_, err := NewPairer(1).Pair(ids)
		assert.ErrorIs(t, err, ErrTooFewPlayers)
	}
}

func TestPair_DoesNotReorderInput(t *testing.T) {
	ids := []int64{5, 6, 7, 8}
	pairs, err := NewPairer(3).Pair(ids)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 6, 7, 8}, ids)
	for i, p := range pairs {
		assert.Equal(t, ids[i], p.From)
	}
}

func TestPair_SameSeedSamePairs(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5}
	first, err := NewPairer(42).Pair(ids)
	require.NoError(t, err)
	second, err := NewPairer(42).Pair(ids)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

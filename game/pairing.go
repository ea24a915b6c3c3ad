package game

import (
	"math/rand"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// Pair means From invents a word for To.
type Pair struct {
	From int64
	To   int64
}

// Pairer assigns every player someone else to invent a word for.
type Pairer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewPairer(seed int64) *Pairer {
	return &Pairer{rnd: rand.New(rand.NewSource(seed))}
}

func newTimePairer() *Pairer {
	return NewPairer(time.Now().UnixNano())
}

// Pair returns one pair per id. Two players swap; three or more form a
// derangement, so nobody is paired with themselves.
func (p *Pairer) Pair(ids []int64) ([]Pair, error) {
	n := len(ids)
	if n < 2 {
		return nil, ErrTooFewPlayers
	}
	if n == 2 {
		return []Pair{{From: ids[0], To: ids[1]}, {From: ids[1], To: ids[0]}}, nil
	}

	targets := slices.Clone(ids)
	p.mu.Lock()
	p.rnd.Shuffle(n, func(i, j int) {
		targets[i], targets[j] = targets[j], targets[i]
	})
	p.mu.Unlock()

	// Ids are distinct, so swapping a fixed point with its neighbour fixes
	// it without creating a new one at either position.
	for i := range targets {
		if targets[i] == ids[i] {
			j := (i + 1) % n
			targets[i], targets[j] = targets[j], targets[i]
		}
	}

	pairs := make([]Pair, 0, n)
	for i, id := range ids {
		pairs = append(pairs, Pair{From: id, To: targets[i]})
	}
	return pairs, nil
}

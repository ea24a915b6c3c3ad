package database

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Store is the record store of every game. All mutations of one game go
// through Atomically, which serializes them per game code.
type Store struct {
	db    *gorm.DB
	locks *gameLocks
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:    db,
		locks: &gameLocks{locks: make(map[string]*gameLock)},
	}
}

// WithContext returns a store bound to ctx for reads outside a transaction.
func (s *Store) WithContext(ctx context.Context) *Store {
	return &Store{db: s.db.WithContext(ctx), locks: s.locks}
}

// Atomically runs fn inside one transaction while holding the lock of code.
// fn must only use the store it is given and must not call Atomically.
func (s *Store) Atomically(ctx context.Context, code string, fn func(tx *Store) error) error {
	unlock := s.locks.lock(code)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, locks: s.locks})
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type gameLock struct {
	sync.Mutex
	refs int
}

type gameLocks struct {
	mu    sync.Mutex
	locks map[string]*gameLock
}

func (l *gameLocks) lock(code string) func() {
	l.mu.Lock()
	gl, ok := l.locks[code]
	if !ok {
		gl = &gameLock{}
		l.locks[code] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.Lock()
	return func() {
		gl.Unlock()

		l.mu.Lock()
		gl.refs--
		if gl.refs == 0 {
			delete(l.locks, code)
		}
		l.mu.Unlock()
	}
}

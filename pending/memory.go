package pending

import (
	"context"
	"sync"
)

type Memory struct {
	mu      sync.RWMutex
	actions map[int64]Action
}

func NewMemory() *Memory {
	return &Memory{actions: make(map[int64]Action)}
}

func (m *Memory) Get(_ context.Context, userID int64) (Action, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.actions[userID], nil
}

func (m *Memory) Set(_ context.Context, userID int64, action Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if action.Kind == None {
		delete(m.actions, userID)
		return nil
	}
	m.actions[userID] = action
	return nil
}

func (m *Memory) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actions, userID)
	return nil
}

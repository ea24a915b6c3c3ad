package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bitterfly/go-chaos/whoami/game"
	"github.com/bitterfly/go-chaos/whoami/server/message"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type client struct {
	id     uuid.UUID
	userID int64
	conn   *websocket.Conn
	mu     sync.Mutex
}

func (c *client) send(msg message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Hub keeps the open websockets of every participant and delivers game
// events to them. A participant may be connected more than once.
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[uuid.UUID]*client
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[int64]map[uuid.UUID]*client),
		log:     log,
	}
}

func (h *Hub) add(userID int64, conn *websocket.Conn) *client {
	c := &client{id: uuid.New(), userID: userID, conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[uuid.UUID]*client)
	}
	h.clients[userID][c.id] = c
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients[c.userID], c.id)
	if len(h.clients[c.userID]) == 0 {
		delete(h.clients, c.userID)
	}
}

func (h *Hub) connected(userID int64) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return lo.Values(h.clients[userID])
}

// Notify implements game.Notifier. Receivers without a connection are
// skipped; failed writes are reported together.
func (h *Hub) Notify(_ context.Context, event game.Event) error {
	msg := message.Message{Type: event.Type, Game: event.GameCode, Msg: event.Msg}

	var errs []error
	for _, receiver := range event.Receivers {
		clients := h.connected(receiver)
		if len(clients) == 0 {
			h.log.Debug("receiver not connected",
				zap.Int64("receiver", receiver),
				zap.String("type", string(event.Type)))
			continue
		}
		for _, c := range clients {
			if err := c.send(msg); err != nil {
				h.log.Warn("failed to send event to receiver",
					zap.Int64("receiver", receiver),
					zap.Stringer("conn", c.id),
					zap.Error(err))
				errs = append(errs, fmt.Errorf("receiver %d: %w", receiver, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.clients {
		for _, c := range clients {
			c.conn.Close()
		}
	}
	h.clients = make(map[int64]map[uuid.UUID]*client)
}

package game

import (
	"context"

	"github.com/bitterfly/go-chaos/whoami/server/message"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Event struct {
	ID        uuid.UUID
	Type      message.Type
	Msg       interface{}
	Receivers []int64
	GameCode  string
}

// Notifier delivers events to their receivers.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

type NotifierFunc func(ctx context.Context, event Event) error

func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type PlayerJoined struct {
	Name    string `json:"name"`
	Players int    `json:"players"`
}

type CollectingStarted struct {
	Players int `json:"players"`
}

type WordRequested struct {
	Target Target `json:"target"`
}

type WordSubmitted struct {
	Collected int64 `json:"collected"`
	Total     int64 `json:"total"`
}

// WordReceived never carries the text: the receiver has to guess it.
type WordReceived struct {
	From   string `json:"from"`
	FromID int64  `json:"fromId"`
}

type GameStarted struct {
	Words   []VisibleWord `json:"words"`
	Pending int64         `json:"pending"`
}

type WordGuessed struct {
	By   string `json:"by"`
	Word string `json:"word"`
}

type GameEnded struct {
	Player  PlayerReport `json:"player"`
	Summary Summary      `json:"summary"`
}

type GameCancelled struct {
	Code string `json:"code"`
}

// outbox collects the events of one transaction; they are sent only
// after it commits.
type outbox struct {
	events []Event
}

func (o *outbox) add(t message.Type, code string, msg interface{}, receivers ...int64) {
	o.events = append(o.events, Event{
		ID:        uuid.New(),
		Type:      t,
		Msg:       msg,
		Receivers: receivers,
		GameCode:  code,
	})
}

func (m *Manager) emit(ctx context.Context, events []Event) {
	for _, event := range events {
		if err := m.notifier.Notify(ctx, event); err != nil {
			m.log.Warn("could not deliver event",
				zap.String("game", event.GameCode),
				zap.String("type", string(event.Type)),
				zap.Int64s("receivers", event.Receivers),
				zap.Error(err))
		}
	}
}

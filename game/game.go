package game

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/bitterfly/go-chaos/whoami/database"
	"github.com/bitterfly/go-chaos/whoami/pending"
	"github.com/bitterfly/go-chaos/whoami/schema"
	"github.com/bitterfly/go-chaos/whoami/server/message"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	codeLength      = 4
	maxCodeAttempts = 8
)

// Manager runs every game. Each mutation of a game happens in one
// transaction under that game's lock; the events it produces are sent
// after the transaction commits.
type Manager struct {
	store    *database.Store
	notifier Notifier
	pending  pending.Store
	log      *zap.Logger
	pairer   *Pairer
	newCode  func() (string, error)
	now      func() time.Time
}

type Option func(*Manager)

func WithCodeGenerator(fn func() (string, error)) Option {
	return func(m *Manager) { m.newCode = fn }
}

func WithPairer(p *Pairer) Option {
	return func(m *Manager) { m.pairer = p }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store *database.Store, notifier Notifier, pendingStore pending.Store, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		notifier: notifier,
		pending:  pendingStore,
		log:      log,
		pairer:   newTimePairer(),
		newCode:  randomCode,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type GameInfo struct {
	Code      string            `json:"code"`
	OwnerID   int64             `json:"ownerId"`
	Status    schema.GameStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

type PlayerInfo struct {
	UserID       int64  `json:"id"`
	Name         string `json:"name"`
	GuessedCount int    `json:"guessed"`
	Owner        bool   `json:"owner"`
}

func randomCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(26))
		if err != nil {
			return "", err
		}
		code[i] = 'A' + byte(n.Int64())
	}
	return string(code), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// atomically runs fn under the lock of code and emits the collected events
// once it commits.
func (m *Manager) atomically(ctx context.Context, code string, fn func(tx *database.Store, out *outbox) error) error {
	out := &outbox{}
	err := m.store.Atomically(ctx, code, func(tx *database.Store) error {
		return fn(tx, out)
	})
	if err != nil {
		return err
	}
	m.emit(ctx, out.events)
	return nil
}

// fail passes game errors through and hides everything else behind
// ErrInternal after logging it.
func (m *Manager) fail(op, code string, err error) error {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr
	}
	m.log.Error("operation failed",
		zap.String("op", op),
		zap.String("game", code),
		zap.Error(err))
	return ErrInternal
}

func loadGame(tx *database.Store, code string) (*schema.Game, error) {
	g, err := tx.GetGame(code)
	if database.IsNotFound(err) {
		return nil, ErrGameNotFound
	}
	return g, err
}

func loadOwnedGame(tx *database.Store, code string, requesterID int64) (*schema.Game, error) {
	g, err := loadGame(tx, code)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != requesterID {
		return nil, ErrNotOwner
	}
	return g, nil
}

func loadPlayer(tx *database.Store, code string, userID int64) (*schema.Player, error) {
	p, err := tx.GetPlayer(code, userID)
	if database.IsNotFound(err) {
		return nil, ErrPlayerNotFound
	}
	return p, err
}

func playerIDs(players []schema.Player) []int64 {
	return lo.Map(players, func(p schema.Player, _ int) int64 { return p.UserID })
}

// CreateGame opens a new game owned by ownerID and returns its code.
func (m *Manager) CreateGame(ctx context.Context, ownerID int64, ownerName string) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := m.newCode()
		if err != nil {
			return "", m.fail("create", "", err)
		}

		err = m.store.Atomically(ctx, code, func(tx *database.Store) error {
			return tx.CreateGame(code, ownerID, ownerName)
		})
		if err == nil {
			m.log.Info("game created", zap.String("game", code), zap.Int64("owner", ownerID))
			return code, nil
		}
		if !database.IsConflict(err) {
			return "", m.fail("create", code, err)
		}
		m.log.Debug("game code taken", zap.String("game", code))
	}
	return "", ErrCodeTaken
}

func (m *Manager) JoinGame(ctx context.Context, code string, userID int64, name string) error {
	code = normalizeCode(code)
	err := m.atomically(ctx, code, func(tx *database.Store, out *outbox) error {
		g, err := loadGame(tx, code)
		if err != nil {
			return err
		}
		if _, err := tx.GetPlayer(code, userID); err == nil {
			return ErrAlreadyJoined
		} else if !database.IsNotFound(err) {
			return err
		}
		if g.Status != schema.StatusCreated {
			return ErrGameAlreadyStarted
		}
		if err := tx.AddPlayer(code, userID, name); err != nil {
			if database.IsConflict(err) {
				return ErrAlreadyJoined
			}
			return err
		}

		players, err := tx.GetPlayers(code)
		if err != nil {
			return err
		}
		out.add(message.PlayerJoined, code, PlayerJoined{Name: name, Players: len(players)}, g.OwnerID)
		return nil
	})
	if err != nil {
		return m.fail("join", code, err)
	}
	m.log.Info("player joined", zap.String("game", code), zap.Int64("player", userID))
	return nil
}

// BeginCollecting pairs up the current roster and asks everybody for a
// word for their pair. Calling it again while collecting starts the round
// over with fresh pairs.
func (m *Manager) BeginCollecting(ctx context.Context, code string, requesterID int64) error {
	code = normalizeCode(code)
	err := m.atomically(ctx, code, func(tx *database.Store, out *outbox) error {
		g, err := loadOwnedGame(tx, code, requesterID)
		if err != nil {
			return err
		}
		if g.Status == schema.StatusStarted {
			return ErrGameAlreadyStarted
		}

		players, err := tx.GetPlayers(code)
		if err != nil {
			return err
		}
		pairs, err := m.pairer.Pair(playerIDs(players))
		if err != nil {
			return err
		}

		if err := tx.ClearWords(code); err != nil {
			return err
		}
		if err := tx.ReplacePairs(code, lo.Map(pairs, func(p Pair, _ int) schema.Pair {
			return schema.Pair{FromUserID: p.From, ToUserID: p.To}
		})); err != nil {
			return err
		}
		if err := tx.SetStatus(code, schema.StatusCollecting); err != nil {
			return err
		}

		names := lo.SliceToMap(players, func(p schema.Player) (int64, string) {
			return p.UserID, p.UserName
		})
		for _, p := range pairs {
			out.add(message.WordRequested, code,
				WordRequested{Target: Target{ID: p.To, Name: names[p.To]}}, p.From)
		}
		out.add(message.CollectingStarted, code, CollectingStarted{Players: len(players)}, g.OwnerID)
		return nil
	})
	if err != nil {
		return m.fail("collect", code, err)
	}
	m.log.Info("collecting words", zap.String("game", code))
	return nil
}

// EndGame closes the game in any state, sends every player the words they
// got and returns the whole report.
func (m *Manager) EndGame(ctx context.Context, code string, requesterID int64) (Report, error) {
	code = normalizeCode(code)
	var (
		report  Report
		players []int64
	)
	err := m.atomically(ctx, code, func(tx *database.Store, out *outbox) error {
		if _, err := loadOwnedGame(tx, code, requesterID); err != nil {
			return err
		}
		roster, err := tx.GetPlayers(code)
		if err != nil {
			return err
		}
		words, err := tx.AllWords(code)
		if err != nil {
			return err
		}
		report = buildReport(code, roster, words)

		if err := tx.DeleteGame(code); err != nil {
			return err
		}

		players = playerIDs(roster)
		for _, section := range report.Players {
			out.add(message.GameEnded, code,
				GameEnded{Player: section, Summary: report.Summary}, section.UserID)
		}
		return nil
	})
	if err != nil {
		return Report{}, m.fail("end", code, err)
	}
	m.clearPendingFor(ctx, code, players)
	m.log.Info("game ended", zap.String("game", code))
	return report, nil
}

// CancelGame throws away a game nobody has started playing.
func (m *Manager) CancelGame(ctx context.Context, code string, requesterID int64) error {
	code = normalizeCode(code)
	err := m.atomically(ctx, code, func(tx *database.Store, out *outbox) error {
		g, err := loadOwnedGame(tx, code, requesterID)
		if err != nil {
			return err
		}
		if g.Status != schema.StatusCreated {
			return ErrGameAlreadyStarted
		}
		players, err := tx.GetPlayers(code)
		if err != nil {
			return err
		}
		if err := tx.DeleteGame(code); err != nil {
			return err
		}
		out.add(message.GameCancelled, code, GameCancelled{Code: code}, playerIDs(players)...)
		return nil
	})
	if err != nil {
		return m.fail("cancel", code, err)
	}
	m.log.Info("game cancelled", zap.String("game", code))
	return nil
}

func (m *Manager) clearPendingFor(ctx context.Context, code string, userIDs []int64) {
	for _, id := range userIDs {
		action, err := m.pending.Get(ctx, id)
		if err != nil {
			m.log.Warn("could not read pending action", zap.Int64("player", id), zap.Error(err))
			continue
		}
		if action.Kind != pending.AwaitingWordFor || action.GameCode != code {
			continue
		}
		if err := m.pending.Clear(ctx, id); err != nil {
			m.log.Warn("could not clear pending action", zap.Int64("player", id), zap.Error(err))
		}
	}
}

func (m *Manager) Game(ctx context.Context, code string) (GameInfo, error) {
	code = normalizeCode(code)
	g, err := loadGame(m.store.WithContext(ctx), code)
	if err != nil {
		return GameInfo{}, m.fail("game", code, err)
	}
	return gameInfo(*g), nil
}

// Players returns the roster in join order.
func (m *Manager) Players(ctx context.Context, code string) ([]PlayerInfo, error) {
	code = normalizeCode(code)
	store := m.store.WithContext(ctx)
	g, err := loadGame(store, code)
	if err != nil {
		return nil, m.fail("players", code, err)
	}
	players, err := store.GetPlayers(code)
	if err != nil {
		return nil, m.fail("players", code, err)
	}
	return lo.Map(players, func(p schema.Player, _ int) PlayerInfo {
		return PlayerInfo{
			UserID:       p.UserID,
			Name:         p.UserName,
			GuessedCount: p.GuessedCount,
			Owner:        p.UserID == g.OwnerID,
		}
	}), nil
}

// GamesFor lists the games userID plays in, newest first.
func (m *Manager) GamesFor(ctx context.Context, userID int64) ([]GameInfo, error) {
	games, err := m.store.WithContext(ctx).GamesForUser(userID)
	if err != nil {
		return nil, m.fail("games", "", err)
	}
	return lo.Map(games, func(g schema.Game, _ int) GameInfo { return gameInfo(g) }), nil
}

func gameInfo(g schema.Game) GameInfo {
	return GameInfo{
		Code:      g.Code,
		OwnerID:   g.OwnerID,
		Status:    g.Status,
		CreatedAt: g.CreatedAt,
	}
}

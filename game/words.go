package game

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/bitterfly/go-chaos/whoami/database"
	"github.com/bitterfly/go-chaos/whoami/pending"
	"github.com/bitterfly/go-chaos/whoami/schema"
	"github.com/bitterfly/go-chaos/whoami/server/message"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

const minTextLength = 2

type Target struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// VisibleWord is a word somebody else has to guess.
type VisibleWord struct {
	ID       uint   `json:"id"`
	FromID   int64  `json:"fromId"`
	FromName string `json:"from"`
	ToID     int64  `json:"toId"`
	ToName   string `json:"to"`
	Text     string `json:"text"`
}

// Assignment is a word addressed to the viewer. Its text is never
// serialized.
type Assignment struct {
	ID     uint   `json:"id"`
	FromID int64  `json:"fromId"`
	Text   string `json:"-"`
}

type SubmitResult struct {
	Status    schema.GameStatus `json:"status"`
	Collected int64             `json:"collected,omitempty"`
	Total     int64             `json:"total,omitempty"`
}

type View struct {
	Code    string            `json:"code"`
	Status  schema.GameStatus `json:"status"`
	Words   []VisibleWord     `json:"words"`
	Pending int64             `json:"pending"`
	Target  *Target           `json:"target,omitempty"`
}

func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < minTextLength {
		return "", ErrTooShort
	}
	return text, nil
}

// SubmitWord stores a word fromID invents for toID. While collecting, it is
// the one word for the pair target; once started, it is an extra word for
// any player who has guessed fromID's previous one.
func (m *Manager) SubmitWord(ctx context.Context, code string, fromID, toID int64, text string) (SubmitResult, error) {
	code = normalizeCode(code)
	text, err := cleanText(text)
	if err != nil {
		return SubmitResult{}, err
	}
	if fromID == toID {
		return SubmitResult{}, ErrSelfTarget
	}

	var result SubmitResult
	err = m.atomically(ctx, code, func(tx *database.Store, out *outbox) error {
		g, err := loadGame(tx, code)
		if err != nil {
			return err
		}
		sender, err := loadPlayer(tx, code, fromID)
		if err != nil {
			return err
		}
		if _, err := loadPlayer(tx, code, toID); err != nil {
			return err
		}

		switch g.Status {
		case schema.StatusCollecting:
			result, err = collectWord(tx, out, code, sender, toID, text)
		case schema.StatusStarted:
			result, err = addWord(tx, out, code, sender, toID, text)
		default:
			err = ErrNotCollecting
		}
		return err
	})
	if err != nil {
		return SubmitResult{}, m.fail("submit", code, err)
	}
	m.log.Debug("word submitted",
		zap.String("game", code),
		zap.Int64("from", fromID),
		zap.Int64("to", toID),
		zap.String("status", string(result.Status)))
	return result, nil
}

func collectWord(tx *database.Store, out *outbox, code string, sender *schema.Player, toID int64, text string) (SubmitResult, error) {
	pair, err := tx.GetPair(code, sender.UserID)
	if database.IsNotFound(err) {
		return SubmitResult{}, ErrNotYourTarget
	}
	if err != nil {
		return SubmitResult{}, err
	}
	if pair.ToUserID != toID {
		return SubmitResult{}, ErrNotYourTarget
	}

	submitted, err := tx.CountWordsFrom(code, sender.UserID)
	if err != nil {
		return SubmitResult{}, err
	}
	if submitted > 0 {
		return SubmitResult{}, ErrWordAlreadySubmitted
	}

	if _, err := tx.AddWord(code, sender.UserID, toID, text); err != nil {
		return SubmitResult{}, err
	}
	if err := tx.SetWordForOthers(code, sender.UserID, text); err != nil {
		return SubmitResult{}, err
	}

	collected, err := tx.CountWords(code)
	if err != nil {
		return SubmitResult{}, err
	}
	total, err := tx.CountPairs(code)
	if err != nil {
		return SubmitResult{}, err
	}
	if collected < total {
		out.add(message.WordSubmitted, code, WordSubmitted{Collected: collected, Total: total}, sender.UserID)
		return SubmitResult{Status: schema.StatusCollecting, Collected: collected, Total: total}, nil
	}

	if err := tx.SetStatus(code, schema.StatusStarted); err != nil {
		return SubmitResult{}, err
	}
	players, err := tx.GetPlayers(code)
	if err != nil {
		return SubmitResult{}, err
	}
	for _, p := range players {
		words, err := visibleWords(tx, code, p.UserID)
		if err != nil {
			return SubmitResult{}, err
		}
		pendingCount, err := tx.CountUnguessedFor(code, p.UserID)
		if err != nil {
			return SubmitResult{}, err
		}
		out.add(message.GameStarted, code, GameStarted{Words: words, Pending: pendingCount}, p.UserID)
	}
	return SubmitResult{Status: schema.StatusStarted, Collected: collected, Total: total}, nil
}

func addWord(tx *database.Store, out *outbox, code string, sender *schema.Player, toID int64, text string) (SubmitResult, error) {
	targets, err := availableTargets(tx, code, sender.UserID)
	if err != nil {
		return SubmitResult{}, err
	}
	if !lo.ContainsBy(targets, func(t Target) bool { return t.ID == toID }) {
		return SubmitResult{}, ErrTargetUnavailable
	}
	if _, err := tx.AddWord(code, sender.UserID, toID, text); err != nil {
		return SubmitResult{}, err
	}
	out.add(message.WordReceived, code, WordReceived{From: sender.UserName, FromID: sender.UserID}, toID)
	return SubmitResult{Status: schema.StatusStarted}, nil
}

// availableTargets is everybody but fromID and the players still guessing
// one of fromID's words, in join order.
func availableTargets(tx *database.Store, code string, fromID int64) ([]Target, error) {
	players, err := tx.GetPlayers(code)
	if err != nil {
		return nil, err
	}
	busy, err := tx.UnguessedTargetsFrom(code, fromID)
	if err != nil {
		return nil, err
	}
	free := lo.Filter(players, func(p schema.Player, _ int) bool {
		return p.UserID != fromID && !slices.Contains(busy, p.UserID)
	})
	return lo.Map(free, func(p schema.Player, _ int) Target {
		return Target{ID: p.UserID, Name: p.UserName}
	}), nil
}

func visibleWords(tx *database.Store, code string, viewerID int64) ([]VisibleWord, error) {
	views, err := tx.VisibleWordsFor(code, viewerID)
	if err != nil {
		return nil, err
	}
	return lo.Map(views, func(v database.WordView, _ int) VisibleWord {
		return VisibleWord{
			ID:       v.ID,
			FromID:   v.FromUserID,
			FromName: v.FromName,
			ToID:     v.ToUserID,
			ToName:   v.ToName,
			Text:     v.Text,
		}
	}), nil
}

// readPlayer opens a read-only view of code for a player of it.
func (m *Manager) readPlayer(ctx context.Context, code string, userID int64) (*database.Store, *schema.Game, error) {
	store := m.store.WithContext(ctx)
	g, err := loadGame(store, code)
	if err != nil {
		return nil, nil, err
	}
	if _, err := loadPlayer(store, code, userID); err != nil {
		return nil, nil, err
	}
	return store, g, nil
}

// VisibleWordsFor lists the unguessed words of every other player.
func (m *Manager) VisibleWordsFor(ctx context.Context, code string, viewerID int64) ([]VisibleWord, error) {
	code = normalizeCode(code)
	store, _, err := m.readPlayer(ctx, code, viewerID)
	if err != nil {
		return nil, m.fail("words", code, err)
	}
	words, err := visibleWords(store, code, viewerID)
	if err != nil {
		return nil, m.fail("words", code, err)
	}
	return words, nil
}

// PendingWordFor returns the word viewerID is guessing now, or nil.
func (m *Manager) PendingWordFor(ctx context.Context, code string, viewerID int64) (*Assignment, error) {
	code = normalizeCode(code)
	store, _, err := m.readPlayer(ctx, code, viewerID)
	if err != nil {
		return nil, m.fail("pending word", code, err)
	}
	word, err := store.OldestUnguessedFor(code, viewerID)
	if database.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, m.fail("pending word", code, err)
	}
	return &Assignment{ID: word.ID, FromID: word.FromUserID, Text: word.Text}, nil
}

func (m *Manager) AllUnguessedFor(ctx context.Context, code string, viewerID int64) ([]Assignment, error) {
	code = normalizeCode(code)
	store, _, err := m.readPlayer(ctx, code, viewerID)
	if err != nil {
		return nil, m.fail("unguessed", code, err)
	}
	words, err := store.UnguessedFor(code, viewerID)
	if err != nil {
		return nil, m.fail("unguessed", code, err)
	}
	return lo.Map(words, func(w schema.PlayerWord, _ int) Assignment {
		return Assignment{ID: w.ID, FromID: w.FromUserID, Text: w.Text}
	}), nil
}

// View is what viewerID sees of the game: the words of others, how many
// words they still have to guess and who they were paired with.
func (m *Manager) View(ctx context.Context, code string, viewerID int64) (View, error) {
	code = normalizeCode(code)
	store, g, err := m.readPlayer(ctx, code, viewerID)
	if err != nil {
		return View{}, m.fail("view", code, err)
	}
	view := View{Code: code, Status: g.Status}

	if view.Words, err = visibleWords(store, code, viewerID); err != nil {
		return View{}, m.fail("view", code, err)
	}
	if view.Pending, err = store.CountUnguessedFor(code, viewerID); err != nil {
		return View{}, m.fail("view", code, err)
	}

	pair, err := store.GetPair(code, viewerID)
	if err != nil && !database.IsNotFound(err) {
		return View{}, m.fail("view", code, err)
	}
	if pair != nil {
		target, err := store.GetPlayer(code, pair.ToUserID)
		if err != nil {
			return View{}, m.fail("view", code, err)
		}
		view.Target = &Target{ID: target.UserID, Name: target.UserName}
	}
	return view, nil
}

func (m *Manager) startedTargets(store *database.Store, g *schema.Game, fromID int64) ([]Target, error) {
	if g.Status != schema.StatusStarted {
		return nil, ErrNotStarted
	}
	return availableTargets(store, g.Code, fromID)
}

// RequestNewTarget lists the players fromID may invent another word for.
func (m *Manager) RequestNewTarget(ctx context.Context, code string, fromID int64) ([]Target, error) {
	code = normalizeCode(code)
	store, g, err := m.readPlayer(ctx, code, fromID)
	if err != nil {
		return nil, m.fail("targets", code, err)
	}
	targets, err := m.startedTargets(store, g, fromID)
	if err != nil {
		return nil, m.fail("targets", code, err)
	}
	return targets, nil
}

// SelectTarget remembers that the next text fromID sends is a word for toID.
func (m *Manager) SelectTarget(ctx context.Context, code string, fromID, toID int64) (Target, error) {
	code = normalizeCode(code)
	if fromID == toID {
		return Target{}, ErrSelfTarget
	}
	store, g, err := m.readPlayer(ctx, code, fromID)
	if err != nil {
		return Target{}, m.fail("select target", code, err)
	}
	targets, err := m.startedTargets(store, g, fromID)
	if err != nil {
		return Target{}, m.fail("select target", code, err)
	}
	target, ok := lo.Find(targets, func(t Target) bool { return t.ID == toID })
	if !ok {
		return Target{}, ErrTargetUnavailable
	}
	if err := m.pending.Set(ctx, fromID, pending.AwaitWordFor(code, toID)); err != nil {
		return Target{}, m.fail("select target", code, err)
	}
	return target, nil
}

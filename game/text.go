package game

import (
	"context"
	"errors"

	"github.com/bitterfly/go-chaos/whoami/database"
	"github.com/bitterfly/go-chaos/whoami/pending"
	"github.com/bitterfly/go-chaos/whoami/schema"
	"go.uber.org/zap"
)

type TextAction string

const (
	TextWordSent       TextAction = "word_sent"
	TextCollectionWord TextAction = "collection_word"
	TextGuess          TextAction = "guess"
	TextNothingPending TextAction = "nothing_pending"
)

type TextResult struct {
	Action TextAction    `json:"action"`
	Code   string        `json:"code,omitempty"`
	Submit *SubmitResult `json:"submit,omitempty"`
	Guess  *GuessResult  `json:"guess,omitempty"`
}

// HandleText decides what a plain message from userID means. A selected
// target takes it as a new word; otherwise it is the word for the pair in a
// collecting game; otherwise a guess in a started game.
func (m *Manager) HandleText(ctx context.Context, userID int64, text string) (TextResult, error) {
	action, err := m.pending.Get(ctx, userID)
	if err != nil {
		return TextResult{}, m.fail("text", "", err)
	}
	if action.Kind == pending.AwaitingWordFor {
		res, err := m.SubmitWord(ctx, action.GameCode, userID, action.TargetID, text)
		switch {
		case err == nil:
			m.CancelPending(ctx, userID)
			return TextResult{Action: TextWordSent, Code: action.GameCode, Submit: &res}, nil
		case staleTarget(err):
			m.CancelPending(ctx, userID)
		default:
			return TextResult{}, err
		}
	}

	games, err := m.store.WithContext(ctx).GamesForUser(userID)
	if err != nil {
		return TextResult{}, m.fail("text", "", err)
	}

	for _, g := range games {
		if g.Status != schema.StatusCollecting {
			continue
		}
		pair, err := m.store.WithContext(ctx).GetPair(g.Code, userID)
		if database.IsNotFound(err) {
			continue
		}
		if err != nil {
			return TextResult{}, m.fail("text", g.Code, err)
		}
		res, err := m.SubmitWord(ctx, g.Code, userID, pair.ToUserID, text)
		if notCollectionWord(err) {
			continue
		}
		if err != nil {
			return TextResult{}, err
		}
		return TextResult{Action: TextCollectionWord, Code: g.Code, Submit: &res}, nil
	}

	for _, g := range games {
		if g.Status != schema.StatusStarted {
			continue
		}
		res, err := m.AttemptGuess(ctx, g.Code, userID, text)
		if err != nil {
			return TextResult{}, err
		}
		if res.Outcome == NothingPending {
			continue
		}
		return TextResult{Action: TextGuess, Code: g.Code, Guess: &res}, nil
	}

	return TextResult{Action: TextNothingPending}, nil
}

// notCollectionWord reports errors meaning the text cannot be the player's
// word in that game, either because they already sent it or because the
// game moved on since it was listed.
func notCollectionWord(err error) bool {
	return errors.Is(err, ErrWordAlreadySubmitted) ||
		errors.Is(err, ErrNotCollecting) ||
		errors.Is(err, ErrNotYourTarget) ||
		errors.Is(err, ErrTargetUnavailable)
}

// staleTarget reports errors meaning the selected target can no longer take
// a word, so the text is read as if nothing had been selected.
func staleTarget(err error) bool {
	return errors.Is(err, ErrGameNotFound) ||
		errors.Is(err, ErrPlayerNotFound) ||
		notCollectionWord(err)
}

// CancelPending forgets the target userID selected, if any.
func (m *Manager) CancelPending(ctx context.Context, userID int64) error {
	if err := m.pending.Clear(ctx, userID); err != nil {
		m.log.Warn("could not clear pending action", zap.Int64("player", userID), zap.Error(err))
		return ErrInternal
	}
	return nil
}

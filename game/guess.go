package game

import (
	"context"
	"strings"

	"github.com/bitterfly/go-chaos/whoami/database"
	"github.com/bitterfly/go-chaos/whoami/schema"
	"github.com/bitterfly/go-chaos/whoami/server/message"
	"go.uber.org/zap"
)

type GuessOutcome string

const (
	Correct        GuessOutcome = "correct"
	Incorrect      GuessOutcome = "incorrect"
	NothingPending GuessOutcome = "nothing_pending"
)

type GuessResult struct {
	Outcome   GuessOutcome `json:"outcome"`
	Attempt   string       `json:"attempt,omitempty"`
	Word      string       `json:"word,omitempty"`
	Remaining int64        `json:"remaining"`
}

// matches compares ignoring surrounding whitespace and case.
func matches(word, attempt string) bool {
	return strings.EqualFold(strings.TrimSpace(word), strings.TrimSpace(attempt))
}

// AttemptGuess checks text against the oldest word viewerID still has to
// guess. When there is nothing to guess it reports NothingPending instead
// of failing.
func (m *Manager) AttemptGuess(ctx context.Context, code string, viewerID int64, text string) (GuessResult, error) {
	code = normalizeCode(code)
	result := GuessResult{Outcome: NothingPending}
	err := m.atomically(ctx, code, func(tx *database.Store, out *outbox) error {
		g, err := tx.GetGame(code)
		if database.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if g.Status != schema.StatusStarted {
			return nil
		}
		guesser, err := tx.GetPlayer(code, viewerID)
		if database.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		word, err := tx.OldestUnguessedFor(code, viewerID)
		if database.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		attempt := strings.TrimSpace(text)
		if !matches(word.Text, attempt) {
			remaining, err := tx.CountUnguessedFor(code, viewerID)
			if err != nil {
				return err
			}
			result = GuessResult{Outcome: Incorrect, Attempt: attempt, Remaining: remaining}
			out.add(message.GuessResult, code, result, viewerID)
			return nil
		}

		now := m.now()
		ok, err := tx.MarkGuessed(word.ID, now)
		if err != nil || !ok {
			return err
		}
		if err := tx.IncrementGuessed(code, viewerID, now); err != nil {
			return err
		}
		remaining, err := tx.CountUnguessedFor(code, viewerID)
		if err != nil {
			return err
		}

		result = GuessResult{Outcome: Correct, Attempt: attempt, Word: word.Text, Remaining: remaining}
		out.add(message.GuessResult, code, result, viewerID)
		out.add(message.WordGuessed, code, WordGuessed{By: guesser.UserName, Word: word.Text}, word.FromUserID)
		return nil
	})
	if err != nil {
		return GuessResult{}, m.fail("guess", code, err)
	}
	if result.Outcome == Correct {
		m.log.Info("word guessed", zap.String("game", code), zap.Int64("player", viewerID))
	}
	return result, nil
}

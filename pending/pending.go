// Package pending keeps what a participant's next free-text message means.
package pending

import "context"

type Kind string

const (
	None            Kind = ""
	AwaitingWordFor Kind = "awaiting_word_for"
)

// Action is the pending action of one participant. GameCode and TargetID
// are only set when Kind is AwaitingWordFor.
type Action struct {
	Kind     Kind   `json:"kind"`
	GameCode string `json:"game,omitempty"`
	TargetID int64  `json:"target,omitempty"`
}

func AwaitWordFor(code string, targetID int64) Action {
	return Action{Kind: AwaitingWordFor, GameCode: code, TargetID: targetID}
}

// Store maps participant ids to their pending action. A participant
// without one gets the zero Action.
type Store interface {
	Get(ctx context.Context, userID int64) (Action, error)
	Set(ctx context.Context, userID int64, action Action) error
	Clear(ctx context.Context, userID int64) error
}

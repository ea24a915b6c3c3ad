package game

import "errors"

type Kind int

const (
	Internal Kind = iota
	NotFound
	Forbidden
	InvalidInput
	Conflict
	PreconditionFailed
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case Forbidden:
		return "forbidden"
	case InvalidInput:
		return "invalid input"
	case Conflict:
		return "conflict"
	case PreconditionFailed:
		return "precondition failed"
	default:
		return "internal"
	}
}

// Error is a failure a participant can act on. Anything else leaving the
// Manager is ErrInternal.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, msg: msg}
}

var (
	ErrGameNotFound   = newError(NotFound, "game not found")
	ErrPlayerNotFound = newError(NotFound, "player not found in game")

	ErrNotOwner = newError(Forbidden, "only the owner of the game can do this")

	ErrTooShort   = newError(InvalidInput, "text is too short")
	ErrSelfTarget = newError(InvalidInput, "cannot pick a word for yourself")

	ErrAlreadyJoined        = newError(Conflict, "player already in game")
	ErrCodeTaken            = newError(Conflict, "could not find a free game code")
	ErrWordAlreadySubmitted = newError(Conflict, "word already submitted")
	ErrTargetUnavailable    = newError(Conflict, "player still has to guess your previous word")

	ErrGameAlreadyStarted = newError(PreconditionFailed, "game already started")
	ErrTooFewPlayers      = newError(PreconditionFailed, "not enough players")
	ErrNotCollecting      = newError(PreconditionFailed, "game is not collecting words")
	ErrNotStarted         = newError(PreconditionFailed, "game has not started")
	ErrNotYourTarget      = newError(PreconditionFailed, "this is not the player you were paired with")

	ErrInternal = newError(Internal, "something went wrong")
)

// KindOf classifies err; errors that are not *Error are Internal.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return Internal
}

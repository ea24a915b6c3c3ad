package message

type Type string

const (
	PlayerJoined      Type = "player_joined"
	CollectingStarted Type = "collecting_started"
	WordRequested     Type = "word_requested"
	WordSubmitted     Type = "word_submitted"
	WordReceived      Type = "word_received"
	GameStarted       Type = "game_started"
	GuessResult       Type = "guess_result"
	WordGuessed       Type = "word_guessed"
	GameEnded         Type = "game_ended"
	GameCancelled     Type = "game_cancelled"

	// Sent by clients over the websocket.
	Text Type = "text"

	Error Type = "error"
)

// Message is the envelope of every websocket frame.
type Message struct {
	Type Type        `json:"type"`
	Game string      `json:"game,omitempty"`
	Msg  interface{} `json:"msg"`
}

package containers

import (
	"io"

	"github.com/bitterfly/go-chaos/whoami/utils"
)

// Word is a word invented for the player To.
type Word struct {
	To   int64
	Text string
}

func ParseWord(data io.ReadCloser) (*Word, error) {
	return utils.Parse[Word](data)
}

// Text is a free-text message, either a guess or a word.
type Text struct {
	Text string
}

func ParseText(data io.ReadCloser) (*Text, error) {
	return utils.Parse[Text](data)
}

package containers

import (
	"io"

	"github.com/bitterfly/go-chaos/whoami/utils"
)

// LoginUser is a participant introduced by the chat bot, which proves
// itself with the shared secret.
type LoginUser struct {
	ID     int64
	Name   string
	Secret string
}

func ParseLoginUser(data io.ReadCloser) (*LoginUser, error) {
	return utils.Parse[LoginUser](data)
}

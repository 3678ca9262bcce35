package client

import (
	"github.com/teris-io/shortid"
)

// NewRoomId generates a short random room identifier. Rooms are named
// client-side; the servers accept any opaque token.
func NewRoomId() (string, error) {
	return shortid.Generate()
}

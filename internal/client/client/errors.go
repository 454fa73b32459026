package client

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophmaster/internal/packet"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrNoSessionKey = errors.New("handshake not completed")
	ErrClosed       = errors.New("client closed")
)

// StatusError reports a response whose status was not Success.
type StatusError struct {
	Op     packet.OpCode
	Status packet.Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

// StatusOf extracts the response status carried by err, if any.
func StatusOf(err error) (packet.Status, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status, true
	}
	return 0, false
}

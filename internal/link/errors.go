package link

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by SendCommand when no link is established.
	ErrNotConnected = errors.New("link: not connected")
	// ErrCommandTimeout is returned when a command is not acknowledged in time.
	ErrCommandTimeout = errors.New("link: command timed out")
	// ErrLinkStopped is returned when Disconnect ends the loop while a command waits.
	ErrLinkStopped = errors.New("link: stopped")
	// ErrMalformedPayload marks a notification that could not be decoded.
	ErrMalformedPayload = errors.New("link: malformed payload")
)

// TransportError wraps a failure reported by the underlying transport.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("link: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

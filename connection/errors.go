package connection

import (
	"errors"
	"fmt"
)

var (
	ErrProtocolViolation = errors.New("Protocol violation")
	ErrClosed            = errors.New("Connection is closed")
	ErrAlreadyStarted    = errors.New("Connection was already started")
	ErrColorWishTimeout  = errors.New("Timed out waiting for a color wish")
)

// SendErrorKind is the cause of a failed send.
type SendErrorKind int

const (
	// EncodeFailed means the packet could not be serialised.
	EncodeFailed SendErrorKind = iota

	// WriterClosed means the writer refused the line.
	WriterClosed

	// ConnClosed means the connection was already closed.
	ConnClosed
)

func (k SendErrorKind) String() string {
	switch k {
	case EncodeFailed:
		return "encode failed"
	case WriterClosed:
		return "writer closed"
	case ConnClosed:
		return "connection closed"
	default:
		return fmt.Sprintf("SendErrorKind(%d)", int(k))
	}
}

// SendError is returned by every send on a Conn.
type SendError struct {
	Kind SendErrorKind
	Err  error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("Failed to send packet (%s): %v", e.Kind, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

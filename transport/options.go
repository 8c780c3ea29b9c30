package transport

import (
	"time"

	"go.uber.org/zap"
)

type Options struct {
	// Host to listen on
	Host string

	// Port to listen on
	Port int

	// Reuseport controls setting SO_REUSEPORT
	Reuseport bool

	NumListeners int

	// MaxLineLength bounds a single inbound line, longer lines are dropped
	MaxLineLength int

	// WriteTimeout bounds writing a single outbound line
	WriteTimeout time.Duration

	// ColorWishTimeout is handed to every connection
	ColorWishTimeout time.Duration

	Handler ConnHandler

	Log *zap.Logger
}

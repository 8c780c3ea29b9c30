package connection

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/moep/moepserver/protocol"
)

// RequestColorChoice asks the client for a color and blocks until it
// answers. An answer that arrived before the call is returned right away.
//
// It fails with ErrColorWishTimeout when the configured timeout passes,
// with ErrClosed when the connection closes while waiting, or with the
// context's error. Concurrent callers are served one after the other.
func (c *Conn) RequestColorChoice(ctx context.Context) (int, error) {
	c.wishMu.Lock()
	defer c.wishMu.Unlock()

	if err := c.SendColorWishRequest(); err != nil {
		return protocol.NoColor, err
	}

	var timeout <-chan time.Time
	if c.colorWishTimeout > 0 {
		timer := time.NewTimer(c.colorWishTimeout)
		defer timer.Stop()

		timeout = timer.C
	}

	for {
		if color := c.PeekColorChoice(); color >= 0 {
			return color, nil
		}

		select {
		case <-c.colorReady:

		case <-c.closed:
			return protocol.NoColor, ErrClosed

		case <-timeout:
			c.logger().Warn("Client did not wish a color in time",
				zap.Duration("timeout", c.colorWishTimeout))
			return protocol.NoColor, ErrColorWishTimeout

		case <-ctx.Done():
			return protocol.NoColor, ctx.Err()
		}
	}
}

// PeekColorChoice returns the pending color wish and clears it. It returns
// NoColor if none arrived since the last call.
func (c *Conn) PeekColorChoice() int {
	c.colorMu.Lock()
	defer c.colorMu.Unlock()

	color := c.pendingColor
	c.pendingColor = protocol.NoColor

	return color
}

// HasColorChoice reports whether a color wish is pending without
// consuming it.
func (c *Conn) HasColorChoice() bool {
	c.colorMu.Lock()
	defer c.colorMu.Unlock()

	return c.pendingColor >= 0
}

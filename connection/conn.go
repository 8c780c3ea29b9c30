package connection

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/moep/moepserver/protocol"
)

const (
	// DefaultColorWishTimeout bounds RequestColorChoice when Options leaves
	// ColorWishTimeout at zero.
	DefaultColorWishTimeout = 60 * time.Second
)

// State is the lifecycle state of a Conn.
type State int32

const (
	Unauthenticated State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

type Options struct {
	Log *zap.Logger

	// ColorWishTimeout bounds RequestColorChoice. Zero means
	// DefaultColorWishTimeout, a negative value waits until the context or
	// the connection ends.
	ColorWishTimeout time.Duration

	// OnLogin is called from the dispatch loop once the client logged in.
	OnLogin func(c *Conn, name string)
}

// Conn coordinates a single client connection. It owns a Reader and a
// Writer, turns inbound lines into events for its Player and turns
// notifications from the game into outbound packets.
type Conn struct {
	id     string
	reader Reader
	writer Writer

	colorWishTimeout time.Duration
	onLogin          func(c *Conn, name string)

	mu        sync.RWMutex
	state     State
	loginName string
	player    Player
	log       *zap.Logger

	started   int32
	closing   int32
	closeOnce sync.Once
	closed    chan struct{}

	// colorMu guards pendingColor, the single slot color wish mailbox.
	// NoColor means empty.
	colorMu      sync.Mutex
	pendingColor int
	colorReady   chan struct{}

	// wishMu serialises RequestColorChoice callers
	wishMu sync.Mutex
}

// New returns a Conn owning reader and writer. Neither worker may be
// started yet, Start takes care of that.
func New(reader Reader, writer Writer, options Options) *Conn {
	id := uuid.New().String()

	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	colorWishTimeout := options.ColorWishTimeout
	if colorWishTimeout == 0 {
		colorWishTimeout = DefaultColorWishTimeout
	}

	return &Conn{
		id:               id,
		reader:           reader,
		writer:           writer,
		colorWishTimeout: colorWishTimeout,
		onLogin:          options.OnLogin,
		state:            Unauthenticated,
		log:              log.With(zap.String("connID", id)),
		closed:           make(chan struct{}),
		pendingColor:     protocol.NoColor,
		colorReady:       make(chan struct{}, 1),
	}
}

// Start starts the reader and the writer and then runs the dispatch loop
// until the connection is closed, the transport is lost or ctx is done.
//
// Start must only be called once.
func (c *Conn) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return ErrAlreadyStarted
	}

	if c.isClosed() {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.reader.Start(ctx)
	c.writer.Start(ctx)

	log := c.logger()
	log.Info("Connection started", zap.String("remoteAddr", c.RemoteAddr()))

	for {
		select {
		case <-c.closed:
			log.Info("Dispatch loop exiting")
			return nil

		case <-ctx.Done():
			log.Info("Context cancelled, exiting...")
			if err := c.shutdown(); err != nil {
				log.Warn("Workers did not stop cleanly", zap.Error(err))
			}
			return nil

		case <-c.reader.Signal():
			c.drain()

		case <-c.reader.Lost():
			// Whatever arrived before the loss is still handled
			c.drain()
			c.connectionLost()
			return nil
		}
	}
}

// drain handles queued lines until the reader reports empty.
func (c *Conn) drain() {
	for !c.isClosed() && !c.reader.IsEmpty() {
		raw, ok := c.reader.TakeNext()
		if !ok {
			return
		}

		if err := c.HandlePacket(raw); err != nil {
			c.logger().Warn("Protocol violation, wrong client?",
				zap.String("data", raw),
				zap.Error(err))
		}
	}
}

// Close sends a kick with reason to the client, then stops the reader and
// the writer. Lines already queued, including the kick, are still flushed.
//
// Closing a closed connection does nothing.
func (c *Conn) Close(reason string) error {
	if c.isClosed() || !atomic.CompareAndSwapInt32(&c.closing, 0, 1) {
		return nil
	}

	log := c.logger()

	if err := c.SendKick(reason); err != nil {
		log.Warn("Failed to send kick", zap.String("reason", reason), zap.Error(err))
	}

	log.Info("Closing connection", zap.String("reason", reason))

	return c.shutdown()
}

// shutdown cancels both workers and moves to Closed. Only the first call
// has an effect.
func (c *Conn) shutdown() (err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = Closed
		c.mu.Unlock()

		err = multierr.Append(c.reader.Cancel(), c.writer.Cancel())

		close(c.closed)
	})

	return err
}

func (c *Conn) connectionLost() {
	log := c.logger()
	log.Info("Connection lost")

	if err := c.shutdown(); err != nil {
		log.Warn("Workers did not stop cleanly", zap.Error(err))
	}

	c.disconnectedEvent()
}

// isClosed returns true once the connection reached Closed
func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true

	default:
		return false
	}
}

// Done is closed when the connection reaches Closed.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// ID uniquely identifies the connection in logs.
func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// LoginName is the name of the first accepted login, or "" before that.
func (c *Conn) LoginName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.loginName
}

// SetPlayer binds the player that receives this connection's events.
func (c *Conn) SetPlayer(p Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.player = p
}

func (c *Conn) Player() Player {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.player
}

func (c *Conn) RemoteAddr() string {
	return c.reader.RemoteAddr()
}

func (c *Conn) logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.log
}

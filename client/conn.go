// Package client speaks the line protocol from the player's side. Bots and
// the end-to-end tests use it.
package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/moep/moepserver/protocol"
)

var (
	ErrNotConnected   = errors.New("Not connected")
	ErrAlreadyWaiting = errors.New("Already waiting for that kind of packet")
)

type Conn struct {
	conn net.Conn

	packets chan protocol.Packet
	stop    chan struct{}
	done    chan struct{}

	writeMu sync.Mutex

	waitMu  sync.Mutex
	waiters map[protocol.Kind]chan protocol.Packet

	closeOnce sync.Once

	log *zap.Logger
}

func New(log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}

	return &Conn{
		log:     log,
		packets: make(chan protocol.Packet, 255),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		waiters: make(map[protocol.Kind]chan protocol.Packet),
	}
}

func (c *Conn) Connect(ctx context.Context, addr string) error {
	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}

	c.conn = conn
	c.log = c.log.With(zap.String("addr", addr))

	go c.readLoop()

	return nil
}

// Disconnect closes the connection and waits for the read loop to finish.
func (c *Conn) Disconnect() error {
	if c.conn == nil {
		return ErrNotConnected
	}

	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		err = c.conn.Close()
	})

	<-c.done

	return err
}

// Packets delivers every packet from the server nobody is waiting for. It
// is closed when the connection ends.
func (c *Conn) Packets() <-chan protocol.Packet {
	return c.packets
}

// Done is closed once the server hung up or Disconnect was called.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Login sends a login and waits for the server's verdict.
func (c *Conn) Login(ctx context.Context, name string) (bool, error) {
	waiter, err := c.createWaiter(protocol.KindLogin)
	if err != nil {
		return false, err
	}
	defer c.destroyWaiter(protocol.KindLogin, waiter)

	if err := c.Send(&protocol.Login{Name: name}); err != nil {
		return false, err
	}

	p, err := c.await(ctx, waiter)
	if err != nil {
		return false, err
	}

	reply := p.(*protocol.Login)
	return reply.Accepted != nil && *reply.Accepted, nil
}

// Await waits for the next packet of kind. That packet does not show up on
// Packets.
func (c *Conn) Await(ctx context.Context, kind protocol.Kind) (protocol.Packet, error) {
	waiter, err := c.createWaiter(kind)
	if err != nil {
		return nil, err
	}
	defer c.destroyWaiter(kind, waiter)

	return c.await(ctx, waiter)
}

func (c *Conn) await(ctx context.Context, waiter <-chan protocol.Packet) (protocol.Packet, error) {
	select {
	case p := <-waiter:
		return p, nil

	case <-c.done:
		return nil, io.EOF

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Conn) PressMoepButton() error {
	return c.Send(&protocol.MoepButton{})
}

func (c *Conn) WishColor(color int) error {
	return c.Send(&protocol.ColorWish{Color: color})
}

func (c *Conn) PlayCard(card protocol.Card) error {
	return c.Send(&protocol.PlayCard{Card: card})
}

func (c *Conn) DrawCard() error {
	return c.Send(&protocol.DrawCard{})
}

func (c *Conn) Send(p protocol.Packet) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return protocol.WritePacket(c.conn, p)
}

func (c *Conn) readLoop() {
	log := c.log.Named("readLoop")

	defer func() {
		close(c.packets)
		close(c.done)
	}()

	r := bufio.NewReader(c.conn)

	for {
		p, err := protocol.ReadPacket(r)

		if errors.Is(err, protocol.ErrUnrecognized) {
			log.Warn("Failed to read server packet", zap.Error(err))
			continue
		}

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				log.Info("Connection closed, exiting...")
			} else {
				log.Warn("Failed to read from server", zap.Error(err))
			}

			return
		}

		if kick, ok := p.(*protocol.Kick); ok {
			log.Info("Kicked by the server", zap.String("reason", kick.Reason))
		}

		if c.sendToWaiter(p) {
			continue
		}

		select {
		case c.packets <- p:
		case <-c.stop:
			return
		}
	}
}

func (c *Conn) createWaiter(kind protocol.Kind) (chan protocol.Packet, error) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()

	if _, ok := c.waiters[kind]; ok {
		return nil, ErrAlreadyWaiting
	}

	waiter := make(chan protocol.Packet, 1)
	c.waiters[kind] = waiter

	return waiter, nil
}

func (c *Conn) sendToWaiter(p protocol.Packet) bool {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()

	waiter, ok := c.waiters[p.Kind()]
	if !ok {
		return false
	}

	// Only the first packet goes to the waiter
	delete(c.waiters, p.Kind())
	waiter <- p

	return true
}

func (c *Conn) destroyWaiter(kind protocol.Kind, waiter chan protocol.Packet) {
	c.waitMu.Lock()
	defer c.waitMu.Unlock()

	if c.waiters[kind] == waiter {
		delete(c.waiters, kind)
	}
}

package connection

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/moep/moepserver/protocol"
)

// ViolationError reports an inbound line that could not be decoded.
type ViolationError struct {
	Raw string
	Err error
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrProtocolViolation, e.Err)
}

func (e *ViolationError) Unwrap() error {
	return e.Err
}

func (e *ViolationError) Is(target error) bool {
	return target == ErrProtocolViolation
}

// HandlePacket decodes a single raw line and routes it. Undecodable lines
// return a *ViolationError and leave the connection untouched.
func (c *Conn) HandlePacket(raw string) error {
	p, err := protocol.Decode(raw)
	if err != nil {
		return &ViolationError{Raw: raw, Err: err}
	}

	switch p.Kind() {
	case protocol.KindLogin:
		c.handleLogin(p.(*protocol.Login))

	case protocol.KindMoepButton:
		c.moepButtonEvent()

	case protocol.KindColorWish:
		c.colorWishEvent(p.(*protocol.ColorWish).Color)

	case protocol.KindPlayCard:
		c.cardPlayedEvent(p.(*protocol.PlayCard).Card)

	case protocol.KindDrawCard:
		c.cardDrawnEvent()

	case protocol.KindKick,
		protocol.KindTurnNotice,
		protocol.KindMoveValidity,
		protocol.KindText,
		protocol.KindPlayerServerAction,
		protocol.KindGameOver,
		protocol.KindHandCard,
		protocol.KindDiscardPileCard:
		c.logger().Debug("Ignoring server-bound packet from client",
			zap.Stringer("kind", p.Kind()))

	case protocol.KindUnrecognized:
		return &ViolationError{Raw: raw, Err: protocol.ErrUnrecognized}
	}

	return nil
}

// handleLogin accepts the first login only. Later logins are ignored so an
// established identity can never change.
func (c *Conn) handleLogin(p *protocol.Login) {
	c.mu.Lock()
	if c.state != Unauthenticated {
		state, current, log := c.state, c.loginName, c.log
		c.mu.Unlock()

		log.Warn("Ignoring repeated login",
			zap.String("login", p.Name),
			zap.String("current", current),
			zap.Stringer("state", state))
		return
	}

	c.loginName = p.Name
	c.state = Active
	c.log = c.log.With(zap.String("login", p.Name))
	log := c.log
	c.mu.Unlock()

	c.reader.SetName("reader: " + p.Name)
	c.writer.SetName("writer: " + p.Name)

	log.Info("Client logged in")

	if c.onLogin != nil {
		c.onLogin(c, p.Name)
	}
}

func (c *Conn) moepButtonEvent() {
	if p := c.boundPlayer("moep button"); p != nil {
		p.OnMoepButton()
	}
}

func (c *Conn) colorWishEvent(color int) {
	if color < 0 {
		c.logger().Debug("Ignoring color wish without a color", zap.Int("color", color))
		return
	}

	c.colorMu.Lock()
	c.pendingColor = color
	c.colorMu.Unlock()

	select {
	case c.colorReady <- struct{}{}:
	default:
	}
}

func (c *Conn) cardPlayedEvent(card protocol.Card) {
	if p := c.boundPlayer("card played"); p != nil {
		p.OnCardPlayed(card)
	}
}

func (c *Conn) cardDrawnEvent() {
	if p := c.boundPlayer("card drawn"); p != nil {
		p.OnCardDrawn()
	}
}

func (c *Conn) disconnectedEvent() {
	if p := c.boundPlayer("disconnected"); p != nil {
		p.OnDisconnected()
	}
}

func (c *Conn) boundPlayer(event string) Player {
	p := c.Player()
	if p == nil {
		c.logger().Warn("Dropping event, no player bound", zap.String("event", event))
	}

	return p
}

package connection

import (
	"go.uber.org/zap"

	"github.com/moep/moepserver/protocol"
)

// Send encodes p and queues it for the writer. Failures are reported as a
// *SendError.
func (c *Conn) Send(p protocol.Packet) error {
	if c.isClosed() {
		return &SendError{Kind: ConnClosed, Err: ErrClosed}
	}

	line, err := protocol.Encode(p)
	if err != nil {
		return &SendError{Kind: EncodeFailed, Err: err}
	}

	if err := c.writer.Enqueue(line); err != nil {
		return &SendError{Kind: WriterClosed, Err: err}
	}

	c.writer.Signal()

	c.logger().Debug("Queued packet", zap.Stringer("kind", p.Kind()))
	return nil
}

// SendLoginReply accepts or rejects the client's login.
func (c *Conn) SendLoginReply(accepted bool) error {
	return c.Send(protocol.NewLoginReply(c.LoginName(), accepted))
}

// SendKick tells the client it is being disconnected. It does not close the
// connection, see Close for that.
func (c *Conn) SendKick(reason string) error {
	return c.Send(&protocol.Kick{Reason: reason})
}

// SendTurn tells the client whether it is its turn.
func (c *Conn) SendTurn(yourTurn bool) error {
	return c.Send(&protocol.TurnNotice{YourTurn: yourTurn})
}

func (c *Conn) SendValidMove() error {
	return c.Send(&protocol.MoveValidity{Valid: true, Reason: protocol.NoReason})
}

// SendInvalidMove rejects the client's last move. The reason code is shown
// by the client.
func (c *Conn) SendInvalidMove(reason int) error {
	return c.Send(&protocol.MoveValidity{Valid: false, Reason: reason})
}

// SendMoepButtonResult tells the client whether its button press was in
// time.
func (c *Conn) SendMoepButtonResult(inTime bool) error {
	return c.Send(&protocol.MoepButton{InTime: inTime})
}

// SendColorWishRequest asks the client to choose a color. The answer
// arrives asynchronously, see RequestColorChoice.
func (c *Conn) SendColorWishRequest() error {
	return c.Send(&protocol.ColorWish{Color: protocol.NoColor})
}

func (c *Conn) SendText(text string) error {
	return c.Send(&protocol.Text{Text: text})
}

// SendPlayerServerAction announces that name logged in or out.
func (c *Conn) SendPlayerServerAction(name string, action protocol.ServerAction) error {
	return c.Send(&protocol.PlayerServerAction{Name: name, Action: action})
}

func (c *Conn) SendGameOver(ended bool) error {
	return c.Send(&protocol.GameOver{Ended: ended})
}

// SendHandCard hands a drawn card to the client. Only send it in response
// to a draw.
func (c *Conn) SendHandCard(card protocol.Card) error {
	return c.Send(&protocol.HandCard{Card: card})
}

// SendDiscardPileCard announces the new top card of the discard pile.
func (c *Conn) SendDiscardPileCard(card protocol.Card) error {
	return c.Send(&protocol.DiscardPileCard{Card: card})
}

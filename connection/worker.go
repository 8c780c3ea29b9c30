package connection

import (
	"context"

	"github.com/moep/moepserver/protocol"
)

// Reader receives raw lines from the transport and queues them in arrival
// order. It is started and cancelled by the Conn that owns it.
type Reader interface {
	Start(ctx context.Context)

	// Signal fires after new lines were queued. It may coalesce several
	// lines into one signal.
	Signal() <-chan struct{}

	// Lost is closed when the transport failed or the peer hung up.
	Lost() <-chan struct{}

	IsEmpty() bool
	TakeNext() (string, bool)

	RemoteAddr() string
	SetName(name string)
	Cancel() error
}

// Writer owns the outbound queue and writes its lines to the transport in
// enqueue order.
type Writer interface {
	Start(ctx context.Context)
	Enqueue(line string) error

	// Signal wakes the write loop.
	Signal()

	SetName(name string)
	Cancel() error
}

// Player receives the game events of a single connection. It is owned by
// the game layer.
type Player interface {
	OnMoepButton()
	OnCardPlayed(card protocol.Card)
	OnCardDrawn()
	OnDisconnected()
}

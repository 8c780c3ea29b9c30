package roster

import (
	"context"
	"errors"
	"time"

	"github.com/moep/moepserver/protocol"
)

var (
	ErrNameTaken = errors.New("Name is already taken")
	ErrNotFound  = errors.New("No such player")
	ErrClosed    = errors.New("Roster is closed")
)

// Entry describes a logged-in player.
type Entry struct {
	ConnID     string    `json:"connID"`
	RemoteAddr string    `json:"remoteAddr"`
	Since      time.Time `json:"since"`
}

// Update is published whenever a player joins or leaves the roster.
type Update struct {
	Name   string
	Action protocol.ServerAction
}

// Roster tracks who is logged in. Names are unique.
type Roster interface {
	Add(ctx context.Context, name string, entry Entry) error
	Remove(ctx context.Context, name string) error
	Get(ctx context.Context, name string) ([]byte, error)
	Has(name string) bool
	Names() []string

	Restore(values []byte) error
	Backup() ([]byte, error)

	ListenToUpdates() <-chan *Update
	// StopListening closes updates and stops publishing to it. A change
	// waiting on a full updates channel goes on without it.
	StopListening(updates <-chan *Update)

	Close() error
}

// Package lobby is the thin game-facing layer on top of the connections. It
// acknowledges logins, keeps the roster in sync, tells every player who
// joins and leaves and hands player events to a Game.
package lobby

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/moep/moepserver/connection"
	"github.com/moep/moepserver/protocol"
	"github.com/moep/moepserver/roster"
	"github.com/moep/moepserver/transport"
)

const (
	NameTakenReason         = "Name is already taken"
	RosterUnavailableReason = "Cannot join right now"
)

var ErrUnknownPlayer = errors.New("Player is not logged in")

// Game receives the events of logged-in players. Calls happen on the
// player's dispatch loop, so implementations must not block for long.
type Game interface {
	MoepButton(name string)
	CardPlayed(name string, card protocol.Card)
	CardDrawn(name string)
}

type Options struct {
	Roster roster.Roster

	// Game is optional, without one player events are only logged
	Game Game

	Log *zap.Logger
}

type Lobby struct {
	roster roster.Roster
	game   Game
	log    *zap.Logger

	// loginMu serializes logins so a name is checked and taken at once
	loginMu sync.Mutex

	mu      sync.RWMutex
	members map[string]*member

	cancel context.CancelFunc
	done   chan struct{}
}

// member is a connection registered under its login name. accepted is
// closed once the login reply went out, or the login failed.
type member struct {
	conn     *connection.Conn
	accepted chan struct{}
}

func New(options Options) *Lobby {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	players := options.Roster
	if players == nil {
		players = roster.NewInmemoryRoster()
	}

	return &Lobby{
		roster:  players,
		game:    options.Game,
		log:     log,
		members: make(map[string]*member),
		done:    make(chan struct{}),
	}
}

// Start relays roster updates to the players until ctx is done or Close
// is called.
func (l *Lobby) Start(parentCtx context.Context) {
	ctx, cancel := context.WithCancel(parentCtx)
	l.cancel = cancel

	updates := l.roster.ListenToUpdates()
	present := l.roster.Names()

	go func() {
		defer close(l.done)

		// Once nobody drains updates, roster changes must not wait for it
		defer l.roster.StopListening(updates)

		for {
			select {
			case <-ctx.Done():
				l.log.Info("Context cancelled, exiting...")
				return

			case update, ok := <-updates:
				if !ok {
					l.log.Info("Roster closed, exiting...")
					return
				}

				var err error
				present, err = l.relay(ctx, update, present)
				if err != nil {
					l.log.Warn("Failed to tell everyone about a player",
						zap.String("player", update.Name),
						zap.Stringer("action", update.Action),
						zap.Error(err))
				}
			}
		}
	}()
}

// Close stops relaying roster updates and stops listening to the roster. It
// does not close any connection.
func (l *Lobby) Close() error {
	if l.cancel == nil {
		return nil
	}

	l.cancel()
	<-l.done

	return nil
}

// relay tells every present player but the one in question about update.
// A player who just joined is also told who was there before. present is
// the list of names before update, the list after it is returned.
//
// Only names the relay already announced are told, so a player that
// registered while its own login is still queued hears of everyone exactly
// once, through its snapshot. The snapshot waits for the login reply.
func (l *Lobby) relay(ctx context.Context, update *roster.Update, present []string) (_ []string, err error) {
	members := l.snapshot()

	for _, name := range present {
		m, ok := members[name]
		if !ok || name == update.Name {
			continue
		}

		err = multierr.Append(err, m.conn.SendPlayerServerAction(update.Name, update.Action))
	}

	switch update.Action {
	case protocol.ActionLogin:
		if m, ok := members[update.Name]; ok {
			select {
			case <-m.accepted:
			case <-ctx.Done():
				return append(present, update.Name), err
			}

			for _, other := range present {
				err = multierr.Append(err, m.conn.SendPlayerServerAction(other, protocol.ActionLogin))
			}
		}

		return append(present, update.Name), err

	case protocol.ActionLogout:
		remaining := present[:0]
		for _, name := range present {
			if name != update.Name {
				remaining = append(remaining, name)
			}
		}

		return remaining, err
	}

	return present, err
}

func (l *Lobby) Connected(c *connection.Conn) {
	l.log.Debug("Client connected",
		zap.String("connID", c.ID()),
		zap.String("remoteAddr", c.RemoteAddr()))
}

// LoggedIn accepts the login unless name is already taken or the roster
// refuses it, in which case the client is told so and disconnected.
func (l *Lobby) LoggedIn(c *connection.Conn, name string) {
	log := l.log.With(zap.String("connID", c.ID()), zap.String("login", name))

	l.loginMu.Lock()
	defer l.loginMu.Unlock()

	if l.roster.Has(name) {
		log.Info("Rejecting login, name is taken")
		l.reject(c, NameTakenReason, log)
		return
	}

	// Registered before the roster update goes out so the relay can reach
	// the new player
	m := &member{conn: c, accepted: make(chan struct{})}
	defer close(m.accepted)

	l.mu.Lock()
	l.members[name] = m
	l.mu.Unlock()

	err := l.roster.Add(context.Background(), name, roster.Entry{
		ConnID:     c.ID(),
		RemoteAddr: c.RemoteAddr(),
		Since:      time.Now().UTC(),
	})
	if err != nil {
		log.Error("Failed to add player to roster", zap.Error(err))

		l.mu.Lock()
		delete(l.members, name)
		l.mu.Unlock()

		l.reject(c, RosterUnavailableReason, log)
		return
	}

	c.SetPlayer(&lobbyPlayer{lobby: l, name: name})

	if err := c.SendLoginReply(true); err != nil {
		log.Warn("Failed to accept login", zap.Error(err))
	}

	log.Info("Player joined")
}

func (l *Lobby) reject(c *connection.Conn, reason string, log *zap.Logger) {
	if err := c.SendLoginReply(false); err != nil {
		log.Warn("Failed to reject login", zap.Error(err))
	}

	if err := c.Close(reason); err != nil {
		log.Warn("Failed to close connection", zap.Error(err))
	}
}

// Disconnected takes the connection's player off the roster.
func (l *Lobby) Disconnected(c *connection.Conn) {
	name := c.LoginName()
	if name == "" {
		return
	}

	l.mu.Lock()
	current, ok := l.members[name]
	if ok && current.conn == c {
		delete(l.members, name)
	}
	l.mu.Unlock()

	// A rejected duplicate never made it onto the roster
	if !ok || current.conn != c {
		return
	}

	if err := l.roster.Remove(context.Background(), name); err != nil {
		l.log.Warn("Failed to remove player from roster",
			zap.String("login", name),
			zap.Error(err))
		return
	}

	l.log.Info("Player left", zap.String("login", name))
}

// Conn returns the connection of the logged-in player name.
func (l *Lobby) Conn(name string) (*connection.Conn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.members[name]
	if !ok {
		return nil, false
	}

	return m.conn, true
}

// Players returns the names of everyone logged in.
func (l *Lobby) Players() []string {
	return l.roster.Names()
}

// RequestColor asks player name to wish a color and waits for the answer.
func (l *Lobby) RequestColor(ctx context.Context, name string) (int, error) {
	c, ok := l.Conn(name)
	if !ok {
		return protocol.NoColor, fmt.Errorf("Cannot request a color from '%s': %w", name, ErrUnknownPlayer)
	}

	return c.RequestColorChoice(ctx)
}

// Announce sends text to every logged-in player.
func (l *Lobby) Announce(text string) (err error) {
	for _, m := range l.snapshot() {
		err = multierr.Append(err, m.conn.SendText(text))
	}

	return err
}

func (l *Lobby) snapshot() map[string]*member {
	l.mu.RLock()
	defer l.mu.RUnlock()

	members := make(map[string]*member, len(l.members))
	for name, m := range l.members {
		members[name] = m
	}

	return members
}

var _ transport.ConnHandler = (*Lobby)(nil)

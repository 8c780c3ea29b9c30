package roster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/moep/moepserver/protocol"
)

var errInvalidDocument = errors.New("Roster document must be a JSON object")

// InmemoryRoster keeps the roster as a single JSON object, keyed by login
// name. It is what /players serves.
type InmemoryRoster struct {
	// mu guards values and closed
	mu     sync.Mutex
	values []byte
	closed bool

	// updatesMu is taken while still holding mu, never the other way round
	updatesMu sync.Mutex
	listeners []*listener

	// byChan finds the listener to stop without waiting for updatesMu. No
	// other lock is taken while holding byChanMu.
	byChanMu sync.Mutex
	byChan   map[<-chan *Update]*listener

	// stop will be closed when Close() is called
	stop     chan struct{}
	stopOnce sync.Once
}

func NewInmemoryRoster() *InmemoryRoster {
	return &InmemoryRoster{
		values:    []byte("{}"),
		stop:      make(chan struct{}),
		listeners: make([]*listener, 0),
		byChan:    make(map[<-chan *Update]*listener),
	}
}

type listener struct {
	updates chan *Update

	// gone is closed by StopListening, before updates is
	gone     chan struct{}
	goneOnce sync.Once
}

func (l *listener) leave() {
	l.goneOnce.Do(func() { close(l.gone) })
}

func (i *InmemoryRoster) Close() error {
	i.stopOnce.Do(func() { close(i.stop) })

	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()

	i.byChanMu.Lock()
	i.byChan = make(map[<-chan *Update]*listener)
	i.byChanMu.Unlock()

	i.updatesMu.Lock()
	defer i.updatesMu.Unlock()

	for _, l := range i.listeners {
		close(l.updates)
	}
	i.listeners = nil

	return nil
}

// Add puts name on the roster. It fails with ErrNameTaken if name is
// already logged in.
func (i *InmemoryRoster) Add(ctx context.Context, name string, entry Entry) error {
	path := escapeKey(name)

	i.mu.Lock()

	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}

	if gjson.GetBytes(i.values, path).Exists() {
		i.mu.Unlock()
		return fmt.Errorf("Cannot add '%s': %w", name, ErrNameTaken)
	}

	values, err := sjson.SetBytes(i.values, path, entry)
	if err != nil {
		i.mu.Unlock()
		return err
	}
	i.values = values

	return i.publishAndUnlock(ctx, &Update{Name: name, Action: protocol.ActionLogin})
}

// Remove takes name off the roster.
func (i *InmemoryRoster) Remove(ctx context.Context, name string) error {
	path := escapeKey(name)

	i.mu.Lock()

	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}

	if !gjson.GetBytes(i.values, path).Exists() {
		i.mu.Unlock()
		return fmt.Errorf("Cannot remove '%s': %w", name, ErrNotFound)
	}

	values, err := sjson.DeleteBytes(i.values, path)
	if err != nil {
		i.mu.Unlock()
		return err
	}
	i.values = values

	return i.publishAndUnlock(ctx, &Update{Name: name, Action: protocol.ActionLogout})
}

// publishAndUnlock hands update to every listener. Listeners are locked
// before mu is released so updates arrive in roster order, while a listener
// reading the roster in response does not deadlock.
func (i *InmemoryRoster) publishAndUnlock(ctx context.Context, update *Update) error {
	i.updatesMu.Lock()
	i.mu.Unlock()
	defer i.updatesMu.Unlock()

	for _, l := range i.listeners {
		select {
		case l.updates <- update:
		case <-l.gone:
		case <-ctx.Done():
			return ctx.Err()
		case <-i.stop:
			return nil
		}
	}

	return nil
}

// Get returns the raw JSON entry of name.
func (i *InmemoryRoster) Get(ctx context.Context, name string) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	result := gjson.GetBytes(i.values, escapeKey(name))
	if !result.Exists() {
		return nil, fmt.Errorf("Cannot get '%s': %w", name, ErrNotFound)
	}

	return []byte(result.Raw), nil
}

func (i *InmemoryRoster) Has(name string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	return gjson.GetBytes(i.values, escapeKey(name)).Exists()
}

// Names returns the logged-in names, sorted.
func (i *InmemoryRoster) Names() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	names := make([]string, 0)
	gjson.ParseBytes(i.values).ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})

	sort.Strings(names)

	return names
}

func (i *InmemoryRoster) ListenToUpdates() <-chan *Update {
	i.updatesMu.Lock()
	defer i.updatesMu.Unlock()

	l := &listener{
		updates: make(chan *Update, 255),
		gone:    make(chan struct{}),
	}

	if !i.isRunning() {
		close(l.updates)
		return l.updates
	}

	i.listeners = append(i.listeners, l)

	i.byChanMu.Lock()
	i.byChan[l.updates] = l
	i.byChanMu.Unlock()

	return l.updates
}

func (i *InmemoryRoster) StopListening(updates <-chan *Update) {
	i.byChanMu.Lock()
	l, ok := i.byChan[updates]
	delete(i.byChan, updates)
	i.byChanMu.Unlock()

	if !ok {
		return
	}

	// Lets a publisher blocked on l give up its send and updatesMu
	l.leave()

	i.updatesMu.Lock()
	defer i.updatesMu.Unlock()

	// Not listed anymore if Close got here first, and closed updates itself
	for n, other := range i.listeners {
		if other != l {
			continue
		}

		i.listeners = append(i.listeners[:n], i.listeners[n+1:]...)
		close(l.updates)
		return
	}
}

func (i *InmemoryRoster) Restore(values []byte) error {
	if !gjson.ValidBytes(values) || !gjson.ParseBytes(values).IsObject() {
		return errInvalidDocument
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.values = append([]byte(nil), values...)
	return nil
}

func (i *InmemoryRoster) Backup() ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]byte(nil), i.values...), nil
}

// isRunning returns true if Close has not been called
func (i *InmemoryRoster) isRunning() bool {
	select {
	case <-i.stop:
		return false

	default:
		return true
	}
}

// escapeKey turns a login name into a single gjson/sjson path component.
func escapeKey(name string) string {
	var b strings.Builder

	for _, r := range name {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', '!', '=', '<', '>', '%', '(', ')', ',', ':', '[', ']', '{', '}', '"':
			b.WriteByte('\\')
		}

		b.WriteRune(r)
	}

	return b.String()
}

var _ Roster = (*InmemoryRoster)(nil)

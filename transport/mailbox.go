package transport

import "sync"

// Mailbox is an unbounded FIFO queue of lines handed from one goroutine to
// another. Every Push raises the wake signal, several pushes may share a
// single wake up.
type Mailbox struct {
	mu    sync.Mutex
	items []string

	wake chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		wake: make(chan struct{}, 1),
	}
}

func (m *Mailbox) Push(item string) {
	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()

	m.Notify()
}

// Pop removes and returns the oldest item.
func (m *Mailbox) Pop() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.items) == 0 {
		return "", false
	}

	item := m.items[0]
	m.items[0] = ""
	m.items = m.items[1:]

	if len(m.items) == 0 {
		m.items = nil
	}

	return item, true
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.items)
}

func (m *Mailbox) IsEmpty() bool {
	return m.Len() == 0
}

// Wake fires after items were pushed.
func (m *Mailbox) Wake() <-chan struct{} {
	return m.wake
}

// Notify raises the wake signal without pushing anything.
func (m *Mailbox) Notify() {
	select {
	case m.wake <- struct{}{}:
	default:
		// Already signalled
	}
}

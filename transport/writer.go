package transport

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/moep/moepserver/connection"
	"github.com/moep/moepserver/protocol"
)

const DefaultWriteTimeout = 5 * time.Second

var ErrWriterClosed = errors.New("Writer is closed")

type closeWriter interface {
	CloseWrite() error
}

// LineWriter writes the lines of its outbox to a connection.
type LineWriter struct {
	conn         net.Conn
	outbox       *Mailbox
	writeTimeout time.Duration

	cancelled int32
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	mu   sync.Mutex
	base *zap.Logger
	log  *zap.Logger
}

func NewLineWriter(conn net.Conn, writeTimeout time.Duration, log *zap.Logger) *LineWriter {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	return &LineWriter{
		conn:         conn,
		outbox:       NewMailbox(),
		writeTimeout: writeTimeout,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		base:         log,
		log:          log,
	}
}

func (w *LineWriter) Start(ctx context.Context) {
	go w.writeLoop(ctx)
}

func (w *LineWriter) writeLoop(ctx context.Context) {
	defer func() {
		w.logger().Info("Write loop exiting")

		if cw, ok := w.conn.(closeWriter); ok {
			err := cw.CloseWrite()
			if err != nil && !strings.Contains(err.Error(), "transport endpoint is not connected") {
				w.logger().Warn("Failed to close writes on connection cleanly",
					zap.Error(err))
			}
		}

		close(w.done)
	}()

	for {
		w.flush()

		select {
		case <-ctx.Done():
			// Queued lines, like a final kick, still go out
			w.flush()
			return

		case <-w.stop:
			w.flush()
			return

		case <-w.outbox.Wake():
		}
	}
}

func (w *LineWriter) flush() {
	for {
		line, ok := w.outbox.Pop()
		if !ok {
			return
		}

		if err := w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			w.logger().Warn("Failed to set write deadline", zap.Error(err))
		}

		if err := protocol.WriteLine(w.conn, line); err != nil {
			w.logger().Error("Failed to write from write queue",
				zap.String("data", line),
				zap.Error(err))
			continue
		}
	}
}

// Enqueue queues line for writing. It fails once the writer was cancelled.
func (w *LineWriter) Enqueue(line string) error {
	if atomic.LoadInt32(&w.cancelled) == 1 {
		return ErrWriterClosed
	}

	w.outbox.Push(line)
	return nil
}

func (w *LineWriter) Signal() {
	w.outbox.Notify()
}

// SetName labels the writer's log lines.
func (w *LineWriter) SetName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.log = w.base.With(zap.String("worker", name))
}

// Cancel stops the write loop after it flushed the lines queued so far.
func (w *LineWriter) Cancel() error {
	atomic.StoreInt32(&w.cancelled, 1)
	w.stopOnce.Do(func() { close(w.stop) })

	return nil
}

// Done is closed once the write loop exited.
func (w *LineWriter) Done() <-chan struct{} {
	return w.done
}

func (w *LineWriter) logger() *zap.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.log
}

var _ connection.Writer = (*LineWriter)(nil)

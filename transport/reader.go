package transport

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/moep/moepserver/connection"
	"github.com/moep/moepserver/protocol"
)

const DefaultMaxLineLength = 4096

// LineReader reads lines from a connection into its inbox.
type LineReader struct {
	conn          net.Conn
	inbox         *Mailbox
	maxLineLength int

	lost     chan struct{}
	lostOnce sync.Once

	cancelled int32

	mu     sync.Mutex
	cancel context.CancelFunc
	base   *zap.Logger
	log    *zap.Logger
}

func NewLineReader(conn net.Conn, maxLineLength int, log *zap.Logger) *LineReader {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}

	return &LineReader{
		conn:          conn,
		inbox:         NewMailbox(),
		maxLineLength: maxLineLength,
		lost:          make(chan struct{}),
		base:          log,
		log:           log,
	}
}

func (r *LineReader) Start(parentCtx context.Context) {
	ctx, cancel := context.WithCancel(parentCtx)

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		<-ctx.Done()

		// Unblock a pending read
		_ = r.conn.SetReadDeadline(time.Now())
	}()

	go r.readLoop(ctx)
}

func (r *LineReader) readLoop(ctx context.Context) {
	defer func() {
		r.logger().Info("Read loop exited")
	}()

	br := bufio.NewReaderSize(r.conn, r.maxLineLength)

	for {
		line, err := br.ReadSlice('\n')

		if errors.Is(err, bufio.ErrBufferFull) {
			r.logger().Warn("Discarding line longer than the limit",
				zap.Int("maxLineLength", r.maxLineLength))

			if err = discardLine(br); err == nil {
				continue
			}
		}

		if err != nil {
			r.stopped(ctx, err)
			return
		}

		text := protocol.RemoveTrailingCR(strings.TrimSuffix(string(line), "\n"))
		if text == "" {
			continue
		}

		r.inbox.Push(text)
	}
}

// stopped reports a transport loss unless the reader was cancelled.
func (r *LineReader) stopped(ctx context.Context, err error) {
	if ctx.Err() != nil || atomic.LoadInt32(&r.cancelled) == 1 {
		r.logger().Info("Context cancelled, exiting...")
		return
	}

	if errors.Is(err, io.EOF) {
		r.logger().Info("Client hung up")
	} else {
		r.logger().Warn("Failed to read from client", zap.Error(err))
	}

	r.lostOnce.Do(func() { close(r.lost) })
}

func discardLine(br *bufio.Reader) error {
	for {
		_, err := br.ReadSlice('\n')
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

func (r *LineReader) Signal() <-chan struct{} {
	return r.inbox.Wake()
}

func (r *LineReader) Lost() <-chan struct{} {
	return r.lost
}

func (r *LineReader) IsEmpty() bool {
	return r.inbox.IsEmpty()
}

func (r *LineReader) TakeNext() (string, bool) {
	return r.inbox.Pop()
}

func (r *LineReader) RemoteAddr() string {
	return r.conn.RemoteAddr().String()
}

// SetName labels the reader's log lines.
func (r *LineReader) SetName(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log = r.base.With(zap.String("worker", name))
}

// Cancel stops the read loop. It does not close the connection.
func (r *LineReader) Cancel() error {
	if !atomic.CompareAndSwapInt32(&r.cancelled, 0, 1) {
		return nil
	}

	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	return r.conn.SetReadDeadline(time.Now())
}

func (r *LineReader) logger() *zap.Logger {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.log
}

var _ connection.Reader = (*LineReader)(nil)

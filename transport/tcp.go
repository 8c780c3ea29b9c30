package transport

import (
	"context"
	"errors"
	"net"
	"runtime"
	"strconv"
	"sync"
	"time"

	reuseport "github.com/kavu/go_reuseport"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/moep/moepserver/connection"
	"github.com/moep/moepserver/protocol"
)

const ShutdownReason = "Server is shutting down"

// ConnHandler is the game layer's view of the connections accepted by a
// TCP server.
type ConnHandler interface {
	// Connected is called before the connection is started.
	Connected(c *connection.Conn)

	// LoggedIn is called from the connection's dispatch loop after the
	// client's first login.
	LoggedIn(c *connection.Conn, name string)

	// Disconnected is called once the connection stopped, for any reason.
	Disconnected(c *connection.Conn)
}

type nopHandler struct{}

func (nopHandler) Connected(c *connection.Conn)             {}
func (nopHandler) LoggedIn(c *connection.Conn, name string) {}
func (nopHandler) Disconnected(c *connection.Conn)          {}

type TCP struct {
	cancel     context.CancelFunc
	stopWaiter sync.WaitGroup

	addr    string
	options Options

	numListeners int
	listeners    []*TCPListener

	log *zap.Logger
}

func NewTCP(options Options) *TCP {
	numListeners := options.NumListeners

	if numListeners < 1 {
		numListeners = runtime.NumCPU()
	}

	if options.Handler == nil {
		options.Handler = nopHandler{}
	}

	if options.Log == nil {
		options.Log = zap.NewNop()
	}

	return &TCP{
		addr:         net.JoinHostPort(options.Host, strconv.Itoa(options.Port)),
		options:      options,
		numListeners: numListeners,
		listeners:    make([]*TCPListener, 0, numListeners),
		log:          options.Log,
	}
}

// Start binds all listeners and starts accepting connections. It returns
// once every listener is bound.
func (w *TCP) Start(parentCtx context.Context) error {
	ctx, cancel := context.WithCancel(parentCtx)
	w.cancel = cancel

	w.log.Info("Starting tcp listeners", zap.Int("count", w.numListeners))

	for i := 0; i < w.numListeners; i++ {
		if err := w.startListener(ctx); err != nil {
			cancel()
			return multierr.Append(err, w.Close())
		}
	}

	return nil
}

func (w *TCP) startListener(ctx context.Context) error {
	listener := NewTCPListener(
		ctx,
		w.addr,
		w.options,
		w.log.Named("listener").With(zap.Int("listener", len(w.listeners))),
	)

	if err := listener.Bind(); err != nil {
		return err
	}

	w.listeners = append(w.listeners, listener)
	w.stopWaiter.Add(1)

	go func() {
		defer w.stopWaiter.Done()

		if err := listener.Serve(); err != nil {
			// TODO(moep) a failed listener is not restarted, the server keeps
			//            running with one listener less
			w.log.Error("Failed to accept", zap.Error(err))
		}
	}()

	return nil
}

// Addrs returns the bound address of every listener.
func (w *TCP) Addrs() []net.Addr {
	addrs := make([]net.Addr, 0, len(w.listeners))
	for _, listener := range w.listeners {
		addrs = append(addrs, listener.Addr())
	}

	return addrs
}

// Broadcast sends p to every logged-in client of every listener.
func (w *TCP) Broadcast(p protocol.Packet) (err error) {
	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.Broadcast(p))
	}

	return err
}

// Close kicks every client, stops all listeners and waits for their
// connections to finish.
func (w *TCP) Close() (err error) {
	w.log.Info("Stopping TCP server")

	for _, listener := range w.listeners {
		err = multierr.Append(err, listener.Close())
	}

	if w.cancel != nil {
		w.cancel()
	}

	w.log.Info("Waiting for listeners")
	w.stopWaiter.Wait()
	w.log.Info("Listeners stopped")

	return err
}

type TCPListener struct {
	ctx context.Context

	addr     string
	options  Options
	listener net.Listener
	log      *zap.Logger

	mu          sync.Mutex
	activeConns map[*connection.Conn]struct{}
	connWaiter  sync.WaitGroup
}

func NewTCPListener(
	ctx context.Context,
	addr string,
	options Options,
	log *zap.Logger,
) *TCPListener {
	return &TCPListener{
		ctx:         ctx,
		addr:        addr,
		options:     options,
		activeConns: make(map[*connection.Conn]struct{}),
		log:         log,
	}
}

func (t *TCPListener) Bind() (err error) {
	if t.options.Reuseport {
		t.listener, err = reuseport.Listen("tcp", t.addr)
	} else {
		t.listener, err = net.Listen("tcp", t.addr)
	}

	return err
}

func (t *TCPListener) Addr() net.Addr {
	return t.listener.Addr()
}

// Broadcast sends p to every logged-in connection of this listener.
// Connections that are not logged in yet are skipped.
func (t *TCPListener) Broadcast(p protocol.Packet) (err error) {
	for _, conn := range t.conns() {
		if conn.State() != connection.Active {
			continue
		}

		err = multierr.Append(err, conn.Send(p))
	}

	return err
}

// Close kicks every active connection and stops accepting new ones.
func (t *TCPListener) Close() (err error) {
	for _, conn := range t.conns() {
		err = multierr.Append(err, conn.Close(ShutdownReason))
	}

	if lerr := t.listener.Close(); lerr != nil && !errors.Is(lerr, net.ErrClosed) {
		err = multierr.Append(err, lerr)
	}

	return err
}

// Serve accepts connections until the listener is closed.
func (t *TCPListener) Serve() error {
	defer func() {
		t.log.Info("Waiting for connections to stop")
		t.connWaiter.Wait()
		t.log.Info("Listener stopped")
	}()

	go func() {
		<-t.ctx.Done()

		if err := t.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			t.log.Warn("TCP Listener did not close cleanly", zap.Error(err))
		}
	}()

	for {
		netConn, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// The listener was closed while we were waiting for new
				// connections, that's fine.
				t.log.Info("Stopped accepting new connections")
				return nil
			}

			// TODO(moep) retry on temporary accept errors, like EMFILE
			return err
		}

		t.connWaiter.Add(1)
		go func() {
			defer t.connWaiter.Done()
			t.serve(netConn)
		}()
	}
}

func (t *TCPListener) serve(netConn net.Conn) {
	log := t.log.Named("conn").With(zap.String("remoteAddr", netConn.RemoteAddr().String()))

	reader := NewLineReader(netConn, t.options.MaxLineLength, log.Named("reader"))
	writer := NewLineWriter(netConn, t.options.WriteTimeout, log.Named("writer"))

	conn := connection.New(reader, writer, connection.Options{
		Log:              log,
		ColorWishTimeout: t.options.ColorWishTimeout,
		OnLogin:          t.options.Handler.LoggedIn,
	})

	t.addConn(conn)
	defer t.removeConn(conn)

	t.options.Handler.Connected(conn)

	if err := conn.Start(t.ctx); err != nil {
		log.Warn("Connection did not start", zap.Error(err))
	}

	t.options.Handler.Disconnected(conn)

	// Let the writer flush what is left, a kick for example
	select {
	case <-writer.Done():
	case <-time.After(writeTimeout(t.options)):
		log.Warn("Writer did not drain in time")
	}

	if err := netConn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Warn("Failed to close connection cleanly", zap.Error(err))
	}
}

func (t *TCPListener) conns() []*connection.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns := make([]*connection.Conn, 0, len(t.activeConns))
	for conn := range t.activeConns {
		conns = append(conns, conn)
	}

	return conns
}

func (t *TCPListener) addConn(conn *connection.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.activeConns[conn] = struct{}{}
}

func (t *TCPListener) removeConn(conn *connection.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.activeConns, conn)
}

func writeTimeout(options Options) time.Duration {
	if options.WriteTimeout > 0 {
		return options.WriteTimeout
	}

	return DefaultWriteTimeout
}

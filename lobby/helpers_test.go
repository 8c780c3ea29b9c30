package lobby_test

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/moep/moepserver/connection"
	"github.com/moep/moepserver/lobby"
	"github.com/moep/moepserver/protocol"
	"github.com/moep/moepserver/roster"
	"github.com/moep/moepserver/transport"
)

// pipeClient is the client end of a connection served by a lobby over
// net.Pipe.
type pipeClient struct {
	net.Conn
	r *bufio.Reader
}

func dial(ctx context.Context, l *lobby.Lobby) *pipeClient {
	server, client := net.Pipe()
	log := zap.NewNop()

	reader := transport.NewLineReader(server, 0, log)
	writer := transport.NewLineWriter(server, time.Second, log)

	conn := connection.New(reader, writer, connection.Options{
		Log:              log,
		ColorWishTimeout: 2 * time.Second,
		OnLogin:          l.LoggedIn,
	})

	l.Connected(conn)

	go func() {
		_ = conn.Start(ctx)
		l.Disconnected(conn)

		select {
		case <-writer.Done():
		case <-time.After(2 * time.Second):
		}

		server.Close()
	}()

	return &pipeClient{Conn: client, r: bufio.NewReader(client)}
}

func (c *pipeClient) send(line string) {
	Expect(c.SetWriteDeadline(time.Now().Add(2 * time.Second))).To(Succeed())

	_, err := c.Write([]byte(line + "\r\n"))
	Expect(err).To(Succeed())
}

func (c *pipeClient) login(name string) {
	c.send(fmt.Sprintf(`01{"name":"%s"}`, name))
	Expect(c.next()).To(Equal(fmt.Sprintf(`01{"name":"%s","accepted":true}`, name)))
}

func (c *pipeClient) next() string {
	Expect(c.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())

	line, err := c.r.ReadString('\n')
	Expect(err).To(Succeed())

	return strings.TrimSuffix(line, "\r\n")
}

func (c *pipeClient) expectHangup() {
	Expect(c.SetReadDeadline(time.Now().Add(2 * time.Second))).To(Succeed())

	_, err := c.r.ReadString('\n')
	Expect(err).To(HaveOccurred())
}

type recordingGame struct {
	mu     sync.Mutex
	events []string
}

func (g *recordingGame) record(event string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.events = append(g.events, event)
}

func (g *recordingGame) MoepButton(name string) {
	g.record("moep " + name)
}

func (g *recordingGame) CardPlayed(name string, card protocol.Card) {
	g.record("played " + name + " " + card.String())
}

func (g *recordingGame) CardDrawn(name string) {
	g.record("drawn " + name)
}

func (g *recordingGame) Events() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return append([]string(nil), g.events...)
}

// refusingRoster fails every Add.
type refusingRoster struct {
	*roster.InmemoryRoster
}

func (r *refusingRoster) Add(ctx context.Context, name string, entry roster.Entry) error {
	return errors.New("roster is down")
}

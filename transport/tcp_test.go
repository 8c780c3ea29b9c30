package transport_test

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/moep/moepserver/connection"
	"github.com/moep/moepserver/protocol"
	"github.com/moep/moepserver/transport"
)

type recordingHandler struct {
	mu           sync.Mutex
	connected    int
	logins       []string
	disconnected int
}

func (h *recordingHandler) Connected(c *connection.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connected++
}

func (h *recordingHandler) LoggedIn(c *connection.Conn, name string) {
	h.mu.Lock()
	h.logins = append(h.logins, name)
	h.mu.Unlock()

	// Runs on the dispatch loop, failures surface as a missing reply
	_ = c.SendLoginReply(true)
}

func (h *recordingHandler) Disconnected(c *connection.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnected++
}

func (h *recordingHandler) Logins() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.logins...)
}

func (h *recordingHandler) Disconnects() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnected
}

var _ = Describe("transport", func() {
	Describe("TCP", func() {
		var handler *recordingHandler

		BeforeEach(func() {
			handler = &recordingHandler{}
		})

		It("listens on the desired port", func() {
			tcp := makeTCPServer(handler)

			defer func() {
				Expect(tcp.Close()).To(Succeed())
			}()

			conn, err := net.Dial("tcp", "127.0.0.1:6682")
			Expect(err).To(Succeed())
			conn.Close()
		})

		It("fails to start when the port is taken", func() {
			tcp := makeTCPServer(handler)
			defer tcp.Close()

			other := transport.NewTCP(transport.Options{
				Host:         "127.0.0.1",
				Port:         6682,
				NumListeners: 1,
			})

			Expect(other.Start(context.Background())).NotTo(Succeed())
		})

		It("shares the port between listeners with SO_REUSEPORT", func() {
			tcp := transport.NewTCP(transport.Options{
				Host:         "127.0.0.1",
				Port:         6683,
				NumListeners: 2,
				Reuseport:    true,
				Handler:      handler,
			})

			Expect(tcp.Start(context.Background())).To(Succeed())
			Expect(tcp.Addrs()).To(HaveLen(2))
			Expect(tcp.Close()).To(Succeed())
		})

		It("acknowledges a login", func() {
			tcp := makeTCPServer(handler)

			conn, err := net.Dial("tcp", "127.0.0.1:6682")
			Expect(err).To(Succeed())

			defer func() {
				conn.Close()
				Expect(tcp.Close()).To(Succeed())
			}()

			_, err = conn.Write([]byte("01{\"name\":\"Alice\"}\r\n"))
			Expect(err).To(Succeed())

			response, err := readLine(bufio.NewReader(conn))
			Expect(err).To(Succeed())
			Expect(string(response)).To(Equal(`01{"name":"Alice","accepted":true}`))

			Expect(handler.Logins()).To(Equal([]string{"Alice"}))
		})

		It("survives garbage from the client", func() {
			tcp := makeTCPServer(handler)

			conn, err := net.Dial("tcp", "127.0.0.1:6682")
			Expect(err).To(Succeed())

			defer func() {
				conn.Close()
				Expect(tcp.Close()).To(Succeed())
			}()

			_, err = conn.Write([]byte("GET / HTTP/1.1\r\n01{\"name\":\"Bob\"}\r\n"))
			Expect(err).To(Succeed())

			response, err := readLine(bufio.NewReader(conn))
			Expect(err).To(Succeed())
			Expect(string(response)).To(Equal(`01{"name":"Bob","accepted":true}`))
		})

		It("kicks clients when it shuts down", func() {
			tcp := makeTCPServer(handler)

			conn, err := net.Dial("tcp", "127.0.0.1:6682")
			Expect(err).To(Succeed())
			defer conn.Close()

			r := bufio.NewReader(conn)

			_, err = conn.Write([]byte("01{\"name\":\"Alice\"}\r\n"))
			Expect(err).To(Succeed())
			_, err = readLine(r)
			Expect(err).To(Succeed())

			Expect(tcp.Close()).To(Succeed())

			response, err := readLine(r)
			Expect(err).To(Succeed())
			Expect(string(response)).To(Equal(`02{"reason":"Server is shutting down"}`))

			waitForClose(conn, r)
			Expect(handler.Disconnects()).To(Equal(1))
		})

		It("broadcasts to logged-in clients only", func() {
			tcp := makeTCPServer(handler)
			defer tcp.Close()

			alice, err := net.Dial("tcp", "127.0.0.1:6682")
			Expect(err).To(Succeed())
			defer alice.Close()

			lurker, err := net.Dial("tcp", "127.0.0.1:6682")
			Expect(err).To(Succeed())
			defer lurker.Close()

			r := bufio.NewReader(alice)
			_, err = alice.Write([]byte("01{\"name\":\"Alice\"}\r\n"))
			Expect(err).To(Succeed())
			_, err = readLine(r)
			Expect(err).To(Succeed())

			Expect(tcp.Broadcast(&protocol.Text{Text: "hello"})).To(Succeed())

			response, err := readLine(r)
			Expect(err).To(Succeed())
			Expect(string(response)).To(Equal(`07{"text":"hello"}`))

			Expect(lurker.SetReadDeadline(time.Now().Add(100 * time.Millisecond))).To(Succeed())
			_, err = bufio.NewReader(lurker).ReadByte()
			Expect(err).To(HaveOccurred())
		})

		It("notices when a client hangs up", func() {
			tcp := makeTCPServer(handler)
			defer tcp.Close()

			conn, err := net.Dial("tcp", "127.0.0.1:6682")
			Expect(err).To(Succeed())

			_, err = conn.Write([]byte("01{\"name\":\"Alice\"}\r\n"))
			Expect(err).To(Succeed())
			Eventually(handler.Logins).Should(HaveLen(1))

			conn.Close()

			Eventually(handler.Disconnects).Should(Equal(1))
		})
	})
})

func waitForClose(conn net.Conn, r *bufio.Reader) {
	// Wait for our client to be disconnected by the server
	Expect(conn.SetReadDeadline(time.Now().Add(5 * time.Second))).To(Succeed())

	for {
		_, err := r.ReadByte()
		if err == nil {
			continue
		}

		if !errors.Is(err, io.EOF) {
			Fail("The client was never closed by the server: " + err.Error())
		}

		return
	}
}

func makeTCPServer(handler transport.ConnHandler) *transport.TCP {
	log, err := zap.NewDevelopment()
	Expect(err).To(Succeed())

	tcp := transport.NewTCP(transport.Options{
		Host:         "127.0.0.1",
		Port:         6682,
		NumListeners: 1,
		Reuseport:    false,
		WriteTimeout: time.Second,
		Handler:      handler,
		Log:          log,
	})

	Expect(tcp.Start(context.Background())).To(Succeed())

	return tcp
}

func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte

	for {
		chunk, more, err := r.ReadLine()
		if err != nil {
			return nil, err
		}

		// Avoid the copy if the first call produced a full line.
		if line == nil && !more {
			return chunk, nil
		}

		line = append(line, chunk...)

		if !more {
			break
		}
	}

	return line, nil
}

package transport_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/moep/moepserver/transport"
)

var _ = Describe("transport / workers", func() {
	var (
		server net.Conn
		client net.Conn
		log    *zap.Logger
	)

	BeforeEach(func() {
		server, client = net.Pipe()

		var err error
		log, err = zap.NewDevelopment()
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		client.Close()
		server.Close()
	})

	Describe("LineReader", func() {
		It("queues lines in arrival order without their terminators", func() {
			reader := transport.NewLineReader(server, 0, log)
			reader.Start(context.Background())
			defer reader.Cancel()

			_, err := client.Write([]byte("01{\"name\":\"Alice\"}\r\n\r\n05{}\n"))
			Expect(err).To(Succeed())

			Eventually(reader.Signal()).Should(Receive())

			lines := []string{}
			Eventually(func() []string {
				for !reader.IsEmpty() {
					line, _ := reader.TakeNext()
					lines = append(lines, line)
				}
				return lines
			}).Should(Equal([]string{`01{"name":"Alice"}`, `05{}`}))
		})

		It("discards lines longer than the limit and keeps reading", func() {
			reader := transport.NewLineReader(server, 32, log)
			reader.Start(context.Background())
			defer reader.Cancel()

			go client.Write([]byte(strings.Repeat("x", 100) + "\n05{}\n"))

			Eventually(reader.IsEmpty).Should(BeFalse())
			line, ok := reader.TakeNext()
			Expect(ok).To(BeTrue())
			Expect(line).To(Equal("05{}"))
			Expect(reader.Lost()).NotTo(BeClosed())
		})

		It("reports a lost transport when the client hangs up", func() {
			reader := transport.NewLineReader(server, 0, log)
			reader.Start(context.Background())

			client.Close()

			Eventually(reader.Lost()).Should(BeClosed())
		})

		It("does not report a loss after a cancel", func() {
			reader := transport.NewLineReader(server, 0, log)
			reader.Start(context.Background())

			Expect(reader.Cancel()).To(Succeed())
			Expect(reader.Cancel()).To(Succeed())

			Consistently(reader.Lost(), 200*time.Millisecond).ShouldNot(BeClosed())
		})

		It("delegates the remote address to the connection", func() {
			reader := transport.NewLineReader(server, 0, log)
			Expect(reader.RemoteAddr()).To(Equal(server.RemoteAddr().String()))
		})
	})

	Describe("LineWriter", func() {
		It("writes queued lines in order, terminated with CRLF", func() {
			writer := transport.NewLineWriter(server, time.Second, log)
			writer.Start(context.Background())
			defer writer.Cancel()

			Expect(writer.Enqueue(`03{"yourTurn":true}`)).To(Succeed())
			Expect(writer.Enqueue(`09{"ended":true}`)).To(Succeed())
			writer.Signal()

			r := bufio.NewReader(client)
			Expect(r.ReadString('\n')).To(Equal("03{\"yourTurn\":true}\r\n"))
			Expect(r.ReadString('\n')).To(Equal("09{\"ended\":true}\r\n"))
		})

		It("flushes queued lines when cancelled, then refuses new ones", func() {
			writer := transport.NewLineWriter(server, time.Second, log)

			Expect(writer.Enqueue(`02{"reason":"bye"}`)).To(Succeed())
			Expect(writer.Cancel()).To(Succeed())
			Expect(writer.Enqueue(`07{"text":"late"}`)).To(MatchError(transport.ErrWriterClosed))

			writer.Start(context.Background())

			r := bufio.NewReader(client)
			Expect(r.ReadString('\n')).To(Equal("02{\"reason\":\"bye\"}\r\n"))
			Eventually(writer.Done()).Should(BeClosed())
		})

		It("drops a line it cannot write in time and carries on", func() {
			writer := transport.NewLineWriter(server, 50*time.Millisecond, log)
			writer.Start(context.Background())
			defer writer.Cancel()

			Expect(writer.Enqueue(`07{"text":"nobody reads this"}`)).To(Succeed())
			time.Sleep(200 * time.Millisecond)

			Expect(writer.Enqueue(`07{"text":"second"}`)).To(Succeed())

			r := bufio.NewReader(client)
			Expect(r.ReadString('\n')).To(Equal("07{\"text\":\"second\"}\r\n"))
		})
	})
})

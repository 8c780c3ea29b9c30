package protocol_test

import (
	"bufio"
	"errors"
	"io"
	"math"
	"strings"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/moep/moepserver/protocol"
)

var _ = Describe("Parsing", func() {
	Describe("Decode()", func() {
		It("returns an error if the data is too short to hold a tag", func() {
			_, err := protocol.Decode("")
			Expect(err).To(MatchError(protocol.ErrPacketTooShort))

			_, err = protocol.Decode("1")
			Expect(err).To(MatchError(protocol.ErrPacketTooShort))
		})

		It("returns an error if the tag is unknown", func() {
			for _, raw := range []string{`99{}`, `00{}`, `ab{}`, `+1{"name":"x"}`, `-1{}`} {
				p, err := protocol.Decode(raw)
				Expect(p).To(BeNil())
				Expect(errors.Is(err, protocol.ErrUnknownTag)).To(BeTrue(), raw)
				Expect(errors.Is(err, protocol.ErrUnrecognized)).To(BeTrue(), raw)
			}
		})

		It("returns an error if the payload is not a JSON object", func() {
			for _, raw := range []string{`01`, `01name=Alice`, `01["Alice"]`, `01{"name":`} {
				_, err := protocol.Decode(raw)
				Expect(errors.Is(err, protocol.ErrMalformedPayload)).To(BeTrue(), raw)
			}
		})

		It("returns an error if a required key is missing or has the wrong type", func() {
			for _, raw := range []string{
				`02{}`,
				`03{"yourTurn":"yes"}`,
				`04{"valid":true}`,
				`06{"color":2.5}`,
				`08{"name":"Bob","action":"login"}`,
				`10{"card":7}`,
				`12{"card":{"color":1}}`,
			} {
				_, err := protocol.Decode(raw)
				Expect(errors.Is(err, protocol.ErrUnrecognized)).To(BeTrue(), raw)
			}
		})

		It("never panics on garbage", func() {
			for _, raw := range []string{"\x00\x01", "01\xff\xfe", "0", "13", "06{\"color\":1e400}"} {
				Expect(func() { protocol.Decode(raw) }).NotTo(Panic())
			}
		})

		It("tolerates a trailing CR and LF", func() {
			p, err := protocol.Decode("07{\"text\":\"hi\"}\r\n")
			Expect(err).To(Succeed())
			Expect(p).To(Equal(&protocol.Text{Text: "hi"}))
		})

		Describe("Login", func() {
			It("parses a client login without a verdict", func() {
				p, err := protocol.Decode(`01{"name":"Alice"}`)
				Expect(err).To(Succeed())
				Expect(protocol.KindOf(p)).To(Equal(protocol.KindLogin))
				Expect(p).To(Equal(&protocol.Login{Name: "Alice"}))
			})

			It("parses a login reply", func() {
				p, err := protocol.Decode(`01{"name":"Alice","accepted":false}`)
				Expect(err).To(Succeed())
				Expect(p).To(Equal(protocol.NewLoginReply("Alice", false)))
			})

			It("rejects an empty name", func() {
				_, err := protocol.Decode(`01{"name":""}`)
				Expect(errors.Is(err, protocol.ErrEmptyLoginName)).To(BeTrue())
			})
		})

		Describe("MoepButton", func() {
			It("parses a press without a verdict", func() {
				p, err := protocol.Decode(`05{}`)
				Expect(err).To(Succeed())
				Expect(p).To(Equal(&protocol.MoepButton{}))
			})
		})

		Describe("ColorWish", func() {
			It("parses a request and an answer", func() {
				p, err := protocol.Decode(`06{"color":-1}`)
				Expect(err).To(Succeed())
				Expect(p).To(Equal(&protocol.ColorWish{Color: protocol.NoColor}))

				p, err = protocol.Decode(`06{"color":3}`)
				Expect(err).To(Succeed())
				Expect(p).To(Equal(&protocol.ColorWish{Color: 3}))
			})

			It("rejects colors below -1", func() {
				_, err := protocol.Decode(`06{"color":-2}`)
				Expect(errors.Is(err, protocol.ErrInvalidColor)).To(BeTrue())
			})
		})

		Describe("PlayerServerAction", func() {
			It("rejects unknown actions", func() {
				_, err := protocol.Decode(`08{"name":"Bob","action":2}`)
				Expect(errors.Is(err, protocol.ErrInvalidAction)).To(BeTrue())
			})
		})

		Describe("PlayCard", func() {
			It("parses the played card", func() {
				p, err := protocol.Decode(`10{"card":{"color":2,"number":7}}`)
				Expect(err).To(Succeed())
				Expect(p).To(Equal(&protocol.PlayCard{Card: protocol.Card{Color: 2, Number: 7}}))
			})
		})
	})

	Describe("Decode(Encode())", func() {
		It("returns an equal packet for every kind", func() {
			card := protocol.Card{Color: 3, Number: 11}
			packets := []protocol.Packet{
				&protocol.Login{Name: "Alice"},
				protocol.NewLoginReply("Alice", true),
				&protocol.Kick{Reason: "cheating"},
				&protocol.TurnNotice{YourTurn: true},
				&protocol.MoveValidity{Valid: false, Reason: 4},
				&protocol.MoveValidity{Valid: true, Reason: protocol.NoReason},
				&protocol.MoepButton{InTime: true},
				&protocol.ColorWish{Color: protocol.NoColor},
				&protocol.Text{Text: "quote \" and\nnewline"},
				&protocol.PlayerServerAction{Name: "Bob", Action: protocol.ActionLogout},
				&protocol.GameOver{Ended: true},
				&protocol.PlayCard{Card: card},
				&protocol.HandCard{Card: card},
				&protocol.DiscardPileCard{Card: card},
				&protocol.DrawCard{},
			}

			for _, p := range packets {
				line, err := protocol.Encode(p)
				Expect(err).To(Succeed())
				Expect(line).NotTo(ContainSubstring("\n"))

				decoded, err := protocol.Decode(line)
				Expect(err).To(Succeed(), line)
				Expect(decoded).To(Equal(p), line)
			}
		})

		It("round trips the edge values", func() {
			packets := []protocol.Packet{
				&protocol.Login{Name: "Zoë 🂡"},
				&protocol.MoveValidity{Valid: false, Reason: math.MaxInt32},
				&protocol.MoveValidity{Valid: false, Reason: math.MinInt32},
				&protocol.ColorWish{Color: math.MaxInt32},
				&protocol.PlayerServerAction{Name: "Bob", Action: protocol.ActionLogin},
				&protocol.HandCard{Card: protocol.Card{Color: math.MinInt32, Number: math.MaxInt32}},
				&protocol.Text{Text: "tab\tand \u00e9"},
			}

			for _, p := range packets {
				line, err := protocol.Encode(p)
				Expect(err).To(Succeed())

				decoded, err := protocol.Decode(line)
				Expect(err).To(Succeed(), line)
				Expect(decoded).To(Equal(p), line)
			}
		})

		It("refuses to encode what it would not decode", func() {
			packets := []protocol.Packet{
				&protocol.Login{Name: ""},
				&protocol.Login{Name: "bad \xff name"},
				&protocol.Kick{Reason: "bad \xff reason"},
				&protocol.Text{Text: "bad \xff utf8"},
				&protocol.ColorWish{Color: -2},
				&protocol.ColorWish{Color: math.MaxInt32 + 1},
				&protocol.MoveValidity{Valid: false, Reason: 1 << 40},
				&protocol.MoveValidity{Valid: false, Reason: math.MinInt32 - 1},
				&protocol.PlayerServerAction{Name: "x", Action: 7},
				&protocol.PlayerServerAction{Name: "x", Action: -1},
				&protocol.PlayerServerAction{Name: "\xc3", Action: protocol.ActionLogout},
				&protocol.PlayCard{Card: protocol.Card{Color: 1 << 33, Number: 1}},
				&protocol.DiscardPileCard{Card: protocol.Card{Color: 1, Number: -(1 << 33)}},
			}

			for _, p := range packets {
				line, err := protocol.Encode(p)
				Expect(errors.Is(err, protocol.ErrEncode)).To(BeTrue(), "%#v", p)
				Expect(line).To(BeEmpty())
			}
		})

		It("rejects the same values when decoding", func() {
			cases := []struct {
				raw  string
				want error
			}{
				{`06{"color":-2}`, protocol.ErrInvalidColor},
				{`04{"valid":false,"reason":1099511627776}`, protocol.ErrOutOfRange},
				{`08{"name":"x","action":7}`, protocol.ErrInvalidAction},
				{`01{"name":""}`, protocol.ErrEmptyLoginName},
				{"07{\"text\":\"bad \xff utf8\"}", protocol.ErrInvalidUTF8},
			}

			for _, c := range cases {
				p, err := protocol.Decode(c.raw)
				Expect(p).To(BeNil())
				Expect(errors.Is(err, c.want)).To(BeTrue(), c.raw)
			}
		})
	})

	Describe("ReadPacket()", func() {
		It("returns an error if the reader cannot find a newline", func() {
			_, err := protocol.ReadPacket(bufio.NewReader(strings.NewReader(`07{"text":"no newline"}`)))
			Expect(err).To(MatchError(io.EOF))
		})

		It("reads consecutive packets", func() {
			r := bufio.NewReader(strings.NewReader("03{\"yourTurn\":true}\r\n09{\"ended\":false}\r\n"))

			p, err := protocol.ReadPacket(r)
			Expect(err).To(Succeed())
			Expect(p).To(Equal(&protocol.TurnNotice{YourTurn: true}))

			p, err = protocol.ReadPacket(r)
			Expect(err).To(Succeed())
			Expect(p).To(Equal(&protocol.GameOver{Ended: false}))
		})
	})

	Describe("KindOf()", func() {
		It("reports nil packets as unrecognized", func() {
			Expect(protocol.KindOf(nil)).To(Equal(protocol.KindUnrecognized))
			Expect(protocol.KindUnrecognized.String()).To(Equal("Unrecognized"))
		})
	})

	Describe("RemoveTrailingCR()", func() {
		It("does nothing if the data does not end in CR", func() {
			Expect(protocol.RemoveTrailingCR("I am awesome data")).To(Equal("I am awesome data"))
		})

		It("removes the trailling CR", func() {
			Expect(protocol.RemoveTrailingCR("I am awesome data\r")).To(Equal("I am awesome data"))
		})
	})
})

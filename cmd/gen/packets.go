package gen

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/moep/moepserver/protocol"
)

var packetsOut string

// packetSample is one row of the packet reference.
type packetSample struct {
	packet protocol.Packet
	sentBy string
}

var packetSamples = []packetSample{
	{&protocol.Login{Name: "Alice"}, "client"},
	{protocol.NewLoginReply("Alice", true), "server"},
	{&protocol.Kick{Reason: "Name is already taken"}, "server"},
	{&protocol.TurnNotice{YourTurn: true}, "server"},
	{&protocol.MoveValidity{Valid: false, Reason: 2}, "server"},
	{&protocol.MoepButton{}, "client"},
	{&protocol.MoepButton{InTime: true}, "server"},
	{&protocol.ColorWish{Color: protocol.NoColor}, "server"},
	{&protocol.ColorWish{Color: 2}, "client"},
	{&protocol.Text{Text: "Welcome"}, "server"},
	{&protocol.PlayerServerAction{Name: "Bob", Action: protocol.ActionLogin}, "server"},
	{&protocol.GameOver{Ended: true}, "server"},
	{&protocol.PlayCard{Card: protocol.Card{Color: 1, Number: 7}}, "client"},
	{&protocol.HandCard{Card: protocol.Card{Color: 3, Number: 11}}, "server"},
	{&protocol.DiscardPileCard{Card: protocol.Card{Color: 1, Number: 7}}, "server"},
	{&protocol.DrawCard{}, "client"},
}

var PacketsCmd = &cobra.Command{
	Use:   "packets",
	Short: "Generate a markdown reference of the wire packets",
	Long: `This command writes a markdown table with one example line for every
	packet the server and its clients exchange. The examples are encoded
	by the server itself, so the table never drifts from the wire format.`,

	RunE: func(cmd *cobra.Command, args []string) (err error) {
		w := cmd.OutOrStdout()

		if packetsOut != "" {
			f, err := os.Create(packetsOut)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := f.Close(); err == nil {
					err = closeErr
				}
			}()

			w = f
		}

		return writePacketTable(w)
	},
}

func writePacketTable(w io.Writer) error {
	if _, err := fmt.Fprint(w, "| Tag | Packet | Sent by | Example |\n|---|---|---|---|\n"); err != nil {
		return err
	}

	for _, sample := range packetSamples {
		line, err := protocol.Encode(sample.packet)
		if err != nil {
			return err
		}

		kind := sample.packet.Kind()
		if _, err := fmt.Fprintf(w, "| %s | %s | %s | `%s` |\n", kind.Tag(), kind, sample.sentBy, line); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	PacketsCmd.Flags().StringVarP(&packetsOut, "out", "o", "", "Write the table to this file instead of stdout")
}

package protocol

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Card is a playing card as it travels over the wire. What colors and
// numbers mean is up to the game rules.
type Card struct {
	Color  int
	Number int
}

func (c Card) String() string {
	return fmt.Sprintf("%d/%d", c.Color, c.Number)
}

func writeCard(body, key string, card Card) (string, error) {
	body, err := sjson.Set(body, key+".color", card.Color)
	if err != nil {
		return body, err
	}

	return sjson.Set(body, key+".number", card.Number)
}

func readCard(payload, key string) (Card, error) {
	raw := gjson.Get(payload, key)
	if !raw.IsObject() {
		return Card{}, fmt.Errorf("%w: %q must be an object", ErrUnrecognized, key)
	}

	color, err := readInt(raw.Raw, "color")
	if err != nil {
		return Card{}, err
	}

	number, err := readInt(raw.Raw, "number")
	if err != nil {
		return Card{}, err
	}

	return Card{Color: color, Number: number}, nil
}

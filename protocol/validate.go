package protocol

import (
	"fmt"
	"math"
	"unicode/utf8"
)

// validate reports whether a packet holds only values Decode accepts back.
// Encode and Decode share it, so every line Encode produces decodes to an
// equal packet.

func (p *Login) validate() error {
	if p.Name == "" {
		return ErrEmptyLoginName
	}

	return checkText("name", p.Name)
}

func (p *Kick) validate() error {
	return checkText("reason", p.Reason)
}

func (p *TurnNotice) validate() error { return nil }

func (p *MoveValidity) validate() error {
	return checkInt("reason", p.Reason)
}

func (p *MoepButton) validate() error { return nil }

func (p *ColorWish) validate() error {
	if p.Color < NoColor {
		return ErrInvalidColor
	}

	return checkInt("color", p.Color)
}

func (p *Text) validate() error {
	return checkText("text", p.Text)
}

func (p *PlayerServerAction) validate() error {
	switch p.Action {
	case ActionLogin, ActionLogout:
	default:
		return ErrInvalidAction
	}

	return checkText("name", p.Name)
}

func (p *GameOver) validate() error { return nil }

func (p *PlayCard) validate() error        { return p.Card.validate() }
func (p *HandCard) validate() error        { return p.Card.validate() }
func (p *DiscardPileCard) validate() error { return p.Card.validate() }

func (p *DrawCard) validate() error { return nil }

func (c Card) validate() error {
	if err := checkInt("card.color", c.Color); err != nil {
		return err
	}

	return checkInt("card.number", c.Number)
}

// checkText rejects strings the JSON encoder would rewrite.
func checkText(key, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %q", ErrInvalidUTF8, key)
	}

	return nil
}

func checkInt(key string, n int) error {
	if int64(n) > math.MaxInt32 || int64(n) < math.MinInt32 {
		return fmt.Errorf("%w: %q", ErrOutOfRange, key)
	}

	return nil
}

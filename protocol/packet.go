package protocol

import (
	"fmt"

	"github.com/tidwall/sjson"
)

const (
	// NoColor is the color of a ColorWish that asks the client to choose.
	NoColor = -1

	// NoReason is the reason code of a valid move.
	NoReason = -1
)

// ServerAction is the presence change announced by a PlayerServerAction.
type ServerAction int

const (
	ActionLogin  ServerAction = 0
	ActionLogout ServerAction = 1
)

func (a ServerAction) String() string {
	switch a {
	case ActionLogin:
		return "login"
	case ActionLogout:
		return "logout"
	default:
		return fmt.Sprintf("ServerAction(%d)", int(a))
	}
}

// Packet is a single protocol message. The set of packets is closed, every
// implementation lives in this package.
type Packet interface {
	Kind() Kind

	// writePayload sets the packet fields on the JSON object body.
	writePayload(body string) (string, error)

	validate() error
}

// Login is sent by a client to identify itself, and by the server to accept
// or reject that login. Accepted is only set on replies.
type Login struct {
	Name     string
	Accepted *bool
}

// NewLoginReply returns the server's answer to a login.
func NewLoginReply(name string, accepted bool) *Login {
	return &Login{Name: name, Accepted: &accepted}
}

type Kick struct {
	Reason string
}

type TurnNotice struct {
	YourTurn bool
}

// MoveValidity accepts or rejects the last move. Reason is NoReason when
// Valid is true.
type MoveValidity struct {
	Valid  bool
	Reason int
}

// MoepButton is a button press when sent by a client and the verdict on that
// press when sent by the server.
type MoepButton struct {
	InTime bool
}

type ColorWish struct {
	Color int
}

type Text struct {
	Text string
}

type PlayerServerAction struct {
	Name   string
	Action ServerAction
}

type GameOver struct {
	Ended bool
}

type PlayCard struct {
	Card Card
}

type HandCard struct {
	Card Card
}

type DiscardPileCard struct {
	Card Card
}

type DrawCard struct{}

func (p *Login) Kind() Kind              { return KindLogin }
func (p *Kick) Kind() Kind               { return KindKick }
func (p *TurnNotice) Kind() Kind         { return KindTurnNotice }
func (p *MoveValidity) Kind() Kind       { return KindMoveValidity }
func (p *MoepButton) Kind() Kind         { return KindMoepButton }
func (p *ColorWish) Kind() Kind          { return KindColorWish }
func (p *Text) Kind() Kind               { return KindText }
func (p *PlayerServerAction) Kind() Kind { return KindPlayerServerAction }
func (p *GameOver) Kind() Kind           { return KindGameOver }
func (p *PlayCard) Kind() Kind           { return KindPlayCard }
func (p *HandCard) Kind() Kind           { return KindHandCard }
func (p *DiscardPileCard) Kind() Kind    { return KindDiscardPileCard }
func (p *DrawCard) Kind() Kind           { return KindDrawCard }

func (p *Login) writePayload(body string) (string, error) {
	body, err := sjson.Set(body, "name", p.Name)
	if err != nil || p.Accepted == nil {
		return body, err
	}

	return sjson.Set(body, "accepted", *p.Accepted)
}

func (p *Kick) writePayload(body string) (string, error) {
	return sjson.Set(body, "reason", p.Reason)
}

func (p *TurnNotice) writePayload(body string) (string, error) {
	return sjson.Set(body, "yourTurn", p.YourTurn)
}

func (p *MoveValidity) writePayload(body string) (string, error) {
	body, err := sjson.Set(body, "valid", p.Valid)
	if err != nil {
		return body, err
	}

	return sjson.Set(body, "reason", p.Reason)
}

func (p *MoepButton) writePayload(body string) (string, error) {
	return sjson.Set(body, "inTime", p.InTime)
}

func (p *ColorWish) writePayload(body string) (string, error) {
	return sjson.Set(body, "color", p.Color)
}

func (p *Text) writePayload(body string) (string, error) {
	return sjson.Set(body, "text", p.Text)
}

func (p *PlayerServerAction) writePayload(body string) (string, error) {
	body, err := sjson.Set(body, "name", p.Name)
	if err != nil {
		return body, err
	}

	return sjson.Set(body, "action", int(p.Action))
}

func (p *GameOver) writePayload(body string) (string, error) {
	return sjson.Set(body, "ended", p.Ended)
}

func (p *PlayCard) writePayload(body string) (string, error) {
	return writeCard(body, "card", p.Card)
}

func (p *HandCard) writePayload(body string) (string, error) {
	return writeCard(body, "card", p.Card)
}

func (p *DiscardPileCard) writePayload(body string) (string, error) {
	return writeCard(body, "card", p.Card)
}

func (p *DrawCard) writePayload(body string) (string, error) {
	return body, nil
}

var (
	_ Packet = (*Login)(nil)
	_ Packet = (*Kick)(nil)
	_ Packet = (*TurnNotice)(nil)
	_ Packet = (*MoveValidity)(nil)
	_ Packet = (*MoepButton)(nil)
	_ Packet = (*ColorWish)(nil)
	_ Packet = (*Text)(nil)
	_ Packet = (*PlayerServerAction)(nil)
	_ Packet = (*GameOver)(nil)
	_ Packet = (*PlayCard)(nil)
	_ Packet = (*HandCard)(nil)
	_ Packet = (*DiscardPileCard)(nil)
	_ Packet = (*DrawCard)(nil)
)

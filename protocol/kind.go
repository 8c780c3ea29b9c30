package protocol

import "fmt"

// Kind identifies a packet type. Its numeric value is the wire tag.
type Kind int

const (
	KindUnrecognized       Kind = 0
	KindLogin              Kind = 1
	KindKick               Kind = 2
	KindTurnNotice         Kind = 3
	KindMoveValidity       Kind = 4
	KindMoepButton         Kind = 5
	KindColorWish          Kind = 6
	KindText               Kind = 7
	KindPlayerServerAction Kind = 8
	KindGameOver           Kind = 9
	KindPlayCard           Kind = 10
	KindHandCard           Kind = 11
	KindDiscardPileCard    Kind = 12
	KindDrawCard           Kind = 13
)

var kindNames = map[Kind]string{
	KindUnrecognized:       "Unrecognized",
	KindLogin:              "Login",
	KindKick:               "Kick",
	KindTurnNotice:         "TurnNotice",
	KindMoveValidity:       "MoveValidity",
	KindMoepButton:         "MoepButton",
	KindColorWish:          "ColorWish",
	KindText:               "Text",
	KindPlayerServerAction: "PlayerServerAction",
	KindGameOver:           "GameOver",
	KindPlayCard:           "PlayCard",
	KindHandCard:           "HandCard",
	KindDiscardPileCard:    "DiscardPileCard",
	KindDrawCard:           "DrawCard",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Tag returns the two digit wire prefix of the kind.
func (k Kind) Tag() string {
	return fmt.Sprintf("%02d", int(k))
}

// KindOf returns the kind of p, or KindUnrecognized if p is nil.
func KindOf(p Packet) Kind {
	if p == nil {
		return KindUnrecognized
	}

	return p.Kind()
}

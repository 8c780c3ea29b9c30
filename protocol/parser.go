package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	ErrUnrecognized     = errors.New("Unrecognized packet")
	ErrPacketTooShort   = fmt.Errorf("%w: packet is too short to hold a tag", ErrUnrecognized)
	ErrUnknownTag       = fmt.Errorf("%w: unknown packet tag", ErrUnrecognized)
	ErrMalformedPayload = fmt.Errorf("%w: payload is not a JSON object", ErrUnrecognized)
	ErrEmptyLoginName   = fmt.Errorf("%w: login name is empty", ErrUnrecognized)
	ErrInvalidColor     = fmt.Errorf("%w: color must be -1 or greater", ErrUnrecognized)
	ErrInvalidAction    = fmt.Errorf("%w: unknown server action", ErrUnrecognized)
	ErrOutOfRange       = fmt.Errorf("%w: number is out of range", ErrUnrecognized)
	ErrInvalidUTF8      = fmt.Errorf("%w: string is not valid UTF-8", ErrUnrecognized)
)

const tagLength = 2

type payloadParser func(payload string) (Packet, error)

var parsers = map[Kind]payloadParser{
	KindLogin:              parseLogin,
	KindKick:               parseKick,
	KindTurnNotice:         parseTurnNotice,
	KindMoveValidity:       parseMoveValidity,
	KindMoepButton:         parseMoepButton,
	KindColorWish:          parseColorWish,
	KindText:               parseText,
	KindPlayerServerAction: parsePlayerServerAction,
	KindGameOver:           parseGameOver,
	KindPlayCard:           parsePlayCard,
	KindHandCard:           parseHandCard,
	KindDiscardPileCard:    parseDiscardPileCard,
	KindDrawCard:           parseDrawCard,
}

// Decode parses a single line into a Packet.
//
// Decode never panics. Every failure is reported with an error wrapping
// ErrUnrecognized and a nil Packet.
func Decode(raw string) (Packet, error) {
	raw = RemoveTrailingCR(strings.TrimSuffix(raw, "\n"))

	if len(raw) < tagLength {
		return nil, ErrPacketTooShort
	}

	if !isDigit(raw[0]) || !isDigit(raw[1]) {
		return nil, fmt.Errorf("Failed to parse '%s': %w", raw, ErrUnknownTag)
	}

	tag, err := strconv.Atoi(raw[:tagLength])
	if err != nil {
		return nil, fmt.Errorf("Failed to parse '%s': %w", raw, ErrUnknownTag)
	}

	parse, ok := parsers[Kind(tag)]
	if !ok {
		return nil, fmt.Errorf("Failed to parse '%s': %w", raw, ErrUnknownTag)
	}

	payload := raw[tagLength:]
	if !gjson.Valid(payload) || !gjson.Parse(payload).IsObject() {
		return nil, fmt.Errorf("Failed to parse '%s': %w", raw, ErrMalformedPayload)
	}

	p, err := parse(payload)
	if err == nil {
		err = p.validate()
	}

	if err != nil {
		return nil, fmt.Errorf("Failed to parse '%s': %w", raw, err)
	}

	return p, nil
}

// ReadPacket reads a single line from r and decodes it.
//
// To avoid denial of service attacks, the provided bufio.Reader
// should be reading from an io.LimitReader or similar Reader to bound
// the size of a line.
func ReadPacket(r *bufio.Reader) (Packet, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	return Decode(line)
}

// RemoveTrailingCR strips a single optional trailing '\r'.
func RemoveTrailingCR(data string) string {
	return strings.TrimSuffix(data, "\r")
}

func parseLogin(payload string) (Packet, error) {
	name, err := readString(payload, "name")
	if err != nil {
		return nil, err
	}

	p := &Login{Name: name}

	if gjson.Get(payload, "accepted").Exists() {
		accepted, err := readBool(payload, "accepted")
		if err != nil {
			return nil, err
		}

		p.Accepted = &accepted
	}

	return p, nil
}

func parseKick(payload string) (Packet, error) {
	reason, err := readString(payload, "reason")
	if err != nil {
		return nil, err
	}

	return &Kick{Reason: reason}, nil
}

func parseTurnNotice(payload string) (Packet, error) {
	yourTurn, err := readBool(payload, "yourTurn")
	if err != nil {
		return nil, err
	}

	return &TurnNotice{YourTurn: yourTurn}, nil
}

func parseMoveValidity(payload string) (Packet, error) {
	valid, err := readBool(payload, "valid")
	if err != nil {
		return nil, err
	}

	reason, err := readInt(payload, "reason")
	if err != nil {
		return nil, err
	}

	return &MoveValidity{Valid: valid, Reason: reason}, nil
}

func parseMoepButton(payload string) (Packet, error) {
	p := &MoepButton{}

	// A press from a client carries no verdict
	if !gjson.Get(payload, "inTime").Exists() {
		return p, nil
	}

	inTime, err := readBool(payload, "inTime")
	if err != nil {
		return nil, err
	}

	p.InTime = inTime
	return p, nil
}

func parseColorWish(payload string) (Packet, error) {
	color, err := readInt(payload, "color")
	if err != nil {
		return nil, err
	}

	return &ColorWish{Color: color}, nil
}

func parseText(payload string) (Packet, error) {
	text, err := readString(payload, "text")
	if err != nil {
		return nil, err
	}

	return &Text{Text: text}, nil
}

func parsePlayerServerAction(payload string) (Packet, error) {
	name, err := readString(payload, "name")
	if err != nil {
		return nil, err
	}

	action, err := readInt(payload, "action")
	if err != nil {
		return nil, err
	}

	return &PlayerServerAction{Name: name, Action: ServerAction(action)}, nil
}

func parseGameOver(payload string) (Packet, error) {
	ended, err := readBool(payload, "ended")
	if err != nil {
		return nil, err
	}

	return &GameOver{Ended: ended}, nil
}

func parsePlayCard(payload string) (Packet, error) {
	card, err := readCard(payload, "card")
	if err != nil {
		return nil, err
	}

	return &PlayCard{Card: card}, nil
}

func parseHandCard(payload string) (Packet, error) {
	card, err := readCard(payload, "card")
	if err != nil {
		return nil, err
	}

	return &HandCard{Card: card}, nil
}

func parseDiscardPileCard(payload string) (Packet, error) {
	card, err := readCard(payload, "card")
	if err != nil {
		return nil, err
	}

	return &DiscardPileCard{Card: card}, nil
}

func parseDrawCard(payload string) (Packet, error) {
	return &DrawCard{}, nil
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func readString(payload, key string) (string, error) {
	result := gjson.Get(payload, key)
	if result.Type != gjson.String {
		return "", fmt.Errorf("%w: %q must be a string", ErrUnrecognized, key)
	}

	return result.Str, nil
}

func readBool(payload, key string) (bool, error) {
	result := gjson.Get(payload, key)
	if result.Type != gjson.True && result.Type != gjson.False {
		return false, fmt.Errorf("%w: %q must be a boolean", ErrUnrecognized, key)
	}

	return result.Bool(), nil
}

func readInt(payload, key string) (int, error) {
	result := gjson.Get(payload, key)
	if result.Type != gjson.Number || result.Num != math.Trunc(result.Num) {
		return 0, fmt.Errorf("%w: %q must be an integer", ErrUnrecognized, key)
	}

	if result.Num > math.MaxInt32 || result.Num < math.MinInt32 {
		return 0, fmt.Errorf("%w: %q", ErrOutOfRange, key)
	}

	return int(result.Int()), nil
}

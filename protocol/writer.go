package protocol

import (
	"errors"
	"fmt"
	"io"
)

var (
	ErrEncode = errors.New("Failed to encode packet")

	Terminal = []byte("\r\n")
)

// Encode serialises p into a single line, without the line terminator.
//
// Packets Decode would reject, like an empty login name, a color below
// NoColor, a number outside int32 or a string that is not valid UTF-8, fail
// with an error wrapping ErrEncode.
func Encode(p Packet) (string, error) {
	if p == nil {
		return "", fmt.Errorf("%w: nil packet", ErrEncode)
	}

	if err := p.validate(); err != nil {
		return "", fmt.Errorf("%w %s: %v", ErrEncode, p.Kind(), err)
	}

	body, err := p.writePayload("{}")
	if err != nil {
		return "", fmt.Errorf("%w %s: %v", ErrEncode, p.Kind(), err)
	}

	return p.Kind().Tag() + body, nil
}

// WritePacket encodes p and writes it, terminated, to w.
func WritePacket(w io.Writer, p Packet) error {
	line, err := Encode(p)
	if err != nil {
		return err
	}

	return WriteLine(w, line)
}

// WriteLine writes an already encoded line followed by the terminal.
func WriteLine(w io.Writer, line string) error {
	b := make([]byte, 0, len(line)+len(Terminal))
	b = append(b, line...)
	b = append(b, Terminal...)

	_, err := w.Write(b)
	return err
}

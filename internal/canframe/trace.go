package canframe

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Direction of a traced frame as seen from the logging node.
type Direction string

const (
	Rx Direction = "Rx"
	Tx Direction = "Tx"
)

// ErrNotTrace is returned for lines that are not CAN trace lines.
var ErrNotTrace = errors.New("not a CanBus trace line")

// CanBus Rx 0x618 12 34 56 78 9A BC DE F0
// CanBus Tx 610 AA BB CC DD
var traceLine = regexp.MustCompile(`(?i)^CanBus\s+(Rx|Tx)\s+(?:0x)?([0-9A-F]+)\s+((?:[0-9A-F]{2}\s*)+)$`)

// Trace is one frame captured from a serial debug log.
type Trace struct {
	Direction Direction
	Frame     Frame
}

// ParseTrace parses one "CanBus Rx|Tx <id> <bytes>" line. The identifier is
// always hexadecimal, with or without the 0x prefix.
func ParseTrace(line string) (Trace, error) {
	m := traceLine.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Trace{}, ErrNotTrace
	}
	id, err := strconv.ParseUint(m[2], 16, 32)
	if err != nil {
		return Trace{}, fmt.Errorf("trace id %q: %w", m[2], err)
	}
	fields := strings.Fields(m[3])
	payload := make([]byte, 0, len(fields))
	for _, s := range fields {
		b, err := strconv.ParseUint(s, 16, 8)
		if err != nil {
			return Trace{}, fmt.Errorf("trace byte %q: %w", s, err)
		}
		payload = append(payload, byte(b))
	}
	f, err := New(uint32(id), payload)
	if err != nil {
		return Trace{}, err
	}
	dir := Rx
	if strings.EqualFold(m[1], string(Tx)) {
		dir = Tx
	}
	return Trace{Direction: dir, Frame: f}, nil
}

func (t Trace) String() string {
	parts := make([]string, 0, t.Frame.Length)
	for _, b := range t.Frame.Payload() {
		parts = append(parts, fmt.Sprintf("%02X", b))
	}
	return fmt.Sprintf("CanBus %s 0x%03X %s", t.Direction, t.Frame.Identifier(), strings.Join(parts, " "))
}

// ParseHex parses a payload written as hex bytes, with or without separators:
// "80 00 A0 0E", "80:00:A0:0E" and "8000A00E" are equivalent.
func ParseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "", ",", "", "0x", "", "0X", "").Replace(s)
	if len(clean)%2 != 0 {
		return nil, fmt.Errorf("hex payload %q has an odd number of digits", s)
	}
	out := make([]byte, 0, len(clean)/2)
	for i := 0; i < len(clean); i += 2 {
		b, err := strconv.ParseUint(clean[i:i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("hex payload %q: %w", s, err)
		}
		out = append(out, byte(b))
	}
	if len(out) > MaxLength {
		return nil, ErrTooLong
	}
	return out, nil
}

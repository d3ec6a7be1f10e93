package canframe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/brutella/can"
)

// MaxLength is the classical CAN payload size.
const MaxLength = 8

const maskIDEff = 0x1FFFFFFF

var ErrTooLong = errors.New("payload exceeds 8 bytes")

// Frame represents a CAN frame.
type Frame struct {
	// bit 0-28: CAN identifier (11/29 bit)
	// bit 29: error message flag (ERR)
	// bit 30: remote transmission request (RTR)
	// bit 31: extended frame format (EFF)
	ID     uint32
	Length uint8
	Data   [MaxLength]uint8
}

// New copies payload into a frame addressed to id.
func New(id uint32, payload []byte) (Frame, error) {
	if len(payload) > MaxLength {
		return Frame{}, ErrTooLong
	}
	f := Frame{ID: id, Length: uint8(len(payload))}
	copy(f.Data[:], payload)
	return f, nil
}

// Identifier returns the 11/29 bit identifier without the flag bits.
func (f Frame) Identifier() uint32 {
	return f.ID & maskIDEff
}

// Payload returns a copy of the first Length data bytes.
func (f Frame) Payload() []byte {
	n := int(f.Length)
	if n > MaxLength {
		n = MaxLength
	}
	out := make([]byte, n)
	copy(out, f.Data[:n])
	return out
}

// FromCAN converts a frame received through brutella/can.
func FromCAN(cf can.Frame) Frame {
	return Frame{ID: cf.ID, Length: cf.Length, Data: cf.Data}
}

// CAN converts the frame for transmission through brutella/can.
func (f Frame) CAN() can.Frame {
	return can.Frame{ID: f.ID, Length: f.Length, Data: f.Data}
}

func (f Frame) String() string {
	parts := make([]string, 0, f.Length)
	for _, b := range f.Payload() {
		parts = append(parts, fmt.Sprintf("%02X", b))
	}
	return fmt.Sprintf("0x%03X [%d] %s", f.Identifier(), f.Length, strings.Join(parts, " "))
}

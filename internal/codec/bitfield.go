// Package codec holds the primitives every charger message is built from:
// bit fields inside a fixed payload, linear scale transforms, and the
// per-message descriptor tables that tie the two together.
package codec

import (
	"fmt"

	"go.einride.tech/can"
)

// Layout selects how a BitField maps onto payload bytes.
type Layout uint8

const (
	// LayoutBits is a 1..8 bit field inside a single byte.
	LayoutBits Layout = iota
	// LayoutUint16BE is a 16 bit field over two consecutive bytes, MSB first.
	LayoutUint16BE
)

func (l Layout) String() string {
	switch l {
	case LayoutBits:
		return "bits"
	case LayoutUint16BE:
		return "uint16be"
	default:
		return "unknown"
	}
}

// BitField locates an unsigned integer inside a payload.
//
// Bit numbering is per byte: 0 is the least significant bit of Byte.
// For LayoutBits the field occupies bits Bit..Bit+Width-1 of Byte.
// For LayoutUint16BE the field is (payload[Byte] << 8) | payload[Byte+1].
type BitField struct {
	Byte   int
	Bit    int
	Width  int
	Layout Layout
}

// Bits returns an intra-byte field of width bits whose lowest bit is bit.
func Bits(byteIdx, bit, width int) BitField {
	return BitField{Byte: byteIdx, Bit: bit, Width: width, Layout: LayoutBits}
}

// Flag returns a single bit field.
func Flag(byteIdx, bit int) BitField {
	return Bits(byteIdx, bit, 1)
}

// Uint8 returns a whole-byte field.
func Uint8(byteIdx int) BitField {
	return Bits(byteIdx, 0, 8)
}

// Uint16BE returns a big-endian 16 bit field starting at byteIdx.
func Uint16BE(byteIdx int) BitField {
	return BitField{Byte: byteIdx, Width: 16, Layout: LayoutUint16BE}
}

// Validate reports whether the field fits a payload of size bytes.
func (f BitField) Validate(size int) error {
	switch f.Layout {
	case LayoutBits:
		if f.Width < 1 || f.Width > 8 {
			return fmt.Errorf("bit field width %d outside 1..8", f.Width)
		}
		if f.Bit < 0 || f.Bit+f.Width > 8 {
			return fmt.Errorf("bit field at bit %d width %d crosses a byte boundary", f.Bit, f.Width)
		}
		if f.Byte < 0 || f.Byte >= size {
			return fmt.Errorf("bit field byte %d outside payload of %d bytes", f.Byte, size)
		}
	case LayoutUint16BE:
		if f.Width != 16 || f.Bit != 0 {
			return fmt.Errorf("uint16be field must be 16 bits at bit 0, got width %d bit %d", f.Width, f.Bit)
		}
		if f.Byte < 0 || f.Byte+1 >= size {
			return fmt.Errorf("uint16be field at byte %d outside payload of %d bytes", f.Byte, size)
		}
	default:
		return fmt.Errorf("unknown layout %d", f.Layout)
	}
	return nil
}

// Mask returns the largest raw value the field can hold.
func (f BitField) Mask() uint16 {
	return uint16(1<<uint(f.Width) - 1)
}

// mask64 returns the payload bits covered by the field, byte 0 in the most
// significant position of the uint64.
func (f BitField) mask64() uint64 {
	switch f.Layout {
	case LayoutUint16BE:
		return uint64(0xFFFF) << uint(8*(6-f.Byte))
	default:
		return uint64(f.Mask()) << uint(f.Bit) << uint(8*(7-f.Byte))
	}
}

// startBit is the Motorola start bit of the field, i.e. the position of
// its most significant bit with bit 0 the LSB of byte 0.
func (f BitField) startBit() uint8 {
	if f.Layout == LayoutUint16BE {
		return uint8(8*f.Byte + 7)
	}
	return uint8(8*f.Byte + f.Bit + f.Width - 1)
}

// Extract returns the raw value of the field. The caller guarantees the
// payload is long enough; descriptors check that before any extraction.
func (f BitField) Extract(payload []byte) uint16 {
	var d can.Data
	copy(d[:], payload)
	return uint16(d.UnsignedBitsBigEndian(f.startBit(), uint8(f.Width)))
}

// Insert writes v into the field, leaving every other bit untouched.
// Bits of v above the field width are dropped.
func (f BitField) Insert(payload []byte, v uint16) {
	var d can.Data
	copy(d[:], payload)
	d.SetUnsignedBitsBigEndian(f.startBit(), uint8(f.Width), uint64(v&f.Mask()))
	copy(payload, d[:])
}

func (f BitField) String() string {
	if f.Layout == LayoutUint16BE {
		return fmt.Sprintf("D%d-D%d", f.Byte, f.Byte+1)
	}
	if f.Width == 1 {
		return fmt.Sprintf("D%d.%d", f.Byte, f.Bit)
	}
	return fmt.Sprintf("D%d.%d-%d", f.Byte, f.Bit+f.Width-1, f.Bit)
}

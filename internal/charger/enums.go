package charger

import (
	"fmt"
	"strings"
)

func unrecognized(bits uint8, width int) string {
	return fmt.Sprintf("Unrecognized(0b%0*b)", width, bits)
}

// RequestType selects the diagnostic message a Req frame asks for. The value
// is the low byte of the identifier of the answer.
type RequestType uint8

const (
	RequestInactiveFaults RequestType = 0x1C
	RequestActiveFaults   RequestType = 0x1D
	RequestSoftware       RequestType = 0x1E
	RequestSerialNumber   RequestType = 0x1F
)

var requestNames = map[RequestType]string{
	RequestInactiveFaults: "inactive_faults",
	RequestActiveFaults:   "active_faults",
	RequestSoftware:       "software",
	RequestSerialNumber:   "serial_number",
}

func (r RequestType) Known() bool {
	_, ok := requestNames[r]
	return ok
}

// ResponseID is the CAN identifier the charger answers on.
func (r RequestType) ResponseID() uint32 {
	return uint32(requestIDHigh)<<8 | uint32(r)
}

func (r RequestType) String() string {
	if name, ok := requestNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Unrecognized(0x%02X)", uint8(r))
}

func (r RequestType) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *RequestType) UnmarshalText(text []byte) error {
	v, err := ParseRequestType(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRequestType accepts the names returned by String plus the short forms
// "active", "inactive" and "serial".
func ParseRequestType(s string) (RequestType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inactive_faults", "inactive", "passive":
		return RequestInactiveFaults, nil
	case "active_faults", "active":
		return RequestActiveFaults, nil
	case "software", "sw":
		return RequestSoftware, nil
	case "serial_number", "serial", "sn":
		return RequestSerialNumber, nil
	}
	return 0, fmt.Errorf("unknown request type %q", s)
}

// FailureLevel is the two bit severity of a fault. The pattern 01 is not
// assigned.
type FailureLevel uint8

const (
	FailureWarning FailureLevel = 0b00
	FailureSoft    FailureLevel = 0b10
	FailureHard    FailureLevel = 0b11
)

func (l FailureLevel) Known() bool {
	return l == FailureWarning || l == FailureSoft || l == FailureHard
}

func (l FailureLevel) String() string {
	switch l {
	case FailureWarning:
		return "Warning"
	case FailureSoft:
		return "Soft"
	case FailureHard:
		return "Hard"
	}
	return unrecognized(uint8(l), 2)
}

func (l FailureLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// FrameType tells whether a fault frame is the only one of its list.
type FrameType uint8

const (
	FrameSingle FrameType = 0b01
	FrameMulti  FrameType = 0b10
)

func (t FrameType) Known() bool {
	return t == FrameSingle || t == FrameMulti
}

func (t FrameType) String() string {
	switch t {
	case FrameSingle:
		return "Single"
	case FrameMulti:
		return "Multi"
	}
	return unrecognized(uint8(t), 2)
}

func (t FrameType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Baudrate of the charger's CAN interface.
type Baudrate uint8

const (
	Baudrate500K Baudrate = iota
	Baudrate250K
	Baudrate125K
	Baudrate1M
)

func (b Baudrate) Known() bool {
	return b <= Baudrate1M
}

// BitsPerSecond returns 0 for unassigned patterns.
func (b Baudrate) BitsPerSecond() int {
	switch b {
	case Baudrate500K:
		return 500000
	case Baudrate250K:
		return 250000
	case Baudrate125K:
		return 125000
	case Baudrate1M:
		return 1000000
	}
	return 0
}

func (b Baudrate) String() string {
	switch b {
	case Baudrate500K:
		return "500 Kbit/s"
	case Baudrate250K:
		return "250 Kbit/s"
	case Baudrate125K:
		return "125 Kbit/s"
	case Baudrate1M:
		return "1 Mbit/s"
	}
	return unrecognized(uint8(b), 2)
}

func (b Baudrate) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// IDType is the identifier format the charger uses on the bus.
type IDType uint8

const (
	IDStandard IDType = iota // 11 bit
	IDExtended               // 29 bit
)

func (t IDType) Known() bool {
	return t <= IDExtended
}

func (t IDType) String() string {
	switch t {
	case IDStandard:
		return "Standard 11bit"
	case IDExtended:
		return "Extended 29bit"
	}
	return unrecognized(uint8(t), 1)
}

func (t IDType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// IacControl is the method limiting the AC input current.
type IacControl uint8

const (
	IacNotControlled IacControl = iota
	IacSAEJ1772
	IacEN61851
	IacID618
)

func (c IacControl) Known() bool {
	return c <= IacID618
}

func (c IacControl) String() string {
	switch c {
	case IacNotControlled:
		return "Not controlled"
	case IacSAEJ1772:
		return "SAE J1772"
	case IacEN61851:
		return "EN61851"
	case IacID618:
		return "ID618"
	}
	return unrecognized(uint8(c), 2)
}

func (c IacControl) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Range is the output voltage range.
type Range uint8

const (
	RangeR4 Range = iota
	RangeR3
	RangeR2
	RangeR1
)

func (r Range) Known() bool {
	return r <= RangeR1
}

func (r Range) String() string {
	switch r {
	case RangeR4:
		return "R4"
	case RangeR3:
		return "R3"
	case RangeR2:
		return "R2"
	case RangeR1:
		return "R1"
	}
	return unrecognized(uint8(r), 2)
}

func (r Range) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// EVCModel is the charger hardware variant.
type EVCModel uint8

const (
	ModelEVO11K EVCModel = iota // liquid cooled
	ModelEVO22K                 // air cooled
)

func (m EVCModel) Known() bool {
	return m <= ModelEVO22K
}

func (m EVCModel) String() string {
	switch m {
	case ModelEVO11K:
		return "EVO11K"
	case ModelEVO22K:
		return "EVO22K"
	}
	return unrecognized(uint8(m), 1)
}

func (m EVCModel) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// IDSetting is the charger address used when several chargers run in
// parallel. Zero means a single charger.
type IDSetting uint8

const IDSingleCharger IDSetting = 0

func (s IDSetting) Known() bool {
	return s <= 0x0F
}

func (s IDSetting) String() string {
	switch {
	case s == IDSingleCharger:
		return "Single"
	case s.Known():
		return fmt.Sprintf("ID%d", uint8(s))
	}
	return unrecognized(uint8(s), 4)
}

func (s IDSetting) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

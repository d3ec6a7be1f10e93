package charger

import (
	"fmt"
	"strings"

	"github.com/farouk15160/evocharger/internal/codec"
)

// Req, 0x61B, BMS -> charger. Four bytes: enable, 0x00, then the requested
// identifier big-endian.
var (
	reqEnable = codec.Signal{Name: "enable", Field: codec.Flag(0, 7)}
	reqIDHigh = codec.Signal{Name: "id_msb", Field: codec.Uint8(2)}
	reqCode   = codec.Signal{Name: "id_lsb", Field: codec.Uint8(3)}
	reqDesc   = codec.MustDescriptor(IDReq, "req", 4, reqEnable, reqIDHigh, reqCode)
)

// Req asks the charger for one diagnostic message.
type Req struct {
	Enable bool        `json:"enable"`
	Type   RequestType `json:"type"`
}

// NewReq returns an enabled request for t.
func NewReq(t RequestType) Req {
	return Req{Enable: true, Type: t}
}

func DecodeReq(payload []byte) (Req, error) {
	if err := reqDesc.Check(payload); err != nil {
		return Req{}, err
	}
	return Req{
		Enable: reqEnable.Bool(payload),
		Type:   RequestType(reqCode.Raw(payload)),
	}, nil
}

func (Req) CANID() uint32 { return IDReq }

func (r Req) Payload() ([]byte, error) {
	return reqDesc.Build().
		Bool(reqEnable, r.Enable).
		Raw(reqIDHigh, requestIDHigh).
		Raw(reqCode, uint16(r.Type)).
		Payload()
}

// Fault, 0x61D active and 0x61C passive. D1..D7 all 0xFF means no fault is
// stored.
var (
	faultFrameType   = codec.Signal{Name: "frame_type", Field: codec.Bits(0, 6, 2)}
	faultTotal       = codec.Signal{Name: "total_errors", Field: codec.Bits(0, 0, 6)}
	faultFrameNumber = codec.Signal{Name: "frame_number", Field: codec.Bits(1, 2, 6)}
	faultCode        = codec.Signal{Name: "fault_code", Field: codec.Uint8(2)}
	faultOccurrence  = codec.Signal{Name: "occurrence", Field: codec.Bits(3, 2, 6)}
	faultLevel       = codec.Signal{Name: "failure_level", Field: codec.Bits(3, 0, 2)}
	faultFirstTime   = codec.Signal{Name: "first_time", Unit: "h", Field: codec.Uint16BE(4)}
	faultLastTime    = codec.Signal{Name: "last_time", Unit: "h", Field: codec.Uint16BE(6)}

	faultSignals = []codec.Signal{
		faultFrameType, faultTotal, faultFrameNumber, faultCode,
		faultOccurrence, faultLevel, faultFirstTime, faultLastTime,
	}
	faultActiveDesc  = codec.MustDescriptor(IDFaultActive, "fault_active", 8, faultSignals...)
	faultPassiveDesc = codec.MustDescriptor(IDFaultPassive, "fault_passive", 8, faultSignals...)
)

// Fault is one entry of the active or passive fault list.
type Fault struct {
	Active  bool `json:"active"`
	NoFault bool `json:"no_fault"`

	FrameType    FrameType    `json:"frame_type"`
	TotalErrors  uint8        `json:"total_errors"`
	FrameNumber  uint8        `json:"frame_number"`
	Code         uint8        `json:"fault_code"`
	Occurrence   uint8        `json:"occurrence"`
	FailureLevel FailureLevel `json:"failure_level"`
	FirstTimeH   uint16       `json:"first_time_h"`
	LastTimeH    uint16       `json:"last_time_h"`
}

// DecodeFault decodes a fault frame. The no-fault frame is recognized
// before any field is read; in that case only Active and NoFault are set.
func DecodeFault(payload []byte, active bool) (Fault, error) {
	desc := faultPassiveDesc
	if active {
		desc = faultActiveDesc
	}
	if err := desc.Check(payload); err != nil {
		return Fault{}, err
	}
	if codec.IsNoData(payload) {
		return Fault{Active: active, NoFault: true}, nil
	}
	return Fault{
		Active:       active,
		FrameType:    FrameType(faultFrameType.Raw(payload)),
		TotalErrors:  uint8(faultTotal.Raw(payload)),
		FrameNumber:  uint8(faultFrameNumber.Raw(payload)),
		Code:         uint8(faultCode.Raw(payload)),
		Occurrence:   uint8(faultOccurrence.Raw(payload)),
		FailureLevel: FailureLevel(faultLevel.Raw(payload)),
		FirstTimeH:   faultFirstTime.Raw(payload),
		LastTimeH:    faultLastTime.Raw(payload),
	}, nil
}

func (f Fault) CANID() uint32 {
	if f.Active {
		return IDFaultActive
	}
	return IDFaultPassive
}

// Payload encodes the frame. Counters wider than six bits are truncated.
func (f Fault) Payload() ([]byte, error) {
	if f.NoFault {
		return codec.NoData(0x00), nil
	}
	desc := faultPassiveDesc
	if f.Active {
		desc = faultActiveDesc
	}
	return desc.Build().
		Raw(faultFrameType, uint16(f.FrameType)).
		Raw(faultTotal, uint16(f.TotalErrors)).
		Raw(faultFrameNumber, uint16(f.FrameNumber)).
		Raw(faultCode, uint16(f.Code)).
		Raw(faultOccurrence, uint16(f.Occurrence)).
		Raw(faultLevel, uint16(f.FailureLevel)).
		Raw(faultFirstTime, f.FirstTimeH).
		Raw(faultLastTime, f.LastTimeH).
		Payload()
}

// Name returns the vendor description of the fault code.
func (f Fault) Name() string {
	if f.NoFault {
		return "No Fault"
	}
	return FaultName(f.Code)
}

var faultNames = map[uint8]string{
	0xA0: "Bulk 1 Voltage",
	0xA1: "Bulk 2 Voltage",
	0xA2: "Bulk 3 Voltage",
	0xA3: "Bulk Error",
	0xA4: "CAN Registers",
	0xA5: "CAN Command",
	0xA6: "Cold Plate Temp LOW",
	0xA7: "Cold Plate Temp DERATING",
	0xA8: "Cold Plate Temp HIGH",
	0xA9: "Cold Plate Temp FAILED",
	0xAA: "Input Current MAX",
	0xAB: "HVIL Interlock Loop",
	0xAC: "Logic Temperature",
	0xAD: "Output Overvoltage",
}

// FaultName looks a fault code up in the vendor table.
func FaultName(code uint8) string {
	if name, ok := faultNames[code]; ok {
		return name
	}
	return "Unknown Fault"
}

// Software, 0x61E and SerialNumber, 0x61F: eight ASCII characters.
var (
	softwareDesc = codec.MustDescriptor(IDSoftware, "software", 8)
	serialDesc   = codec.MustDescriptor(IDSerialNumber, "serial_number", 8)
)

const textSize = 8

func decodeText(desc *codec.Descriptor, payload []byte) (string, error) {
	if err := desc.Check(payload); err != nil {
		return "", err
	}
	return string(payload[:textSize]), nil
}

func encodeText(desc *codec.Descriptor, s string) ([]byte, error) {
	if len(s) > textSize {
		return nil, fmt.Errorf("%s: %q longer than %d characters", desc.Name, s, textSize)
	}
	return desc.Build().Bytes(0, []byte(s)).Payload()
}

// Software is the charger firmware version, e.g. "SW3225A5".
type Software struct {
	Version string `json:"version"`
}

func DecodeSoftware(payload []byte) (Software, error) {
	v, err := decodeText(softwareDesc, payload)
	return Software{Version: v}, err
}

func (Software) CANID() uint32 { return IDSoftware }

func (s Software) Payload() ([]byte, error) {
	return encodeText(softwareDesc, s.Version)
}

func (s Software) String() string {
	return trimText(s.Version)
}

// SerialNumber is sent once, when requested at startup.
type SerialNumber struct {
	Serial string `json:"serial"`
}

func DecodeSerialNumber(payload []byte) (SerialNumber, error) {
	v, err := decodeText(serialDesc, payload)
	return SerialNumber{Serial: v}, err
}

func (SerialNumber) CANID() uint32 { return IDSerialNumber }

func (s SerialNumber) Payload() ([]byte, error) {
	return encodeText(serialDesc, s.Serial)
}

func (s SerialNumber) String() string {
	return trimText(s.Serial)
}

func trimText(s string) string {
	return strings.TrimRight(s, "\x00 ")
}

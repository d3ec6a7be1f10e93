package charger

import (
	"fmt"
	"sort"

	"github.com/farouk15160/evocharger/internal/canframe"
	"github.com/farouk15160/evocharger/internal/codec"
)

// Message is a decoded charger message.
type Message interface {
	CANID() uint32
	// Payload encodes the message. A *codec.ClampError comes with a valid
	// payload and only reports that a physical value was saturated.
	Payload() ([]byte, error)
}

// UnknownIDError is returned for identifiers outside the protocol table.
type UnknownIDError struct {
	ID uint32
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("unknown charger message id 0x%03X", e.ID)
}

type entry struct {
	desc   *codec.Descriptor
	decode func([]byte) (Message, error)
}

var registry = map[uint32]entry{
	IDCtl:          {ctlDesc, func(p []byte) (Message, error) { return DecodeCtl(p) }},
	IDStat:         {statDesc, func(p []byte) (Message, error) { return DecodeStat(p) }},
	IDAct1:         {act1Desc, func(p []byte) (Message, error) { return DecodeAct1(p) }},
	IDAct2:         {act2Desc, func(p []byte) (Message, error) { return DecodeAct2(p) }},
	IDTst1:         {tst1Desc, func(p []byte) (Message, error) { return DecodeTst1(p) }},
	IDReq:          {reqDesc, func(p []byte) (Message, error) { return DecodeReq(p) }},
	IDFaultActive:  {faultActiveDesc, func(p []byte) (Message, error) { return DecodeFault(p, true) }},
	IDFaultPassive: {faultPassiveDesc, func(p []byte) (Message, error) { return DecodeFault(p, false) }},
	IDSoftware:     {softwareDesc, func(p []byte) (Message, error) { return DecodeSoftware(p) }},
	IDSerialNumber: {serialDesc, func(p []byte) (Message, error) { return DecodeSerialNumber(p) }},
	IDAct3:         {act3Desc, func(p []byte) (Message, error) { return DecodeAct3(p) }},
	IDTemp:         {tempDesc, func(p []byte) (Message, error) { return DecodeTemp(p) }},
	IDAct4:         {act4Desc, func(p []byte) (Message, error) { return DecodeAct4(p) }},
	IDStst1:        {stst1Desc, func(p []byte) (Message, error) { return DecodeStst1(p) }},
	IDTst2:         {tst2Desc, func(p []byte) (Message, error) { return DecodeTst2(p) }},
}

// Decode dispatches payload to the decoder registered for id.
func Decode(id uint32, payload []byte) (Message, error) {
	e, ok := registry[id]
	if !ok {
		return nil, &UnknownIDError{ID: id}
	}
	return e.decode(payload)
}

// Encode builds the frame for m. Like Payload, a *codec.ClampError is
// returned together with a valid frame.
func Encode(m Message) (canframe.Frame, error) {
	payload, err := m.Payload()
	if err != nil && !codec.IsClamped(err) {
		return canframe.Frame{}, err
	}
	f, ferr := canframe.New(m.CANID(), payload)
	if ferr != nil {
		return canframe.Frame{}, ferr
	}
	return f, err
}

// Lookup returns the layout registered for id.
func Lookup(id uint32) (*codec.Descriptor, bool) {
	e, ok := registry[id]
	return e.desc, ok
}

// Name returns the short message name for id, or "" when id is unknown.
func Name(id uint32) string {
	if d, ok := Lookup(id); ok {
		return d.Name
	}
	return ""
}

// IDs lists every registered identifier in ascending order.
func IDs() []uint32 {
	ids := make([]uint32, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// FromCharger reports whether id is sent by the charger rather than the BMS.
func FromCharger(id uint32) bool {
	_, ok := registry[id]
	return ok && id != IDCtl && id != IDReq
}

package codec

import (
	"fmt"
)

// Signal is one named field of a message.
type Signal struct {
	Name  string
	Unit  string
	Field BitField
	Scale Scale
}

func (s Signal) scale() Scale {
	if s.Scale.Factor == 0 {
		return Identity
	}
	return s.Scale
}

// Raw returns the unscaled field value.
func (s Signal) Raw(payload []byte) uint16 {
	return s.Field.Extract(payload)
}

// Bool reports whether any bit of the field is set.
func (s Signal) Bool(payload []byte) bool {
	return s.Field.Extract(payload) != 0
}

// Physical returns the scaled field value.
func (s Signal) Physical(payload []byte) float64 {
	return s.scale().Decode(s.Field.Extract(payload))
}

// PutRaw writes an unscaled value.
func (s Signal) PutRaw(payload []byte, v uint16) {
	s.Field.Insert(payload, v)
}

// PutBool writes 1 or 0.
func (s Signal) PutBool(payload []byte, v bool) {
	var raw uint16
	if v {
		raw = 1
	}
	s.Field.Insert(payload, raw)
}

// PutPhysical clamps, scales and writes v, reporting whether it was clamped.
func (s Signal) PutPhysical(payload []byte, v float64) bool {
	raw, clamped := s.scale().Encode(v, s.Field.Width)
	s.Field.Insert(payload, raw)
	return clamped
}

// Descriptor is the static layout of one CAN message.
type Descriptor struct {
	ID      uint32
	Name    string
	Length  int
	Signals []Signal

	byName map[string]int
}

// NewDescriptor builds a descriptor and checks that every signal fits the
// payload and that no two signals share a bit.
func NewDescriptor(id uint32, name string, length int, signals ...Signal) (*Descriptor, error) {
	if length < 1 || length > 8 {
		return nil, fmt.Errorf("%s: length %d outside 1..8", name, length)
	}
	d := &Descriptor{
		ID:      id,
		Name:    name,
		Length:  length,
		Signals: signals,
		byName:  make(map[string]int, len(signals)),
	}
	var used uint64
	for i, s := range signals {
		if s.Name == "" {
			return nil, fmt.Errorf("%s: signal %d has no name", name, i)
		}
		if _, dup := d.byName[s.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate signal %q", name, s.Name)
		}
		if err := s.Field.Validate(length); err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, s.Name, err)
		}
		m := s.Field.mask64()
		if used&m != 0 {
			return nil, fmt.Errorf("%s.%s: %s overlaps another signal", name, s.Name, s.Field)
		}
		used |= m
		d.byName[s.Name] = i
	}
	return d, nil
}

// MustDescriptor is NewDescriptor for package-level tables; it panics on a
// layout error.
func MustDescriptor(id uint32, name string, length int, signals ...Signal) *Descriptor {
	d, err := NewDescriptor(id, name, length, signals...)
	if err != nil {
		panic(err)
	}
	return d
}

// Check returns a LengthError when payload is shorter than the message.
func (d *Descriptor) Check(payload []byte) error {
	if len(payload) < d.Length {
		return &LengthError{Message: d.Name, Want: d.Length, Got: len(payload)}
	}
	return nil
}

// Signal looks a signal up by name.
func (d *Descriptor) Signal(name string) (Signal, bool) {
	i, ok := d.byName[name]
	if !ok {
		return Signal{}, false
	}
	return d.Signals[i], true
}

// Values decodes every signal into a name to physical value map.
func (d *Descriptor) Values(payload []byte) (map[string]float64, error) {
	if err := d.Check(payload); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(d.Signals))
	for _, s := range d.Signals {
		out[s.Name] = s.Physical(payload)
	}
	return out, nil
}

// Build starts a fresh zeroed payload for the message.
func (d *Descriptor) Build() *Builder {
	return &Builder{d: d, buf: make([]byte, d.Length)}
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s(0x%03X)", d.Name, d.ID)
}

// Builder fills a payload signal by signal and remembers which physical
// values had to be clamped.
type Builder struct {
	d       *Descriptor
	buf     []byte
	clamped []string
}

func (b *Builder) Bool(s Signal, v bool) *Builder {
	s.PutBool(b.buf, v)
	return b
}

func (b *Builder) Raw(s Signal, v uint16) *Builder {
	s.PutRaw(b.buf, v)
	return b
}

func (b *Builder) Physical(s Signal, v float64) *Builder {
	if s.PutPhysical(b.buf, v) {
		b.clamped = append(b.clamped, s.Name)
	}
	return b
}

// Bytes copies src into the payload starting at offset, truncating to the
// message length.
func (b *Builder) Bytes(offset int, src []byte) *Builder {
	if offset < len(b.buf) {
		copy(b.buf[offset:], src)
	}
	return b
}

// Payload returns the encoded bytes. A non-nil error is always a
// *ClampError; the payload is valid either way.
func (b *Builder) Payload() ([]byte, error) {
	if len(b.clamped) > 0 {
		return b.buf, &ClampError{Message: b.d.Name, Signals: b.clamped}
	}
	return b.buf, nil
}

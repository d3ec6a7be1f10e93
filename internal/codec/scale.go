package codec

import "math"

// Scale maps a raw field value to a physical value: raw*Factor + Offset.
// Min and Max bound the physical values an encoder will transmit.
type Scale struct {
	Factor float64
	Offset float64
	Min    float64
	Max    float64
}

// Identity passes raw values through unchanged.
var Identity = Scale{Factor: 1, Min: 0, Max: math.MaxUint16}

// Decode converts a raw value to its physical value.
func (s Scale) Decode(raw uint16) float64 {
	return float64(raw)*s.Factor + s.Offset
}

// Clamp saturates v to [Min, Max]. NaN saturates to Min.
func (s Scale) Clamp(v float64) (float64, bool) {
	switch {
	case math.IsNaN(v):
		return s.Min, true
	case v < s.Min:
		return s.Min, true
	case v > s.Max:
		return s.Max, true
	}
	return v, false
}

// Encode converts a physical value to a raw value of the given bit width.
// The value is clamped to [Min, Max] before scaling. A documented range
// wider than the field can carry saturates at the largest raw value instead
// of wrapping. clamped reports whether either limit was applied.
func (s Scale) Encode(v float64, width int) (raw uint16, clamped bool) {
	v, clamped = s.Clamp(v)
	r := math.Round((v - s.Offset) / s.Factor)
	limit := float64(uint32(1)<<uint(width) - 1)
	if r < 0 {
		r, clamped = 0, true
	}
	if r > limit {
		r, clamped = limit, true
	}
	return uint16(r), clamped
}

// Representable returns the largest physical value a field of width bits
// can carry, which may be below Max.
func (s Scale) Representable(width int) float64 {
	top := s.Decode(uint16(uint32(1)<<uint(width) - 1))
	return math.Min(top, s.Max)
}

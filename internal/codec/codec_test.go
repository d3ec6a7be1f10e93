package codec

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBitField(t *testing.T) {
	Convey("Intra-byte fields", t, func() {
		payload := []byte{0xB5, 0x00} // 1011 0101

		So(Flag(0, 7).Extract(payload), ShouldEqual, 1)
		So(Flag(0, 6).Extract(payload), ShouldEqual, 0)
		So(Bits(0, 6, 2).Extract(payload), ShouldEqual, 0x2)
		So(Bits(0, 2, 4).Extract(payload), ShouldEqual, 0xD)
		So(Uint8(0).Extract(payload), ShouldEqual, 0xB5)

		Convey("Insert leaves neighbouring bits alone", func() {
			Bits(0, 2, 4).Insert(payload, 0x0)
			So(payload[0], ShouldEqual, 0x81)

			Bits(0, 2, 4).Insert(payload, 0xA)
			So(payload[0], ShouldEqual, 0xA9)
			So(payload[1], ShouldEqual, 0x00)
		})

		Convey("Insert drops bits above the width", func() {
			Bits(1, 0, 2).Insert(payload, 0xFF)
			So(payload[1], ShouldEqual, 0x03)
		})
	})

	Convey("Big-endian 16 bit fields", t, func() {
		payload := []byte{0x00, 0xA0, 0x30, 0xF7}

		So(Uint16BE(0).Extract(payload), ShouldEqual, 0x00A0)
		So(Uint16BE(2).Extract(payload), ShouldEqual, 0x30F7)

		Uint16BE(1).Insert(payload, 0x1234)
		So(payload, ShouldResemble, []byte{0x00, 0x12, 0x34, 0xF7})
	})

	Convey("Validation catches fields past the payload", t, func() {
		So(Flag(7, 7).Validate(8), ShouldBeNil)
		So(Uint16BE(6).Validate(8), ShouldBeNil)
		So(Uint16BE(7).Validate(8), ShouldNotBeNil)
		So(Flag(8, 0).Validate(8), ShouldNotBeNil)
		So(Bits(0, 6, 3).Validate(8), ShouldNotBeNil)
		So(Bits(0, 0, 0).Validate(8), ShouldNotBeNil)
		So(Uint16BE(2).Validate(4), ShouldBeNil)
		So(Uint16BE(3).Validate(4), ShouldNotBeNil)
	})
}

func TestScale(t *testing.T) {
	current := Scale{Factor: 0.1, Min: 0, Max: 500}
	temp := Scale{Factor: 0.005188, Offset: -40, Min: -40, Max: 300}

	Convey("Decode applies factor and offset", t, func() {
		So(current.Decode(160), ShouldAlmostEqual, 16.0, 1e-9)
		So(temp.Decode(0x30F7), ShouldAlmostEqual, 25.03, 0.01)
		So(temp.Decode(0), ShouldEqual, -40)
	})

	Convey("Encode rounds instead of truncating", t, func() {
		raw, clamped := current.Encode(16, 16)
		So(raw, ShouldEqual, 160)
		So(clamped, ShouldBeFalse)

		raw, _ = current.Encode(0.29, 16)
		So(raw, ShouldEqual, 3)
	})

	Convey("Encode clamps the physical value before scaling", t, func() {
		over, clamped := current.Encode(600, 16)
		top, _ := current.Encode(500, 16)
		So(clamped, ShouldBeTrue)
		So(over, ShouldEqual, top)

		under, clamped := current.Encode(-3, 16)
		So(clamped, ShouldBeTrue)
		So(under, ShouldEqual, 0)

		nan, clamped := current.Encode(math.NaN(), 16)
		So(clamped, ShouldBeTrue)
		So(nan, ShouldEqual, 0)
	})

	Convey("A range wider than the field saturates at the field maximum", t, func() {
		wide := Scale{Factor: 0.1, Min: 0, Max: 10000}
		raw, clamped := wide.Encode(10000, 16)
		So(raw, ShouldEqual, 0xFFFF)
		So(clamped, ShouldBeTrue)
		So(wide.Representable(16), ShouldAlmostEqual, 6553.5, 1e-9)

		raw, clamped = wide.Encode(6553.5, 16)
		So(raw, ShouldEqual, 0xFFFF)
		So(clamped, ShouldBeFalse)
	})
}

func TestDescriptor(t *testing.T) {
	a := Signal{Name: "a", Field: Uint16BE(0), Scale: Scale{Factor: 0.1, Max: 100}}
	b := Signal{Name: "b", Field: Flag(2, 7)}
	c := Signal{Name: "c", Field: Bits(2, 0, 4)}

	Convey("Valid layouts are accepted", t, func() {
		d, err := NewDescriptor(0x100, "test", 4, a, b, c)
		So(err, ShouldBeNil)
		s, ok := d.Signal("b")
		So(ok, ShouldBeTrue)
		So(s.Field, ShouldResemble, Flag(2, 7))

		Convey("Values decodes every signal", func() {
			v, err := d.Values([]byte{0x01, 0xF4, 0x85, 0x00})
			So(err, ShouldBeNil)
			So(v["a"], ShouldAlmostEqual, 50.0, 1e-9)
			So(v["b"], ShouldEqual, 1)
			So(v["c"], ShouldEqual, 5)
		})

		Convey("Short payloads are structural errors", func() {
			_, err := d.Values([]byte{0x01, 0x02})
			So(errors.Is(err, ErrShortBuffer), ShouldBeTrue)
			var le *LengthError
			So(errors.As(err, &le), ShouldBeTrue)
			So(le.Want, ShouldEqual, 4)
			So(le.Got, ShouldEqual, 2)
		})

		Convey("Builder reports clamped signals with a valid payload", func() {
			payload, err := d.Build().Physical(a, 250).Bool(b, true).Raw(c, 3).Payload()
			So(payload, ShouldResemble, []byte{0x03, 0xE8, 0x83, 0x00})
			So(IsClamped(err), ShouldBeTrue)
			var ce *ClampError
			So(errors.As(err, &ce), ShouldBeTrue)
			So(ce.Signals, ShouldResemble, []string{"a"})
		})
	})

	Convey("Overlapping signals are rejected", t, func() {
		_, err := NewDescriptor(0x100, "test", 4, a, Signal{Name: "x", Field: Flag(1, 0)})
		So(err, ShouldNotBeNil)

		_, err = NewDescriptor(0x100, "test", 4, c, Signal{Name: "y", Field: Bits(2, 3, 2)})
		So(err, ShouldNotBeNil)
	})

	Convey("Duplicate names and out-of-range fields are rejected", t, func() {
		_, err := NewDescriptor(0x100, "test", 4, a, a)
		So(err, ShouldNotBeNil)

		_, err = NewDescriptor(0x100, "test", 2, b)
		So(err, ShouldNotBeNil)

		So(func() { MustDescriptor(0x100, "test", 9) }, ShouldPanic)
	})
}

func TestNoData(t *testing.T) {
	Convey("The no-data frame ignores D0", t, func() {
		So(IsNoData(NoData(0x00)), ShouldBeTrue)
		So(IsNoData(NoData(0x41)), ShouldBeTrue)
		So(IsNoData([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE}), ShouldBeFalse)
		So(IsNoData([]byte{0x00, 0xFF, 0xFF}), ShouldBeFalse)
	})
}

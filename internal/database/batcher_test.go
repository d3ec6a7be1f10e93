package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/farouk15160/evocharger/internal/charger"
	. "github.com/smartystreets/goconvey/convey"
)

type sink struct {
	mu      sync.Mutex
	batches [][]Sample
	err     error
}

func (s *sink) flush(_ context.Context, batch []Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Sample, len(batch))
	copy(cp, batch)
	s.batches = append(s.batches, cp)
	return s.err
}

func (s *sink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func TestNewSample(t *testing.T) {
	Convey("Samples carry the physical values of a frame", t, func() {
		at := time.Unix(1700000000, 0)
		s, err := NewSample(charger.IDAct1, []byte{0x00, 0x64, 0x20, 0x00, 0x0F, 0xA0, 0x00, 0xC8}, at)
		So(err, ShouldBeNil)
		So(s.Message, ShouldEqual, "act1")
		So(s.CANID(), ShouldEqual, "0x611")
		So(s.Values["iac"], ShouldAlmostEqual, 10.0, 1e-9)
		So(s.Values["vout"], ShouldAlmostEqual, 400.0, 1e-9)
		So(s.Values["iout"], ShouldAlmostEqual, 20.0, 1e-9)
		So(s.Time, ShouldEqual, at)

		_, err = NewSample(0x123, make([]byte, 8), at)
		var unknown *charger.UnknownIDError
		So(errors.As(err, &unknown), ShouldBeTrue)

		_, err = NewSample(charger.IDAct1, []byte{1, 2}, at)
		So(err, ShouldNotBeNil)
	})
}

func TestBatcher(t *testing.T) {
	Convey("Given a started batcher", t, func() {
		out := &sink{}
		b := NewBatcher("test", 3, 20*time.Millisecond, out.flush)
		b.Start()

		Convey("every queued sample reaches the sink", func() {
			for i := 0; i < 3; i++ {
				b.Write(Sample{ID: uint32(i)})
			}
			So(b.Close(), ShouldBeNil)
			So(out.total(), ShouldEqual, 3)
		})

		Convey("a partial batch waits for the ticker", func() {
			b.Write(Sample{ID: 1})
			time.Sleep(100 * time.Millisecond)
			So(out.total(), ShouldEqual, 1)
			So(b.Close(), ShouldBeNil)
		})

		Convey("close flushes what is queued", func() {
			b.Write(Sample{ID: 1})
			b.Write(Sample{ID: 2})
			So(b.Close(), ShouldBeNil)
			So(out.total(), ShouldEqual, 2)
		})
	})

	Convey("A batcher that was never started drops on overflow", t, func() {
		out := &sink{}
		b := NewBatcher("idle", 1, time.Second, out.flush)
		for i := 0; i < 5; i++ {
			b.Write(Sample{})
		}
		So(b.Dropped(), ShouldEqual, 3)
		So(b.Close(), ShouldBeNil)
		So(out.total(), ShouldEqual, 0)
	})

	Convey("Flush errors are counted", t, func() {
		out := &sink{err: errors.New("down")}
		b := NewBatcher("broken", 2, time.Second, out.flush)
		b.Start()
		b.Write(Sample{})
		b.Write(Sample{})
		So(b.Close(), ShouldBeNil)
		So(b.Failed(), ShouldEqual, 2)
	})
}

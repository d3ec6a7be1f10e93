package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/brutella/can"
	"github.com/farouk15160/evocharger/internal/canframe"
	"github.com/farouk15160/evocharger/internal/charger"
	"github.com/farouk15160/evocharger/internal/config"
	"github.com/farouk15160/evocharger/internal/database"
	"github.com/farouk15160/evocharger/internal/simulator"
	"github.com/rs/zerolog"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeBus struct {
	mu     sync.Mutex
	frames []canframe.Frame
}

func (f *fakeBus) Publish(fr canframe.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeBus) withID(id uint32) []canframe.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []canframe.Frame
	for _, fr := range f.frames {
		if fr.ID == id {
			out = append(out, fr)
		}
	}
	return out
}

type message struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeMQTT struct {
	mu   sync.Mutex
	msgs []message
}

func (f *fakeMQTT) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message{topic, payload, false})
	return nil
}

func (f *fakeMQTT) PublishRetained(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, message{topic, payload, true})
	return nil
}

func (f *fakeMQTT) on(topic string) []message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []message
	for _, m := range f.msgs {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

type fakeSink struct {
	mu      sync.Mutex
	started bool
	closed  bool
	samples []database.Sample
}

func (s *fakeSink) Start() { s.mu.Lock(); s.started = true; s.mu.Unlock() }
func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
func (s *fakeSink) Write(sm database.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, sm)
}

func frameOf(m charger.Message) canframe.Frame {
	f, err := charger.Encode(m)
	if err != nil {
		panic(err)
	}
	return f
}

func decodeJSON(b []byte) map[string]any {
	var out map[string]any
	So(json.Unmarshal(b, &out), ShouldBeNil)
	return out
}

func newTestBridge(mutate func(*config.Config)) (*Bridge, *fakeBus, *fakeMQTT, *fakeSink) {
	cfg := config.Default()
	cfg.Bridge.ControlPeriod = config.Duration(20 * time.Millisecond)
	if mutate != nil {
		mutate(&cfg)
	}
	bus, pub, sink := &fakeBus{}, &fakeMQTT{}, &fakeSink{}
	b := New(cfg, bus, pub, sink)
	b.now = func() time.Time { return time.Unix(1700000000, 0) }
	return b, bus, pub, sink
}

func TestCanToMqtt(t *testing.T) {
	Convey("Given a bidirectional bridge", t, func() {
		b, _, pub, sink := newTestBridge(nil)
		act1 := frameOf(charger.Act1{IacA: 16, TempC: 35, VoutV: 400, IoutA: 20})

		Convey("telemetry is published and recorded", func() {
			b.HandleFrame(act1)
			msgs := pub.on("evo/act1")
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].retained, ShouldBeFalse)
			body := decodeJSON(msgs[0].payload)
			So(body["vout_v"], ShouldAlmostEqual, 400.0, 0.05)
			So(body["unixtime"], ShouldEqual, float64(time.Unix(1700000000, 0).UnixNano()))

			So(len(sink.samples), ShouldEqual, 1)
			So(sink.samples[0].Message, ShouldEqual, "act1")
			So(b.Stats()["can_rx"], ShouldEqual, 1)
		})

		Convey("repeated frames are published once", func() {
			b.HandleFrame(act1)
			b.HandleFrame(act1)
			So(len(pub.on("evo/act1")), ShouldEqual, 1)
			So(len(sink.samples), ShouldEqual, 2)

			Convey("unless publish_all is set", func() {
				b.SetPublishAll(true)
				b.HandleFrame(act1)
				So(len(pub.on("evo/act1")), ShouldEqual, 2)
			})
		})

		Convey("identity frames are retained and trimmed", func() {
			b.HandleFrame(canframe.Frame{ID: charger.IDSoftware, Length: 8, Data: [8]byte{'S', 'W', '1', '2', 0, 0, 0, 0}})
			msgs := pub.on("evo/software")
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].retained, ShouldBeTrue)
			So(decodeJSON(msgs[0].payload)["version"], ShouldEqual, "SW12")
			So(sink.samples, ShouldBeEmpty)
		})

		Convey("fault lists are published once complete", func() {
			list := []charger.Fault{
				{Code: 0xA1, FailureLevel: charger.FailureSoft, Occurrence: 1},
				{Code: 0xAB, FailureLevel: charger.FailureHard, Occurrence: 3},
			}
			frames := simulator.FaultFrames(list, true)
			b.HandleFrame(frameOf(frames[0]))
			So(pub.on("evo/faults/active"), ShouldBeEmpty)
			b.HandleFrame(frameOf(frames[1]))

			msgs := pub.on("evo/faults/active")
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].retained, ShouldBeTrue)
			body := decodeJSON(msgs[0].payload)
			So(body["active"], ShouldBeTrue)
			So(len(body["entries"].([]any)), ShouldEqual, 2)
			So(sink.samples, ShouldBeEmpty)

			last, ok := b.Faults().Last(true)
			So(ok, ShouldBeTrue)
			So(last.HasHard(), ShouldBeTrue)
		})

		Convey("a fault request drops a half received list", func() {
			list := []charger.Fault{
				{Code: 0xA1, FailureLevel: charger.FailureSoft, Occurrence: 1},
				{Code: 0xAB, FailureLevel: charger.FailureHard, Occurrence: 3},
			}
			frames := simulator.FaultFrames(list, true)
			b.HandleFrame(frameOf(frames[0]))
			So(b.Faults().Pending(true), ShouldEqual, 1)

			So(b.SendRequest(charger.RequestActiveFaults), ShouldBeNil)
			So(b.Faults().Pending(true), ShouldEqual, 0)

			b.HandleFrame(frameOf(frames[1]))
			So(pub.on("evo/faults/active"), ShouldBeEmpty)
		})

		Convey("the empty passive list is published too", func() {
			b.HandleFrame(frameOf(simulator.FaultFrames(nil, false)[0]))
			msgs := pub.on("evo/faults/inactive")
			So(len(msgs), ShouldEqual, 1)
			So(decodeJSON(msgs[0].payload)["active"], ShouldBeFalse)
		})

		Convey("short frames are counted as decode errors", func() {
			b.HandleFrame(canframe.Frame{ID: charger.IDAct1, Length: 2})
			So(b.Stats()["decode_errors"], ShouldEqual, 1)
			So(pub.msgs, ShouldBeEmpty)
		})

		Convey("unknown identifiers are ignored", func() {
			b.HandleFrame(canframe.Frame{ID: 0x100, Length: 8})
			So(b.Stats()["decode_errors"], ShouldEqual, 0)
			So(pub.msgs, ShouldBeEmpty)
		})

		Convey("mqtt2can mode publishes nothing but still records", func() {
			So(b.SetDirection(config.MqttToCan), ShouldBeNil)
			b.HandleFrame(act1)
			So(pub.msgs, ShouldBeEmpty)
			So(len(sink.samples), ShouldEqual, 1)
		})
	})
}

func TestMqttToCan(t *testing.T) {
	Convey("Given a bidirectional bridge", t, func() {
		b, bus, pub, _ := newTestBridge(nil)

		Convey("a control message is sent at once and stored", func() {
			b.HandleControl("evo/ctl/set", []byte(`{"can_enable":true,"iac_max_a":16,"vout_max_v":400,"iout_max_a":20}`))
			frames := bus.withID(charger.IDCtl)
			So(len(frames), ShouldEqual, 1)
			So(frames[0].Payload(), ShouldResemble, []byte{0x80, 0x00, 0xA0, 0x0F, 0xA0, 0x00, 0xC8, 0x00})

			ctl := b.Control()
			So(ctl.CanEnable, ShouldBeTrue)
			So(ctl.VoutMaxV, ShouldAlmostEqual, 400.0, 0.05)
			So(len(pub.on("evo/ctl/state")), ShouldEqual, 1)

			Convey("later messages only change the fields they name", func() {
				b.HandleControl("evo/ctl/set", []byte(`{"iout_max_a":5}`))
				ctl := b.Control()
				So(ctl.CanEnable, ShouldBeTrue)
				So(ctl.VoutMaxV, ShouldAlmostEqual, 400.0, 0.05)
				So(ctl.IoutMaxA, ShouldAlmostEqual, 5.0, 0.05)
			})
		})

		Convey("limits beyond the hardware range are clamped", func() {
			b.HandleControl("evo/ctl/set", []byte(`{"iac_max_a":80}`))
			So(b.Control().IacMaxA, ShouldAlmostEqual, 50.0, 0.05)
			So(len(bus.withID(charger.IDCtl)), ShouldEqual, 1)
		})

		Convey("malformed control messages are rejected", func() {
			b.HandleControl("evo/ctl/set", []byte(`{"iac_max":16}`))
			b.HandleControl("evo/ctl/set", []byte(`nope`))
			So(bus.frames, ShouldBeEmpty)
			So(b.Control(), ShouldResemble, charger.Ctl{})
		})

		Convey("requests become Req frames", func() {
			b.HandleRequest("evo/request", []byte(`{"type":"software"}`))
			b.HandleRequest("evo/request", []byte(`serial`))
			b.HandleRequest("evo/request", []byte(`{"type":"nonsense"}`))
			frames := bus.withID(charger.IDReq)
			So(len(frames), ShouldEqual, 2)
			So(frames[0].Payload(), ShouldResemble, []byte{0x80, 0x00, 0x06, 0x1E})
			So(frames[1].Payload()[3], ShouldEqual, 0x1F)
		})

		Convey("can2mqtt mode sends nothing", func() {
			So(b.SetDirection(config.CanToMqtt), ShouldBeNil)
			b.HandleControl("evo/ctl/set", []byte(`{"can_enable":true}`))
			b.HandleRequest("evo/request", []byte(`software`))
			So(bus.frames, ShouldBeEmpty)
		})
	})
}

func TestHandleRun(t *testing.T) {
	Convey("Runtime settings arrive as JSON", t, func() {
		defer zerolog.SetGlobalLevel(zerolog.InfoLevel)
		b, _, _, _ := newTestBridge(nil)

		b.HandleRun("evo/bridge/run", []byte(`{"direction":1,"control_period":"250ms","debug":true,"publish_all":true}`))
		So(b.Direction(), ShouldEqual, config.CanToMqtt)
		So(b.ControlPeriod(), ShouldEqual, 250*time.Millisecond)
		So(b.Debug(), ShouldBeTrue)
		So(zerolog.GlobalLevel(), ShouldEqual, zerolog.DebugLevel)

		Convey("invalid values leave the setting alone", func() {
			b.HandleRun("evo/bridge/run", []byte(`{"direction":7,"debug":false}`))
			So(b.Direction(), ShouldEqual, config.CanToMqtt)
			So(b.Debug(), ShouldBeFalse)

			b.HandleRun("evo/bridge/run", []byte(`{"control_period":"soon"}`))
			So(b.ControlPeriod(), ShouldEqual, 250*time.Millisecond)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Run requests the identity and keeps the control frame alive", t, func() {
		b, bus, _, sink := newTestBridge(nil)
		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()

		So(b.Run(ctx), ShouldBeNil)

		reqs := bus.withID(charger.IDReq)
		So(len(reqs), ShouldEqual, 2)
		So(reqs[0].Payload()[3], ShouldEqual, 0x1F)
		So(reqs[1].Payload()[3], ShouldEqual, 0x1E)
		So(len(bus.withID(charger.IDCtl)), ShouldBeGreaterThanOrEqualTo, 3)
		So(sink.started, ShouldBeTrue)
		So(sink.closed, ShouldBeTrue)
	})

	Convey("A can2mqtt bridge stays silent", t, func() {
		b, bus, _, _ := newTestBridge(func(c *config.Config) { c.Bridge.Direction = config.CanToMqtt })
		ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
		defer cancel()

		So(b.Run(ctx), ShouldBeNil)
		So(bus.frames, ShouldBeEmpty)
	})
}

func TestCANBus(t *testing.T) {
	Convey("The bus adapter filters by identifier", t, func() {
		b := newCANBus("vcan0", nil)
		var got []uint32
		b.OnFrame(func(f canframe.Frame) { got = append(got, f.ID) })

		b.handleCANFrame(can.Frame{ID: 0x611, Length: 8})
		So(got, ShouldResemble, []uint32{0x611})

		b.Subscribe(SubscribedIDs()...)
		b.handleCANFrame(can.Frame{ID: 0x618, Length: 8})
		b.handleCANFrame(can.Frame{ID: 0x610, Length: 8})
		So(got, ShouldResemble, []uint32{0x611, 0x610})
		So(b.Subscribed(charger.IDTst2), ShouldBeTrue)
		So(b.Subscribed(charger.IDReq), ShouldBeFalse)

		So(b.Publish(canframe.Frame{ID: 0x618}), ShouldEqual, ErrBusNotInitialized)
		So(b.Run(context.Background()), ShouldEqual, ErrBusNotInitialized)
	})
}

func TestConvert(t *testing.T) {
	Convey("Topics are joined without doubled slashes", t, func() {
		So(JoinTopic("evo/", "/ctl/set"), ShouldEqual, "evo/ctl/set")
		So(JoinTopic("", "request"), ShouldEqual, "request")
		So(MessageTopic("garage/evo", charger.IDTst2), ShouldEqual, "garage/evo/tst2")
		So(MessageTopic("evo", 0x100), ShouldEqual, "evo/0x100")
		So(FaultTopic("evo", false), ShouldEqual, "evo/faults/inactive")
	})

	Convey("Requests accept objects and bare names", t, func() {
		r, err := ParseRequest([]byte(`{"type":"active_faults"}`))
		So(err, ShouldBeNil)
		So(r, ShouldEqual, charger.RequestActiveFaults)

		r, err = ParseRequest([]byte(` "inactive" `))
		So(err, ShouldBeNil)
		So(r, ShouldEqual, charger.RequestInactiveFaults)

		_, err = ParseRequest([]byte(`{}`))
		So(err, ShouldNotBeNil)
	})

	Convey("Control frames report clamped signals", t, func() {
		wire, payload, clamped, err := ControlFrame(charger.Ctl{IoutMaxA: 2000})
		So(err, ShouldBeNil)
		So(len(payload), ShouldEqual, 8)
		So(clamped, ShouldResemble, []string{"iout_max"})
		So(wire.IoutMaxA, ShouldAlmostEqual, 1500.0, 0.05)

		wire, _, clamped, err = ControlFrame(charger.Ctl{IoutMaxA: 200})
		So(err, ShouldBeNil)
		So(clamped, ShouldBeEmpty)
		So(wire.IoutMaxA, ShouldAlmostEqual, 200.0, 0.05)
	})
}

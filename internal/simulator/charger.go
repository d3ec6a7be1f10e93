// Package simulator models an EVO charger on the bus: it follows the BMS
// control frame, sends the periodic telemetry and answers diagnostic
// requests.
package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/farouk15160/evocharger/internal/canframe"
	"github.com/farouk15160/evocharger/internal/charger"
	"github.com/farouk15160/evocharger/internal/codec"
)

const (
	FastPeriod = 100 * time.Millisecond
	SlowPeriod = time.Second

	// ControlTimeout is how long the charger keeps power up without a Ctl
	// frame before it raises Rx618Fail.
	ControlTimeout = 600 * time.Millisecond

	ambientC = 25.0
	mainsV   = 230.0
)

// Config is the fixed identity of a simulated charger.
type Config struct {
	Software       string
	Serial         string
	Setup          charger.Tst2
	ActiveFaults   []charger.Fault
	InactiveFaults []charger.Fault
	Hours          uint16
}

// DefaultConfig is an EVO22K on 500 Kbit/s with the factory password.
func DefaultConfig() Config {
	return Config{
		Software: "SW3225A5",
		Serial:   "EV220001",
		Setup: charger.Tst2{
			Baudrate:   charger.Baudrate500K,
			IDType:     charger.IDStandard,
			IacControl: charger.IacID618,
			Range:      charger.RangeR4,
			ThreePhase: true,
			EVCModel:   charger.ModelEVO22K,
			AirCooler:  true,
			IacmMaxA:   32,
			VoutMaxV:   450,
			IoutMaxA:   50,
			Password:   charger.FactoryPassword,
		},
		InactiveFaults: []charger.Fault{
			{Code: 0xA7, FailureLevel: charger.FailureWarning, Occurrence: 3, FirstTimeH: 12, LastTimeH: 80},
		},
		Hours: 120,
	}
}

// Charger is the simulated device. All methods are safe for concurrent use.
type Charger struct {
	mu     sync.Mutex
	cfg    Config
	rng    *rand.Rand
	logger zerolog.Logger

	ctl     charger.Ctl
	lastCtl time.Time
	act1    charger.Act1
	tempC   float64
	started time.Time
}

// New returns a charger whose measurement noise is drawn from rng.
func New(cfg Config, rng *rand.Rand) *Charger {
	return &Charger{
		cfg:    cfg,
		rng:    rng,
		logger: log.With().Str("component", "simulator").Logger(),
		tempC:  ambientC,
	}
}

// Startup returns the frames sent once at power-on.
func (c *Charger) Startup(now time.Time) []canframe.Frame {
	c.mu.Lock()
	c.started = now
	c.mu.Unlock()
	return c.frames(c.cfg.Setup)
}

// HandleFrame processes a frame from the BMS and returns the answers.
func (c *Charger) HandleFrame(f canframe.Frame, now time.Time) []canframe.Frame {
	switch f.Identifier() {
	case charger.IDCtl:
		ctl, err := charger.DecodeCtl(f.Payload())
		if err != nil {
			c.logger.Warn().Err(err).Msg("Simulator: dropping control frame")
			return nil
		}
		c.mu.Lock()
		if ctl.CanEnable != c.ctl.CanEnable {
			c.logger.Info().Bool("enable", ctl.CanEnable).Msg("Simulator: charger enable changed")
		}
		c.ctl = ctl
		c.lastCtl = now
		c.mu.Unlock()
		return nil

	case charger.IDReq:
		req, err := charger.DecodeReq(f.Payload())
		if err != nil || !req.Enable {
			return nil
		}
		c.logger.Debug().Stringer("type", req.Type).Msg("Simulator: diagnostic request")
		return c.answer(req.Type)
	}
	return nil
}

func (c *Charger) answer(t charger.RequestType) []canframe.Frame {
	switch t {
	case charger.RequestSoftware:
		return c.frames(charger.Software{Version: c.cfg.Software})
	case charger.RequestSerialNumber:
		return c.frames(charger.SerialNumber{Serial: c.cfg.Serial})
	case charger.RequestActiveFaults:
		return c.frames(FaultFrames(c.cfg.ActiveFaults, true)...)
	case charger.RequestInactiveFaults:
		return c.frames(FaultFrames(c.cfg.InactiveFaults, false)...)
	}
	return nil
}

// FaultFrames lays a fault list out the way the charger transmits it.
func FaultFrames(list []charger.Fault, active bool) []charger.Message {
	switch len(list) {
	case 0:
		return []charger.Message{charger.Fault{Active: active, NoFault: true}}
	case 1:
		f := list[0]
		f.Active, f.NoFault = active, false
		f.FrameType, f.TotalErrors, f.FrameNumber = charger.FrameSingle, 1, 0
		return []charger.Message{f}
	}
	out := make([]charger.Message, 0, len(list))
	for i, f := range list {
		f.Active, f.NoFault = active, false
		f.FrameType, f.TotalErrors, f.FrameNumber = charger.FrameMulti, uint8(len(list)), uint8(i+1)
		out = append(out, f)
	}
	return out
}

// Fast returns the frames due every 100 ms and advances the model.
func (c *Charger) Fast(now time.Time) []canframe.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	on := c.powered(now)
	c.step(on)
	tst1 := charger.Tst1{
		Ack:        true,
		PrCompl:    true,
		PwrOK:      on,
		VoutOK:     c.act1.VoutV > 1,
		Neutral:    true,
		LED3:       c.ctl.LED3,
		LED618:     c.ctl.CanEnable,
		ThreePhase: c.cfg.Setup.ThreePhase,
		Rx618Fail:  !c.lastCtl.IsZero() && now.Sub(c.lastCtl) > ControlTimeout,
		FanOn:      c.tempC > 40,
		PumpOn:     c.tempC > 35,
		ProxOK:     true,
		PilotOK:    true,
		S2OK:       on,
		Hours:      c.hours(now),
	}
	module := c.act1.IacA / 3
	return c.framesLocked(
		c.act1,
		tst1,
		charger.Act3{FanVoltageV: c.fanVoltage(), Iacm1A: c.noisy(module, 0.1), Iacm2A: c.noisy(module, 0.1), Iacm3A: c.noisy(module, 0.1)},
		charger.Temp{LogHVC: c.noisy(c.tempC-5, 0.2), Power1C: c.noisy(c.tempC, 0.3), Power2C: c.noisy(c.tempC, 0.3), Power3C: c.noisy(c.tempC, 0.3)},
		charger.Act4{TempLogFanC: c.noisy(c.tempC-3, 0.2), Iout1Raw: c.raw(c.act1.IoutA / 3), Iout2Raw: c.raw(c.act1.IoutA / 3), Iout3Raw: c.raw(c.act1.IoutA / 3)},
		charger.Stst1{PFCEnable: on, Rx618Fail: tst1.Rx618Fail},
	)
}

// Slow returns the frames due every second.
func (c *Charger) Slow(now time.Time) []canframe.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()

	on := c.powered(now)
	return c.framesLocked(
		charger.Stat{
			PowerEnable: on,
			ErrorLatch:  len(c.cfg.ActiveFaults) > 0,
			LimTemp:     c.tempC > 60,
		},
		charger.Act2{
			TempLogLVC:  c.noisy(c.tempC-8, 0.2),
			ACPowerKW:   c.act1.IacA * mainsV / 1000,
			ProxLimitA:  c.cfg.Setup.IacmMaxA,
			PilotLimitA: c.cfg.Setup.IacmMaxA,
		},
	)
}

// Measured returns the last simulated Act1 values.
func (c *Charger) Measured() charger.Act1 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.act1
}

func (c *Charger) powered(now time.Time) bool {
	return c.ctl.CanEnable && !c.lastCtl.IsZero() && now.Sub(c.lastCtl) <= ControlTimeout && len(c.cfg.ActiveFaults) == 0
}

// step moves the outputs a quarter of the way to their target and lets the
// cold plate follow the dissipated power.
func (c *Charger) step(on bool) {
	var vout, iout float64
	if on {
		vout = math.Min(c.ctl.VoutMaxV, c.cfg.Setup.VoutMaxV)
		iout = math.Min(c.ctl.IoutMaxA, c.cfg.Setup.IoutMaxA)
		iac := math.Min(c.ctl.IacMaxA, c.cfg.Setup.IacmMaxA)
		// AC side limits the output at ~94 % efficiency
		if vout > 0 {
			iout = math.Min(iout, iac*mainsV*3*0.94/vout)
		}
	}
	c.act1.VoutV += (vout - c.act1.VoutV) / 4
	c.act1.IoutA += (iout - c.act1.IoutA) / 4
	if c.act1.VoutV < 0.05 {
		c.act1.VoutV = 0
	}
	if c.act1.IoutA < 0.05 {
		c.act1.IoutA = 0
	}
	c.act1.IacA = c.act1.OutputPowerW() / 0.94 / mainsV / 3
	loss := c.act1.OutputPowerW() * 0.06
	c.tempC += (ambientC + loss/100 - c.tempC) / 50
	c.act1.TempC = c.noisy(c.tempC, 0.3)
}

func (c *Charger) fanVoltage() float64 {
	if c.tempC <= 40 {
		return 0
	}
	return math.Min(12+(c.tempC-40)/2, 24)
}

func (c *Charger) hours(now time.Time) uint16 {
	if c.started.IsZero() {
		return c.cfg.Hours
	}
	return c.cfg.Hours + uint16(now.Sub(c.started)/time.Hour)
}

func (c *Charger) noisy(v, spread float64) float64 {
	return v + (c.rng.Float64()*2-1)*spread
}

func (c *Charger) raw(v float64) uint16 {
	return uint16(math.Max(0, math.Round(v*10)))
}

func (c *Charger) frames(msgs ...charger.Message) []canframe.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.framesLocked(msgs...)
}

func (c *Charger) framesLocked(msgs ...charger.Message) []canframe.Frame {
	out := make([]canframe.Frame, 0, len(msgs))
	for _, m := range msgs {
		f, err := charger.Encode(m)
		if err != nil && !codec.IsClamped(err) {
			c.logger.Error().Err(err).Uint32("id", m.CANID()).Msg("Simulator: encode failed")
			continue
		}
		out = append(out, f)
	}
	return out
}

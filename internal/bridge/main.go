// Package bridge moves EVO charger traffic between the CAN bus and MQTT.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/farouk15160/evocharger/internal/charger"
	"github.com/farouk15160/evocharger/internal/config"
	"github.com/farouk15160/evocharger/internal/database"
	"github.com/farouk15160/evocharger/internal/faults"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type counters struct {
	canRx        atomic.Uint64
	canTx        atomic.Uint64
	decodeErrors atomic.Uint64
	mqttRx       atomic.Uint64
	mqttTx       atomic.Uint64
	samples      atomic.Uint64
}

// Bridge holds the runtime state shared by both directions.
type Bridge struct {
	prefix          string
	startupRequests bool
	bus             FramePublisher
	pub             Publisher
	sinks           []database.Writer
	agg             *faults.Aggregator
	now             func() time.Time
	stats           counters
	logger          zerolog.Logger

	mu            sync.RWMutex
	direction     int
	debug         bool
	publishAll    bool
	controlPeriod time.Duration
	ctl           charger.Ctl
	last          map[uint32][]byte
}

// New creates a bridge. pub may be nil when nothing is published; sinks
// are started by Run and closed when it returns.
func New(cfg config.Config, bus FramePublisher, pub Publisher, sinks ...database.Writer) *Bridge {
	return &Bridge{
		prefix:          cfg.MQTT.TopicPrefix,
		startupRequests: cfg.Bridge.StartupRequests,
		bus:             bus,
		pub:             pub,
		sinks:           sinks,
		agg:             faults.NewAggregator(),
		now:             time.Now,
		logger:          log.With().Str("component", "bridge").Logger(),
		direction:       cfg.Bridge.Direction,
		debug:           cfg.Log.Level == "debug",
		publishAll:      cfg.Bridge.PublishAll,
		controlPeriod:   time.Duration(cfg.Bridge.ControlPeriod),
		last:            make(map[uint32][]byte),
	}
}

// SubscribedIDs are the identifiers the bridge decodes: everything the
// charger sends.
func SubscribedIDs() []uint32 {
	var ids []uint32
	for _, id := range charger.IDs() {
		if charger.FromCharger(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Topic returns prefix/suffix.
func (b *Bridge) Topic(suffix string) string {
	return JoinTopic(b.prefix, suffix)
}

// Handlers maps every MQTT topic the bridge consumes to its handler.
func (b *Bridge) Handlers() map[string]func(topic string, payload []byte) {
	return map[string]func(string, []byte){
		b.Topic(TopicControlSet): b.HandleControl,
		b.Topic(TopicRequest):    b.HandleRequest,
		b.Topic(TopicRun):        b.HandleRun,
	}
}

// --- Settings, changed at runtime over <prefix>/bridge/run ---

// SetDebug also moves the global log level between debug and info.
func (b *Bridge) SetDebug(v bool) {
	b.mu.Lock()
	b.debug = v
	b.mu.Unlock()
	if v {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	b.logger.Info().Bool("debug", v).Msg("Bridge Setting: Debug Mode set")
}

func (b *Bridge) Debug() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.debug
}

// SetDirection accepts 0 (bidirectional), 1 (can2mqtt) or 2 (mqtt2can).
func (b *Bridge) SetDirection(mode int) error {
	if mode < config.Bidirectional || mode > config.MqttToCan {
		return fmt.Errorf("invalid direction mode %d, valid values are 0, 1 or 2", mode)
	}
	b.mu.Lock()
	b.direction = mode
	b.mu.Unlock()
	b.logger.Info().Int("direction", mode).Str("mode", directionName(mode)).Msg("Bridge Setting: Direction Mode set")
	return nil
}

func (b *Bridge) Direction() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.direction
}

func (b *Bridge) SetPublishAll(v bool) {
	b.mu.Lock()
	b.publishAll = v
	b.mu.Unlock()
	b.logger.Info().Bool("publish_all", v).Msg("Bridge Setting: Publish All set")
}

// SetControlPeriod changes the Ctl interval; the sender picks it up on its
// next tick.
func (b *Bridge) SetControlPeriod(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("invalid control period %v", d)
	}
	b.mu.Lock()
	b.controlPeriod = d
	b.mu.Unlock()
	b.logger.Info().Dur("period", d).Msg("Bridge Setting: Control Period set")
	return nil
}

func (b *Bridge) ControlPeriod() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.controlPeriod
}

// Control returns the setpoint the sender transmits.
func (b *Bridge) Control() charger.Ctl {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctl
}

// Faults exposes the fault list assembly.
func (b *Bridge) Faults() *faults.Aggregator {
	return b.agg
}

func (b *Bridge) canToMqtt() bool {
	return b.Direction() != config.MqttToCan
}

func (b *Bridge) mqttToCan() bool {
	return b.Direction() != config.CanToMqtt
}

func directionName(mode int) string {
	switch mode {
	case config.Bidirectional:
		return "bidirectional"
	case config.CanToMqtt:
		return "can2mqtt only"
	case config.MqttToCan:
		return "mqtt2can only"
	}
	return "unknown"
}

// Stats reports the traffic counters.
func (b *Bridge) Stats() map[string]uint64 {
	return map[string]uint64{
		"can_rx":        b.stats.canRx.Load(),
		"can_tx":        b.stats.canTx.Load(),
		"decode_errors": b.stats.decodeErrors.Load(),
		"mqtt_rx":       b.stats.mqttRx.Load(),
		"mqtt_tx":       b.stats.mqttTx.Load(),
		"samples":       b.stats.samples.Load(),
	}
}

// Run starts the sinks, asks the charger for its identity and then sends
// the control frame until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info().
		Str("prefix", b.prefix).
		Str("direction", directionName(b.Direction())).
		Dur("control_period", b.ControlPeriod()).
		Int("sinks", len(b.sinks)).
		Msg("Bridge: starting")

	for _, s := range b.sinks {
		s.Start()
	}
	defer func() {
		for _, s := range b.sinks {
			if err := s.Close(); err != nil {
				b.logger.Error().Err(err).Msg("Bridge: closing sink failed")
			}
		}
	}()

	if b.startupRequests && b.mqttToCan() {
		// the serial number is only answered right after power up
		for _, t := range []charger.RequestType{charger.RequestSerialNumber, charger.RequestSoftware} {
			if err := b.SendRequest(t); err != nil {
				b.logger.Warn().Err(err).Stringer("request", t).Msg("Bridge: startup request failed")
			}
		}
	}

	b.runControlSender(ctx)
	b.logger.Info().Msg("Bridge: stopped")
	return nil
}

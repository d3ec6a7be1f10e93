package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/farouk15160/evocharger/internal/canframe"
	"github.com/farouk15160/evocharger/internal/charger"
	"github.com/farouk15160/evocharger/internal/database"
	"github.com/farouk15160/evocharger/internal/faults"
)

// telemetry reports whether frames of id are recorded in the sinks. Fault
// and text frames carry no physical values.
func telemetry(id uint32) bool {
	switch id {
	case charger.IDFaultActive, charger.IDFaultPassive, charger.IDSoftware, charger.IDSerialNumber:
		return false
	}
	return charger.FromCharger(id)
}

// HandleFrame processes one frame received from the charger: it is decoded,
// recorded and published to MQTT if the direction mode allows it.
func (b *Bridge) HandleFrame(f canframe.Frame) {
	b.stats.canRx.Add(1)
	at := b.now()
	payload := f.Payload()

	if b.Debug() {
		b.logger.Debug().Str("frame", f.String()).Msg("ReceiveHandler: Processing CAN Frame")
	}

	m, err := charger.Decode(f.ID, payload)
	if err != nil {
		var unknown *charger.UnknownIDError
		if !errors.As(err, &unknown) {
			b.stats.decodeErrors.Add(1)
			b.logger.Warn().Err(err).Str("frame", f.String()).Msg("ReceiveHandler: Decode failed")
		}
		return
	}

	if telemetry(f.ID) && len(b.sinks) > 0 {
		if s, err := database.NewSample(f.ID, payload, at); err == nil {
			b.stats.samples.Add(1)
			for _, sink := range b.sinks {
				sink.Write(s)
			}
		}
	}

	if fault, ok := m.(charger.Fault); ok {
		b.handleFault(fault)
		return
	}

	if !b.canToMqtt() {
		if b.Debug() {
			b.logger.Debug().Uint32("id", f.ID).Msg("ReceiveHandler: dirMode=2 (mqtt2can only), MQTT message not published")
		}
		return
	}

	retained := false
	switch v := m.(type) {
	case charger.Software:
		m, retained = charger.Software{Version: v.String()}, true
	case charger.SerialNumber:
		m, retained = charger.SerialNumber{Serial: v.String()}, true
	case charger.Tst2:
		retained = true
	}

	if !b.changed(f.ID, payload) {
		return
	}
	body, err := MessageJSON(m, at)
	if err != nil {
		b.logger.Error().Err(err).Msg("ReceiveHandler: Encoding MQTT payload failed")
		return
	}
	b.publish(MessageTopic(b.prefix, f.ID), body, retained)
}

// changed remembers payload and reports whether it differs from the last
// frame with the same id. With publish_all every frame counts as changed.
func (b *Bridge) changed(id uint32, payload []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev, seen := b.last[id]
	if seen && !b.publishAll && bytes.Equal(prev, payload) {
		return false
	}
	b.last[id] = payload
	return true
}

func (b *Bridge) handleFault(f charger.Fault) {
	list, done, err := b.agg.Add(f)
	if err != nil {
		b.stats.decodeErrors.Add(1)
		b.logger.Warn().Err(err).Bool("active", f.Active).Uint8("frame", f.FrameNumber).Msg("ReceiveHandler: Fault frame dropped")
		return
	}
	if !done {
		return
	}
	b.logger.Info().Str("list", list.Kind()).Int("faults", len(list.Entries)).Msg("ReceiveHandler: Fault list complete")
	if list.HasHard() {
		b.logger.Warn().Int("faults", len(list.Entries)).Msg("ReceiveHandler: Charger reports a hard failure")
	}
	if !b.canToMqtt() {
		return
	}
	body, err := json.Marshal(struct {
		faults.List
		Unixtime int64 `json:"unixtime"`
	}{list, b.now().UnixNano()})
	if err != nil {
		b.logger.Error().Err(err).Msg("ReceiveHandler: Encoding fault list failed")
		return
	}
	b.publish(FaultTopic(b.prefix, list.Active), body, true)
}

func (b *Bridge) publish(topic string, body []byte, retained bool) {
	if b.pub == nil {
		return
	}
	var err error
	if retained {
		err = b.pub.PublishRetained(topic, body)
	} else {
		err = b.pub.Publish(topic, body)
	}
	if err != nil {
		b.logger.Error().Err(err).Str("topic", topic).Msg("ReceiveHandler: Error publishing CAN->MQTT")
		return
	}
	b.stats.mqttTx.Add(1)
	if b.Debug() {
		b.logger.Debug().Str("topic", topic).Bytes("payload", body).Msg("ReceiveHandler: Published CAN->MQTT")
	}
}

// transmit sends one frame to the charger.
func (b *Bridge) transmit(id uint32, payload []byte) error {
	f, err := canframe.New(id, payload)
	if err != nil {
		return err
	}
	if err := b.bus.Publish(f); err != nil {
		return err
	}
	b.stats.canTx.Add(1)
	if b.Debug() {
		b.logger.Debug().Str("frame", f.String()).Msg("ReceiveHandler: Published MQTT->CAN")
	}
	return nil
}

// SendRequest asks the charger for a fault list, its software version or
// its serial number. The answer arrives through HandleFrame. A fault
// request discards half assembled lists.
func (b *Bridge) SendRequest(t charger.RequestType) error {
	payload, err := charger.NewReq(t).Payload()
	if err != nil {
		return err
	}
	if t == charger.RequestActiveFaults || t == charger.RequestInactiveFaults {
		b.agg.Reset()
	}
	b.logger.Info().Stringer("request", t).Msg("Bridge: Requesting")
	return b.transmit(charger.IDReq, payload)
}

// HandleControl stores a new setpoint from <prefix>/ctl/set and sends it at
// once; the control sender repeats it afterwards.
func (b *Bridge) HandleControl(topic string, payload []byte) {
	b.stats.mqttRx.Add(1)
	if !b.mqttToCan() {
		b.logger.Debug().Str("topic", topic).Msg("ReceiveHandler: dirMode=1 (can2mqtt only), control ignored")
		return
	}

	b.mu.Lock()
	ctl, err := ParseControl(payload, b.ctl)
	if err != nil {
		b.mu.Unlock()
		b.logger.Warn().Err(err).Str("topic", topic).Msg("ReceiveHandler: Control rejected")
		return
	}
	wire, frame, clamped, err := ControlFrame(ctl)
	if err != nil {
		b.mu.Unlock()
		b.logger.Warn().Err(err).Str("topic", topic).Msg("ReceiveHandler: Control rejected")
		return
	}
	b.ctl = wire
	b.mu.Unlock()

	if len(clamped) > 0 {
		b.logger.Warn().Strs("signals", clamped).Msg("ReceiveHandler: Control limits clamped to range")
	}
	b.logger.Info().
		Bool("enable", wire.CanEnable).
		Float64("iac_max_a", wire.IacMaxA).
		Float64("vout_max_v", wire.VoutMaxV).
		Float64("iout_max_a", wire.IoutMaxA).
		Msg("ReceiveHandler: New control setpoint")

	if err := b.transmit(charger.IDCtl, frame); err != nil {
		b.logger.Error().Err(err).Msg("ReceiveHandler: Error publishing control frame")
	}
	if body, err := MessageJSON(wire, b.now()); err == nil {
		b.publish(b.Topic(TopicControlState), body, true)
	}
}

// HandleRequest turns a message on <prefix>/request into a Req frame.
func (b *Bridge) HandleRequest(topic string, payload []byte) {
	b.stats.mqttRx.Add(1)
	if !b.mqttToCan() {
		b.logger.Debug().Str("topic", topic).Msg("ReceiveHandler: dirMode=1 (can2mqtt only), request ignored")
		return
	}
	t, err := ParseRequest(payload)
	if err != nil {
		b.logger.Warn().Err(err).Str("topic", topic).Msg("ReceiveHandler: Request rejected")
		return
	}
	if err := b.SendRequest(t); err != nil {
		b.logger.Error().Err(err).Msg("ReceiveHandler: Error publishing request frame")
	}
}

// HandleRun applies runtime settings from <prefix>/bridge/run. Invalid
// values are logged and skipped; the other fields still apply.
func (b *Bridge) HandleRun(topic string, payload []byte) {
	b.stats.mqttRx.Add(1)
	b.logger.Info().Str("topic", topic).Bytes("payload", payload).Msg("ApplyConfigUpdate: Received config update")

	var cfg ConfigPayload
	if err := json.Unmarshal(payload, &cfg); err != nil {
		b.logger.Warn().Err(err).Msg("ApplyConfigUpdate: Failed to unmarshal JSON payload")
		return
	}
	if cfg.Debug != nil {
		b.SetDebug(*cfg.Debug)
	}
	if cfg.Direction != nil {
		if err := b.SetDirection(*cfg.Direction); err != nil {
			b.logger.Warn().Err(err).Msg("ApplyConfigUpdate: Direction not changed")
		}
	}
	if cfg.ControlPeriod != nil {
		if err := b.SetControlPeriod(time.Duration(*cfg.ControlPeriod)); err != nil {
			b.logger.Warn().Err(err).Msg("ApplyConfigUpdate: Control period not changed")
		}
	}
	if cfg.PublishAll != nil {
		b.SetPublishAll(*cfg.PublishAll)
	}
}

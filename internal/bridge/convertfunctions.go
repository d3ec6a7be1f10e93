package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farouk15160/evocharger/internal/charger"
	"github.com/farouk15160/evocharger/internal/codec"
	"github.com/farouk15160/evocharger/internal/config"
)

// Topic suffixes below the configured prefix.
const (
	TopicControlSet    = "ctl/set"
	TopicControlState  = "ctl/state"
	TopicRequest       = "request"
	TopicRun           = "bridge/run"
	TopicStatusRequest = "bridge/process"
	TopicStatus        = "bridge/status"
	TopicStart         = "bridge/start"
	TopicFaults        = "faults"
)

// JoinTopic builds prefix/part/... without doubled slashes.
func JoinTopic(prefix string, parts ...string) string {
	elems := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, "/"); p != "" {
		elems = append(elems, p)
	}
	for _, part := range parts {
		if p := strings.Trim(part, "/"); p != "" {
			elems = append(elems, p)
		}
	}
	return strings.Join(elems, "/")
}

// MessageTopic is where decoded frames of id are published, e.g. evo/act1.
func MessageTopic(prefix string, id uint32) string {
	name := charger.Name(id)
	if name == "" {
		name = fmt.Sprintf("0x%03X", id)
	}
	return JoinTopic(prefix, name)
}

// FaultTopic is evo/faults/active or evo/faults/inactive.
func FaultTopic(prefix string, active bool) string {
	if active {
		return JoinTopic(prefix, TopicFaults, "active")
	}
	return JoinTopic(prefix, TopicFaults, "inactive")
}

// MessageJSON flattens the typed message and adds the receive time as
// "unixtime" in nanoseconds.
func MessageJSON(m charger.Message, at time.Time) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal 0x%03X: %w", m.CANID(), err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		// Software and SerialNumber marshal to objects as well; anything
		// else is wrapped
		fields = map[string]any{"value": json.RawMessage(raw)}
	}
	fields["unixtime"] = at.UnixNano()
	return json.Marshal(fields)
}

// ParseControl applies a JSON setpoint on top of base; omitted fields keep
// their current value.
func ParseControl(payload []byte, base charger.Ctl) (charger.Ctl, error) {
	ctl := base
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&ctl); err != nil {
		return base, fmt.Errorf("invalid control payload: %w", err)
	}
	return ctl, nil
}

// ParseRequest reads {"type":"software"} or a bare type name.
func ParseRequest(payload []byte) (charger.RequestType, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var req struct {
			Type charger.RequestType `json:"type"`
		}
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return 0, fmt.Errorf("invalid request payload: %w", err)
		}
		if !req.Type.Known() {
			return 0, fmt.Errorf("invalid request payload: missing type")
		}
		return req.Type, nil
	}
	return charger.ParseRequestType(strings.Trim(string(trimmed), `"`))
}

// ControlFrame encodes ctl. The returned Ctl is what the charger will see
// after clamping and scaling; clamped lists the saturated signals.
func ControlFrame(ctl charger.Ctl) (wire charger.Ctl, frame []byte, clamped []string, err error) {
	f, err := charger.Encode(ctl)
	if err != nil {
		var ce *codec.ClampError
		if !errors.As(err, &ce) {
			return ctl, nil, nil, err
		}
		clamped = ce.Signals
	}
	payload := f.Payload()
	wire, err = charger.DecodeCtl(payload)
	if err != nil {
		return ctl, nil, nil, err
	}
	return wire, payload, clamped, nil
}

// ConfigPayload is the JSON accepted on <prefix>/bridge/run. Absent fields
// leave the setting unchanged.
type ConfigPayload struct {
	Debug         *bool            `json:"debug"`
	Direction     *int             `json:"direction"`
	ControlPeriod *config.Duration `json:"control_period"`
	PublishAll    *bool            `json:"publish_all"`
}

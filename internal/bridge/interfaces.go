package bridge

import "github.com/farouk15160/evocharger/internal/canframe"

// Publisher defines the MQTT publishing capabilities needed by the bridge.
type Publisher interface {
	Publish(topic string, payload []byte) error
	PublishRetained(topic string, payload []byte) error
}

// FramePublisher transmits frames on the CAN bus.
type FramePublisher interface {
	Publish(f canframe.Frame) error
}

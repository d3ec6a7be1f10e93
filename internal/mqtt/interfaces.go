package mqtt

// HandlerFunc processes one message received on a subscribed topic. The
// payload is a private copy.
type HandlerFunc func(topic string, payload []byte)

// MessageHandler is implemented by anything that consumes MQTT messages.
type MessageHandler interface {
	HandleMessage(topic string, payload []byte)
}

// HandleMessage calls f(topic, payload).
func (f HandlerFunc) HandleMessage(topic string, payload []byte) {
	f(topic, payload)
}

// RetainedPublisher is the part of the client the status handlers need.
type RetainedPublisher interface {
	PublishRetained(topic string, payload []byte) error
}

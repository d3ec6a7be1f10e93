package mqtt

import (
	"sort"
	"sync"
)

// Dispatcher routes incoming messages by exact topic.
type Dispatcher struct {
	mu       sync.RWMutex
	routes   map[string]MessageHandler
	fallback MessageHandler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{routes: make(map[string]MessageHandler)}
}

// Handle registers h for topic, replacing an earlier handler.
func (d *Dispatcher) Handle(topic string, h MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[topic] = h
}

// HandleFunc registers a plain function for topic.
func (d *Dispatcher) HandleFunc(topic string, f func(topic string, payload []byte)) {
	d.Handle(topic, HandlerFunc(f))
}

// Fallback receives messages no route matches.
func (d *Dispatcher) Fallback(h MessageHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = h
}

// Topics lists the registered topics in order; the client subscribes to
// them on every (re)connect.
func (d *Dispatcher) Topics() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	topics := make([]string, 0, len(d.routes))
	for t := range d.routes {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Dispatch hands the message to its handler, or to the fallback, and
// reports whether either ran.
func (d *Dispatcher) Dispatch(topic string, payload []byte) bool {
	d.mu.RLock()
	h, routed := d.routes[topic]
	if !routed {
		h = d.fallback
	}
	d.mu.RUnlock()

	if h == nil {
		return false
	}
	h.HandleMessage(topic, payload)
	return true
}

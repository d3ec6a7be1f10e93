package database

import (
	"fmt"
	"time"

	"github.com/farouk15160/evocharger/internal/charger"
)

// Writer defines the interface for telemetry sinks
type Writer interface {
	// Start begins processing and writing samples
	Start()

	// Write queues a sample for writing. It never blocks.
	Write(s Sample)

	// Close flushes what is queued and releases the connection
	Close() error
}

// Sample is one decoded charger frame, reduced to its physical values.
type Sample struct {
	Time    time.Time
	ID      uint32
	Message string
	Values  map[string]float64
}

// NewSample decodes payload with the layout registered for id.
func NewSample(id uint32, payload []byte, at time.Time) (Sample, error) {
	desc, ok := charger.Lookup(id)
	if !ok {
		return Sample{}, &charger.UnknownIDError{ID: id}
	}
	values, err := desc.Values(payload)
	if err != nil {
		return Sample{}, fmt.Errorf("sample 0x%03X: %w", id, err)
	}
	return Sample{Time: at, ID: id, Message: desc.Name, Values: values}, nil
}

// CANID formats the identifier the way it is tagged in every sink.
func (s Sample) CANID() string {
	return fmt.Sprintf("0x%03X", s.ID)
}

package bridge

import (
	"context"
	"errors"
	"sync"

	"github.com/brutella/can"
	"github.com/farouk15160/evocharger/internal/canframe"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrBusNotInitialized = errors.New("CAN bus not initialized")

// CANBus connects a SocketCAN interface and forwards frames whose
// identifier was subscribed.
type CANBus struct {
	iface   string
	bus     *can.Bus
	csiLock sync.RWMutex
	csi     map[uint32]struct{} // subscribed CAN IDs, nil means all
	handler func(canframe.Frame)
	logger  zerolog.Logger
}

// NewCANBus opens the interface, e.g. "can0" or "vcan0".
func NewCANBus(iface string) (*CANBus, error) {
	log.Info().Str("interface", iface).Msg("CAN Handler: Initializing CAN-Bus interface")
	bus, err := can.NewBusForInterfaceWithName(iface)
	if err != nil {
		return nil, err
	}
	b := newCANBus(iface, bus)
	bus.SubscribeFunc(b.handleCANFrame)
	return b, nil
}

func newCANBus(iface string, bus *can.Bus) *CANBus {
	return &CANBus{
		iface:  iface,
		bus:    bus,
		logger: log.With().Str("component", "can").Str("interface", iface).Logger(),
	}
}

// OnFrame sets the receiver of subscribed frames. Set it before Run.
func (b *CANBus) OnFrame(h func(canframe.Frame)) {
	b.handler = h
}

// Subscribe adds identifiers to the filter.
func (b *CANBus) Subscribe(ids ...uint32) {
	b.csiLock.Lock()
	defer b.csiLock.Unlock()
	if b.csi == nil {
		b.csi = make(map[uint32]struct{}, len(ids))
	}
	for _, id := range ids {
		b.csi[id] = struct{}{}
	}
	b.logger.Debug().Int("ids", len(b.csi)).Msg("CAN Handler: Subscriptions updated")
}

// Subscribed reports whether frames with id are forwarded.
func (b *CANBus) Subscribed(id uint32) bool {
	b.csiLock.RLock()
	defer b.csiLock.RUnlock()
	if b.csi == nil {
		return true
	}
	_, ok := b.csi[id]
	return ok
}

func (b *CANBus) handleCANFrame(cf can.Frame) {
	f := canframe.FromCAN(cf)
	if !b.Subscribed(f.ID) || b.handler == nil {
		return
	}
	b.handler(f)
}

// Run reads the bus until ctx is done or the socket fails.
func (b *CANBus) Run(ctx context.Context) error {
	if b.bus == nil {
		return ErrBusNotInitialized
	}
	errc := make(chan error, 1)
	go func() {
		b.logger.Info().Msg("CAN Handler: Connecting and Publishing")
		errc <- b.bus.ConnectAndPublish()
	}()

	select {
	case <-ctx.Done():
		if err := b.bus.Disconnect(); err != nil {
			b.logger.Warn().Err(err).Msg("CAN Handler: Disconnect failed")
		}
		b.logger.Info().Msg("CAN Handler: Disconnected")
		return nil
	case err := <-errc:
		return err
	}
}

// Publish sends a frame to the bus.
func (b *CANBus) Publish(f canframe.Frame) error {
	if b.bus == nil {
		return ErrBusNotInitialized
	}
	if err := b.bus.Publish(f.CAN()); err != nil {
		b.logger.Error().Err(err).Str("frame", f.String()).Msg("CAN Handler: Error publishing CAN frame")
		return err
	}
	return nil
}

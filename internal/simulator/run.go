package simulator

import (
	"context"
	"time"

	"github.com/farouk15160/evocharger/internal/canframe"
)

// Publisher transmits frames on the bus.
type Publisher interface {
	Publish(canframe.Frame) error
}

// Run sends the startup frames, then the periodic telemetry, and answers
// every frame read from in until ctx is done or in is closed.
func (c *Charger) Run(ctx context.Context, bus Publisher, in <-chan canframe.Frame) error {
	send := func(frames []canframe.Frame) {
		for _, f := range frames {
			if err := bus.Publish(f); err != nil {
				c.logger.Error().Err(err).Str("frame", f.String()).Msg("Simulator: publish failed")
			}
		}
	}

	send(c.Startup(time.Now()))
	c.logger.Info().Str("software", c.cfg.Software).Str("serial", c.cfg.Serial).Msg("Simulator: charger up")

	fast := time.NewTicker(FastPeriod)
	defer fast.Stop()
	slow := time.NewTicker(SlowPeriod)
	defer slow.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-in:
			if !ok {
				return nil
			}
			send(c.HandleFrame(f, time.Now()))
		case now := <-fast.C:
			send(c.Fast(now))
		case now := <-slow.C:
			send(c.Slow(now))
		}
	}
}

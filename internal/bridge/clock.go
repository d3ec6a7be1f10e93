package bridge

import (
	"context"
	"time"

	"github.com/farouk15160/evocharger/internal/charger"
)

// runControlSender transmits the stored Ctl every control period. The
// charger drops its output when 0x618 stays away for too long, so the frame
// is repeated even when nothing changed.
func (b *Bridge) runControlSender(ctx context.Context) {
	currentInterval := b.ControlPeriod()
	ticker := time.NewTicker(currentInterval)
	defer ticker.Stop()

	b.logger.Info().Dur("interval", currentInterval).Msg("Control Sender: Started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Control Sender: Stop signal received. Exiting")
			return

		case <-ticker.C:
			if newInterval := b.ControlPeriod(); newInterval != currentInterval {
				ticker.Reset(newInterval)
				currentInterval = newInterval
				b.logger.Info().Dur("interval", currentInterval).Msg("Control Sender: Interval updated")
			}
			if !b.mqttToCan() {
				continue
			}
			if err := b.sendControl(); err != nil && b.Debug() {
				b.logger.Debug().Err(err).Msg("Control Sender: send failed")
			}
		}
	}
}

// sendControl encodes and transmits the current setpoint once.
func (b *Bridge) sendControl() error {
	_, payload, _, err := ControlFrame(b.Control())
	if err != nil {
		return err
	}
	return b.transmit(charger.IDCtl, payload)
}

// SPDX-License-Identifier: GPL-3.0-only

package characteristic

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/tuya-brightness-bridge/internal/accessory"
)

// Light pairs a dimmer with its brightness characteristic.
type Light struct {
	*accessory.Dimmer
	*Brightness
}

// Bind creates the brightness characteristic for a dimmer using the
// dimmer's configured color modes and zero policy.
func Bind(d *accessory.Dimmer) *Light {
	cfg := d.Config()
	b := NewBrightness(d,
		WithColorModes(cfg.ColorModes),
		WithZeroPolicy(cfg.ZeroPolicy),
		WithLogger(log.Logger.With().Str("device", cfg.ID).Logger()),
	)
	return &Light{Dimmer: d, Brightness: b}
}

// Refresh fetches the device state and pushes it as a spontaneous update.
func (l *Light) Refresh(ctx context.Context) {
	state, err := l.GetDeviceState(ctx)
	if err != nil {
		log.Warn().Err(err).Str("device", l.ID()).Msg("Failed to poll device state")
		return
	}
	if _, err := l.UpdateValue(state, true); err != nil {
		log.Debug().Err(err).Str("device", l.ID()).Msg("Polled state had no brightness")
	}
}

// SPDX-License-Identifier: GPL-3.0-only

package homekit

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/brutella/hap"
	hapaccessory "github.com/brutella/hap/accessory"
	"github.com/rs/zerolog/log"
)

// ErrNoLights is returned when the bridge is started without accessories.
var ErrNoLights = errors.New("no lights to publish")

// Config holds the HomeKit server settings.
type Config struct {
	Name       string
	Pin        string
	Addr       string
	StorageDir string
}

// Bridge publishes lights behind a single HomeKit bridge accessory.
type Bridge struct {
	cfg    Config
	bridge *hapaccessory.Bridge
	lights []*Light
}

// NewBridge creates a bridge serving the given lights.
func NewBridge(cfg Config, lights []*Light) *Bridge {
	return &Bridge{
		cfg: cfg,
		bridge: hapaccessory.NewBridge(hapaccessory.Info{
			Name:         cfg.Name,
			Manufacturer: manufacturer,
		}),
		lights: lights,
	}
}

// Lights returns the published lights.
func (b *Bridge) Lights() []*Light {
	return b.lights
}

// Run serves the HomeKit accessory protocol until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	if len(b.lights) == 0 {
		return ErrNoLights
	}

	accs := make([]*hapaccessory.A, 0, len(b.lights))
	for _, l := range b.lights {
		accs = append(accs, l.A)
	}

	server, err := hap.NewServer(hap.NewFsStore(b.cfg.StorageDir), b.bridge.A, accs...)
	if err != nil {
		return fmt.Errorf("failed to create HomeKit server: %w", err)
	}
	server.Pin = b.cfg.Pin
	server.Addr = b.cfg.Addr

	log.Info().
		Str("name", b.cfg.Name).
		Str("addr", b.cfg.Addr).
		Int("lights", len(accs)).
		Msg("HomeKit bridge started")

	if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HomeKit server failed: %w", err)
	}
	return nil
}

// SPDX-License-Identifier: GPL-3.0-only

package accessory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/tuya-brightness-bridge/internal/brightness"
	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

// Override holds per-device settings from the configuration file.
type Override struct {
	Name          string
	MaxBrightness int
	ColorModes    brightness.ColorModes
	ZeroPolicy    brightness.ZeroPolicy
	Data          *tuya.DeviceData
	Disabled      bool
}

// Manager handles the lifecycle of the dimmers linked to an account.
type Manager struct {
	dimmers   map[string]*Dimmer // device id -> dimmer
	mu        sync.RWMutex
	api       API
	discover  func(ctx context.Context) ([]tuya.Device, error)
	filter    func(tuya.Device) bool
	overrides map[string]Override
	cacheTTL  time.Duration
}

// ManagerOption is a functional option for configuring a Manager.
type ManagerOption func(*Manager)

// WithDiscoverer sets the function used to list account devices.
func WithDiscoverer(fn func(ctx context.Context) ([]tuya.Device, error)) ManagerOption {
	return func(m *Manager) {
		m.discover = fn
	}
}

// WithFilter sets the predicate deciding which devices become dimmers.
func WithFilter(fn func(tuya.Device) bool) ManagerOption {
	return func(m *Manager) {
		m.filter = fn
	}
}

// WithOverrides sets per-device configuration keyed by device id.
func WithOverrides(overrides map[string]Override) ManagerOption {
	return func(m *Manager) {
		m.overrides = overrides
	}
}

// WithCacheTTL sets how long dimmers reuse a fetched state.
func WithCacheTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		m.cacheTTL = ttl
	}
}

// NewManager creates a new dimmer manager backed by the given API.
func NewManager(api API, opts ...ManagerOption) *Manager {
	m := &Manager{
		dimmers:   make(map[string]*Dimmer),
		api:       api,
		filter:    func(tuya.Device) bool { return true },
		overrides: make(map[string]Override),
		cacheTTL:  DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List returns all dimmers ordered by device id.
func (m *Manager) List() []*Dimmer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Dimmer, 0, len(m.dimmers))
	for _, d := range m.dimmers {
		list = append(list, d)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID() < list[j].ID() })
	return list
}

// Get returns a dimmer by device id.
func (m *Manager) Get(id string) (*Dimmer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.dimmers[id]
	if !ok {
		return nil, fmt.Errorf("device %s not found", id)
	}
	return d, nil
}

// Count returns the number of managed dimmers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dimmers)
}

// Refresh re-discovers account devices and updates the internal state.
// It adds new dimmers and drops devices that disappeared.
func (m *Manager) Refresh(ctx context.Context) error {
	if m.discover == nil {
		return fmt.Errorf("no discoverer configured")
	}

	devices, err := m.discover(ctx)
	if err != nil {
		return fmt.Errorf("failed to discover devices: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]tuya.Device)
	for _, dev := range devices {
		override := m.overrides[dev.ID]
		if override.Disabled {
			log.Debug().Str("device", dev.ID).Msg("Device disabled in config")
			continue
		}
		if override.Data != nil {
			dev.Data = *override.Data
		}
		if !m.filter(dev) {
			continue
		}
		current[dev.ID] = dev
	}

	for id := range m.dimmers {
		if _, exists := current[id]; !exists {
			log.Info().Str("device", id).Msg("Device removed")
			delete(m.dimmers, id)
		}
	}

	for id, dev := range current {
		if _, exists := m.dimmers[id]; exists {
			continue
		}
		override := m.overrides[id]
		cfg := Config{
			ID:            id,
			Name:          dev.Name,
			MaxBrightness: override.MaxBrightness,
			Data:          dev.Data,
			ColorModes:    override.ColorModes,
			ZeroPolicy:    override.ZeroPolicy,
		}
		if override.Name != "" {
			cfg.Name = override.Name
		}
		m.dimmers[id] = NewDimmer(cfg, m.api, m.cacheTTL)
		log.Info().Str("device", id).Str("name", cfg.Name).Msg("Device added")
	}

	return nil
}

// SPDX-License-Identifier: GPL-3.0-only

// Package accessory manages the Tuya devices exposed as HomeKit accessories.
package accessory

//go:generate mockgen -source=dimmer.go -destination=mocks/api_mock.go -package=mocks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shini4i/tuya-brightness-bridge/internal/brightness"
	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

// ErrDeviceOffline is returned when the cloud reports the device as offline.
var ErrDeviceOffline = errors.New("device is offline")

const (
	// DefaultMaxBrightness is the plain brightness ceiling most Tuya lights report.
	DefaultMaxBrightness = 255

	// DefaultCacheTTL is how long a fetched device state is reused.
	DefaultCacheTTL = time.Second

	// CharacteristicBrightness identifies the brightness characteristic.
	CharacteristicBrightness = "Characteristic.Brightness"

	// EchoBrightness is the echo key carrying a written brightness.
	EchoBrightness = "brightness"
)

// echoCharacteristics maps echo keys to the characteristic they update.
// Unknown keys are stored under their own name.
var echoCharacteristics = map[string]string{
	EchoBrightness: CharacteristicBrightness,
}

// Operation identifies the host request an error belongs to.
type Operation string

const (
	// OperationGet is a characteristic read.
	OperationGet Operation = "GET"
	// OperationSet is a characteristic write.
	OperationSet Operation = "SET"
)

// API is the subset of the Tuya client a dimmer needs.
// This interface allows for mocking in tests.
type API interface {
	// QueryDevice fetches the current state of a device.
	QueryDevice(ctx context.Context, deviceID string) (*tuya.DeviceState, error)

	// Control issues a command to a device.
	Control(ctx context.Context, deviceID, command string, payload tuya.Payload) error
}

// Config is the static configuration of a dimmable device.
type Config struct {
	ID            string
	Name          string
	MaxBrightness int
	Data          tuya.DeviceData
	ColorModes    brightness.ColorModes
	ZeroPolicy    brightness.ZeroPolicy
}

// Dimmer is a dimmable Tuya light.
// All methods are thread-safe and can be called concurrently.
type Dimmer struct {
	cfg      Config
	api      API
	cacheTTL time.Duration
	now      func() time.Time

	mu          sync.Mutex
	cached      *tuya.DeviceState
	cachedAt    time.Time
	values      map[string]int
	subscribers map[string][]func(int)
}

// NewDimmer creates a new Dimmer backed by the given API.
func NewDimmer(cfg Config, api API, cacheTTL time.Duration) *Dimmer {
	if cfg.MaxBrightness <= 0 {
		cfg.MaxBrightness = DefaultMaxBrightness
	}
	if cfg.ColorModes == nil {
		cfg.ColorModes = brightness.DefaultColorModes()
	}
	return &Dimmer{
		cfg:         cfg,
		api:         api,
		cacheTTL:    cacheTTL,
		now:         time.Now,
		values:      make(map[string]int),
		subscribers: make(map[string][]func(int)),
	}
}

// ID returns the Tuya device id.
func (d *Dimmer) ID() string {
	return d.cfg.ID
}

// Name returns the display name.
func (d *Dimmer) Name() string {
	return d.cfg.Name
}

// Config returns the static configuration.
func (d *Dimmer) Config() Config {
	return d.cfg
}

// DeviceConfig returns the capability data captured at discovery.
func (d *Dimmer) DeviceConfig() tuya.DeviceData {
	return d.cfg.Data
}

// MaxBrightness returns the ceiling of the plain brightness scale.
func (d *Dimmer) MaxBrightness() int {
	return d.cfg.MaxBrightness
}

// GetDeviceState returns the current device state, reusing a recent fetch
// when it is younger than the cache TTL.
func (d *Dimmer) GetDeviceState(ctx context.Context) (*tuya.DeviceState, error) {
	d.mu.Lock()
	if d.cached != nil && d.now().Sub(d.cachedAt) < d.cacheTTL {
		state := d.cached
		d.mu.Unlock()
		return state, nil
	}
	d.mu.Unlock()

	state, err := d.api.QueryDevice(ctx, d.cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query device: %w", err)
	}
	if !state.IsOnline() {
		return nil, ErrDeviceOffline
	}

	d.mu.Lock()
	d.cached = state
	d.cachedAt = d.now()
	d.mu.Unlock()

	return state, nil
}

// SetDeviceState issues a command to the device. On success the cached state
// is dropped and the echo is recorded as the latest characteristic values.
func (d *Dimmer) SetDeviceState(ctx context.Context, command string, payload tuya.Payload, echo tuya.Echo) error {
	if err := d.api.Control(ctx, d.cfg.ID, command, payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", command, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.cached = nil
	for key, value := range echo {
		id, ok := echoCharacteristics[key]
		if !ok {
			id = key
		}
		d.values[id] = value
	}
	return nil
}

// SetCharacteristic stores a characteristic value. Subscribers are notified
// only for spontaneous updates; a requested read delivers its value to the
// requester instead.
func (d *Dimmer) SetCharacteristic(id string, value int, spontaneous bool) {
	d.mu.Lock()
	d.values[id] = value
	var subs []func(int)
	if spontaneous {
		subs = append(subs, d.subscribers[id]...)
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Subscribe registers fn for spontaneous updates of characteristic id.
func (d *Dimmer) Subscribe(id string, fn func(int)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subscribers[id] = append(d.subscribers[id], fn)
}

// Value returns the last known value of characteristic id.
func (d *Dimmer) Value(id string) (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.values[id]
	return v, ok
}

// HandleError logs a failed host request and returns the error annotated
// with the operation and device.
func (d *Dimmer) HandleError(op Operation, err error) error {
	log.Error().
		Err(err).
		Str("op", string(op)).
		Str("device", d.cfg.ID).
		Str("name", d.cfg.Name).
		Msg("Characteristic request failed")
	return fmt.Errorf("%s %s: %w", op, d.cfg.ID, err)
}

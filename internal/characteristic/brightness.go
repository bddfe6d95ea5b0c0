// SPDX-License-Identifier: GPL-3.0-only

// Package characteristic translates HomeKit characteristics to and from Tuya
// device states.
package characteristic

//go:generate mockgen -source=brightness.go -destination=mocks/accessory_mock.go -package=mocks

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/shini4i/tuya-brightness-bridge/internal/accessory"
	"github.com/shini4i/tuya-brightness-bridge/internal/brightness"
	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

const (
	// BrightnessTitle identifies the brightness characteristic.
	BrightnessTitle = accessory.CharacteristicBrightness

	// BrightnessDefaultValue is reported before the first successful read.
	BrightnessDefaultValue = 100

	// CommandBrightnessSet is the Tuya command that sets brightness.
	CommandBrightnessSet = "brightnessSet"

	// echoBrightness is the echo key for optimistic bookkeeping.
	echoBrightness = accessory.EchoBrightness
)

// Accessory is the device a characteristic reads from and writes to.
// This interface allows for mocking in tests.
type Accessory interface {
	// GetDeviceState fetches the current vendor-reported state.
	GetDeviceState(ctx context.Context) (*tuya.DeviceState, error)

	// SetDeviceState issues a vendor command.
	SetDeviceState(ctx context.Context, command string, payload tuya.Payload, echo tuya.Echo) error

	// SetCharacteristic pushes a value into the HomeKit-facing store.
	SetCharacteristic(id string, value int, spontaneous bool)

	// HandleError adapts a failure to the host error convention.
	HandleError(op accessory.Operation, err error) error

	// MaxBrightness returns the ceiling of the plain brightness scale.
	MaxBrightness() int

	// DeviceConfig returns the static capability data.
	DeviceConfig() tuya.DeviceData
}

// Brightness maps the HomeKit brightness characteristic (0-100) onto a Tuya
// light. It keeps no state of its own and is safe for concurrent use.
type Brightness struct {
	accessory  Accessory
	colorModes brightness.ColorModes
	zeroPolicy brightness.ZeroPolicy
	logger     zerolog.Logger
}

// BrightnessOption is a functional option for configuring Brightness.
type BrightnessOption func(*Brightness)

// WithColorModes sets the modes in which color.brightness is authoritative.
func WithColorModes(modes brightness.ColorModes) BrightnessOption {
	return func(b *Brightness) {
		if modes != nil {
			b.colorModes = modes
		}
	}
}

// WithZeroPolicy sets how a reported plain brightness of 0 is treated.
func WithZeroPolicy(policy brightness.ZeroPolicy) BrightnessOption {
	return func(b *Brightness) {
		b.zeroPolicy = policy
	}
}

// WithLogger sets the logger used for debug and parse failures.
func WithLogger(logger zerolog.Logger) BrightnessOption {
	return func(b *Brightness) {
		b.logger = logger
	}
}

// NewBrightness creates the brightness characteristic for an accessory.
func NewBrightness(acc Accessory, opts ...BrightnessOption) *Brightness {
	b := &Brightness{
		accessory:  acc,
		colorModes: brightness.DefaultColorModes(),
		zeroPolicy: brightness.ZeroIsValid,
		logger:     log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With().Str("characteristic", BrightnessTitle).Logger()
	return b
}

// IsBrightnessSupported reports whether a device declares plain brightness or
// color brightness in its static configuration.
func IsBrightnessSupported(cfg tuya.DeviceData) bool {
	return cfg.Brightness != nil || cfg.ColorBrightness() != nil
}

// IsSupportedByAccessory reports whether the accessory can carry this
// characteristic.
func (b *Brightness) IsSupportedByAccessory() bool {
	return IsBrightnessSupported(b.accessory.DeviceConfig())
}

// GetRemoteValue reads the device and returns its brightness as 0-100.
func (b *Brightness) GetRemoteValue(ctx context.Context) (int, error) {
	state, err := b.accessory.GetDeviceState(ctx)
	if err != nil {
		return 0, b.accessory.HandleError(accessory.OperationGet, &FetchError{Err: err})
	}

	b.logger.Debug().Stringer("state", state).Msg("[GET]")
	return b.UpdateValue(state, false)
}

// SetRemoteValue writes a 0-100 brightness to the device.
func (b *Brightness) SetRemoteValue(ctx context.Context, homekitValue int) error {
	value := brightness.PercentToVendor(homekitValue)

	err := b.accessory.SetDeviceState(ctx, CommandBrightnessSet,
		tuya.Payload{"value": value},
		tuya.Echo{echoBrightness: homekitValue},
	)
	if err != nil {
		return b.accessory.HandleError(accessory.OperationSet, &CommandError{Command: CommandBrightnessSet, Err: err})
	}

	b.logger.Debug().Int("homekit", homekitValue).Int("value", value).Msg("[SET]")
	return nil
}

// UpdateValue parses a device state and pushes the result to the store.
// Spontaneous updates notify store subscribers; requested reads only record
// the value and hand it back to the caller.
func (b *Brightness) UpdateValue(state *tuya.DeviceState, spontaneous bool) (int, error) {
	value, ok := b.parse(state)
	if !ok {
		err := &ParseError{Characteristic: BrightnessTitle, State: state}
		b.logger.Error().Err(err).Msg("Failed to parse brightness")
		return 0, err
	}

	b.accessory.SetCharacteristic(BrightnessTitle, value, spontaneous)
	return value, nil
}

// parse selects the authoritative brightness field by color mode.
// color.brightness is reported on a 0-100 scale already and is used as is,
// although Tuya's own app shows it slightly differently in the low range.
// Under ZeroIsUnparseable a result of 0 from either field is a failure.
func (b *Brightness) parse(state *tuya.DeviceState) (int, bool) {
	value, ok := b.selectValue(state)
	if !ok {
		return 0, false
	}
	if value == 0 && b.zeroPolicy == brightness.ZeroIsUnparseable {
		return 0, false
	}
	return value, true
}

func (b *Brightness) selectValue(state *tuya.DeviceState) (int, bool) {
	if state == nil {
		return 0, false
	}

	if state.ColorMode != nil && b.colorModes.Contains(*state.ColorMode) {
		if cb := state.ColorBrightness(); cb != nil {
			return brightness.Round(cb.Float64()), true
		}
	}

	if state.Brightness == nil {
		return 0, false
	}
	return brightness.VendorToPercent(state.Brightness.Float64(), float64(b.accessory.MaxBrightness())), true
}

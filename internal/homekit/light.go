// SPDX-License-Identifier: GPL-3.0-only

// Package homekit exposes dimmers as HomeKit lightbulbs.
package homekit

import (
	"context"
	"hash/fnv"
	"net/http"
	"time"

	hapaccessory "github.com/brutella/hap/accessory"
	hapcharacteristic "github.com/brutella/hap/characteristic"
	"github.com/rs/zerolog/log"

	"github.com/shini4i/tuya-brightness-bridge/internal/characteristic"
)

const (
	// statusSuccess is the HAP status for a handled request.
	statusSuccess = 0

	// statusCommunicationFailure is the HAP status reported when the
	// accessory could not be reached.
	statusCommunicationFailure = -70402

	// requestTimeout bounds a single controller request.
	requestTimeout = 5 * time.Second

	manufacturer = "Tuya"
	model        = "Dimmer"
)

// Translator converts between HomeKit brightness and a device.
type Translator interface {
	GetRemoteValue(ctx context.Context) (int, error)
	SetRemoteValue(ctx context.Context, homekitValue int) error
	IsSupportedByAccessory() bool
}

// Device is the accessory side of a light.
type Device interface {
	ID() string
	Name() string
	Subscribe(id string, fn func(int))
}

// Light is a HomeKit lightbulb backed by a Tuya dimmer.
type Light struct {
	*hapaccessory.Lightbulb

	// Brightness is nil when the device does not support dimming.
	Brightness *hapcharacteristic.Brightness

	device     Device
	translator Translator
}

// AccessoryID derives a stable HomeKit accessory id from a Tuya device id.
// Ids 0 and 1 are reserved for the bridge.
func AccessoryID(deviceID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(deviceID))
	id := h.Sum64()
	if id < 2 {
		id += 2
	}
	return id
}

// NewLight creates a lightbulb for device. The brightness characteristic is
// attached only when the translator reports the device supports it.
func NewLight(device Device, translator Translator) *Light {
	bulb := hapaccessory.NewLightbulb(hapaccessory.Info{
		Name:         device.Name(),
		SerialNumber: device.ID(),
		Manufacturer: manufacturer,
		Model:        model,
	})
	bulb.Id = AccessoryID(device.ID())

	l := &Light{
		Lightbulb:  bulb,
		device:     device,
		translator: translator,
	}

	if !translator.IsSupportedByAccessory() {
		log.Debug().Str("device", device.ID()).Msg("Device has no brightness capability")
		return l
	}

	b := hapcharacteristic.NewBrightness()
	b.SetValue(characteristic.BrightnessDefaultValue)
	b.ValueRequestFunc = l.handleGet
	b.OnSetRemoteValue(l.handleSet)
	bulb.Lightbulb.AddC(b.C)
	l.Brightness = b

	device.Subscribe(characteristic.BrightnessTitle, l.handleUpdate)
	return l
}

func (l *Light) handleGet(r *http.Request) (interface{}, int) {
	ctx := context.Background()
	if r != nil {
		ctx = r.Context()
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	value, err := l.translator.GetRemoteValue(ctx)
	if err != nil {
		return nil, statusCommunicationFailure
	}
	return value, statusSuccess
}

func (l *Light) handleSet(value int) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	return l.translator.SetRemoteValue(ctx, value)
}

// handleUpdate forwards a spontaneous update to paired controllers.
func (l *Light) handleUpdate(value int) {
	log.Debug().Str("device", l.device.ID()).Int("brightness", value).Msg("Pushing brightness update")
	l.Brightness.SetValue(value)
}

package accessory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shini4i/tuya-brightness-bridge/internal/accessory"
	"github.com/shini4i/tuya-brightness-bridge/internal/brightness"
	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticDiscoverer(devices ...tuya.Device) func(context.Context) ([]tuya.Device, error) {
	return func(context.Context) ([]tuya.Device, error) {
		return devices, nil
	}
}

func dimmable(dev tuya.Device) bool {
	return dev.Data.Brightness != nil
}

func TestManager_Refresh(t *testing.T) {
	devices := []tuya.Device{
		{ID: "b", Name: "Bedroom", Data: tuya.DeviceData{Brightness: tuya.NumberOf(255)}},
		{ID: "a", Name: "Attic", Data: tuya.DeviceData{Brightness: tuya.NumberOf(10)}},
		{ID: "plug", Name: "Plug"},
	}
	m := accessory.NewManager(nil,
		accessory.WithDiscoverer(staticDiscoverer(devices...)),
		accessory.WithFilter(dimmable),
	)

	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, 2, m.Count())
	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID())
	assert.Equal(t, "b", list[1].ID())

	_, err := m.Get("plug")
	assert.Error(t, err)
}

func TestManager_Refresh_RemovesVanishedDevices(t *testing.T) {
	current := []tuya.Device{
		{ID: "a", Data: tuya.DeviceData{Brightness: tuya.NumberOf(1)}},
		{ID: "b", Data: tuya.DeviceData{Brightness: tuya.NumberOf(1)}},
	}
	m := accessory.NewManager(nil, accessory.WithDiscoverer(func(context.Context) ([]tuya.Device, error) {
		return current, nil
	}))
	require.NoError(t, m.Refresh(context.Background()))

	original, err := m.Get("a")
	require.NoError(t, err)

	current = current[:1]
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, 1, m.Count())
	kept, err := m.Get("a")
	require.NoError(t, err)
	assert.Same(t, original, kept, "existing dimmers survive a refresh")
}

func TestManager_Refresh_AppliesOverrides(t *testing.T) {
	m := accessory.NewManager(nil,
		accessory.WithDiscoverer(staticDiscoverer(
			tuya.Device{ID: "a", Name: "Discovered"},
			tuya.Device{ID: "b", Name: "Hidden", Data: tuya.DeviceData{Brightness: tuya.NumberOf(1)}},
		)),
		accessory.WithFilter(dimmable),
		accessory.WithOverrides(map[string]accessory.Override{
			"a": {
				Name:          "Renamed",
				MaxBrightness: 1000,
				ColorModes:    brightness.NewColorModes("scene"),
				ZeroPolicy:    brightness.ZeroIsUnparseable,
				Data:          &tuya.DeviceData{Brightness: tuya.NumberOf(1000)},
			},
			"b": {Disabled: true},
		}),
	)

	require.NoError(t, m.Refresh(context.Background()))
	require.Equal(t, 1, m.Count())

	d, err := m.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", d.Name())
	assert.Equal(t, 1000, d.MaxBrightness())
	assert.True(t, d.Config().ColorModes.Contains("scene"))
	assert.Equal(t, brightness.ZeroIsUnparseable, d.Config().ZeroPolicy)
	require.NotNil(t, d.DeviceConfig().Brightness)
}

func TestManager_Refresh_Errors(t *testing.T) {
	m := accessory.NewManager(nil)
	assert.Error(t, m.Refresh(context.Background()), "no discoverer configured")

	m = accessory.NewManager(nil, accessory.WithDiscoverer(func(context.Context) ([]tuya.Device, error) {
		return nil, errors.New("unauthorized")
	}))
	err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unauthorized")
}

// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shini4i/tuya-brightness-bridge/internal/accessory"
	"github.com/shini4i/tuya-brightness-bridge/internal/accessory/mocks"
	"github.com/shini4i/tuya-brightness-bridge/internal/characteristic"
	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

// countingRefresher fails the first failures calls.
type countingRefresher struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failures {
		return errors.New("discovery failed")
	}
	return nil
}

func dimmable(id string) tuya.Device {
	return tuya.Device{
		ID:   id,
		Name: "Light " + id,
		Data: tuya.DeviceData{Brightness: tuya.NumberOf(255)},
	}
}

func TestIsDimmable(t *testing.T) {
	tests := []struct {
		name     string
		device   tuya.Device
		expected bool
	}{
		{
			name:     "brightness capability",
			device:   dimmable("dev1"),
			expected: true,
		},
		{
			name: "color brightness capability",
			device: tuya.Device{ID: "dev2", Data: tuya.DeviceData{
				Color: &tuya.ColorState{Brightness: tuya.NumberOf(100)},
			}},
			expected: true,
		},
		{
			name:     "switch only",
			device:   tuya.Device{ID: "dev3", Data: tuya.DeviceData{State: true}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isDimmable(tt.device))
		})
	}
}

func TestDiffDevices(t *testing.T) {
	tests := []struct {
		name            string
		oldDevices      map[string]string
		newDevices      map[string]string
		expectedAdded   []string
		expectedRemoved []string
	}{
		{
			name:       "no changes",
			oldDevices: map[string]string{"a": "A"},
			newDevices: map[string]string{"a": "A"},
		},
		{
			name:          "one device added",
			oldDevices:    map[string]string{},
			newDevices:    map[string]string{"a": "A"},
			expectedAdded: []string{"a"},
		},
		{
			name:            "one device removed",
			oldDevices:      map[string]string{"a": "A"},
			newDevices:      map[string]string{},
			expectedRemoved: []string{"a"},
		},
		{
			name:            "multiple changes are sorted",
			oldDevices:      map[string]string{"a": "A", "b": "B"},
			newDevices:      map[string]string{"b": "B", "d": "D", "c": "C"},
			expectedAdded:   []string{"c", "d"},
			expectedRemoved: []string{"a"},
		},
		{
			name:       "both empty",
			oldDevices: map[string]string{},
			newDevices: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := diffDevices(tt.oldDevices, tt.newDevices)

			assert.Equal(t, tt.expectedAdded, changes.added, "added mismatch")
			assert.Equal(t, tt.expectedRemoved, changes.removed, "removed mismatch")
		})
	}
}

func TestDeviceSnapshot(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)

	dimmers := []*accessory.Dimmer{
		accessory.NewDimmer(accessory.Config{ID: "dev1", Name: "Desk"}, api, 0),
		accessory.NewDimmer(accessory.Config{ID: "dev2", Name: "Bedroom"}, api, 0),
	}

	assert.Equal(t, map[string]string{"dev1": "Desk", "dev2": "Bedroom"}, deviceSnapshot(dimmers))
	assert.Empty(t, deviceSnapshot(nil))
}

func TestRefreshWithRetry_SuccessOnFirstAttempt(t *testing.T) {
	r := &countingRefresher{}

	err := refreshWithRetry(context.Background(), r, 3, time.Millisecond)

	assert.NoError(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestRefreshWithRetry_SuccessAfterRetry(t *testing.T) {
	r := &countingRefresher{failures: 2}

	err := refreshWithRetry(context.Background(), r, 3, time.Millisecond)

	assert.NoError(t, err)
	assert.Equal(t, 3, r.calls)
}

func TestRefreshWithRetry_AllAttemptsFail(t *testing.T) {
	r := &countingRefresher{failures: 10}

	err := refreshWithRetry(context.Background(), r, 2, time.Millisecond)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempts")
	assert.Equal(t, 3, r.calls)
}

func TestRefreshWithRetry_ContextCancelled(t *testing.T) {
	r := &countingRefresher{failures: 10}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := refreshWithRetry(ctx, r, 3, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, r.calls)
}

func TestBindLights(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)

	dimmers := []*accessory.Dimmer{
		accessory.NewDimmer(accessory.Config{ID: "dev1", Data: dimmable("dev1").Data}, api, 0),
		accessory.NewDimmer(accessory.Config{ID: "dev2"}, api, 0),
	}

	lights := bindLights(dimmers)
	require.Len(t, lights, 2)
	assert.True(t, lights[0].IsSupportedByAccessory())
	assert.False(t, lights[1].IsSupportedByAccessory())

	hk := homekitLights(lights)
	require.Len(t, hk, 2)
	assert.NotNil(t, hk[0].Brightness)
	assert.Nil(t, hk[1].Brightness)

	assert.Len(t, dbusLights(lights), 2)
}

func TestPollHandler_PushesSpontaneousUpdate(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)

	d := accessory.NewDimmer(accessory.Config{ID: "dev1", Data: dimmable("dev1").Data}, api, 0)
	lights := bindLights([]*accessory.Dimmer{d})

	var got []int
	d.Subscribe(characteristic.BrightnessTitle, func(v int) { got = append(got, v) })

	api.EXPECT().
		QueryDevice(gomock.Any(), "dev1").
		Return(&tuya.DeviceState{Brightness: tuya.NumberOf(127)}, nil)

	pollHandler(lights)(context.Background(), d)

	assert.Equal(t, []int{50}, got)
}

func TestPollHandler_SkipsUnpublishedDimmer(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)
	api.EXPECT().QueryDevice(gomock.Any(), gomock.Any()).Times(0)

	published := accessory.NewDimmer(accessory.Config{ID: "dev1", Data: dimmable("dev1").Data}, api, 0)
	late := accessory.NewDimmer(accessory.Config{ID: "late", Data: dimmable("late").Data}, api, 0)
	replaced := accessory.NewDimmer(accessory.Config{ID: "dev1", Data: dimmable("dev1").Data}, api, 0)

	handler := pollHandler(bindLights([]*accessory.Dimmer{published}))
	handler(context.Background(), late)
	handler(context.Background(), replaced)

	_, ok := late.Value(characteristic.BrightnessTitle)
	assert.False(t, ok)
	_, ok = replaced.Value(characteristic.BrightnessTitle)
	assert.False(t, ok)
}

func TestRediscoveryHandler_RefreshesManager(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockAPI(ctrl)

	var mu sync.Mutex
	devices := []tuya.Device{dimmable("dev1"), dimmable("dev2")}
	discover := func(context.Context) ([]tuya.Device, error) {
		mu.Lock()
		defer mu.Unlock()
		return devices, nil
	}

	manager := accessory.NewManager(api, accessory.WithDiscoverer(discover))
	require.NoError(t, manager.Refresh(context.Background()))
	require.Equal(t, 2, manager.Count())

	mu.Lock()
	devices = []tuya.Device{dimmable("dev2"), dimmable("dev3")}
	mu.Unlock()

	handler := createRediscoveryHandler(context.Background(), manager)
	handler("dev1", tuya.ErrDeviceNotFound)

	assert.Equal(t, map[string]string{"dev2": "Light dev2", "dev3": "Light dev3"}, deviceSnapshot(manager.List()))
}

func TestSetupLogging(t *testing.T) {
	assert.NotPanics(t, func() {
		setupLogging(true)
		setupLogging(false)
	})
}

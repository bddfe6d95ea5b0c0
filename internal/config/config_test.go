package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shini4i/tuya-brightness-bridge/internal/accessory"
	"github.com/shini4i/tuya-brightness-bridge/internal/brightness"
	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

const sampleConfig = `
debug = true
poll_interval = "10s"
cache_ttl = "500ms"

[tuya]
username = "user@example.com"
password = "secret"
country_code = "44"
platform = "smart_life"
region = "eu"

[homekit]
name = "Lights"
pin = "12344321"
port = 51826
storage_dir = "/var/lib/bridge"

[mqtt]
enabled = true
broker = "tcp://localhost:1883"
prefix = "home/tuya"

[dbus]
enabled = false

[devices.dev1]
name = "Desk"
max_brightness = 1000
color_modes = ["colour", "scene"]
zero_is_valid = false

[devices.dev2]
disabled = true

[devices.dev3]
brightness = 255
color_brightness = 100
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, accessory.DefaultPollInterval, cfg.PollInterval.Duration)
	assert.Equal(t, accessory.DefaultCacheTTL, cfg.CacheTTL.Duration)
	assert.Equal(t, "tuya", cfg.Tuya.Platform)
	assert.Equal(t, tuya.DefaultRegion, cfg.Tuya.Region)
	assert.Equal(t, defaultPin, cfg.HomeKit.Pin)
	assert.True(t, cfg.DBus.Enabled)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Empty(t, cfg.Devices)
	assert.Equal(t, "", cfg.Addr())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 10*time.Second, cfg.PollInterval.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.CacheTTL.Duration)
	assert.Equal(t, ":51826", cfg.Addr())
	assert.Equal(t, "/var/lib/bridge", cfg.HomeKit.StorageDir)
	assert.Equal(t, "home/tuya", cfg.MQTT.Prefix)
	assert.Equal(t, defaultMQTTClientID, cfg.MQTT.ClientID)
	assert.False(t, cfg.DBus.Enabled)
	assert.Len(t, cfg.Devices, 3)
	require.NoError(t, cfg.Validate())

	want := tuya.Credentials{
		Username:    "user@example.com",
		Password:    "secret",
		CountryCode: "44",
		Platform:    tuya.PlatformSmartLife,
		Region:      "eu",
	}
	if diff := cmp.Diff(want, cfg.Credentials()); diff != "" {
		t.Errorf("Credentials() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadConfig_EmptyPathUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	if diff := cmp.Diff(NewConfig(), cfg); diff != "" {
		t.Errorf("LoadConfig(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_UnknownKey(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "[tuya]\nusrname = \"typo\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tuya.usrname")
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "poll_interval = \"soon\"\n"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Tuya.Password = "" },
			wantErr: ErrMissingCredentials,
		},
		{
			name:    "short pin",
			mutate:  func(c *Config) { c.HomeKit.Pin = "1234" },
			wantErr: ErrInvalidPin,
		},
		{
			name:    "non numeric pin",
			mutate:  func(c *Config) { c.HomeKit.Pin = "1234abcd" },
			wantErr: ErrInvalidPin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Tuya.Username = "user"
			cfg.Tuya.Password = "pass"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Validate_MQTTWithoutBroker(t *testing.T) {
	cfg := NewConfig()
	cfg.Tuya.Username = "user"
	cfg.Tuya.Password = "pass"
	cfg.MQTT.Enabled = true

	assert.Error(t, cfg.Validate())
}

func TestConfig_Overrides(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	want := map[string]accessory.Override{
		"dev1": {
			Name:          "Desk",
			MaxBrightness: 1000,
			ColorModes:    brightness.NewColorModes(brightness.ModeColour, "scene"),
			ZeroPolicy:    brightness.ZeroIsUnparseable,
		},
		"dev2": {
			Disabled: true,
		},
		"dev3": {
			Data: &tuya.DeviceData{
				Brightness: tuya.NumberOf(255),
				Color:      &tuya.ColorState{Brightness: tuya.NumberOf(100)},
			},
		},
	}

	if diff := cmp.Diff(want, cfg.Overrides()); diff != "" {
		t.Errorf("Overrides() mismatch (-want +got):\n%s", diff)
	}
}

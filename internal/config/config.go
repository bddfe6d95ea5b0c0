// SPDX-License-Identifier: GPL-3.0-only

// Package config loads the bridge configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shini4i/tuya-brightness-bridge/internal/accessory"
	"github.com/shini4i/tuya-brightness-bridge/internal/brightness"
	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

const (
	// DefaultConfigFile is looked up in the working directory when no
	// path is given.
	DefaultConfigFile = "config.toml"

	defaultBridgeName   = "Tuya Brightness Bridge"
	defaultPin          = "00102003"
	defaultStorageDir   = "./db"
	defaultMQTTPrefix   = "tuya"
	defaultMQTTClientID = "tuya-brightness-bridge"
)

var (
	// ErrMissingCredentials is returned when the tuya section lacks a login.
	ErrMissingCredentials = errors.New("tuya username and password are required")

	// ErrInvalidPin is returned for a HomeKit pin that is not 8 digits.
	ErrInvalidPin = errors.New("homekit pin must be 8 digits")
)

// Duration is a time.Duration decoded from a string such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Tuya holds the cloud account settings.
type Tuya struct {
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	CountryCode string `toml:"country_code"`
	Platform    string `toml:"platform"`
	Region      string `toml:"region"`
}

// HomeKit holds the HAP server settings.
type HomeKit struct {
	Name       string `toml:"name"`
	Pin        string `toml:"pin"`
	Port       int    `toml:"port"` // 0 picks a random port
	StorageDir string `toml:"storage_dir"`
}

// MQTT holds the optional state publisher settings.
type MQTT struct {
	Enabled  bool   `toml:"enabled"`
	Broker   string `toml:"broker"`
	ClientID string `toml:"client_id"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Prefix   string `toml:"prefix"`
}

// DBus holds the local session bus settings.
type DBus struct {
	Enabled bool `toml:"enabled"`
}

// Device holds per-device overrides keyed by device id.
type Device struct {
	Name          string   `toml:"name"`
	MaxBrightness int      `toml:"max_brightness"`
	ColorModes    []string `toml:"color_modes"`
	ZeroIsValid   *bool    `toml:"zero_is_valid"`
	Disabled      bool     `toml:"disabled"`
	// Brightness and ColorBrightness force capability detection for
	// devices that report an incomplete data block.
	Brightness      *float64 `toml:"brightness"`
	ColorBrightness *float64 `toml:"color_brightness"`
}

// Config is the bridge configuration.
type Config struct {
	Debug        bool              `toml:"debug"`
	PollInterval Duration          `toml:"poll_interval"`
	CacheTTL     Duration          `toml:"cache_ttl"`
	Tuya         Tuya              `toml:"tuya"`
	HomeKit      HomeKit           `toml:"homekit"`
	MQTT         MQTT              `toml:"mqtt"`
	DBus         DBus              `toml:"dbus"`
	Devices      map[string]Device `toml:"devices"`
}

// NewConfig returns a Config holding the defaults.
func NewConfig() *Config {
	return &Config{
		PollInterval: Duration{accessory.DefaultPollInterval},
		CacheTTL:     Duration{accessory.DefaultCacheTTL},
		Tuya: Tuya{
			Platform: string(tuya.PlatformTuya),
			Region:   tuya.DefaultRegion,
		},
		HomeKit: HomeKit{
			Name:       defaultBridgeName,
			Pin:        defaultPin,
			StorageDir: defaultStorageDir,
		},
		MQTT: MQTT{
			ClientID: defaultMQTTClientID,
			Prefix:   defaultMQTTPrefix,
		},
		DBus:    DBus{Enabled: true},
		Devices: make(map[string]Device),
	}
}

// LoadConfig reads the configuration file at path on top of the defaults.
// An empty path falls back to DefaultConfigFile when it exists.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat(DefaultConfigFile); err != nil {
			return cfg, nil
		}
		path = DefaultConfigFile
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Validate checks the settings required to start the bridge.
func (c *Config) Validate() error {
	if c.Tuya.Username == "" || c.Tuya.Password == "" {
		return ErrMissingCredentials
	}
	if len(c.HomeKit.Pin) != 8 || strings.Trim(c.HomeKit.Pin, "0123456789") != "" {
		return ErrInvalidPin
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt broker is required when mqtt is enabled")
	}
	for id, d := range c.Devices {
		if d.MaxBrightness < 0 {
			return fmt.Errorf("device %s: max_brightness must not be negative", id)
		}
	}
	return nil
}

// Credentials returns the tuya account credentials.
func (c *Config) Credentials() tuya.Credentials {
	return tuya.Credentials{
		Username:    c.Tuya.Username,
		Password:    c.Tuya.Password,
		CountryCode: c.Tuya.CountryCode,
		Platform:    tuya.Platform(c.Tuya.Platform),
		Region:      c.Tuya.Region,
	}
}

// Addr returns the HomeKit listen address.
func (c *Config) Addr() string {
	if c.HomeKit.Port == 0 {
		return ""
	}
	return fmt.Sprintf(":%d", c.HomeKit.Port)
}

// Overrides converts the device sections into accessory overrides.
func (c *Config) Overrides() map[string]accessory.Override {
	out := make(map[string]accessory.Override, len(c.Devices))
	for id, d := range c.Devices {
		o := accessory.Override{
			Name:          d.Name,
			MaxBrightness: d.MaxBrightness,
			Disabled:      d.Disabled,
		}
		if len(d.ColorModes) > 0 {
			modes := make([]brightness.ColorMode, len(d.ColorModes))
			for i, m := range d.ColorModes {
				modes[i] = brightness.ColorMode(m)
			}
			o.ColorModes = brightness.NewColorModes(modes...)
		}
		if d.ZeroIsValid != nil && !*d.ZeroIsValid {
			o.ZeroPolicy = brightness.ZeroIsUnparseable
		}
		if d.Brightness != nil || d.ColorBrightness != nil {
			data := &tuya.DeviceData{}
			if d.Brightness != nil {
				data.Brightness = tuya.NumberOf(*d.Brightness)
			}
			if d.ColorBrightness != nil {
				data.Color = &tuya.ColorState{Brightness: tuya.NumberOf(*d.ColorBrightness)}
			}
			o.Data = data
		}
		out[id] = o
	}
	return out
}

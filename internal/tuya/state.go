// SPDX-License-Identifier: GPL-3.0-only

// Package tuya provides a client for the Tuya Web API used by the Smart Life
// and Tuya Smart home-assistant skill.
package tuya

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shini4i/tuya-brightness-bridge/internal/brightness"
)

// Number is a numeric attribute as reported by the Tuya Web API.
// The API emits both 255 and "255" for the same field depending on firmware.
type Number float64

// UnmarshalJSON accepts JSON numbers and numeric strings.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric string %q: %w", s, err)
		}
		*n = Number(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Float64 returns the value as float64.
func (n Number) Float64() float64 {
	return float64(n)
}

// NumberOf returns a pointer to v, for building states in code.
func NumberOf(v float64) *Number {
	n := Number(v)
	return &n
}

// BoolOf returns a pointer to v, for building states in code.
func BoolOf(v bool) *bool {
	return &v
}

// ColorState is the color sub-state of a light.
type ColorState struct {
	Brightness *Number `json:"brightness,omitempty"`
	Saturation *Number `json:"saturation,omitempty"`
	Hue        *Number `json:"hue,omitempty"`
}

// DeviceState is a snapshot of the attributes a device reports.
// Optional attributes are pointers so that absence differs from zero.
type DeviceState struct {
	Online     *bool                 `json:"online,omitempty"`
	State      any                   `json:"state,omitempty"`
	ColorMode  *brightness.ColorMode `json:"color_mode,omitempty"`
	Brightness *Number               `json:"brightness,omitempty"`
	Color      *ColorState           `json:"color,omitempty"`
}

// IsOnline reports the online flag. A state without one counts as online.
func (s *DeviceState) IsOnline() bool {
	return s != nil && (s.Online == nil || *s.Online)
}

// ColorBrightness returns color.brightness, or nil when absent.
func (s *DeviceState) ColorBrightness() *Number {
	if s == nil || s.Color == nil {
		return nil
	}
	return s.Color.Brightness
}

// String renders the state for diagnostics.
func (s *DeviceState) String() string {
	if s == nil {
		return "<nil>"
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%+v", *s)
	}
	return string(data)
}

// DeviceData is the static capability block returned by discovery.
// It has the same shape as DeviceState, captured once at discovery time.
type DeviceData = DeviceState

// Device is a device entry returned by discovery.
type Device struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	DevType string     `json:"dev_type"`
	HAType  string     `json:"ha_type"`
	Icon    string     `json:"icon,omitempty"`
	Data    DeviceData `json:"data"`
}

// Payload is the vendor command body, e.g. {"value": 55} for brightnessSet.
type Payload map[string]any

// Echo describes the semantic change a command makes, in HomeKit terms.
// Accessories use it for optimistic bookkeeping.
type Echo map[string]int

// SPDX-License-Identifier: GPL-3.0-only

// Package brightness provides utilities for converting between Tuya cloud
// brightness values and HomeKit percentages.
package brightness

import "math"

const (
	// MinPercent is the lowest HomeKit brightness percentage.
	MinPercent = 0

	// MaxPercent is the highest HomeKit brightness percentage.
	MaxPercent = 100

	// CorrectionFactor is the floor added to every vendor brightness command.
	// Tuya devices treat a raw 0 as "off" rather than minimum brightness.
	CorrectionFactor = 10

	// epsilon biases rounding so exact half-integers are not truncated by
	// floating point error.
	epsilon = 1e-9
)

// PercentToVendor converts a HomeKit percentage (0-100) to the value sent with
// the brightnessSet command. The result is linear between 10 (for 0%) and 100
// (for 100%). Out-of-range percentages are clamped before conversion.
func PercentToVendor(percent int) int {
	fraction := float64(ClampPercent(percent)) / 100
	return int(math.Round((100-CorrectionFactor)*fraction + CorrectionFactor + epsilon))
}

// VendorToPercent converts a device-reported brightness on a 0..maxBrightness
// scale to a HomeKit percentage. A non-positive ceiling yields 0.
func VendorToPercent(value, maxBrightness float64) int {
	if maxBrightness <= 0 {
		return MinPercent
	}
	return ClampPercent(int(math.Round(value/maxBrightness*100 + epsilon)))
}

// Round rounds a vendor value that is already on a 0-100 scale.
func Round(value float64) int {
	return ClampPercent(int(math.Round(value + epsilon)))
}

// ClampPercent ensures the percentage is within the valid range.
func ClampPercent(percent int) int {
	if percent < MinPercent {
		return MinPercent
	}
	if percent > MaxPercent {
		return MaxPercent
	}
	return percent
}

// SPDX-License-Identifier: GPL-3.0-only

package brightness

// ColorMode is the operating mode a Tuya light reports in its color_mode field.
type ColorMode string

const (
	// ModeWhite is the plain brightness mode.
	ModeWhite ColorMode = "white"

	// ModeColor is the color-driven mode (US spelling).
	ModeColor ColorMode = "color"

	// ModeColour is the color-driven mode as most Tuya firmware spells it.
	ModeColour ColorMode = "colour"
)

// ColorModes is the set of modes in which color.brightness is authoritative.
type ColorModes map[ColorMode]struct{}

// NewColorModes returns a set holding the given modes.
func NewColorModes(modes ...ColorMode) ColorModes {
	set := make(ColorModes, len(modes))
	for _, m := range modes {
		set[m] = struct{}{}
	}
	return set
}

// DefaultColorModes returns the color-driven modes Tuya devices report.
func DefaultColorModes() ColorModes {
	return NewColorModes(ModeColor, ModeColour)
}

// Contains reports whether mode is in the set.
func (s ColorModes) Contains(mode ColorMode) bool {
	_, ok := s[mode]
	return ok
}

// ZeroPolicy decides how a brightness that parses to 0% is interpreted.
type ZeroPolicy int

const (
	// ZeroIsValid reports 0%.
	ZeroIsValid ZeroPolicy = iota

	// ZeroIsUnparseable fails the parse, whichever field produced the 0.
	ZeroIsUnparseable
)

// String returns the policy name used in logs and config.
func (p ZeroPolicy) String() string {
	if p == ZeroIsUnparseable {
		return "unparseable"
	}
	return "valid"
}

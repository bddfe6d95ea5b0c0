// SPDX-License-Identifier: GPL-3.0-only

package characteristic

import (
	"fmt"

	"github.com/shini4i/tuya-brightness-bridge/internal/tuya"
)

// FetchError is returned when the device state could not be retrieved.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch device state: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError is returned when a retrieved state has no usable brightness.
// State holds the raw device state for diagnostics.
type ParseError struct {
	Characteristic string
	State          *tuya.DeviceState
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("tried to set %s but failed to parse data: %s", e.Characteristic, e.State)
}

// CommandError is returned when a vendor command was rejected or not delivered.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("failed to send %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

package main

import (
	"errors"
	"fmt"

	"github.com/srg/aquamarine/internal/bgapi"
	"github.com/srg/aquamarine/internal/serialport"
)

// Command-level errors
var (
	// ErrModuleBootFailed indicates the module never reported boot, even
	// after the watchdog's reboot retries.
	ErrModuleBootFailed = errors.New("radio module failed to boot")

	// ErrDeviceNotFound indicates the requested device never showed up
	// in scan results within the wait window.
	ErrDeviceNotFound = errors.New("device not discovered")
)

// FormatUserError maps internal errors to actionable one-line messages
// for stderr.
func FormatUserError(err error) string {
	var cmdErr *bgapi.CommandError

	switch {
	case errors.Is(err, serialport.ErrModuleNotFound):
		return fmt.Sprintf("%s (connect the module or pass --port)", err)
	case errors.Is(err, bgapi.ErrResponseTimeout):
		return "the radio module did not respond; check the serial connection and baud rate"
	case errors.Is(err, ErrModuleBootFailed):
		return "the radio module failed to boot; power-cycle it and retry"
	case errors.As(err, &cmdErr):
		return fmt.Sprintf("the radio module rejected a command (result=%#04x)", cmdErr.Code)
	}
	return err.Error()
}

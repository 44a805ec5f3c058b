// Package serialport locates and opens the radio module's serial
// endpoint.
package serialport

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ErrModuleNotFound means no enumerated serial port matched the
// module's product string. This is the fatal module-absent condition:
// it is reported before any session starts.
var ErrModuleNotFound = errors.New("radio module not detected")

// PortInfo describes one candidate serial port.
type PortInfo struct {
	Name    string
	Product string
	IsUSB   bool
}

// listPorts is swapped out in tests.
var listPorts = func() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("serialport: enumeration failed: %w", err)
	}
	out := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		out = append(out, PortInfo{Name: p.Name, Product: p.Product, IsUSB: p.IsUSB})
	}
	return out, nil
}

// List returns all enumerated serial ports.
func List() ([]PortInfo, error) {
	return listPorts()
}

// Find returns the first USB serial port whose product string contains
// match, or ErrModuleNotFound.
func Find(match string) (string, error) {
	ports, err := listPorts()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.IsUSB && strings.Contains(p.Product, match) {
			return p.Name, nil
		}
	}
	return "", fmt.Errorf("%w: no port matching %q", ErrModuleNotFound, match)
}

// Open opens the given serial device with the module's line settings
// (8N1).
func Open(name string, baud int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: opening %s: %w", name, err)
	}
	return port, nil
}

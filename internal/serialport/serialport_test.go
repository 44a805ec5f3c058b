package serialport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPorts(t *testing.T, ports []PortInfo, err error) {
	t.Helper()
	orig := listPorts
	listPorts = func() ([]PortInfo, error) { return ports, err }
	t.Cleanup(func() { listPorts = orig })
}

func TestFindMatchesProductSubstring(t *testing.T) {
	stubPorts(t, []PortInfo{
		{Name: "/dev/ttyS0", Product: "", IsUSB: false},
		{Name: "/dev/ttyACM0", Product: "JLink CDC UART Port", IsUSB: true},
		{Name: "/dev/ttyACM1", Product: "JLink CDC UART Port", IsUSB: true},
	}, nil)

	name, err := Find("JLink CDC UART")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", name, "first match wins")
}

func TestFindIgnoresNonUSBPorts(t *testing.T) {
	stubPorts(t, []PortInfo{
		{Name: "/dev/ttyS0", Product: "JLink CDC UART Port", IsUSB: false},
	}, nil)

	_, err := Find("JLink CDC UART")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestFindNoMatch(t *testing.T) {
	stubPorts(t, []PortInfo{
		{Name: "/dev/ttyUSB0", Product: "Arduino Uno", IsUSB: true},
	}, nil)

	_, err := Find("JLink CDC UART")
	assert.ErrorIs(t, err, ErrModuleNotFound)
}

func TestFindPropagatesEnumerationError(t *testing.T) {
	enumErr := errors.New("usb subsystem unavailable")
	stubPorts(t, nil, enumErr)

	_, err := Find("JLink CDC UART")
	assert.ErrorIs(t, err, enumErr)
}

func TestListReturnsAllPorts(t *testing.T) {
	stubPorts(t, []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM0", Product: "JLink CDC UART Port", IsUSB: true},
	}, nil)

	ports, err := List()
	require.NoError(t, err)
	assert.Len(t, ports, 2)
}

package main

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/srg/aquamarine/internal/device"
)

// writeCmd represents the write command
var writeCmd = &cobra.Command{
	Use:   "write <device-address> <characteristic-uuid> <hex-value>",
	Short: "Write a value to a characteristic",
	Long: `Connects to a BLE device, resolves a characteristic by UUID, and
writes a hex-encoded value to it.

Examples:
  # Write a single byte
  aquamarine write 00:11:22:33:44:55 2A06 01

  # Odd-length input gets a leading zero (writes 0x0ABC)
  aquamarine write 00:11:22:33:44:55 2A06 ABC`,
	Args: cobra.ExactArgs(3),
	RunE: runWrite,
}

var writeConnectTimeout time.Duration

func init() {
	writeCmd.Flags().DurationVar(&writeConnectTimeout, "connect-timeout", 30*time.Second, "Time to discover and connect to the device")
}

func runWrite(cmd *cobra.Command, args []string) error {
	address := strings.ToUpper(args[0])
	charUUID := strings.ToUpper(args[1])

	value, err := parseHexValue(args[2])
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	m, err := openSession(cmd, logger)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx, cancel := signalContext()
	defer cancel()

	snap, err := connectAndDiscover(ctx, m, address, writeConnectTimeout)
	if err != nil {
		return err
	}

	ch, ok := findCharacteristic(snap, charUUID)
	if !ok {
		return fmt.Errorf("device %s has no characteristic %s", address, charUUID)
	}
	if !ch.Props.Writable() {
		return fmt.Errorf("characteristic %s does not support writes", charUUID)
	}

	m.sess.Write(address, ch.Handle, value)

	err = m.waitFor(ctx, m.cfg.GATTCommandTimeout+time.Second, fmt.Errorf("write to %s timed out", charUUID), func() bool {
		s, ok := m.sess.Device(address)
		return ok && !s.Busy
	})
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %d bytes to %s\n", len(value), charUUID)
	m.sess.Disconnect(address)
	return nil
}

// parseHexValue decodes a hex string, tolerating spaces and common
// separators. An odd number of digits gets a leading zero.
func parseHexValue(s string) ([]byte, error) {
	cleaned := strings.ReplaceAll(s, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.TrimPrefix(cleaned, "0x")
	if len(cleaned)%2 == 1 {
		cleaned = "0" + cleaned
	}

	value, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex value %q: %w", s, err)
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	return value, nil
}

func findCharacteristic(d device.DeviceSnapshot, uuid string) (device.CharacteristicSnapshot, bool) {
	for _, svc := range d.Services {
		for _, ch := range svc.Characteristics {
			if ch.UUID == uuid {
				return ch, true
			}
		}
	}
	return device.CharacteristicSnapshot{}, false
}

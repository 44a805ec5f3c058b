package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/srg/aquamarine/internal/blenames"
	"github.com/srg/aquamarine/internal/device"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <device-address>",
	Short: "Inspect services and characteristics of a BLE device",
	Long: `Connects to a BLE device by address and discovers its services and
characteristics. With --read, readable characteristic values are read
and shown as hex.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var (
	inspectConnectTimeout time.Duration
	inspectRead           bool
)

func init() {
	inspectCmd.Flags().DurationVar(&inspectConnectTimeout, "connect-timeout", 30*time.Second, "Time to discover and connect to the device")
	inspectCmd.Flags().BoolVar(&inspectRead, "read", false, "Read the value of every readable characteristic")
}

func runInspect(cmd *cobra.Command, args []string) error {
	address := strings.ToUpper(args[0])

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

	snap, err := connectAndDiscover(ctx, m, address, inspectConnectTimeout)
	if err != nil {
		return err
	}

	if inspectRead {
		if snap, err = readAllCharacteristics(ctx, m, address); err != nil {
			return err
		}
	}

	if err := displayDeviceTree(snap); err != nil {
		return err
	}

	m.sess.Disconnect(address)
	return nil
}

// signalContext returns a context cancelled by Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// connectAndDiscover waits for the device to appear in scan results,
// connects, and waits until service and characteristic discovery
// settles. It returns the settled snapshot.
func connectAndDiscover(ctx context.Context, m *moduleSession, address string, timeout time.Duration) (device.DeviceSnapshot, error) {
	if err := m.awaitBoot(ctx); err != nil {
		return device.DeviceSnapshot{}, err
	}

	err := m.waitFor(ctx, timeout, fmt.Errorf("%w: %s", ErrDeviceNotFound, address), func() bool {
		_, ok := m.sess.Device(address)
		return ok
	})
	if err != nil {
		return device.DeviceSnapshot{}, err
	}

	m.sess.Connect(address)

	err = m.waitFor(ctx, timeout, fmt.Errorf("connecting to %s timed out", address), func() bool {
		snap, ok := m.sess.Device(address)
		return ok && snap.Connected && !snap.Busy
	})
	if err != nil {
		return device.DeviceSnapshot{}, err
	}

	snap, _ := m.sess.Device(address)
	return snap, nil
}

// readAllCharacteristics reads every readable characteristic one at a
// time; the session permits a single GATT procedure per device.
func readAllCharacteristics(ctx context.Context, m *moduleSession, address string) (device.DeviceSnapshot, error) {
	snap, _ := m.sess.Device(address)
	readTimeout := m.cfg.GATTCommandTimeout + time.Second

	for _, svc := range snap.Services {
		for _, ch := range svc.Characteristics {
			if !ch.Props.Readable() {
				continue
			}
			m.sess.Read(address, ch.Handle)

			err := m.waitFor(ctx, readTimeout, fmt.Errorf("reading characteristic %s timed out", ch.UUID), func() bool {
				s, ok := m.sess.Device(address)
				return ok && !s.Busy
			})
			if err != nil {
				return device.DeviceSnapshot{}, err
			}
		}
	}

	snap, _ = m.sess.Device(address)
	return snap, nil
}

func displayDeviceTree(d device.DeviceSnapshot) error {
	title := color.New(color.Bold)
	fmt.Printf("%s  %d dBm", title.Sprint(d.Address), d.RSSI)
	if name := device.LocalName(d.Packet); name != "" {
		fmt.Printf("  %q", name)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, svc := range d.Services {
		fmt.Fprintf(w, "service %s\t%s\t\t\n", svc.UUID, blenames.Service(svc.UUID))
		for _, ch := range svc.Characteristics {
			value := ""
			if len(ch.Value) > 0 {
				value = hex.EncodeToString(ch.Value)
			}
			fmt.Fprintf(w, "  char %s\t%s\t[%s]\t%s\n",
				ch.UUID, blenames.Characteristic(ch.UUID), propsString(ch.Props), value)
		}
	}
	return w.Flush()
}

func propsString(p device.Properties) string {
	var out []string
	if p.Readable() {
		out = append(out, "read")
	}
	if p.Writable() {
		out = append(out, "write")
	}
	if p.Notifiable() {
		out = append(out, "notify")
	}
	if p.Indicatable() {
		out = append(out, "indicate")
	}
	return strings.Join(out, " ")
}

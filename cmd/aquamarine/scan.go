package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/aquamarine/internal/device"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for BLE devices",
	Long: `Scan for and display Bluetooth Low Energy devices in the vicinity.

The radio module reports advertisements as it hears them; the table is
refreshed in place while the scan runs and printed once more when it
ends.`,
	RunE: runScan,
}

var (
	scanDuration time.Duration
	scanWatch    bool
)

const scanRefreshInterval = 500 * time.Millisecond

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration (0 for indefinite)")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Scan until interrupted, updating the table in place")
}

func runScan(cmd *cobra.Command, args []string) error {
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if !scanWatch && scanDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, scanDuration)
		defer cancel()
	}

	// Listen for Ctrl+C to cancel
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nCtrl+C pressed, stopping scan...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := m.awaitBoot(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	live := term.IsTerminal(int(os.Stdout.Fd()))
	ticker := time.NewTicker(scanRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if live {
				clearScreen()
			}
			return displayDeviceTable(m.sess.Devices())
		case <-m.sess.Done():
			return ErrModuleBootFailed
		case <-ticker.C:
			if live {
				clearScreen()
				_ = displayDeviceTable(m.sess.Devices())
			}
		}
	}
}

func displayDeviceTable(devices []device.DeviceSnapshot) error {
	if len(devices) == 0 {
		fmt.Println("No devices discovered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header := color.New(color.Bold)
	fmt.Fprintln(w, header.Sprint("ADDRESS\tNAME\tRSSI\tCONNECTABLE\tSTATE"))
	fmt.Fprintln(w, strings.Repeat("-", 70))

	for _, d := range devices {
		name := truncateName(device.LocalName(d.Packet), 20)

		connectable := "no"
		if d.Connectable {
			connectable = "yes"
		}

		fmt.Fprintf(w, "%s\t%s\t%d dBm\t%s\t%s\n",
			d.Address, name, d.RSSI, connectable, deviceState(d))
	}

	return w.Flush()
}

// truncateName shortens a display name to max runes. Advertised names
// are arbitrary UTF-8, so the cut must not split a rune.
func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max-3]) + "..."
}

func deviceState(d device.DeviceSnapshot) string {
	switch {
	case d.Connected && d.Busy:
		return "discovering"
	case d.Connected:
		return "connected"
	case d.Connecting:
		return "connecting"
	default:
		return ""
	}
}

func clearScreen() {
	var w io.Writer = os.Stdout
	fmt.Fprint(w, "\033[2J\033[H")
}

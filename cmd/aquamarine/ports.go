package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/srg/aquamarine/internal/serialport"
)

// portsCmd represents the ports command
var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports and mark the detected radio module",
	RunE:  runPorts,
}

func runPorts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	ports, err := serialport.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PORT\tPRODUCT\tUSB\tMODULE")
	for _, p := range ports {
		usb := ""
		if p.IsUSB {
			usb = "yes"
		}
		module := ""
		if p.IsUSB && strings.Contains(p.Product, cfg.PortMatch) {
			module = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Product, usb, module)
	}
	return w.Flush()
}

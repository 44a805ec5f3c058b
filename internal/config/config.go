// Package config holds the runtime configuration for the module
// session: serial transport selection, protocol timeouts, and watchdog
// tuning. Values come from an optional YAML file layered over struct
// defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration.
type Config struct {
	// Port is the serial device path. Empty means auto-detect by
	// PortMatch.
	Port string `yaml:"port"`
	// PortMatch selects the radio module among enumerated USB serial
	// ports by product-string substring.
	PortMatch string `yaml:"port_match" default:"JLink CDC UART"`
	BaudRate  int    `yaml:"baud_rate" default:"115200"`

	// ResponseTimeout bounds how long a command waits for its
	// response frame.
	ResponseTimeout time.Duration `yaml:"response_timeout" default:"1s"`
	// EventPollTimeout is the event-loop dequeue timeout; it bounds
	// how quickly the loop notices a stop request.
	EventPollTimeout time.Duration `yaml:"event_poll_timeout" default:"100ms"`
	// GATTCommandTimeout forces a characteristic back to Idle when the
	// module never reports completion for a read/write/subscribe.
	// Zero disables the deadline.
	GATTCommandTimeout time.Duration `yaml:"gatt_command_timeout" default:"10s"`

	Watchdog Watchdog `yaml:"watchdog"`
}

// Watchdog tunes boot supervision.
type Watchdog struct {
	// BootGrace is how long to wait for the first Boot event before
	// rebooting.
	BootGrace time.Duration `yaml:"boot_grace" default:"1s"`
	// RebootWait is how long to wait for Boot after each reboot
	// command.
	RebootWait time.Duration `yaml:"reboot_wait" default:"10s"`
	// MaxRetries bounds reboot attempts before the session gives up.
	MaxRetries int `yaml:"max_retries" default:"3"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := new(Config)
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

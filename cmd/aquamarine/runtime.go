package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/srg/aquamarine/internal/bgapi"
	"github.com/srg/aquamarine/internal/config"
	"github.com/srg/aquamarine/internal/serialport"
	"github.com/srg/aquamarine/session"
)

const statePollInterval = 100 * time.Millisecond

// moduleSession bundles the running session with its transport so
// commands can tear everything down in one place.
type moduleSession struct {
	cfg    *config.Config
	sess   *session.Session
	client *bgapi.Client
}

// loadConfig reads the --config file (if any) and applies the --port
// override.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		cfg.Port = port
	}
	return cfg, nil
}

// openSession locates the module's serial port, starts the protocol
// client and the session with its watchdog. The caller must Close the
// returned moduleSession.
func openSession(cmd *cobra.Command, logger *logrus.Logger) (*moduleSession, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	name := cfg.Port
	if name == "" {
		name, err = serialport.Find(cfg.PortMatch)
		if err != nil {
			return nil, err
		}
	}
	logger.WithField("port", name).Info("opening radio module")

	port, err := serialport.Open(name, cfg.BaudRate)
	if err != nil {
		return nil, err
	}

	client := bgapi.NewClient(port, logger, bgapi.WithResponseTimeout(cfg.ResponseTimeout))
	sess := session.New(cfg, client, client, logger)
	sess.Start()

	return &moduleSession{cfg: cfg, sess: sess, client: client}, nil
}

func (m *moduleSession) Close() {
	m.sess.Stop()
	<-m.sess.Done()
	_ = m.client.Close()
}

// awaitBoot waits for the module's boot event. The watchdog reboots a
// silent module, so the wait is bounded by its retry budget.
func (m *moduleSession) awaitBoot(ctx context.Context) error {
	wd := m.cfg.Watchdog
	deadline := wd.BootGrace + time.Duration(wd.MaxRetries)*wd.RebootWait + time.Second

	return m.waitFor(ctx, deadline, ErrModuleBootFailed, m.sess.Ready)
}

// waitFor polls cond until it holds, the context is cancelled, the
// session dies, or timeout elapses (yielding timeoutErr).
func (m *moduleSession) waitFor(ctx context.Context, timeout time.Duration, timeoutErr error, cond func() bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(statePollInterval)
	defer ticker.Stop()

	for {
		if cond() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.sess.Done():
			return ErrModuleBootFailed
		case <-timer.C:
			return timeoutErr
		case <-ticker.C:
		}
	}
}

// Package session implements the event-driven controller for a
// serial-attached BLE radio module. The session owns the device
// collection, issues module commands, consumes the module's event
// stream on a dedicated goroutine, and supervises module boot through
// a watchdog.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/aquamarine/internal/bgapi"
	"github.com/srg/aquamarine/internal/config"
	"github.com/srg/aquamarine/internal/device"
	"github.com/srg/aquamarine/internal/groutine"
)

// Session drives the discovery/command protocol against the radio
// module. All entity state is mutated under the registry lock; the
// event loop is the only writer for event-driven state, and the public
// GATT operations mutate command state before issuing their commands.
//
// Public operations are deliberately silent no-ops when their
// preconditions fail: callers poll snapshots for busy state instead of
// handling errors.
type Session struct {
	cfg      *config.Config
	log      *logrus.Logger
	client   bgapi.Commander
	events   bgapi.EventSource
	registry *device.Registry

	// pending holds the per-device FIFO of issued procedures awaiting
	// ProcedureCompleted. Guarded by the registry lock: it is only
	// touched inside Mutate callbacks.
	pending map[string][]pendingOp

	// opsMu serializes the public GATT operations so their
	// check-then-issue sequences do not interleave.
	opsMu sync.Mutex

	readyOnce sync.Once
	stopOnce  sync.Once
	ready     chan struct{}
	stop      chan struct{}
	done      chan struct{}
}

// New creates a session over an already-open module client. The
// registry starts empty; Start begins event consumption.
func New(cfg *config.Config, client bgapi.Commander, events bgapi.EventSource, logger *logrus.Logger) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Session{
		cfg:      cfg,
		log:      logger,
		client:   client,
		events:   events,
		registry: device.NewRegistry(),
		pending:  make(map[string][]pendingOp),
		ready:    make(chan struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Devices returns a deep-copied snapshot of the collection in
// discovery order, safe to read while the session runs.
func (s *Session) Devices() []device.DeviceSnapshot {
	return s.registry.Snapshot()
}

// Device returns a snapshot of a single device by address.
func (s *Session) Device(address string) (device.DeviceSnapshot, bool) {
	return s.registry.SnapshotByAddress(address)
}

// Start launches the event loop and the boot watchdog.
func (s *Session) Start() {
	groutine.Go(nil, "session-loop", func(context.Context) { s.loop() })
	groutine.Go(nil, "boot-watchdog", func(context.Context) { s.watchdog() })
}

// Stop requests a graceful stop. The event loop exits after its
// current dequeue; no in-flight module command is cancelled. Safe to
// call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Done is closed once the event loop has exited, either after Stop or
// after watchdog exhaustion.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Ready reports whether the module has signaled boot.
func (s *Session) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// loop consumes the event stream strictly in arrival order. Events are
// gated until the module boots; only Boot passes the gate. Poll
// timeouts double as the tick for the GATT command deadline.
func (s *Session) loop() {
	defer close(s.done)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		ev, ok := s.events.Poll(s.cfg.EventPollTimeout)
		if !ok {
			s.log.Warn("event source closed, stopping session")
			s.Stop()
			return
		}
		if ev == nil {
			s.expirePending(time.Now())
			continue
		}

		if _, isBoot := ev.(bgapi.Boot); !isBoot && !s.Ready() {
			continue
		}
		s.dispatch(ev)
	}
}

package testutils

import (
	"fmt"
	"sync"
	"time"

	"github.com/srg/aquamarine/internal/bgapi"
)

// FakeModule is a scripted radio module for tests. It implements
// bgapi.Commander by recording every issued command, and
// bgapi.EventSource from a queue the test feeds with Emit. Commands
// succeed unless an error was injected with FailWith.
type FakeModule struct {
	mu       sync.Mutex
	commands []string
	errs     map[string]error

	// ConnectionHandle is what the next ConnectionOpen returns.
	ConnectionHandle uint8

	events chan bgapi.Event
}

// NewFakeModule creates a fake with connection handle 1 and room for a
// generous event backlog.
func NewFakeModule() *FakeModule {
	return &FakeModule{
		ConnectionHandle: 1,
		errs:             make(map[string]error),
		events:           make(chan bgapi.Event, 64),
	}
}

// Emit queues an event for Poll.
func (m *FakeModule) Emit(ev bgapi.Event) {
	m.events <- ev
}

// CloseEvents closes the event stream, as a real client does on
// transport shutdown.
func (m *FakeModule) CloseEvents() {
	close(m.events)
}

// Poll implements bgapi.EventSource.
func (m *FakeModule) Poll(timeout time.Duration) (bgapi.Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ev, ok := <-m.events:
		return ev, ok
	case <-timer.C:
		return nil, true
	}
}

// FailWith makes the named command return err. Command names follow
// the Commander method names.
func (m *FakeModule) FailWith(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[name] = err
}

// Commands returns the formatted command log in issue order.
func (m *FakeModule) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.commands...)
}

// Reset clears the command log.
func (m *FakeModule) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

func (m *FakeModule) record(name string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := name
	for _, a := range args {
		entry += fmt.Sprintf(" %v", a)
	}
	m.commands = append(m.commands, entry)
	return m.errs[name]
}

func (m *FakeModule) ScannerStart(phy, mode uint8) error {
	return m.record("ScannerStart", phy, mode)
}

func (m *FakeModule) ConnectionOpen(address string, addressType, phy uint8) (uint8, error) {
	if err := m.record("ConnectionOpen", address, addressType, phy); err != nil {
		return 0, err
	}
	return m.ConnectionHandle, nil
}

func (m *FakeModule) ConnectionClose(conn uint8) error {
	return m.record("ConnectionClose", conn)
}

func (m *FakeModule) DiscoverPrimaryServices(conn uint8) error {
	return m.record("DiscoverPrimaryServices", conn)
}

func (m *FakeModule) DiscoverCharacteristics(conn uint8, service uint32) error {
	return m.record("DiscoverCharacteristics", conn, service)
}

func (m *FakeModule) ReadCharacteristic(conn uint8, characteristic uint16) error {
	return m.record("ReadCharacteristic", conn, characteristic)
}

func (m *FakeModule) WriteCharacteristic(conn uint8, characteristic uint16, value []byte) error {
	return m.record("WriteCharacteristic", conn, characteristic, fmt.Sprintf("%X", value))
}

func (m *FakeModule) SetCharacteristicNotification(conn uint8, characteristic uint16, flags uint8) error {
	return m.record("SetCharacteristicNotification", conn, characteristic, flags)
}

func (m *FakeModule) SendCharacteristicConfirmation(conn uint8) error {
	return m.record("SendCharacteristicConfirmation", conn)
}

func (m *FakeModule) SystemReboot() error {
	return m.record("SystemReboot")
}

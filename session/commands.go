package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/aquamarine/internal/bgapi"
	"github.com/srg/aquamarine/internal/device"
)

// Public GATT operations. Every operation is a silent no-op when its
// precondition fails; the module's GATT procedure model permits only
// one outstanding procedure per connection, and the session scopes
// that conservatively to one procedure per device.

// Connect issues a connection attempt for the device at address. It is
// a no-op while any connection attempt is already in flight, or when
// the device is unknown or already holds a handle. The returned module
// handle is stored on the device; the connected flag is only set by
// the connection-opened event.
func (s *Session) Connect(address string) {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	var (
		addressType uint8
		ok          bool
	)
	s.registry.Read(func(c *device.Collection) {
		if c.Connecting() != nil {
			return
		}
		d := c.ByAddress(address)
		if d == nil || d.Handle != nil {
			return
		}
		addressType = d.AddressType
		ok = true
	})
	if !ok {
		return
	}

	handle, err := s.client.ConnectionOpen(address, addressType, bgapi.PHY1M)
	if err != nil {
		s.log.WithError(err).WithField("address", address).Error("connection attempt failed")
		return
	}

	s.registry.Mutate(func(c *device.Collection) {
		if d := c.ByAddress(address); d != nil {
			h := handle
			d.Handle = &h
		}
	})
}

// Disconnect asks the module to close the device's connection. State
// is only updated by the subsequent connection-closed event.
func (s *Session) Disconnect(address string) {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	var (
		conn uint8
		ok   bool
	)
	s.registry.Read(func(c *device.Collection) {
		if d := c.ByAddress(address); d != nil && d.Handle != nil {
			conn = *d.Handle
			ok = true
		}
	})
	if !ok {
		return
	}

	if err := s.client.ConnectionClose(conn); err != nil {
		s.log.WithError(err).WithField("address", address).Error("disconnect failed")
	}
}

// Read requests the value of a characteristic by handle.
func (s *Session) Read(address string, characteristic uint16) {
	s.gattCommand(address, characteristic, device.Reading, nil, func(conn uint8) error {
		return s.client.ReadCharacteristic(conn, characteristic)
	})
}

// Write writes value to a characteristic by handle. The value is
// stored on the characteristic immediately; completion only resets the
// command state.
func (s *Session) Write(address string, characteristic uint16, value []byte) {
	value = append([]byte(nil), value...)
	s.gattCommand(address, characteristic, device.Writing, value, func(conn uint8) error {
		return s.client.WriteCharacteristic(conn, characteristic, value)
	})
}

// SubscribeNotify subscribes to notifications for a characteristic.
func (s *Session) SubscribeNotify(address string, characteristic uint16) {
	s.gattCommand(address, characteristic, device.SubscribingNotify, nil, func(conn uint8) error {
		return s.client.SetCharacteristicNotification(conn, characteristic, 1)
	})
}

// SubscribeIndicate subscribes to indications for a characteristic.
func (s *Session) SubscribeIndicate(address string, characteristic uint16) {
	s.gattCommand(address, characteristic, device.SubscribingIndicate, nil, func(conn uint8) error {
		return s.client.SetCharacteristicNotification(conn, characteristic, 2)
	})
}

// gattCommand runs the shared precondition check (device known,
// connected, not busy, characteristic known), applies the command
// state, pushes the pending token, and issues the command. A failed
// issue leaves the state in place; the GATT command deadline clears
// it.
func (s *Session) gattCommand(address string, characteristic uint16, state device.CharacteristicState, value []byte, issue func(conn uint8) error) {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	var (
		conn uint8
		ok   bool
	)
	s.registry.Mutate(func(c *device.Collection) {
		d := c.ByAddress(address)
		if d == nil || !d.Connected || d.Busy() {
			return
		}
		ch := d.CharacteristicByHandle(characteristic)
		if ch == nil {
			return
		}

		ch.State = state
		if value != nil {
			ch.Value = value
		}
		conn = *d.Handle
		s.push(d.Address, pendingOp{kind: opCharCommand, charHandle: characteristic, issuedAt: time.Now()})
		ok = true
	})
	if !ok {
		return
	}

	if err := issue(conn); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"address":        address,
			"characteristic": characteristic,
			"state":          state,
		}).Error("GATT command failed")
	}
}

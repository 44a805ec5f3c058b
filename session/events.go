package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/aquamarine/internal/bgapi"
	"github.com/srg/aquamarine/internal/device"
)

// dispatch routes one event to its handler. Events referencing unknown
// devices, connections, or services are dropped without error:
// transient races such as an event for an already-closed connection
// are expected protocol noise.
func (s *Session) dispatch(ev bgapi.Event) {
	switch e := ev.(type) {
	case bgapi.Boot:
		s.onBoot(e)
	case bgapi.AdvertisementReport:
		s.onAdvertisement(e)
	case bgapi.ConnectionOpened:
		s.onConnectionOpened(e)
	case bgapi.ConnectionClosed:
		s.onConnectionClosed(e)
	case bgapi.ServiceDiscovered:
		s.onService(e)
	case bgapi.CharacteristicDiscovered:
		s.onCharacteristic(e)
	case bgapi.CharacteristicValue:
		s.onCharacteristicValue(e)
	case bgapi.ProcedureCompleted:
		s.onProcedureCompleted(e)
	default:
		s.log.WithField("event", ev).Debug("dropping unhandled event")
	}
}

// onBoot marks the module ready and starts scanning: generic discovery
// over both 1M and Coded PHY.
func (s *Session) onBoot(ev bgapi.Boot) {
	s.log.WithFields(logrus.Fields{
		"version": logrus.Fields{"major": ev.Major, "minor": ev.Minor, "patch": ev.Patch},
	}).Info("module booted")
	s.markReady()

	if err := s.client.ScannerStart(bgapi.ScanPHY1MAndCoded, bgapi.DiscoverModeGeneric); err != nil {
		s.log.WithError(err).Error("failed to start scanning")
	}
}

// onAdvertisement resolves or creates the device by address and
// overwrites its transient fields with the report's values.
func (s *Session) onAdvertisement(ev bgapi.AdvertisementReport) {
	s.registry.Mutate(func(c *device.Collection) {
		d := c.GetOrCreate(ev.Address)
		d.ApplyAdvertisement(ev.Data, ev.EventFlags, ev.AddressType, ev.RSSI)
	})
}

// onConnectionOpened marks the device connected and kicks off a fresh
// primary-service discovery round. Earlier discovery results are
// discarded, not merged.
func (s *Session) onConnectionOpened(ev bgapi.ConnectionOpened) {
	var found bool
	s.registry.Mutate(func(c *device.Collection) {
		d := c.ByAddress(ev.Address)
		if d == nil {
			return
		}
		found = true

		handle := ev.Connection
		d.Handle = &handle
		d.Connected = true
		d.Services = nil

		s.clearPending(d.Address)
		s.push(d.Address, pendingOp{kind: opServiceRound, issuedAt: time.Now()})
	})
	if !found {
		return
	}

	if err := s.client.DiscoverPrimaryServices(ev.Connection); err != nil {
		s.log.WithError(err).WithField("address", ev.Address).Error("failed to start service discovery")
	}
}

// onConnectionClosed clears the connection state. Services and
// characteristics stay in place, stale, until the next reconnect
// discovery replaces them.
func (s *Session) onConnectionClosed(ev bgapi.ConnectionClosed) {
	s.registry.Mutate(func(c *device.Collection) {
		d := c.ByConnection(ev.Connection)
		if d == nil {
			return
		}
		s.log.WithFields(logrus.Fields{
			"address": d.Address,
			"reason":  ev.Reason,
		}).Info("connection closed")

		d.Connected = false
		d.Handle = nil
		s.clearPending(d.Address)
	})
}

// onService appends a newly reported primary service in the
// Discovering state.
func (s *Session) onService(ev bgapi.ServiceDiscovered) {
	s.registry.Mutate(func(c *device.Collection) {
		d := c.ByConnection(ev.Connection)
		if d == nil {
			return
		}
		d.Services = append(d.Services, device.NewService(device.UUIDFromModule(ev.UUID), ev.Service))
	})
}

// onCharacteristic appends a characteristic to the service currently
// being discovered. With no service in Discovering state the event is
// dropped.
func (s *Session) onCharacteristic(ev bgapi.CharacteristicDiscovered) {
	s.registry.Mutate(func(c *device.Collection) {
		d := c.ByConnection(ev.Connection)
		if d == nil {
			return
		}
		svc := d.DiscoveringService()
		if svc == nil {
			return
		}
		svc.Characteristics = append(svc.Characteristics, device.NewCharacteristic(
			device.UUIDFromModule(ev.UUID), ev.Characteristic, device.Properties(ev.Properties)))
	})
}

// onCharacteristicValue stores a delivered payload. Indications are
// acknowledged before any state mutation: the module withholds the
// next indication until the confirmation is sent. Command state is not
// cleared here — only ProcedureCompleted resolves it.
func (s *Session) onCharacteristicValue(ev bgapi.CharacteristicValue) {
	if ev.AttOpcode == bgapi.AttOpcodeHandleValueIndication {
		if err := s.client.SendCharacteristicConfirmation(ev.Connection); err != nil {
			s.log.WithError(err).Warn("failed to confirm indication")
		}
	}

	s.registry.Mutate(func(c *device.Collection) {
		d := c.ByConnection(ev.Connection)
		if d == nil {
			return
		}
		ch := d.CharacteristicByHandle(ev.Characteristic)
		if ch == nil {
			return
		}
		ch.Value = append([]byte(nil), ev.Value...)
	})
}

// onProcedureCompleted resolves the head pending token for the
// device's connection, then drives the next service's characteristic
// discovery so one service completes before the next begins.
func (s *Session) onProcedureCompleted(ev bgapi.ProcedureCompleted) {
	var issue func() error
	var address string

	s.registry.Mutate(func(c *device.Collection) {
		d := c.ByConnection(ev.Connection)
		if d == nil {
			return
		}
		address = d.Address

		if op, ok := s.pop(d.Address); ok {
			s.resolve(d, op)
		}

		if svc := d.DiscoveringService(); svc != nil {
			conn := ev.Connection
			svcHandle := svc.Handle
			s.push(d.Address, pendingOp{kind: opCharDiscovery, serviceHandle: svcHandle, issuedAt: time.Now()})
			issue = func() error { return s.client.DiscoverCharacteristics(conn, svcHandle) }
		}
	})

	if issue != nil {
		if err := issue(); err != nil {
			s.log.WithError(err).WithField("address", address).Error("failed to start characteristic discovery")
		}
	}
}

// resolve applies one completed procedure token. Caller must hold the
// registry lock.
func (s *Session) resolve(d *device.Device, op pendingOp) {
	switch op.kind {
	case opServiceRound:
		// The round delivered the service list; the first service not
		// yet Discovered is considered closed out.
		for _, svc := range d.Services {
			if svc.State != device.Discovered {
				svc.State = device.Discovered
				return
			}
		}
	case opCharDiscovery:
		if svc := d.ServiceByHandle(op.serviceHandle); svc != nil {
			svc.State = device.Discovered
		}
	case opCharCommand:
		if ch := d.CharacteristicByHandle(op.charHandle); ch != nil {
			ch.State = device.Idle
		}
	}
}

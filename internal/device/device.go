package device

import "strings"

// Device holds everything observed about a single BLE peripheral. The
// address is the sole identity key; re-advertisement updates the
// existing Device in place. Fields are guarded by the owning Registry
// lock — the session event loop is the only writer.
type Device struct {
	Address string // uppercase hex with separators, e.g. "00:11:22:33:44:55"

	// Handle is the module connection handle. It is non-nil from the
	// moment a connect command is issued until the connection-closed
	// event, so Handle != nil && !Connected means an attempt is in
	// flight.
	Handle *uint8

	Packet      []byte // last advertisement payload
	Connectable bool
	AddressType uint8
	RSSI        int8

	Connected bool
	Services  []*Service
}

// NewDevice creates a device for a freshly observed address. The
// address is normalized to uppercase.
func NewDevice(address string) *Device {
	return &Device{Address: strings.ToUpper(address)}
}

// ApplyAdvertisement overwrites the transient advertisement fields
// unconditionally. Bit 0 of eventFlags marks a connectable
// advertisement.
func (d *Device) ApplyAdvertisement(packet []byte, eventFlags, addressType uint8, rssi int8) {
	d.Packet = packet
	d.Connectable = eventFlags&0x01 != 0
	d.AddressType = addressType
	d.RSSI = rssi
}

// Connecting reports whether a connection attempt is in flight: a
// handle has been assigned but the connection-opened event has not
// arrived yet.
func (d *Device) Connecting() bool {
	return d.Handle != nil && !d.Connected
}

// Busy reports whether any GATT procedure is outstanding against this
// device: a service still being discovered, or a characteristic with a
// command in flight. New read/write/subscribe requests are dropped
// while busy.
func (d *Device) Busy() bool {
	for _, s := range d.Services {
		if s.State != Discovered {
			return true
		}
		for _, c := range s.Characteristics {
			if c.State != Idle {
				return true
			}
		}
	}
	return false
}

// DiscoveringService returns the service currently in the Discovering
// state, scanning in insertion order, or nil. At most one service is
// Discovering at a time.
func (d *Device) DiscoveringService() *Service {
	for _, s := range d.Services {
		if s.State == Discovering {
			return s
		}
	}
	return nil
}

// ServiceByUUID returns the first service with the given UUID, or nil.
func (d *Device) ServiceByUUID(uuid string) *Service {
	for _, s := range d.Services {
		if s.UUID == uuid {
			return s
		}
	}
	return nil
}

// ServiceByHandle returns the first service with the given handle, or nil.
func (d *Device) ServiceByHandle(handle uint32) *Service {
	for _, s := range d.Services {
		if s.Handle == handle {
			return s
		}
	}
	return nil
}

// CharacteristicByUUID scans all services for the first characteristic
// with the given UUID, or nil.
func (d *Device) CharacteristicByUUID(uuid string) *Characteristic {
	for _, s := range d.Services {
		if c := s.CharacteristicByUUID(uuid); c != nil {
			return c
		}
	}
	return nil
}

// CharacteristicByHandle scans all services for the first
// characteristic with the given handle, or nil.
func (d *Device) CharacteristicByHandle(handle uint16) *Characteristic {
	for _, s := range d.Services {
		if c := s.CharacteristicByHandle(handle); c != nil {
			return c
		}
	}
	return nil
}

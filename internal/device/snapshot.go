package device

// Snapshot types are deep copies handed to consumers (the CLI renderer)
// so they can be read without holding the registry lock.

type CharacteristicSnapshot struct {
	UUID   string
	Handle uint16
	Props  Properties
	State  CharacteristicState
	Value  []byte
}

type ServiceSnapshot struct {
	UUID            string
	Handle          uint32
	State           ServiceState
	Characteristics []CharacteristicSnapshot
}

type DeviceSnapshot struct {
	Address     string
	Connectable bool
	AddressType uint8
	RSSI        int8
	Packet      []byte
	Connected   bool
	Connecting  bool
	Busy        bool
	Services    []ServiceSnapshot
}

// Snapshot returns a deep copy of the whole collection in discovery
// order.
func (r *Registry) Snapshot() []DeviceSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DeviceSnapshot, 0, r.devices.Len())
	for pair := r.devices.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, snapshotDevice(pair.Value))
	}
	return out
}

// SnapshotByAddress returns a deep copy of a single device. The second
// result is false if the address is unknown.
func (r *Registry) SnapshotByAddress(address string) (DeviceSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d := (&Collection{devices: r.devices}).ByAddress(address)
	if d == nil {
		return DeviceSnapshot{}, false
	}
	return snapshotDevice(d), true
}

func snapshotDevice(d *Device) DeviceSnapshot {
	snap := DeviceSnapshot{
		Address:     d.Address,
		Connectable: d.Connectable,
		AddressType: d.AddressType,
		RSSI:        d.RSSI,
		Packet:      append([]byte(nil), d.Packet...),
		Connected:   d.Connected,
		Connecting:  d.Connecting(),
		Busy:        d.Busy(),
		Services:    make([]ServiceSnapshot, 0, len(d.Services)),
	}
	for _, s := range d.Services {
		ss := ServiceSnapshot{
			UUID:            s.UUID,
			Handle:          s.Handle,
			State:           s.State,
			Characteristics: make([]CharacteristicSnapshot, 0, len(s.Characteristics)),
		}
		for _, c := range s.Characteristics {
			ss.Characteristics = append(ss.Characteristics, CharacteristicSnapshot{
				UUID:   c.UUID,
				Handle: c.Handle,
				Props:  c.Props,
				State:  c.State,
				Value:  append([]byte(nil), c.Value...),
			})
		}
		snap.Services = append(snap.Services, ss)
	}
	return snap
}

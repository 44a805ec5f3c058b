package device

// ServiceState tracks whether characteristic discovery has finished for
// a service. A service never reverts to Discovering.
type ServiceState int

const (
	Discovering ServiceState = iota + 1
	Discovered
)

// String returns a short human-readable state name for logging and display.
func (s ServiceState) String() string {
	switch s {
	case Discovering:
		return "discovering"
	case Discovered:
		return "discovered"
	default:
		return "unknown"
	}
}

// Service holds the state of a single discovered GATT service. Fields
// are guarded by the owning Registry lock.
type Service struct {
	UUID   string // big-endian uppercase hex
	Handle uint32 // module-assigned, unique within the device

	State           ServiceState
	Characteristics []*Characteristic
}

// NewService creates a service in the Discovering state.
func NewService(uuid string, handle uint32) *Service {
	return &Service{
		UUID:   uuid,
		Handle: handle,
		State:  Discovering,
	}
}

// CharacteristicByUUID returns the first characteristic with the given
// UUID, or nil. Matching is exact.
func (s *Service) CharacteristicByUUID(uuid string) *Characteristic {
	for _, c := range s.Characteristics {
		if c.UUID == uuid {
			return c
		}
	}
	return nil
}

// CharacteristicByHandle returns the first characteristic with the
// given handle, or nil.
func (s *Service) CharacteristicByHandle(handle uint16) *Characteristic {
	for _, c := range s.Characteristics {
		if c.Handle == handle {
			return c
		}
	}
	return nil
}

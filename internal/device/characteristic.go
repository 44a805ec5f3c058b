package device

// CharacteristicState tracks the GATT command currently outstanding
// against a characteristic. A characteristic is Idle unless exactly one
// read/write/subscribe procedure is in flight.
type CharacteristicState int

const (
	Idle CharacteristicState = iota
	Reading
	Writing
	SubscribingNotify
	SubscribingIndicate
)

// String returns a short human-readable state name for logging and display.
func (s CharacteristicState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case Writing:
		return "writing"
	case SubscribingNotify:
		return "subscribing-notify"
	case SubscribingIndicate:
		return "subscribing-indicate"
	default:
		return "unknown"
	}
}

// Properties is the GATT characteristic property bitmask as reported by
// the radio module.
type Properties uint8

const (
	PropBroadcast            Properties = 0x01
	PropRead                 Properties = 0x02
	PropWriteWithoutResponse Properties = 0x04
	PropWrite                Properties = 0x08
	PropNotify               Properties = 0x10
	PropIndicate             Properties = 0x20
)

func (p Properties) Readable() bool    { return p&PropRead != 0 }
func (p Properties) Writable() bool    { return p&PropWrite != 0 }
func (p Properties) Notifiable() bool  { return p&PropNotify != 0 }
func (p Properties) Indicatable() bool { return p&PropIndicate != 0 }

// Characteristic holds the state of a single discovered GATT
// characteristic. Fields are guarded by the owning Registry lock.
type Characteristic struct {
	UUID   string // big-endian uppercase hex
	Handle uint16 // module-assigned, unique within the service
	Props  Properties

	State CharacteristicState
	Value []byte // last known payload, nil until first read/notify
}

// NewCharacteristic creates a characteristic in the Idle state.
func NewCharacteristic(uuid string, handle uint16, props Properties) *Characteristic {
	return &Characteristic{
		UUID:   uuid,
		Handle: handle,
		Props:  props,
	}
}

package bgapi

import "time"

// Event is one asynchronous message from the radio module. The
// concrete type is the discriminator; payloads carry already-decoded
// fields only.
type Event interface {
	event()
}

// Boot is emitted once the module firmware is up and accepting
// commands.
type Boot struct {
	Major, Minor, Patch uint16
}

// AdvertisementReport is one received legacy advertisement.
type AdvertisementReport struct {
	Address     string
	Data        []byte
	EventFlags  uint8
	AddressType uint8
	RSSI        int8
}

// ConnectionOpened signals that a connection attempt succeeded.
type ConnectionOpened struct {
	Address    string
	Connection uint8
}

// ConnectionClosed signals that a connection ended, locally or
// remotely.
type ConnectionClosed struct {
	Connection uint8
	Reason     uint16
}

// ServiceDiscovered is one primary service found during discovery.
// UUID is in module byte order (little-endian).
type ServiceDiscovered struct {
	Connection uint8
	UUID       []byte
	Service    uint32
}

// CharacteristicDiscovered is one characteristic found during
// discovery. UUID is in module byte order (little-endian).
type CharacteristicDiscovered struct {
	Connection     uint8
	UUID           []byte
	Characteristic uint16
	Properties     uint8
}

// CharacteristicValue delivers a read response, notification, or
// indication payload.
type CharacteristicValue struct {
	Connection     uint8
	Characteristic uint16
	AttOpcode      uint8
	Value          []byte
}

// ProcedureCompleted signals that the most recently issued multi-step
// GATT procedure on the connection has finished.
type ProcedureCompleted struct {
	Connection uint8
	Result     uint16
}

func (Boot) event()                     {}
func (AdvertisementReport) event()      {}
func (ConnectionOpened) event()         {}
func (ConnectionClosed) event()         {}
func (ServiceDiscovered) event()        {}
func (CharacteristicDiscovered) event() {}
func (CharacteristicValue) event()      {}
func (ProcedureCompleted) event()       {}

// ATT opcodes seen in CharacteristicValue events. Indications must be
// acknowledged with SendCharacteristicConfirmation before the module
// delivers the next one.
const (
	AttOpcodeReadResponse          = 0x0B
	AttOpcodeHandleValueNotify     = 0x1B
	AttOpcodeHandleValueIndication = 0x1D
)

// Scanner and connection parameters.
const (
	ScanPHY1MAndCoded   = 0x05
	DiscoverModeGeneric = 0x01
	PHY1M               = 0x01
)

// Commander is the imperative command surface of the radio module.
// Implementations must be safe for concurrent use: the session event
// loop and the boot watchdog both issue commands.
type Commander interface {
	ScannerStart(phy, mode uint8) error
	ConnectionOpen(address string, addressType, phy uint8) (uint8, error)
	ConnectionClose(conn uint8) error
	DiscoverPrimaryServices(conn uint8) error
	DiscoverCharacteristics(conn uint8, service uint32) error
	ReadCharacteristic(conn uint8, characteristic uint16) error
	WriteCharacteristic(conn uint8, characteristic uint16, value []byte) error
	SetCharacteristicNotification(conn uint8, characteristic uint16, flags uint8) error
	SendCharacteristicConfirmation(conn uint8) error
	SystemReboot() error
}

// EventSource yields the module's event stream. Poll blocks up to
// timeout; it returns (nil, true) on timeout and ok=false once the
// source is closed.
type EventSource interface {
	Poll(timeout time.Duration) (Event, bool)
}

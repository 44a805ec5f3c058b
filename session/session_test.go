package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/srg/aquamarine/internal/bgapi"
	"github.com/srg/aquamarine/internal/config"
	"github.com/srg/aquamarine/internal/device"
	"github.com/srg/aquamarine/internal/testutils"
)

const (
	addrA = "00:11:22:33:44:55"
	addrB = "66:77:88:99:AA:BB"
)

type SessionSuite struct {
	suite.Suite

	mod  *testutils.FakeModule
	sess *Session
}

func (s *SessionSuite) SetupTest() {
	s.mod = testutils.NewFakeModule()
	cfg := config.Default()
	cfg.EventPollTimeout = 10 * time.Millisecond
	s.sess = New(cfg, s.mod, s.mod, testutils.NewTestLogger(s.T()))
}

// boot marks the module ready and clears the scanner-start command
// from the log so tests assert only their own commands.
func (s *SessionSuite) boot() {
	s.sess.dispatch(bgapi.Boot{Major: 1})
	s.mod.Reset()
}

func (s *SessionSuite) advertise(address string) {
	s.sess.dispatch(bgapi.AdvertisementReport{
		Address:     address,
		Data:        []byte{0x02, 0x01, 0x06},
		EventFlags:  0x01,
		AddressType: 1,
		RSSI:        -42,
	})
}

// connectDevice runs the full connect handshake for address on
// connection handle 1.
func (s *SessionSuite) connectDevice(address string) {
	s.advertise(address)
	s.sess.Connect(address)
	s.sess.dispatch(bgapi.ConnectionOpened{Address: address, Connection: 1})
}

// discoverTwoServices walks a device through discovery of services
// 180F (handle 0x10) and 1802 (handle 0x20), with one characteristic
// 2A19 (handle 0x21) landing in the second service. The device ends
// idle and not busy.
func (s *SessionSuite) discoverTwoServices(address string) {
	s.sess.dispatch(bgapi.ServiceDiscovered{Connection: 1, UUID: []byte{0x0F, 0x18}, Service: 0x10})
	s.sess.dispatch(bgapi.ServiceDiscovered{Connection: 1, UUID: []byte{0x02, 0x18}, Service: 0x20})
	s.sess.dispatch(bgapi.ProcedureCompleted{Connection: 1})
	s.sess.dispatch(bgapi.CharacteristicDiscovered{
		Connection: 1, UUID: []byte{0x19, 0x2A}, Characteristic: 0x21, Properties: 0x3A,
	})
	s.sess.dispatch(bgapi.ProcedureCompleted{Connection: 1})
}

func (s *SessionSuite) TestBootStartsScanning() {
	s.sess.dispatch(bgapi.Boot{Major: 1})

	s.True(s.sess.Ready())
	s.Equal([]string{"ScannerStart 5 1"}, s.mod.Commands())
}

func (s *SessionSuite) TestAdvertisementCreatesDeviceOnce() {
	s.boot()

	s.advertise(addrA)
	s.advertise(addrA)

	devs := s.sess.Devices()
	s.Require().Len(devs, 1)
	s.Equal(addrA, devs[0].Address)
	s.Equal(int8(-42), devs[0].RSSI)
	s.True(devs[0].Connectable)
	s.Equal([]byte{0x02, 0x01, 0x06}, devs[0].Packet)
}

func (s *SessionSuite) TestAdvertisementOverwritesFields() {
	s.boot()
	s.advertise(addrA)

	s.sess.dispatch(bgapi.AdvertisementReport{
		Address:     addrA,
		Data:        []byte{0xFF},
		EventFlags:  0x00, // no longer connectable
		AddressType: 0,
		RSSI:        -90,
	})

	devs := s.sess.Devices()
	s.Require().Len(devs, 1)
	s.Equal(int8(-90), devs[0].RSSI)
	s.False(devs[0].Connectable)
	s.Equal([]byte{0xFF}, devs[0].Packet)
}

func (s *SessionSuite) TestConnectIssuesOpenAndStoresHandle() {
	s.boot()
	s.advertise(addrA)

	s.sess.Connect(addrA)

	s.Equal([]string{"ConnectionOpen " + addrA + " 1 1"}, s.mod.Commands())
	dev, ok := s.sess.Device(addrA)
	s.Require().True(ok)
	s.True(dev.Connecting)
	s.False(dev.Connected)
}

func (s *SessionSuite) TestConnectExclusivity() {
	s.boot()
	s.advertise(addrA)
	s.advertise(addrB)

	s.sess.Connect(addrA) // attempt now in flight for A
	s.mod.Reset()

	s.sess.Connect(addrB)

	s.Empty(s.mod.Commands())
	dev, ok := s.sess.Device(addrB)
	s.Require().True(ok)
	s.False(dev.Connecting)
}

func (s *SessionSuite) TestConnectUnknownDeviceIsNoop() {
	s.boot()

	s.sess.Connect(addrA)

	s.Empty(s.mod.Commands())
}

func (s *SessionSuite) TestConnectionOpenedStartsServiceDiscovery() {
	s.boot()
	s.connectDevice(addrA)

	dev, ok := s.sess.Device(addrA)
	s.Require().True(ok)
	s.True(dev.Connected)
	s.Contains(s.mod.Commands(), "DiscoverPrimaryServices 1")
}

func (s *SessionSuite) TestConnectionOpenedForUnknownAddressDropped() {
	s.boot()

	s.sess.dispatch(bgapi.ConnectionOpened{Address: addrA, Connection: 1})

	s.Empty(s.mod.Commands())
	s.Empty(s.sess.Devices())
}

func (s *SessionSuite) TestConnectionClosedClearsHandle() {
	s.boot()
	s.connectDevice(addrA)

	s.sess.dispatch(bgapi.ConnectionClosed{Connection: 1, Reason: 0x13})

	dev, ok := s.sess.Device(addrA)
	s.Require().True(ok)
	s.False(dev.Connected)
	s.False(dev.Connecting)
}

func (s *SessionSuite) TestServiceUUIDByteOrder() {
	s.boot()
	s.connectDevice(addrA)

	s.sess.dispatch(bgapi.ServiceDiscovered{Connection: 1, UUID: []byte{0xCD, 0xAB}, Service: 0x10})

	dev, _ := s.sess.Device(addrA)
	s.Require().Len(dev.Services, 1)
	s.Equal("ABCD", dev.Services[0].UUID)
	s.Equal(device.Discovering, dev.Services[0].State)
}

func (s *SessionSuite) TestDiscoverySequencing() {
	s.boot()
	s.connectDevice(addrA)
	s.mod.Reset()

	s.sess.dispatch(bgapi.ServiceDiscovered{Connection: 1, UUID: []byte{0x0F, 0x18}, Service: 0x10})
	s.sess.dispatch(bgapi.ServiceDiscovered{Connection: 1, UUID: []byte{0x02, 0x18}, Service: 0x20})

	// First completion closes the service round: S1 becomes
	// Discovered and characteristic discovery starts for S2.
	s.sess.dispatch(bgapi.ProcedureCompleted{Connection: 1})
	dev, _ := s.sess.Device(addrA)
	s.Equal(device.Discovered, dev.Services[0].State)
	s.Equal(device.Discovering, dev.Services[1].State)
	s.Equal([]string{"DiscoverCharacteristics 1 32"}, s.mod.Commands())
	s.True(dev.Busy)

	// Second completion closes S2; the device goes idle.
	s.sess.dispatch(bgapi.ProcedureCompleted{Connection: 1})
	dev, _ = s.sess.Device(addrA)
	s.Equal(device.Discovered, dev.Services[1].State)
	s.False(dev.Busy)
}

func (s *SessionSuite) TestCharacteristicAppendsToDiscoveringService() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)

	dev, _ := s.sess.Device(addrA)
	s.Require().Len(dev.Services, 2)
	s.Empty(dev.Services[0].Characteristics)
	s.Require().Len(dev.Services[1].Characteristics, 1)

	ch := dev.Services[1].Characteristics[0]
	s.Equal("2A19", ch.UUID)
	s.Equal(uint16(0x21), ch.Handle)
	s.True(ch.Props.Readable())
	s.True(ch.Props.Writable())
	s.True(ch.Props.Notifiable())
	s.True(ch.Props.Indicatable())
}

func (s *SessionSuite) TestCharacteristicWithoutDiscoveringServiceDropped() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)

	s.sess.dispatch(bgapi.CharacteristicDiscovered{
		Connection: 1, UUID: []byte{0x00, 0x2A}, Characteristic: 0x30, Properties: 0x02,
	})

	dev, _ := s.sess.Device(addrA)
	s.Len(dev.Services[0].Characteristics, 0)
	s.Len(dev.Services[1].Characteristics, 1)
}

func (s *SessionSuite) TestEventsForUnknownConnectionDropped() {
	s.boot()

	s.sess.dispatch(bgapi.ServiceDiscovered{Connection: 9, UUID: []byte{0x0F, 0x18}, Service: 0x10})
	s.sess.dispatch(bgapi.CharacteristicDiscovered{Connection: 9, UUID: []byte{0x19, 0x2A}, Characteristic: 1})
	s.sess.dispatch(bgapi.ConnectionClosed{Connection: 9})
	s.sess.dispatch(bgapi.ProcedureCompleted{Connection: 9})

	s.Empty(s.mod.Commands())
	s.Empty(s.sess.Devices())
}

func (s *SessionSuite) TestWriteRoundTrip() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)
	s.mod.Reset()

	s.sess.Write(addrA, 0x21, []byte{0xAB, 0xCD})

	s.Equal([]string{"WriteCharacteristic 1 33 ABCD"}, s.mod.Commands())
	dev, _ := s.sess.Device(addrA)
	ch := dev.Services[1].Characteristics[0]
	s.Equal(device.Writing, ch.State)
	s.Equal([]byte{0xAB, 0xCD}, ch.Value)
	s.True(dev.Busy)

	s.sess.dispatch(bgapi.ProcedureCompleted{Connection: 1})

	dev, _ = s.sess.Device(addrA)
	ch = dev.Services[1].Characteristics[0]
	s.Equal(device.Idle, ch.State)
	s.Equal([]byte{0xAB, 0xCD}, ch.Value, "completion must not touch the stored value")
	s.False(dev.Busy)
}

func (s *SessionSuite) TestReadSetsStateAndCompletionClearsIt() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)
	s.mod.Reset()

	s.sess.Read(addrA, 0x21)

	s.Equal([]string{"ReadCharacteristic 1 33"}, s.mod.Commands())
	dev, _ := s.sess.Device(addrA)
	s.Equal(device.Reading, dev.Services[1].Characteristics[0].State)

	// The value arrives first, then the completion.
	s.sess.dispatch(bgapi.CharacteristicValue{
		Connection: 1, Characteristic: 0x21, AttOpcode: bgapi.AttOpcodeReadResponse, Value: []byte{0x64},
	})
	dev, _ = s.sess.Device(addrA)
	s.Equal(device.Reading, dev.Services[1].Characteristics[0].State, "value report must not clear command state")
	s.Equal([]byte{0x64}, dev.Services[1].Characteristics[0].Value)

	s.sess.dispatch(bgapi.ProcedureCompleted{Connection: 1})
	dev, _ = s.sess.Device(addrA)
	s.Equal(device.Idle, dev.Services[1].Characteristics[0].State)
}

func (s *SessionSuite) TestCommandsDroppedWhileBusy() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)
	s.mod.Reset()

	s.sess.Read(addrA, 0x21)
	s.sess.Read(addrA, 0x21)
	s.sess.Write(addrA, 0x21, []byte{0x01})

	s.Equal([]string{"ReadCharacteristic 1 33"}, s.mod.Commands())
}

func (s *SessionSuite) TestCommandsDroppedWhileDiscovering() {
	s.boot()
	s.connectDevice(addrA)
	s.sess.dispatch(bgapi.ServiceDiscovered{Connection: 1, UUID: []byte{0x0F, 0x18}, Service: 0x10})
	s.mod.Reset()

	// Service still Discovering: the device is busy.
	s.sess.Read(addrA, 0x21)

	s.Empty(s.mod.Commands())
}

func (s *SessionSuite) TestCommandsDroppedWhenDisconnected() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)
	s.sess.dispatch(bgapi.ConnectionClosed{Connection: 1})
	s.mod.Reset()

	s.sess.Read(addrA, 0x21)

	s.Empty(s.mod.Commands())
}

func (s *SessionSuite) TestSubscribeNotifyAndIndicate() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)
	s.mod.Reset()

	s.sess.SubscribeNotify(addrA, 0x21)
	dev, _ := s.sess.Device(addrA)
	s.Equal(device.SubscribingNotify, dev.Services[1].Characteristics[0].State)

	s.sess.dispatch(bgapi.ProcedureCompleted{Connection: 1})
	s.sess.SubscribeIndicate(addrA, 0x21)
	dev, _ = s.sess.Device(addrA)
	s.Equal(device.SubscribingIndicate, dev.Services[1].Characteristics[0].State)

	s.Equal([]string{
		"SetCharacteristicNotification 1 33 1",
		"SetCharacteristicNotification 1 33 2",
	}, s.mod.Commands())
}

func (s *SessionSuite) TestIndicationIsConfirmed() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)
	s.mod.Reset()

	s.sess.dispatch(bgapi.CharacteristicValue{
		Connection: 1, Characteristic: 0x21, AttOpcode: bgapi.AttOpcodeHandleValueIndication, Value: []byte{0x05},
	})

	s.Equal([]string{"SendCharacteristicConfirmation 1"}, s.mod.Commands())
	dev, _ := s.sess.Device(addrA)
	s.Equal([]byte{0x05}, dev.Services[1].Characteristics[0].Value)
}

func (s *SessionSuite) TestNotificationIsNotConfirmed() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)
	s.mod.Reset()

	s.sess.dispatch(bgapi.CharacteristicValue{
		Connection: 1, Characteristic: 0x21, AttOpcode: bgapi.AttOpcodeHandleValueNotify, Value: []byte{0x06},
	})

	s.Empty(s.mod.Commands())
	dev, _ := s.sess.Device(addrA)
	s.Equal([]byte{0x06}, dev.Services[1].Characteristics[0].Value)
}

func (s *SessionSuite) TestReconnectRebuildsServices() {
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)

	s.sess.dispatch(bgapi.ConnectionClosed{Connection: 1})

	// Stale services remain visible while disconnected.
	dev, _ := s.sess.Device(addrA)
	s.Len(dev.Services, 2)

	// A fresh connection clears them before rediscovery.
	s.sess.Connect(addrA)
	s.sess.dispatch(bgapi.ConnectionOpened{Address: addrA, Connection: 1})
	dev, _ = s.sess.Device(addrA)
	s.Empty(dev.Services)
}

func (s *SessionSuite) TestGATTCommandDeadline() {
	s.sess.cfg.GATTCommandTimeout = 20 * time.Millisecond
	s.boot()
	s.connectDevice(addrA)
	s.discoverTwoServices(addrA)

	s.sess.Write(addrA, 0x21, []byte{0x01})
	dev, _ := s.sess.Device(addrA)
	s.Equal(device.Writing, dev.Services[1].Characteristics[0].State)

	// Not yet expired.
	s.sess.expirePending(time.Now())
	dev, _ = s.sess.Device(addrA)
	s.Equal(device.Writing, dev.Services[1].Characteristics[0].State)

	// Past the deadline the command state is forced back to Idle.
	s.sess.expirePending(time.Now().Add(50 * time.Millisecond))
	dev, _ = s.sess.Device(addrA)
	s.Equal(device.Idle, dev.Services[1].Characteristics[0].State)
	s.False(dev.Busy)
}

func (s *SessionSuite) TestDisconnect() {
	s.boot()
	s.connectDevice(addrA)
	s.mod.Reset()

	s.sess.Disconnect(addrA)
	s.Equal([]string{"ConnectionClose 1"}, s.mod.Commands())

	// No local state change until the event arrives.
	dev, _ := s.sess.Device(addrA)
	s.True(dev.Connected)
}

func (s *SessionSuite) TestDisconnectWithoutHandleIsNoop() {
	s.boot()
	s.advertise(addrA)

	s.sess.Disconnect(addrA)

	s.Empty(s.mod.Commands())
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

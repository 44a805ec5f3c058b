package bgapi

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/smallnest/ringbuffer"
)

// Wire format: 4-byte header followed by the payload.
//
//	hdr[0]  message type in the high bits, payload length bits 10..8 in
//	        the low three bits
//	hdr[1]  payload length bits 7..0
//	hdr[2]  command class
//	hdr[3]  command method / event id
//
// Multi-byte scalars in payloads are little-endian. Device addresses
// travel LSB first.
const (
	msgCommand byte = 0x20 // commands and their responses
	msgEvent   byte = 0xA0

	maxPayload = 0x07FF
)

// Command classes.
const (
	classSystem     byte = 0x01
	classScanner    byte = 0x05
	classConnection byte = 0x06
	classGATT       byte = 0x09
)

// Command methods.
const (
	cmdSystemReboot                byte = 0x01
	cmdScannerStart                byte = 0x03
	cmdConnectionOpen              byte = 0x04
	cmdConnectionClose             byte = 0x05
	cmdGATTDiscoverPrimaryServices byte = 0x01
	cmdGATTDiscoverCharacteristics byte = 0x03
	cmdGATTSetNotification         byte = 0x06
	cmdGATTReadCharacteristic      byte = 0x07
	cmdGATTWriteCharacteristic     byte = 0x09
	cmdGATTSendConfirmation        byte = 0x0D
)

// Event ids.
const (
	evtSystemBoot          byte = 0x00
	evtScannerLegacyReport byte = 0x00
	evtConnectionOpened    byte = 0x00
	evtConnectionClosed    byte = 0x01
	evtGATTService         byte = 0x01
	evtGATTCharacteristic  byte = 0x02
	evtGATTProcedureDone   byte = 0x03
	evtGATTValue           byte = 0x04
)

type frame struct {
	msgType byte
	class   byte
	method  byte
	payload []byte
}

// key identifies a command (and its response) for waiter correlation.
func (f frame) key() uint16 {
	return uint16(f.class)<<8 | uint16(f.method)
}

func encodeFrame(f frame) ([]byte, error) {
	n := len(f.payload)
	if n > maxPayload {
		return nil, fmt.Errorf("bgapi: payload too large: %d bytes", n)
	}
	buf := make([]byte, 4+n)
	buf[0] = f.msgType | byte(n>>8)
	buf[1] = byte(n)
	buf[2] = f.class
	buf[3] = f.method
	copy(buf[4:], f.payload)
	return buf, nil
}

// frameParser extracts frames from the serial byte stream. Bytes are
// accumulated in a ring buffer so partial reads from the port never
// lose framing.
type frameParser struct {
	buf *ringbuffer.RingBuffer

	// pending header, valid while havehdr is true
	havehdr bool
	hdr     [4]byte
}

func newFrameParser(size int) *frameParser {
	return &frameParser{buf: ringbuffer.New(size)}
}

// feed appends raw bytes from the port.
func (p *frameParser) feed(data []byte) error {
	_, err := p.buf.Write(data)
	return err
}

// next returns the next complete frame, or ok=false if more bytes are
// needed.
func (p *frameParser) next() (frame, bool) {
	if !p.havehdr {
		if p.buf.Length() < 4 {
			return frame{}, false
		}
		if _, err := p.buf.Read(p.hdr[:]); err != nil {
			return frame{}, false
		}
		p.havehdr = true
	}

	length := int(p.hdr[0]&0x07)<<8 | int(p.hdr[1])
	if p.buf.Length() < length {
		return frame{}, false
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := p.buf.Read(payload); err != nil {
			return frame{}, false
		}
	}
	p.havehdr = false

	return frame{
		msgType: p.hdr[0] &^ 0x07,
		class:   p.hdr[2],
		method:  p.hdr[3],
		payload: payload,
	}, true
}

// parseAddress converts "AA:BB:CC:DD:EE:FF" to the 6-byte LSB-first
// wire form.
func parseAddress(address string) ([6]byte, error) {
	var out [6]byte
	parts := strings.Split(address, ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("bgapi: malformed address %q", address)
	}
	for i, part := range parts {
		b, err := hex.DecodeString(part)
		if err != nil || len(b) != 1 {
			return out, fmt.Errorf("bgapi: malformed address %q", address)
		}
		out[5-i] = b[0]
	}
	return out, nil
}

// formatAddress converts the 6-byte LSB-first wire form to uppercase
// colon-separated hex.
func formatAddress(raw []byte) string {
	parts := make([]string, 0, 6)
	for i := len(raw) - 1; i >= 0; i-- {
		parts = append(parts, fmt.Sprintf("%02X", raw[i]))
	}
	return strings.Join(parts, ":")
}

func putUint16(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
func putUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func getUint16(b []byte) uint16    { return binary.LittleEndian.Uint16(b) }
func getUint32(b []byte) uint32    { return binary.LittleEndian.Uint32(b) }

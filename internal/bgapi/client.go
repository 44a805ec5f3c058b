package bgapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/aquamarine/internal/groutine"
	"github.com/srg/aquamarine/internal/ringchan"
)

// Result codes returned in command responses and ProcedureCompleted
// events. Zero means success.
type Result uint16

// CommandError is a non-zero result code returned by the module for a
// command.
type CommandError struct {
	Class  byte
	Method byte
	Code   Result
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("bgapi: command %#02x/%#02x failed: result=%#04x", e.Class, e.Method, e.Code)
}

var (
	// ErrResponseTimeout means the module did not answer a command
	// within the configured window.
	ErrResponseTimeout = errors.New("bgapi: response timeout")
	// ErrClosed means the client was closed while a command was
	// waiting for its response.
	ErrClosed = errors.New("bgapi: client closed")
)

const (
	defaultResponseTimeout = time.Second
	rxBufferSize           = 4096
	eventQueueSize         = 256
)

// Client drives a BGAPI-framed radio module over a byte stream,
// typically a serial port. Commands are synchronous: the calling
// goroutine blocks until the matching response frame arrives or the
// timeout fires. Asynchronous event frames are decoded and queued for
// Poll. Safe for concurrent command issuers.
type Client struct {
	port    io.ReadWriteCloser
	log     *logrus.Logger
	timeout time.Duration

	writeMu sync.Mutex // serializes frame writes to the port
	waiters *hashmap.Map[uint16, chan frame]
	events  *ringchan.Ring[Event]

	closeOnce sync.Once
	closed    chan struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithResponseTimeout overrides the per-command response window.
func WithResponseTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client over the given transport and starts the
// reader goroutine. The caller keeps ownership of nothing: Close tears
// down the transport.
func NewClient(port io.ReadWriteCloser, logger *logrus.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logrus.New()
	}

	c := &Client{
		port:    port,
		log:     logger,
		timeout: defaultResponseTimeout,
		waiters: hashmap.New[uint16, chan frame](),
		events:  ringchan.New[Event](eventQueueSize),
		closed:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	groutine.Go(nil, "bgapi-reader", func(context.Context) { c.readLoop() })
	return c
}

// Poll implements EventSource.
func (c *Client) Poll(timeout time.Duration) (Event, bool) {
	return c.events.Receive(timeout)
}

// Close shuts the transport down and unblocks all pending commands and
// Poll callers. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.port.Close()
	})
	return err
}

// command writes one frame and waits for the matching response.
func (c *Client) command(class, method byte, payload []byte) (frame, error) {
	raw, err := encodeFrame(frame{msgType: msgCommand, class: class, method: method, payload: payload})
	if err != nil {
		return frame{}, err
	}

	key := uint16(class)<<8 | uint16(method)
	waiter := make(chan frame, 1)
	c.waiters.Set(key, waiter)
	defer c.waiters.Del(key)

	c.writeMu.Lock()
	_, err = c.port.Write(raw)
	c.writeMu.Unlock()
	if err != nil {
		return frame{}, fmt.Errorf("bgapi: write failed: %w", err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		return resp, nil
	case <-timer.C:
		return frame{}, ErrResponseTimeout
	case <-c.closed:
		return frame{}, ErrClosed
	}
}

// commandCheck issues a command whose response is a bare result code.
func (c *Client) commandCheck(class, method byte, payload []byte) error {
	resp, err := c.command(class, method, payload)
	if err != nil {
		return err
	}
	return checkResult(resp)
}

func checkResult(resp frame) error {
	if len(resp.payload) < 2 {
		return truncated(resp)
	}
	if code := Result(getUint16(resp.payload[0:2])); code != 0 {
		return &CommandError{Class: resp.class, Method: resp.method, Code: code}
	}
	return nil
}

// readLoop pulls bytes off the port, reassembles frames, and routes
// them. It exits when the port read fails, which Close forces.
func (c *Client) readLoop() {
	defer c.events.Close()

	parser := newFrameParser(rxBufferSize)
	buf := make([]byte, 512)

	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			if err := parser.feed(buf[:n]); err != nil {
				c.log.WithError(err).Warn("bgapi: rx buffer overflow, dropping bytes")
			}
			c.dispatchFrames(parser)
		}
		if err != nil {
			select {
			case <-c.closed:
				// normal shutdown
			default:
				c.log.WithError(err).Error("bgapi: transport read failed")
			}
			if dropped := c.events.Dropped(); dropped > 0 {
				c.log.WithField("dropped", dropped).Warn("bgapi: event queue overflowed during session")
			}
			return
		}
	}
}

func (c *Client) dispatchFrames(parser *frameParser) {
	for {
		f, ok := parser.next()
		if !ok {
			return
		}

		switch f.msgType {
		case msgEvent:
			ev, err := decodeEvent(f)
			if err != nil {
				c.log.WithError(err).Debug("bgapi: dropping undecodable event")
				continue
			}
			c.events.Send(ev)

		case msgCommand:
			if waiter, ok := c.waiters.Get(f.key()); ok {
				select {
				case waiter <- f:
				default: // stale duplicate response
				}
			} else {
				c.log.WithFields(logrus.Fields{
					"class":  fmt.Sprintf("%#02x", f.class),
					"method": fmt.Sprintf("%#02x", f.method),
				}).Debug("bgapi: dropping unsolicited response")
			}

		default:
			c.log.WithField("type", fmt.Sprintf("%#02x", f.msgType)).Debug("bgapi: dropping unknown frame type")
		}
	}
}

// ScannerStart begins advertisement scanning.
func (c *Client) ScannerStart(phy, mode uint8) error {
	return c.commandCheck(classScanner, cmdScannerStart, []byte{phy, mode})
}

// ConnectionOpen starts a connection attempt and returns the handle
// the module assigned to it.
func (c *Client) ConnectionOpen(address string, addressType, phy uint8) (uint8, error) {
	addr, err := parseAddress(address)
	if err != nil {
		return 0, err
	}
	payload := make([]byte, 8)
	copy(payload, addr[:])
	payload[6] = addressType
	payload[7] = phy

	resp, err := c.command(classConnection, cmdConnectionOpen, payload)
	if err != nil {
		return 0, err
	}
	if err := checkResult(resp); err != nil {
		return 0, err
	}
	if len(resp.payload) < 3 {
		return 0, truncated(resp)
	}
	return resp.payload[2], nil
}

// ConnectionClose asks the module to tear down a connection. The
// connection-closed event follows asynchronously.
func (c *Client) ConnectionClose(conn uint8) error {
	return c.commandCheck(classConnection, cmdConnectionClose, []byte{conn})
}

// DiscoverPrimaryServices starts a primary service discovery round.
func (c *Client) DiscoverPrimaryServices(conn uint8) error {
	return c.commandCheck(classGATT, cmdGATTDiscoverPrimaryServices, []byte{conn})
}

// DiscoverCharacteristics starts characteristic discovery for one
// service.
func (c *Client) DiscoverCharacteristics(conn uint8, service uint32) error {
	payload := make([]byte, 5)
	payload[0] = conn
	putUint32(payload[1:5], service)
	return c.commandCheck(classGATT, cmdGATTDiscoverCharacteristics, payload)
}

// ReadCharacteristic requests the value of a characteristic. The value
// arrives in a CharacteristicValue event.
func (c *Client) ReadCharacteristic(conn uint8, characteristic uint16) error {
	payload := make([]byte, 3)
	payload[0] = conn
	putUint16(payload[1:3], characteristic)
	return c.commandCheck(classGATT, cmdGATTReadCharacteristic, payload)
}

// WriteCharacteristic writes a value with response.
func (c *Client) WriteCharacteristic(conn uint8, characteristic uint16, value []byte) error {
	if len(value) > 255 {
		return fmt.Errorf("bgapi: write value too large: %d bytes", len(value))
	}
	payload := make([]byte, 4+len(value))
	payload[0] = conn
	putUint16(payload[1:3], characteristic)
	payload[3] = byte(len(value))
	copy(payload[4:], value)
	return c.commandCheck(classGATT, cmdGATTWriteCharacteristic, payload)
}

// SetCharacteristicNotification subscribes to notifications (flags=1)
// or indications (flags=2) by writing the client characteristic
// configuration.
func (c *Client) SetCharacteristicNotification(conn uint8, characteristic uint16, flags uint8) error {
	payload := make([]byte, 4)
	payload[0] = conn
	putUint16(payload[1:3], characteristic)
	payload[3] = flags
	return c.commandCheck(classGATT, cmdGATTSetNotification, payload)
}

// SendCharacteristicConfirmation acknowledges an indication. The
// module withholds further indications until it is sent.
func (c *Client) SendCharacteristicConfirmation(conn uint8) error {
	return c.commandCheck(classGATT, cmdGATTSendConfirmation, []byte{conn})
}

// SystemReboot restarts the module firmware. A Boot event signals that
// the module is ready again.
func (c *Client) SystemReboot() error {
	raw, err := encodeFrame(frame{msgType: msgCommand, class: classSystem, method: cmdSystemReboot})
	if err != nil {
		return err
	}
	// Reboot has no response frame; the module answers with a Boot
	// event once it is back up.
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.port.Write(raw); err != nil {
		return fmt.Errorf("bgapi: write failed: %w", err)
	}
	return nil
}

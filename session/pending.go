package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/aquamarine/internal/device"
)

// The module reports every finished multi-step GATT procedure with the
// same ProcedureCompleted event. Each issued procedure therefore
// pushes a token onto a per-device FIFO so completions resolve by
// identity instead of by re-deriving intent from entity state.

type opKind int

const (
	// opServiceRound is a primary-service discovery round.
	opServiceRound opKind = iota
	// opCharDiscovery is characteristic discovery for one service.
	opCharDiscovery
	// opCharCommand is a read/write/subscribe on one characteristic.
	opCharCommand
)

type pendingOp struct {
	kind          opKind
	serviceHandle uint32 // opCharDiscovery
	charHandle    uint16 // opCharCommand
	issuedAt      time.Time
}

// push appends a token for the device. Caller must hold the registry
// lock.
func (s *Session) push(address string, op pendingOp) {
	s.pending[address] = append(s.pending[address], op)
}

// pop removes and returns the head token. Caller must hold the
// registry lock.
func (s *Session) pop(address string) (pendingOp, bool) {
	q := s.pending[address]
	if len(q) == 0 {
		return pendingOp{}, false
	}
	op := q[0]
	if len(q) == 1 {
		delete(s.pending, address)
	} else {
		s.pending[address] = q[1:]
	}
	return op, true
}

// clearPending drops all tokens for a device. Called when its
// connection closes or a new one opens; completions for the old
// connection are noise afterwards.
func (s *Session) clearPending(address string) {
	delete(s.pending, address)
}

// expirePending enforces the GATT command deadline: a
// read/write/subscribe whose completion never arrives is forced back
// to Idle so the device does not stay busy forever. Discovery tokens
// are exempt — discovery is only bounded by the connection itself.
func (s *Session) expirePending(now time.Time) {
	deadline := s.cfg.GATTCommandTimeout
	if deadline <= 0 {
		return
	}

	s.registry.Mutate(func(c *device.Collection) {
		for address, q := range s.pending {
			if len(q) == 0 {
				continue
			}
			op := q[0]
			if op.kind != opCharCommand || now.Sub(op.issuedAt) < deadline {
				continue
			}

			s.pop(address)
			d := c.ByAddress(address)
			if d == nil {
				continue
			}
			if ch := d.CharacteristicByHandle(op.charHandle); ch != nil {
				s.log.WithFields(logrus.Fields{
					"address":        address,
					"characteristic": ch.UUID,
					"state":          ch.State,
				}).Warn("GATT command timed out, resetting characteristic")
				ch.State = device.Idle
			}
		}
	})
}

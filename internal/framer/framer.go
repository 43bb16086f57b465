// Package framer implements the "$payload#cc" packet framing, the +/- ack
// handshake, no-ack mode, and the out-of-band break byte, on top of a
// conn.Connection (§4.2).
package framer

import (
	"fmt"

	"github.com/embdebug/rspd/internal/conn"
	"github.com/embdebug/rspd/internal/hexcodec"
	"github.com/embdebug/rspd/internal/packetbuf"
	"github.com/sirupsen/logrus"
)

const ctrlC = 0x03

// Framer turns a conn.Connection's byte stream into validated packets and
// back. It is not safe for concurrent use; the server drives it from its
// single dispatch loop (§5).
type Framer struct {
	c   conn.Connection
	log *logrus.Entry

	noAck bool

	buf *packetbuf.Buffer

	// lookahead holds one byte read ahead of the current packet by the
	// break-poll, to be consumed by the next inbound read (§4.2).
	lookahead     byte
	haveLookahead bool

	breakSeen bool
}

// New wraps a Connection. maxPacket bounds the inbound packet buffer; 0
// selects packetbuf.MaxPacket.
func New(c conn.Connection, maxPacket int, log *logrus.Entry) *Framer {
	return &Framer{c: c, buf: packetbuf.New(maxPacket), log: log}
}

// SetNoAckMode switches framing to unconditional delivery, per
// QStartNoAckMode (§4.2, §8 "No-ack idempotence").
func (f *Framer) SetNoAckMode(on bool) { f.noAck = on }

// NoAckMode reports the current ack mode.
func (f *Framer) NoAckMode() bool { return f.noAck }

// connErr is returned when the underlying connection is gone; the caller
// (the server loop) treats this as "end of client session" (§4.2).
var connErr = fmt.Errorf("framer: connection closed")

func (f *Framer) readByte() (byte, error) {
	if f.haveLookahead {
		f.haveLookahead = false
		return f.lookahead, nil
	}
	b, ok := f.c.GetByte(true)
	if !ok {
		return 0, connErr
	}
	return b, nil
}

// PollBreak performs a non-blocking peek for a Ctrl-C break byte. It must
// only be called between packets or inside the coordinator's wait loop
// (§4.2, §5). Any non-break byte read is held in the one-byte lookahead
// buffer for the next ReadPacket call.
func (f *Framer) PollBreak() {
	b, ok := f.c.GetByte(false)
	if !ok {
		return
	}
	if b == ctrlC {
		f.breakSeen = true
		return
	}
	f.lookahead = b
	f.haveLookahead = true
}

// HasPendingBreak reports whether a break is latched. It does not clear the
// latch; callers clear it with ConsumeBreak.
func (f *Framer) HasPendingBreak() bool {
	return f.breakSeen
}

// ConsumeBreak clears a latched break without reporting it.
func (f *Framer) ConsumeBreak() {
	f.breakSeen = false
}

// ReadPacket implements the inbound state machine of §4.2: skip to '$',
// accumulate to '#', read the checksum, ack or re-synchronise.
func (f *Framer) ReadPacket() ([]byte, error) {
packet:
	for {
		// Step 1: skip to '$'.
		for {
			b, err := f.readByte()
			if err != nil {
				return nil, err
			}
			if b == '$' {
				break
			}
		}

		f.buf.Reset()
		var sum uint8

	accumulate:
		for {
			b, err := f.readByte()
			if err != nil {
				return nil, err
			}
			switch b {
			case '$':
				// Restart: discard the partial body and begin again.
				f.buf.Reset()
				sum = 0
				continue accumulate
			case '#':
				break accumulate
			default:
				if !f.buf.Append(b) {
					f.log.Warn("framer: packet buffer overflow, discarding packet")
					continue packet
				}
				sum += b
			}
		}

		var csumBuf [2]byte
		for i := range csumBuf {
			b, err := f.readByte()
			if err != nil {
				return nil, err
			}
			csumBuf[i] = b
		}

		if f.noAck {
			return append([]byte(nil), f.buf.Bytes()...), nil
		}

		recv, err := hexcodec.HexToVal(csumBuf[:])
		if err != nil || uint8(recv) != sum {
			f.log.WithField("computed", sum).Debug("framer: checksum mismatch, requesting retransmit")
			if !f.c.PutByte('-') {
				return nil, connErr
			}
			continue
		}

		if !f.c.PutByte('+') {
			return nil, connErr
		}
		return append([]byte(nil), f.buf.Bytes()...), nil
	}
}

func needsEscape(b byte) bool {
	return b == '$' || b == '#' || b == '*' || b == hexcodec.EscapeByte
}

// WritePacket implements the outbound state machine of §4.2: escape,
// checksum, retransmit on '-', and break-during-ack handling.
func (f *Framer) WritePacket(payload []byte) error {
	for {
		if !f.c.PutByte('$') {
			return connErr
		}

		var sum uint8
		for _, b := range payload {
			if needsEscape(b) {
				if !f.c.PutByte(hexcodec.EscapeByte) {
					return connErr
				}
				sum += hexcodec.EscapeByte
				b ^= 0x20
			}
			if !f.c.PutByte(b) {
				return connErr
			}
			sum += b
		}

		if !f.c.PutByte('#') {
			return connErr
		}
		hi, _ := hexcodec.NybbleToChar(sum >> 4)
		lo, _ := hexcodec.NybbleToChar(sum & 0xf)
		if !f.c.PutByte(hi) || !f.c.PutByte(lo) {
			return connErr
		}

		if f.noAck {
			return nil
		}

		b, err := f.readByte()
		if err != nil {
			return err
		}
		switch b {
		case '+':
			return nil
		case '-':
			continue
		case ctrlC:
			f.breakSeen = true
			b2, err := f.readByte()
			if err != nil {
				return err
			}
			switch b2 {
			case '+':
				return nil
			case '-':
				continue
			default:
				return fmt.Errorf("framer: unexpected byte %#x after break during ack", b2)
			}
		default:
			return fmt.Errorf("framer: unexpected ack byte %#x", b)
		}
	}
}

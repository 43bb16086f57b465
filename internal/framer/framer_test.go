package framer

import (
	"bytes"
	"io"
	"testing"

	"github.com/embdebug/rspd/internal/hexcodec"
	"github.com/sirupsen/logrus"
)

// fakeConn is a minimal in-memory conn.Connection: writes accumulate in
// `out`, reads are served from `in`.
type fakeConn struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func newFakeConn(in []byte) *fakeConn {
	return &fakeConn{in: bytes.NewBuffer(in), out: &bytes.Buffer{}}
}

func (f *fakeConn) Connect() bool     { return true }
func (f *fakeConn) Close()            {}
func (f *fakeConn) IsConnected() bool { return true }

func (f *fakeConn) PutByte(b byte) bool {
	f.out.WriteByte(b)
	return true
}

func (f *fakeConn) GetByte(blocking bool) (byte, bool) {
	b, err := f.in.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func encodeForTest(payload []byte) []byte {
	var sum uint8
	var out bytes.Buffer
	out.WriteByte('$')
	for _, b := range payload {
		if b == '$' || b == '#' || b == '*' || b == hexcodec.EscapeByte {
			out.WriteByte(hexcodec.EscapeByte)
			sum += hexcodec.EscapeByte
			b ^= 0x20
		}
		out.WriteByte(b)
		sum += b
	}
	out.WriteByte('#')
	hi, _ := hexcodec.NybbleToChar(sum >> 4)
	lo, _ := hexcodec.NybbleToChar(sum & 0xf)
	out.WriteByte(hi)
	out.WriteByte(lo)
	return out.Bytes()
}

func TestReadPacketRoundTrip(t *testing.T) {
	payload := []byte("Hello, GDB!")
	wire := encodeForTest(payload)
	fc := newFakeConn(wire)
	f := New(fc, 0, testLogger())

	got, err := f.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("ReadPacket = %q, want %q", got, payload)
	}
	if fc.out.String() != "+" {
		t.Errorf("expected a single '+' ack, got %q", fc.out.String())
	}
}

func TestReadPacketBadChecksumRetransmit(t *testing.T) {
	wire := []byte("$abc#00$abc#26")
	fc := newFakeConn(wire)
	f := New(fc, 0, testLogger())

	got, err := f.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("ReadPacket = %q, want %q", got, "abc")
	}
	if fc.out.String() != "-+" {
		t.Errorf("expected NAK then ACK, got %q", fc.out.String())
	}
}

func TestWritePacketEscaping(t *testing.T) {
	fc := newFakeConn([]byte("+"))
	f := New(fc, 0, testLogger())

	payload := []byte("a$b#c")
	if err := f.WritePacket(payload); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	want := encodeForTest(payload)
	if fc.out.String() != string(want) {
		t.Errorf("WritePacket wrote %q, want %q", fc.out.String(), want)
	}
}

func TestNoAckModeSendsNoAcks(t *testing.T) {
	fc := newFakeConn(nil)
	f := New(fc, 0, testLogger())
	f.SetNoAckMode(true)

	if err := f.WritePacket([]byte("OK")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if fc.out.Len() == 0 || fc.out.Bytes()[0] != '$' {
		t.Fatalf("expected framed output, got %q", fc.out.String())
	}
	// No ack byte should have been read (fc.in is empty; if WritePacket
	// tried to read one it would have returned an error above).
}

func TestHandshakeAndRegisterReadScenario(t *testing.T) {
	// From spec.md §8 scenario 2: $p0#a0 => +$efbe0000#52
	wire := []byte("$p0#a0+")
	fc := newFakeConn(wire)
	f := New(fc, 0, testLogger())

	got, err := f.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if string(got) != "p0" {
		t.Fatalf("ReadPacket = %q, want %q", got, "p0")
	}

	if err := f.WritePacket([]byte("efbe0000")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if fc.out.String() != "+$efbe0000#52" {
		t.Errorf("wire output = %q, want %q", fc.out.String(), "+$efbe0000#52")
	}
}

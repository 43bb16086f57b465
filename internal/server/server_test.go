package server

import (
	"bytes"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/embdebug/rspd/internal/target"
	"github.com/embdebug/rspd/internal/traceflags"
)

// fakeConn is an in-memory Connection: bytes written by the server land in
// out, bytes queued in in are handed back to the server one at a time.
type fakeConn struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func newFakeConn(wire string) *fakeConn {
	return &fakeConn{in: bytes.NewBufferString(wire), out: &bytes.Buffer{}}
}

func (c *fakeConn) Connect() bool     { return true }
func (c *fakeConn) Close()            {}
func (c *fakeConn) IsConnected() bool { return true }

func (c *fakeConn) PutByte(b byte) bool {
	c.out.WriteByte(b)
	return true
}

func (c *fakeConn) GetByte(blocking bool) (byte, bool) {
	b, err := c.in.ReadByte()
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

func newTestServer(wire string, tgt target.Target) (*Server, *fakeConn) {
	c := newFakeConn(wire)
	srv := New(c, tgt, traceflags.New(), Config{}, testLogger())
	return srv, c
}

// TestRegisterReadScenario reproduces the register-read wire exchange: one
// 4-byte little-endian register holding 0xBEEF.
func TestRegisterReadScenario(t *testing.T) {
	tgt := target.NewDummy(1, 256, 1, 4, true)
	tgt.WriteRegister(0, 0xBEEF)

	srv, c := newTestServer("$p0#a0+", tgt)
	if !srv.HandleOnePacket() {
		t.Fatal("HandleOnePacket reported connection loss")
	}

	if got, want := c.out.String(), "+$efbe0000#52"; got != want {
		t.Fatalf("wire reply = %q, want %q", got, want)
	}
}

// TestMemoryReadScenario reproduces the memory-read wire exchange.
func TestMemoryReadScenario(t *testing.T) {
	tgt := target.NewDummy(1, 4096, 1, 4, true)
	tgt.Write(0x124, []byte{0xbe, 0xef})

	srv, c := newTestServer("$m124,2#62+", tgt)
	if !srv.HandleOnePacket() {
		t.Fatal("HandleOnePacket reported connection loss")
	}

	if got, want := c.out.String(), "+$beef#92"; got != want {
		t.Fatalf("wire reply = %q, want %q", got, want)
	}
}

// TestBinaryWriteScenario reproduces the 'X' binary-write wire exchange.
func TestBinaryWriteScenario(t *testing.T) {
	tgt := target.NewDummy(1, 256, 1, 4, true)

	wire := "$X88,4:\x11\x22\x33\x44#0c+"
	srv, c := newTestServer(wire, tgt)
	if !srv.HandleOnePacket() {
		t.Fatal("HandleOnePacket reported connection loss")
	}

	if got, want := c.out.String(), "+$OK#9a"; got != want {
		t.Fatalf("wire reply = %q, want %q", got, want)
	}

	buf := make([]byte, 4)
	tgt.Read(0x88, buf)
	if !bytes.Equal(buf, []byte{0x11, 0x22, 0x33, 0x44}) {
		t.Fatalf("target memory at 0x88 = %x, want 11223344", buf)
	}
}

// TestVContStepScenario reproduces the single-step-to-SIGTRAP exchange.
func TestVContStepScenario(t *testing.T) {
	tgt := target.NewDummy(1, 256, 1, 4, true)

	srv, c := newTestServer("$vCont;s#b8+", tgt)
	if !srv.HandleOnePacket() {
		t.Fatal("HandleOnePacket reported connection loss")
	}

	if got, want := c.out.String(), "+$S05#b8"; got != want {
		t.Fatalf("wire reply = %q, want %q", got, want)
	}
}

// TestHostSyscallOpenScenario reproduces the open() forwarding exchange
// end to end: the target reports a SYSCALL stop, the server forwards an
// Fopen request, and the client's F-reply resumes execution.
func TestHostSyscallOpenScenario(t *testing.T) {
	tgt := target.NewDummy(1, 1<<16, 4, 4, true)
	// a0 in reg0 (path pointer), a1 in reg1 (flags), a2 in reg2 (mode),
	// syscall id in reg3, return value also written back to reg3.
	tgt.SetSyscallArgLocations(target.SyscallArgLocs{
		ID:   target.ArgLoc{Reg: 3},
		Args: []target.ArgLoc{{Reg: 0}, {Reg: 1}, {Reg: 2}},
		Ret:  target.ArgLoc{Reg: 3},
	})
	tgt.WriteRegister(3, 1024) // open
	tgt.WriteRegister(0, 0xBEEF)
	tgt.WriteRegister(1, 0)
	tgt.WriteRegister(2, 0)
	tgt.Write(0xBEEF, []byte("neat\x00"))
	tgt.QueueEvent([]target.ResumeRes{target.ResSyscall})
	// The F-reply resumes the core; queue a second event so the
	// coordinator's post-resume wait has a recognised stop to report
	// instead of falling through to the dummy's generic derivation.
	tgt.QueueEvent([]target.ResumeRes{target.ResInterrupted})

	srv, c := newTestServer("$vCont;c#a8+$F0#76+", tgt)

	if !srv.HandleOnePacket() {
		t.Fatal("HandleOnePacket reported connection loss on vCont")
	}
	if got, want := c.out.String(), "+$Fopen,beef/5,0,0#d2"; got != want {
		t.Fatalf("syscall forward = %q, want %q", got, want)
	}
	c.out.Reset()

	if !srv.HandleOnePacket() {
		t.Fatal("HandleOnePacket reported connection loss on F-reply")
	}
	v, _, _ := tgt.ReadRegister(3)
	if v != 0 {
		t.Fatalf("return register = %d, want 0", v)
	}
	if got, want := c.out.String(), "+$S02#b5"; got != want {
		t.Fatalf("post-resume reply = %q, want %q", got, want)
	}
}

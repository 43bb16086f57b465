// Package server implements the RSP dispatcher (C11), the execution
// coordinator (C12), and the target-XML paging helper (C13): everything
// that sits between the framer and the abstract target.
package server

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/embdebug/rspd/internal/conn"
	"github.com/embdebug/rspd/internal/coremgr"
	"github.com/embdebug/rspd/internal/framer"
	"github.com/embdebug/rspd/internal/matchpoint"
	"github.com/embdebug/rspd/internal/ptid"
	"github.com/embdebug/rspd/internal/target"
	"github.com/embdebug/rspd/internal/timeout"
	"github.com/embdebug/rspd/internal/traceflags"
)

// StopMode selects all-stop or non-stop semantics, negotiated via QNonStop.
type StopMode int

const (
	AllStop StopMode = iota
	NonStop
)

// KillBehaviour selects what happens when the last live core is killed.
type KillBehaviour int

const (
	ResetOnKill KillBehaviour = iota
	ExitOnKill
)

// Config bundles the tunables the driver assembles at startup.
type Config struct {
	MaxPacket     int
	KillBehaviour KillBehaviour
	// KillCoreOnExit marks a core dead once it observes an `exit` host
	// syscall (§3 "Server state").
	KillCoreOnExit bool
}

// Server owns the framer, packet buffer, matchpoint table, core-state
// array, and server-state flags for one client session (§3 "Ownership").
// The Target and Connection are shared references supplied by the caller.
type Server struct {
	cfg Config
	log *logrus.Entry

	c   conn.Connection
	f   *framer.Framer
	tgt target.Target

	cores       *coremgr.Manager
	matchpoints *matchpoint.Table
	trace       *traceflags.Flags

	exitRequested        bool
	haveMultiproc        bool
	stopMode             StopMode
	currentPtid          ptid.PTID
	nextThreadInfoCursor int
	handlingSyscall      bool
	killCoreOnExit       bool
	timeout              timeout.Timeout
	killBehaviour        KillBehaviour

	sessionID string

	// extraReplies and closeAfterReply let a dispatch handler schedule
	// packets (or a connection close) to happen around the single reply
	// value HandleOnePacket writes, without reordering the "OK" before
	// the client has actually received it (§4.10.1, §4.11's vKill, §4.12's
	// exit syscall reply).
	extraReplies    [][]byte
	closeAfterReply bool
}

// New builds a Server around an accepted Connection and a live Target. The
// caller is expected to construct a new Server (or call ResetCoreState) per
// accepted client, per §4.14's accept/reconnect loop.
func New(c conn.Connection, tgt target.Target, trace *traceflags.Flags, cfg Config, log *logrus.Entry) *Server {
	if cfg.MaxPacket <= 0 {
		cfg.MaxPacket = 10000
	}
	sessionID := uuid.NewString()
	sessLog := log.WithField("session", sessionID)

	return &Server{
		cfg:            cfg,
		log:            sessLog,
		c:              c,
		f:              framer.New(c, cfg.MaxPacket, sessLog),
		tgt:            tgt,
		cores:          coremgr.New(tgt.CPUCount()),
		matchpoints:    matchpoint.New(),
		trace:          trace,
		currentPtid:    ptid.PTID{Pid: 1, Tid: 1},
		killCoreOnExit: cfg.KillCoreOnExit,
		killBehaviour:  cfg.KillBehaviour,
		sessionID:      sessionID,
	}
}

// ExitRequested reports whether a monitor "exit" command or an EXIT_ON_KILL
// vKill has asked the driver to terminate the process.
func (s *Server) ExitRequested() bool { return s.exitRequested }

// ResetCoreState reinitialises the per-core bookkeeping, called by the
// entry point each time a new client connects (§4.14).
func (s *Server) ResetCoreState() {
	s.cores.Reset()
	s.currentPtid = ptid.PTID{Pid: 1, Tid: 1}
	s.handlingSyscall = false
}

// HandleOnePacket reads and dispatches a single packet. It returns false
// when the connection has been lost or the client detached, signalling the
// entry point to stop calling it for this session.
func (s *Server) HandleOnePacket() bool {
	pkt, err := s.f.ReadPacket()
	if err != nil {
		s.log.WithError(err).Debug("connection lost while reading packet")
		s.c.Close()
		return false
	}

	s.extraReplies = s.extraReplies[:0]
	s.closeAfterReply = false
	reply, keepGoing := s.dispatch(pkt)

	for _, r := range s.extraReplies {
		if err := s.f.WritePacket(r); err != nil {
			s.log.WithError(err).Debug("connection lost while writing reply")
			s.c.Close()
			return false
		}
	}
	if reply != nil {
		if err := s.f.WritePacket(reply); err != nil {
			s.log.WithError(err).Debug("connection lost while writing reply")
			s.c.Close()
			return false
		}
	}

	if s.closeAfterReply {
		s.c.Close()
	}
	return keepGoing
}

// queueReply schedules an additional packet to be written before the
// dispatch's own return value, for handlers whose wire protocol needs more
// than one reply per request (the qRcmd O-packet, §4.10.1).
func (s *Server) queueReply(pkt []byte) {
	s.extraReplies = append(s.extraReplies, pkt)
}

// closeConnAfterReply defers closing the connection until after the
// current dispatch's reply (and any queued replies) have been written, so
// a handler that both replies and ends the session - detach, the last
// vKill, the exit syscall - doesn't drop its own acknowledgement.
func (s *Server) closeConnAfterReply() {
	s.closeAfterReply = true
}

// pidOf maps a zero-based core index to its GDB pid (§3 "Core/PID mapping").
func pidOf(core int) int64 { return int64(core) + 1 }

// coreOf maps a pid back to a zero-based core index, or -1 if out of range.
func (s *Server) coreOf(pid int64) int {
	i := int(pid) - 1
	if i < 0 || i >= s.cores.NumCores() {
		return -1
	}
	return i
}

// dispatch branches on the packet's leading byte per the table in §4.9. It
// returns the reply payload (nil for "no reply") and whether the session
// should continue.
func (s *Server) dispatch(pkt []byte) (reply []byte, keepGoing bool) {
	if len(pkt) == 0 {
		return nil, true
	}

	switch pkt[0] {
	case '!':
		return []byte("OK"), true
	case '?':
		return s.handleLastStopReason(), true
	case 'A':
		return []byte("E01"), true
	case 'b', 'B', 'd', 'k', 'r', 'R', 't':
		return nil, true
	case 'D':
		s.closeConnAfterReply()
		return []byte("OK"), false
	case 'F':
		return s.handleSyscallReply(pkt)
	case 'g':
		return s.handleReadAllRegisters(), true
	case 'G':
		return s.handleWriteAllRegisters(pkt), true
	case 'H':
		return s.handleSetThread(pkt), true
	case 'i', 'I':
		return s.handleSingleCycleStep(), true
	case 'm':
		return s.handleReadMemory(pkt), true
	case 'M':
		return s.handleWriteMemory(pkt), true
	case 'X':
		return s.handleBinaryWriteMemory(pkt), true
	case 'p':
		return s.handleReadRegister(pkt), true
	case 'P':
		return s.handleWriteRegister(pkt), true
	case 'q', 'Q':
		return s.handleQuery(pkt), true
	case 'T':
		return []byte("OK"), true
	case 'v':
		return s.handleV(pkt), true
	case 'z':
		return s.handleRemoveMatchpoint(pkt), true
	case 'Z':
		return s.handleInsertMatchpoint(pkt), true
	default:
		// Unsupported: an empty packet, not silence.
		return []byte{}, true
	}
}

func (s *Server) handleSetThread(pkt []byte) []byte {
	if len(pkt) < 2 {
		return []byte("E01")
	}
	switch pkt[1] {
	case 'c':
		// Deprecated "set thread for continue"; accepted but ignored.
		return []byte{}
	case 'g':
		p, err := ptid.Decode(pkt[2:], s.currentPtid.Pid)
		if err != nil {
			return []byte("E01")
		}
		concrete, err := p.Crystalize(s.currentPtid.Pid, 1)
		if err != nil {
			return []byte("E02")
		}
		if s.coreOf(concrete.Pid) < 0 {
			return []byte("E01")
		}
		s.currentPtid = concrete
		s.tgt.SetCurrentCPU(s.coreOf(concrete.Pid))
		return []byte("OK")
	default:
		return []byte("E01")
	}
}

func (s *Server) handleSingleCycleStep() []byte {
	// §4.9: "single-cycle step (stub)" — not modelled by the abstract
	// target, so report a generic trap without advancing anything.
	return []byte("S05")
}

package server

import (
	"bytes"
	"fmt"

	"github.com/embdebug/rspd/internal/coremgr"
	"github.com/embdebug/rspd/internal/hexcodec"
	"github.com/embdebug/rspd/internal/target"
)

// Host syscall numbers recognised for forwarding to the client (§4.12).
const (
	sysClose        = 57
	sysLseek        = 62
	sysRead         = 63
	sysWrite        = 64
	sysFstat        = 80
	sysExit         = 93
	sysGettimeofday = 169
	sysOpen         = 1024
	sysUnlink       = 1026
	sysStat         = 1038
)

const maxCStringLen = 4096

func (s *Server) readArgLoc(loc target.ArgLoc) (uint64, error) {
	if !loc.IsMemory {
		v, _, err := s.tgt.ReadRegister(loc.Reg)
		return v, err
	}
	buf := make([]byte, s.tgt.RegisterSize())
	if _, err := s.tgt.Read(loc.Addr, buf); err != nil {
		return 0, err
	}
	return decodeArgBytes(buf, s.tgt.LittleEndian()), nil
}

func decodeArgBytes(buf []byte, little bool) uint64 {
	var v uint64
	if little {
		for i := len(buf) - 1; i >= 0; i-- {
			v = v<<8 | uint64(buf[i])
		}
	} else {
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
	}
	return v
}

func (s *Server) writeArgLoc(loc target.ArgLoc, value uint64) error {
	if !loc.IsMemory {
		_, err := s.tgt.WriteRegister(loc.Reg, value)
		return err
	}
	size := s.tgt.RegisterSize()
	buf := make([]byte, size)
	little := s.tgt.LittleEndian()
	for i := 0; i < size; i++ {
		shift := uint(i * 8)
		if !little {
			shift = uint((size - 1 - i) * 8)
		}
		buf[i] = byte(value >> shift)
	}
	_, err := s.tgt.Write(loc.Addr, buf)
	return err
}

// readCString reads up to maxCStringLen bytes at addr, stopping at the
// first NUL, and returns the byte count the client should transfer —
// the string's length including its NUL terminator, matching the host
// syscall table's "length read from target memory" field (§4.12).
func (s *Server) readCString(addr uint64) (int, error) {
	buf := make([]byte, 1)
	for n := 0; n < maxCStringLen; n++ {
		if _, err := s.tgt.Read(addr+uint64(n), buf); err != nil {
			return n, err
		}
		if buf[0] == 0 {
			return n + 1, nil
		}
	}
	return maxCStringLen, nil
}

// beginSyscall reads the syscall id and its arguments off the target's ABI
// locations and formats the matching "F..." request packet (§4.12). A
// syscall the table does not recognise is reported to the client as a
// plain trap rather than forwarded.
func (s *Server) beginSyscall(core int) []byte {
	locs, ok := s.tgt.SyscallArgLocations()
	if !ok {
		s.log.Warn("target reported a SYSCALL stop but exposes no ABI locations")
		return sigReply(sigTRAP)
	}

	id, err := s.readArgLoc(locs.ID)
	if err != nil {
		return s.fatal("failed reading syscall id: %v", err)
	}

	arg := func(i int) uint64 {
		if i >= len(locs.Args) {
			return 0
		}
		v, err := s.readArgLoc(locs.Args[i])
		if err != nil {
			s.log.WithError(err).Warn("failed reading syscall argument")
		}
		return v
	}

	switch id {
	case sysClose:
		return []byte(fmt.Sprintf("Fclose,%x", arg(0)))
	case sysLseek:
		return []byte(fmt.Sprintf("Flseek,%x,%x,%x", arg(0), arg(1), arg(2)))
	case sysRead:
		return []byte(fmt.Sprintf("Fread,%x,%x,%x", arg(0), arg(1), arg(2)))
	case sysWrite:
		return []byte(fmt.Sprintf("Fwrite,%x,%x,%x", arg(0), arg(1), arg(2)))
	case sysFstat:
		return []byte(fmt.Sprintf("Ffstat,%x,%x", arg(0), arg(1)))
	case sysGettimeofday:
		return []byte(fmt.Sprintf("Fgettimeofday,%x,%x", arg(0), arg(1)))
	case sysOpen:
		pathLen, _ := s.readCString(arg(0))
		return []byte(fmt.Sprintf("Fopen,%x/%x,%x,%x", arg(0), pathLen, arg(1), arg(2)))
	case sysUnlink:
		pathLen, _ := s.readCString(arg(0))
		return []byte(fmt.Sprintf("Funlink,%x/%x", arg(0), pathLen))
	case sysStat:
		pathLen, _ := s.readCString(arg(0))
		return []byte(fmt.Sprintf("Fstat,%x/%x,%x", arg(0), pathLen, arg(1)))
	case sysExit:
		return s.buildExitReply(core, arg(0))
	default:
		s.log.WithField("syscall", id).Warn("unrecognised host syscall, ignoring")
		s.cores.SetResumeType(core, coremgr.ResumeNone)
		return sigReply(sigTRAP)
	}
}

func (s *Server) buildExitReply(core int, status uint64) []byte {
	var out bytes.Buffer
	fmt.Fprintf(&out, "W%02x", status&0xff)
	if s.haveMultiproc {
		fmt.Fprintf(&out, ";process:%x", pidOf(core))
	}
	if s.killCoreOnExit {
		s.cores.Kill(core)
		if s.cores.LiveCores() == 0 {
			s.closeConnAfterReply()
			if s.killBehaviour == ExitOnKill {
				s.exitRequested = true
			}
		}
	}
	return out.Bytes()
}

// handleSyscallReply implements the client's "F<retcode>[,<errno>[,C]]"
// reply to a forwarded host syscall (§4.12). A trailing 'C' asks the
// server to treat the reply as an interrupt request instead of letting
// execution continue.
func (s *Server) handleSyscallReply(pkt []byte) ([]byte, bool) {
	fields := bytes.SplitN(pkt[1:], []byte(","), 3)
	if len(fields) == 0 || len(fields[0]) == 0 {
		return []byte("E01"), true
	}

	retcode, err := parseSignedHex(fields[0])
	if err != nil {
		return []byte("E01"), true
	}

	interrupted := false
	if len(fields) >= 2 {
		if _, err := hexcodec.HexToVal(fields[1]); err != nil && !bytes.Equal(fields[1], []byte("C")) {
			return []byte("E01"), true
		}
	}
	for _, f := range fields {
		if bytes.Equal(f, []byte("C")) {
			interrupted = true
		}
	}

	locs, ok := s.tgt.SyscallArgLocations()
	if ok && retcode != -1 {
		if err := s.writeArgLoc(locs.Ret, uint64(retcode)); err != nil {
			s.log.WithError(err).Warn("failed writing syscall return value")
		}
	}

	if interrupted {
		s.tgt.Halt()
		s.f.ConsumeBreak()
		return sigReply(sigINT), true
	}

	return s.resumeAndWait(), true
}

func parseSignedHex(b []byte) (int64, error) {
	if len(b) > 0 && b[0] == '-' {
		v, err := hexcodec.HexToVal(b[1:])
		if err != nil {
			return 0, err
		}
		return -int64(v), nil
	}
	v, err := hexcodec.HexToVal(b)
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

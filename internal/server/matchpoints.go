package server

import (
	"bytes"
	"encoding/binary"

	"github.com/embdebug/rspd/internal/hexcodec"
	"github.com/embdebug/rspd/internal/matchpoint"
	"github.com/embdebug/rspd/internal/target"
)

// softwareBreakInstruction is the fixed 4-byte instruction pattern written
// over an address when a software (memory) breakpoint is inserted. The
// actual encoding is target-dependent; this generic build uses an
// architecture-neutral trap pattern, matching how the original leaves the
// choice to the target-specific build (§4.9).
var softwareBreakInstruction = [4]byte{0x00, 0x00, 0x00, 0x00}

func parseMatchpointPacket(pkt []byte) (t matchpoint.Type, addr, length uint64, ok bool) {
	if len(pkt) < 2 {
		return 0, 0, 0, false
	}
	fields := bytes.SplitN(pkt[1:], []byte(","), 3)
	if len(fields) != 3 {
		return 0, 0, 0, false
	}
	typeVal, err := hexcodec.HexToVal(fields[0])
	if err != nil || typeVal > 4 {
		return 0, 0, 0, false
	}
	a, err := hexcodec.HexToVal(fields[1])
	if err != nil {
		return 0, 0, 0, false
	}
	l, err := hexcodec.HexToVal(fields[2])
	if err != nil {
		return 0, 0, 0, false
	}
	return matchpoint.Type(typeVal), a, l, true
}

func toTargetMatchType(t matchpoint.Type) target.MatchType {
	switch t {
	case matchpoint.BreakMemory:
		return target.MatchBreak
	case matchpoint.BreakHW:
		return target.MatchBreakHW
	case matchpoint.WatchWrite:
		return target.MatchWatchWrite
	case matchpoint.WatchRead:
		return target.MatchWatchRead
	default:
		return target.MatchWatchAccess
	}
}

// maxInstrLen bounds the byte length a BP_MEMORY insert/remove may touch,
// matching the original's fixed-size uint32_t instr buffer
// (GdbServer.cpp's rspInsertMatchpoint/rspRemoveMatchpoint).
const maxInstrLen = 4

// handleInsertMatchpoint implements 'Z t,a,l' (§4.6, §4.9). For
// BP_MEMORY it reads back the original bytes, records them, and writes the
// software break instruction. For hardware breakpoints and watchpoints it
// simply records presence and asks the target to install the capability.
func (s *Server) handleInsertMatchpoint(pkt []byte) []byte {
	t, addr, length, ok := parseMatchpointPacket(pkt)
	if !ok {
		return []byte("E01")
	}

	if t == matchpoint.BreakMemory {
		if length > maxInstrLen {
			return []byte("E01")
		}
		if _, exists := s.matchpoints.Lookup(t, addr); exists {
			return []byte("OK")
		}
		orig := make([]byte, length)
		if _, err := s.tgt.Read(addr, orig); err != nil {
			s.log.WithError(err).Warn("failed reading original bytes before inserting breakpoint")
			return []byte("E01")
		}
		var padded [8]byte
		copy(padded[:], orig)
		s.matchpoints.Insert(t, addr, binary.LittleEndian.Uint64(padded[:]))

		instr := softwareBreakInstruction[:]
		if uint64(len(instr)) > length {
			instr = instr[:length]
		}
		if _, err := s.tgt.Write(addr, instr); err != nil {
			s.log.WithError(err).Warn("failed writing software breakpoint instruction")
			return []byte("E01")
		}
		return []byte("OK")
	}

	s.matchpoints.Insert(t, addr, 0)
	if !s.tgt.InsertMatchpoint(addr, toTargetMatchType(t)) {
		return []byte("E01")
	}
	return []byte("OK")
}

// handleRemoveMatchpoint implements 'z t,a,l'.
func (s *Server) handleRemoveMatchpoint(pkt []byte) []byte {
	t, addr, length, ok := parseMatchpointPacket(pkt)
	if !ok {
		return []byte("E01")
	}

	if t == matchpoint.BreakMemory && length > maxInstrLen {
		return []byte("E01")
	}

	saved, exists := s.matchpoints.Remove(t, addr)
	if !exists {
		return []byte("E01")
	}

	if t == matchpoint.BreakMemory {
		var packed [8]byte
		binary.LittleEndian.PutUint64(packed[:], saved)
		orig := packed[:length]
		if _, err := s.tgt.Write(addr, orig); err != nil {
			s.log.WithError(err).Warn("failed restoring bytes after removing breakpoint")
			return []byte("E01")
		}
		return []byte("OK")
	}

	if !s.tgt.RemoveMatchpoint(addr, toTargetMatchType(t)) {
		return []byte("E01")
	}
	return []byte("OK")
}

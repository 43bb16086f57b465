package server

import (
	"bytes"

	"github.com/embdebug/rspd/internal/hexcodec"
)

// handleReadAllRegisters implements 'g': pack every register 0..count-1 as
// 2*size hex digits, concatenated in register order (§4.9).
func (s *Server) handleReadAllRegisters() []byte {
	var out bytes.Buffer
	le := s.tgt.LittleEndian()
	for i := 0; i < s.tgt.RegisterCount(); i++ {
		v, size, err := s.tgt.ReadRegister(i)
		if err != nil {
			s.log.WithError(err).Warn("failed reading register")
			continue
		}
		out.WriteString(hexcodec.RegToHex(v, size, le))
	}
	return out.Bytes()
}

// handleWriteAllRegisters implements 'G'.
func (s *Server) handleWriteAllRegisters(pkt []byte) []byte {
	data := pkt[1:]
	le := s.tgt.LittleEndian()
	regSize := s.tgt.RegisterSize()
	digitsPerReg := 2 * regSize
	if regSize <= 0 || len(data)%digitsPerReg != 0 {
		s.log.Warn("G packet has wrong length")
		return []byte("E01")
	}
	for i := 0; i*digitsPerReg < len(data); i++ {
		chunk := data[i*digitsPerReg : (i+1)*digitsPerReg]
		v, err := hexcodec.HexToReg(chunk, regSize, le)
		if err != nil {
			return []byte("E01")
		}
		if _, err := s.tgt.WriteRegister(i, v); err != nil {
			return []byte("E01")
		}
	}
	return []byte("OK")
}

// handleReadRegister implements 'p <reg>'.
func (s *Server) handleReadRegister(pkt []byte) []byte {
	regHex := pkt[1:]
	reg, err := hexcodec.HexToVal(regHex)
	if err != nil {
		return []byte("E01")
	}
	v, size, err := s.tgt.ReadRegister(int(reg))
	if err != nil {
		return []byte("E01")
	}
	return []byte(hexcodec.RegToHex(v, size, s.tgt.LittleEndian()))
}

// handleWriteRegister implements 'P <reg>=<hex>'.
func (s *Server) handleWriteRegister(pkt []byte) []byte {
	eq := bytes.IndexByte(pkt, '=')
	if eq < 0 {
		return []byte("E01")
	}
	reg, err := hexcodec.HexToVal(pkt[1:eq])
	if err != nil {
		return []byte("E01")
	}
	v, err := hexcodec.HexToReg(pkt[eq+1:], s.tgt.RegisterSize(), s.tgt.LittleEndian())
	if err != nil {
		return []byte("E01")
	}
	if _, err := s.tgt.WriteRegister(int(reg), v); err != nil {
		return []byte("E01")
	}
	return []byte("OK")
}

// parseAddrLen parses "<addr>,<len>" as used by 'm'/'M'/'X'.
func parseAddrLen(s []byte) (addr, length uint64, rest []byte, ok bool) {
	comma := bytes.IndexByte(s, ',')
	if comma < 0 {
		return 0, 0, nil, false
	}
	a, err := hexcodec.HexToVal(s[:comma])
	if err != nil {
		return 0, 0, nil, false
	}

	tail := s[comma+1:]
	// length may be followed by ':' (M/X) or nothing (m).
	colon := bytes.IndexByte(tail, ':')
	lenPart := tail
	if colon >= 0 {
		lenPart = tail[:colon]
	}
	l, err := hexcodec.HexToVal(lenPart)
	if err != nil {
		return 0, 0, nil, false
	}
	if colon >= 0 {
		rest = tail[colon+1:]
	}
	return a, l, rest, true
}

// handleReadMemory implements 'm <addr>,<len>'. A length above
// maxReplyBytes (4096) is silently truncated to it rather than rejected, so
// the 2*len hex reply stays within the default packet size (§4.9).
func (s *Server) handleReadMemory(pkt []byte) []byte {
	addr, length, _, ok := parseAddrLen(pkt[1:])
	if !ok {
		return []byte("E01")
	}

	const maxReplyBytes = 4096
	if length > maxReplyBytes {
		length = maxReplyBytes
	}

	buf := make([]byte, length)
	n, err := s.tgt.Read(addr, buf)
	if err != nil {
		s.log.WithError(err).Warn("memory read failed")
		return []byte("E01")
	}
	if uint64(n) < length {
		s.log.Warnf("short memory read: got %d of %d bytes", n, length)
	}

	var out bytes.Buffer
	for _, b := range buf[:n] {
		hi, _ := hexcodec.NybbleToChar(b >> 4)
		lo, _ := hexcodec.NybbleToChar(b & 0xf)
		out.WriteByte(hi)
		out.WriteByte(lo)
	}
	return out.Bytes()
}

// handleWriteMemory implements 'M <addr>,<len>:<hex>'.
func (s *Server) handleWriteMemory(pkt []byte) []byte {
	addr, length, hexData, ok := parseAddrLen(pkt[1:])
	if !ok {
		return []byte("E01")
	}
	if uint64(len(hexData)) != 2*length {
		s.log.Warn("M packet hex payload length mismatch")
		return []byte("E01")
	}
	data, err := hexcodec.HexToAscii(hexData)
	if err != nil {
		return []byte("E01")
	}
	if _, err := s.tgt.Write(addr, data); err != nil {
		s.log.WithError(err).Warn("memory write failed")
		return []byte("E01")
	}
	return []byte("OK")
}

// handleBinaryWriteMemory implements 'X <addr>,<len>:<bin>'. The framer
// does not unescape packet bodies, so the binary payload arrives with its
// RSP-escape bytes intact and is unescaped here.
func (s *Server) handleBinaryWriteMemory(pkt []byte) []byte {
	addr, length, bin, ok := parseAddrLen(pkt[1:])
	if !ok {
		return []byte("E01")
	}
	n := hexcodec.RspUnescape(bin)
	bin = bin[:n]
	if uint64(len(bin)) != length {
		s.log.Warn("X packet binary payload length mismatch")
		if uint64(len(bin)) > length {
			bin = bin[:length]
		} else {
			return []byte("E01")
		}
	}
	if _, err := s.tgt.Write(addr, bin); err != nil {
		s.log.WithError(err).Warn("binary memory write failed")
		return []byte("E01")
	}
	return []byte("OK")
}

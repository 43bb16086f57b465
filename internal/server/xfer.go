package server

import (
	"bytes"

	"github.com/embdebug/rspd/internal/hexcodec"
)

// pageDocument implements the 'm'/'l' windowed-read framing shared by every
// qXfer object (§4.13): "m<chunk>" when more remains, "l<chunk>" (possibly
// empty) once the offset reaches the end, and "E00" for a missing document.
func pageDocument(doc string, ok bool, offset, length uint64) []byte {
	if !ok {
		return []byte("E00")
	}
	if offset >= uint64(len(doc)) {
		return []byte("l")
	}
	end := offset + length
	if end > uint64(len(doc)) {
		end = uint64(len(doc))
	}
	chunk := doc[offset:end]
	marker := byte('m')
	if end >= uint64(len(doc)) {
		marker = 'l'
	}
	return append([]byte{marker}, chunk...)
}

// handleXferFeaturesRead implements 'qXfer:features:read:<annex>:<off>,<len>'.
func (s *Server) handleXferFeaturesRead(tail []byte) []byte {
	// tail is "<annex>:<off>,<len>".
	colon := bytes.IndexByte(tail, ':')
	if colon < 0 {
		return []byte("E00")
	}
	annex := string(tail[:colon])
	rest := tail[colon+1:]

	comma := bytes.IndexByte(rest, ',')
	if comma < 0 {
		return []byte("E00")
	}
	offHex, lenHex := rest[:comma], rest[comma+1:]

	off, err := hexcodec.HexToVal(offHex)
	if err != nil {
		return []byte("E00")
	}
	length, err := hexcodec.HexToVal(lenHex)
	if err != nil {
		return []byte("E00")
	}

	doc, ok := s.tgt.GetTargetXML(annex)
	return pageDocument(doc, ok, off, length)
}

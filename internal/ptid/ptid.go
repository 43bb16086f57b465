// Package ptid implements the (process, thread) identifier pair used by
// GDB's multiprocess extension, including the ANY/ALL/INV sentinels and
// the p<pid>.<tid> wire encoding.
package ptid

import (
	"bytes"
	"fmt"

	"github.com/embdebug/rspd/internal/hexcodec"
)

// Sentinel values for the pid/tid fields.
const (
	Any int64 = 0  // wire "0" — unspecified, resolved by crystalize
	All int64 = -1 // wire "-1" — every process/thread
	Inv int64 = -2 // decode failure, never emitted externally
)

// PTID is a (pid, tid) pair.
type PTID struct {
	Pid int64
	Tid int64
}

// Invalid is the zero-value-free decode failure marker.
var Invalid = PTID{Pid: Inv, Tid: Inv}

// decodeField parses a single hex-or-sentinel field.
func decodeField(s []byte) int64 {
	if bytes.Equal(s, []byte("0")) {
		return Any
	}
	if bytes.Equal(s, []byte("-1")) {
		return All
	}
	v, err := hexcodec.HexToVal(s)
	if err != nil {
		return Inv
	}
	return int64(v)
}

// Decode parses a full PTID field: bare "<tid>", "p<pid>", or
// "p<pid>.<tid>". curPid supplies the pid to use when the field is a bare
// tid (the "leave PID unchanged" case in §4.3).
func Decode(s []byte, curPid int64) (PTID, error) {
	if len(s) == 0 {
		return Invalid, fmt.Errorf("ptid: empty field")
	}

	var p PTID
	if s[0] == 'p' {
		rest := s[1:]
		if dot := bytes.IndexByte(rest, '.'); dot >= 0 {
			p.Pid = decodeField(rest[:dot])
			p.Tid = decodeField(rest[dot+1:])
		} else {
			p.Pid = decodeField(rest)
			p.Tid = All
		}
	} else {
		p.Pid = curPid
		p.Tid = decodeField(s)
	}

	if p.Pid == Inv || p.Tid == Inv {
		return Invalid, fmt.Errorf("ptid: malformed field %q", s)
	}
	if p.Pid == All && (p.Tid == All || p.Tid == Any) {
		return Invalid, fmt.Errorf("ptid: invalid combination pid=ALL tid=%d", p.Tid)
	}
	return p, nil
}

func encodeField(v int64) string {
	switch v {
	case Any:
		return "0"
	case All:
		return "-1"
	default:
		return hexcodec.ValToHex(uint64(v))
	}
}

// Encode renders p as "p<pid>.<tid>".
func (p PTID) Encode() string {
	return "p" + encodeField(p.Pid) + "." + encodeField(p.Tid)
}

// Crystalize replaces ANY components with defaultPid/defaultTid. ALL or INV
// components cannot be crystalized and yield an error.
func (p PTID) Crystalize(defaultPid, defaultTid int64) (PTID, error) {
	out := p
	if out.Pid == Any {
		out.Pid = defaultPid
	} else if out.Pid == All || out.Pid == Inv {
		return Invalid, fmt.Errorf("ptid: cannot crystalize pid=%d", out.Pid)
	}
	if out.Tid == Any {
		out.Tid = defaultTid
	} else if out.Tid == All || out.Tid == Inv {
		return Invalid, fmt.Errorf("ptid: cannot crystalize tid=%d", out.Tid)
	}
	return out, nil
}

// Matches reports whether p, potentially carrying ALL sentinels, matches a
// concrete core identified by pid (used for vCont per-core action
// resolution, §4.5).
func (p PTID) Matches(pid int64) bool {
	return p.Pid == All || p.Pid == pid
}

// Package vcont parses the vCont action list and resolves the action that
// applies to a given core.
package vcont

import (
	"bytes"
	"fmt"

	"github.com/embdebug/rspd/internal/ptid"
)

// Action is one parsed "letter[:ptid]" entry from a vCont packet.
type Action struct {
	Letter byte
	Ptid   ptid.PTID
}

// Parse splits the tail of a "vCont;..." packet (the bytes after the
// leading "vCont;") into an ordered list of actions. An action with no
// ":ptid" suffix defaults to ALL/ALL. Any action whose ptid has pid == ANY
// is rejected.
func Parse(tail []byte) ([]Action, error) {
	var actions []Action
	for _, tok := range bytes.Split(tail, []byte(";")) {
		if len(tok) == 0 {
			continue
		}

		letter := tok[0]
		rest := tok[1:]

		p := ptid.PTID{Pid: ptid.All, Tid: ptid.All}
		if colon := bytes.IndexByte(rest, ':'); colon >= 0 {
			decoded, err := ptid.Decode(rest[colon+1:], ptid.All)
			if err != nil {
				return nil, fmt.Errorf("vcont: %w", err)
			}
			p = decoded
		}

		if p.Pid == ptid.Any {
			return nil, fmt.Errorf("vcont: action %q targets pid ANY", tok)
		}

		actions = append(actions, Action{Letter: letter, Ptid: p})
	}
	return actions, nil
}

// ResolveCore returns the action letter that applies to the core with the
// given pid (1-based, per the pid = core_index+1 mapping), scanning actions
// in order and taking the first match. It returns 0 if none applies.
func ResolveCore(actions []Action, pid int64) byte {
	for _, a := range actions {
		if a.Ptid.Matches(pid) {
			return a.Letter
		}
	}
	return 0
}

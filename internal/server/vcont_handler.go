package server

import (
	"bytes"

	"github.com/embdebug/rspd/internal/coremgr"
	"github.com/embdebug/rspd/internal/hexcodec"
	"github.com/embdebug/rspd/internal/vcont"
)

// handleV dispatches the 'v...' packet family: vCont?, vCont;..., vKill.
func (s *Server) handleV(pkt []byte) []byte {
	switch {
	case bytes.Equal(pkt, []byte("vCont?")):
		return []byte("vCont;c;C;s;S")
	case bytes.HasPrefix(pkt, []byte("vCont;")):
		return s.handleVContResume(pkt[len("vCont;"):])
	case bytes.HasPrefix(pkt, []byte("vKill;")):
		return s.handleVKill(pkt[len("vKill;"):])
	default:
		return []byte{}
	}
}

// handleVContResume parses the action list and resolves, downgrades, and
// records a resume type for every core, then hands off to the execution
// coordinator (§4.11). This is the only path that may resume a core.
func (s *Server) handleVContResume(tail []byte) []byte {
	actions, err := vcont.Parse(tail)
	if err != nil {
		s.log.WithError(err).Warn("malformed vCont action list")
		return []byte("E01")
	}

	for i := 0; i < s.cores.NumCores(); i++ {
		letter := vcont.ResolveCore(actions, pidOf(i))
		rt, err := resumeTypeFromLetter(letter)
		if err != nil {
			return []byte("E01")
		}
		if !s.cores.IsLive(i) && rt != coremgr.ResumeNone {
			s.log.WithField("core", i).Warn("downgrading resume request on dead core")
			rt = coremgr.ResumeNone
		}
		s.cores.SetResumeType(i, rt)
	}

	return s.runExecutionCoordinator()
}

func resumeTypeFromLetter(letter byte) (coremgr.ResumeType, error) {
	switch letter {
	case 0:
		return coremgr.ResumeNone, nil
	case 'c', 'C':
		return coremgr.ResumeContinue, nil
	case 's', 'S':
		return coremgr.ResumeStep, nil
	default:
		return coremgr.ResumeNone, errUnsupportedAction
	}
}

var errUnsupportedAction = errUnsupported("unsupported vCont action")

type errUnsupported string

func (e errUnsupported) Error() string { return string(e) }

// handleVKill implements 'vKill;<hex-pid>' (§4.11).
func (s *Server) handleVKill(hexPid []byte) []byte {
	pid, err := hexcodec.HexToVal(hexPid)
	if err != nil {
		return []byte("E01")
	}
	core := s.coreOf(int64(pid))
	if core < 0 {
		return []byte("E01")
	}

	s.cores.Kill(core)

	if s.cores.LiveCores() == 0 {
		s.closeConnAfterReply()
		if s.killBehaviour == ExitOnKill {
			s.exitRequested = true
		}
	}
	return []byte("OK")
}

package server

import (
	"fmt"

	"github.com/embdebug/rspd/internal/coremgr"
	"github.com/embdebug/rspd/internal/rsplog"
	"github.com/embdebug/rspd/internal/target"
)

// Wire signal numbers used in stop replies (§4.12, §9 "the wire signal
// number for TIMEOUT is reported as SIGXCPU, retained for compatibility").
const (
	sigINT  = 0x02
	sigTRAP = 0x05
	sigUSR1 = 0x1E
	sigXCPU = 0x18
)

func sigReply(sig int) []byte {
	return []byte(fmt.Sprintf("S%02x", sig))
}

// fatal reports an invariant violation or unrecoverable target failure and
// aborts the process (§7 error classes 3 and 4).
func (s *Server) fatal(format string, args ...interface{}) []byte {
	rsplog.Fatal(s.log, format, args...)
	panic("unreachable") // rsplog.Fatal calls os.Exit; kept for the type checker
}

// cyclerAdapter lets target.Target satisfy timeout.Cycler without the
// timeout package importing target (keeping the dependency direction
// leaf-ward, as the teacher's packages do).
type cyclerAdapter struct{ t target.Target }

func (c cyclerAdapter) CycleCount() uint64 { return c.t.CycleCount() }

// runExecutionCoordinator drives prepare/resume/wait for every core armed
// by a vCont request (§4.12). Entry condition: resume types have already
// been populated by the caller.
func (s *Server) runExecutionCoordinator() []byte {
	if reply, handled := s.checkBreakAndPendingEvents(); handled {
		return reply
	}
	return s.resumeAndWait()
}

// checkBreakAndPendingEvents implements steps 1-2 of §4.12: a pending
// client break takes priority over everything else, then any
// already-pending unreported stop event is dispatched.
func (s *Server) checkBreakAndPendingEvents() ([]byte, bool) {
	if s.f.HasPendingBreak() {
		s.f.ConsumeBreak()
		s.tgt.Halt()
		return sigReply(sigINT), true
	}
	return s.processPendingStopEvent()
}

// processPendingStopEvent dispatches the highest-priority unreported stop
// (§4.7's SYSCALL-first ordering), or reports that none is pending.
func (s *Server) processPendingStopEvent() ([]byte, bool) {
	core, reason, ok := s.cores.NextUnreportedStop()
	if !ok {
		return nil, false
	}

	s.cores.ReportStop(core)
	s.tgt.SetCurrentCPU(core)

	switch reason {
	case coremgr.StopSyscall:
		// The core stays "running" from the coordinator's point of view
		// until the client's F-reply lets it resume or halts it.
		return s.beginSyscall(core), true
	case coremgr.StopInterrupted:
		s.cores.SetResumeType(core, coremgr.ResumeNone)
		return sigReply(sigINT), true
	case coremgr.StopStepped:
		s.cores.SetResumeType(core, coremgr.ResumeNone)
		return sigReply(sigTRAP), true
	case coremgr.StopLockstep:
		s.cores.SetResumeType(core, coremgr.ResumeNone)
		return sigReply(sigUSR1), true
	default:
		return s.fatal("unexpected stop reason %v on core %d", reason, core), true
	}
}

// resumeAndWait implements steps 3-7 of §4.12: stamp the timeout, resume,
// then loop on Wait until an event, an error, or a break/timeout
// preemption.
func (s *Server) resumeAndWait() []byte {
	actions := make([]target.ResumeType, s.cores.NumCores())
	for i := range actions {
		actions[i] = toTargetResumeType(s.cores.ResumeType(i))
	}
	if !s.tgt.Prepare(actions) {
		return s.fatal("target.prepare() failed")
	}

	s.timeout.Stamp(cyclerAdapter{s.tgt})

	if !s.tgt.Resume() {
		return s.fatal("target.resume() failed")
	}

	results := make([]target.ResumeRes, s.cores.NumCores())
	for {
		waitRes, err := s.tgt.Wait(results)
		if err != nil {
			return s.fatal("target.wait() returned an error: %v", err)
		}

		switch waitRes {
		case target.WaitError:
			return s.fatal("target reported a wait error")

		case target.WaitTimeout:
			s.f.PollBreak()
			if s.f.HasPendingBreak() {
				s.f.ConsumeBreak()
				s.tgt.Halt()
				return sigReply(sigINT)
			}
			if s.timeout.HaveTimeout() && s.timeout.TimedOut(cyclerAdapter{s.tgt}) {
				s.tgt.Halt()
				return sigReply(sigXCPU)
			}
			continue

		case target.WaitEventOccurred:
			if len(results) != s.cores.NumCores() {
				return s.fatal("wait() returned %d results, want %d", len(results), s.cores.NumCores())
			}
			for i := 0; i < s.cores.NumCores(); i++ {
				if !s.cores.IsRunning(i) {
					continue
				}
				if s.cores.HasUnreportedStop(i) {
					return s.fatal("core %d already had an unreported stop", i)
				}
				s.cores.SetStopReason(i, fromTargetResumeRes(results[i]))
			}

			reply, handled := s.processPendingStopEvent()
			if !handled {
				return s.fatal("wait() reported an event but no stop is pending")
			}
			return reply
		}
	}
}

func toTargetResumeType(rt coremgr.ResumeType) target.ResumeType {
	switch rt {
	case coremgr.ResumeStep:
		return target.ResumeStep
	case coremgr.ResumeContinue:
		return target.ResumeContinue
	default:
		return target.ResumeNone
	}
}

func fromTargetResumeRes(r target.ResumeRes) coremgr.StopReason {
	switch r {
	case target.ResSuccess:
		return coremgr.StopSuccess
	case target.ResFailure:
		return coremgr.StopFailure
	case target.ResInterrupted:
		return coremgr.StopInterrupted
	case target.ResTimeout:
		return coremgr.StopTimeout
	case target.ResSyscall:
		return coremgr.StopSyscall
	case target.ResStepped:
		return coremgr.StopStepped
	case target.ResLockstep:
		return coremgr.StopLockstep
	default:
		return coremgr.StopNone
	}
}

// stopReasonSignal maps a core's last stop reason to a wire signal number,
// for the '?' handler. A core that never stopped defaults to SIGTRAP, the
// value GDB expects immediately after attaching.
func stopReasonSignal(r coremgr.StopReason) int {
	switch r {
	case coremgr.StopInterrupted:
		return sigINT
	case coremgr.StopStepped:
		return sigTRAP
	case coremgr.StopLockstep:
		return sigUSR1
	case coremgr.StopTimeout:
		return sigXCPU
	default:
		return sigTRAP
	}
}

func (s *Server) handleLastStopReason() []byte {
	core := s.tgt.CurrentCPU()
	reason := s.cores.StopReason(core)
	sig := stopReasonSignal(reason)

	if s.haveMultiproc {
		p := s.currentPtid
		p.Pid = pidOf(core)
		p.Tid = 1
		return []byte(fmt.Sprintf("T%02xthread:%s;", sig, p.Encode()))
	}
	return sigReply(sig)
}

// Package coremgr tracks per-core liveness, resume intent, and unreported
// stop events (§3 "Core state", §4.7).
package coremgr

// ResumeType is what was last requested of a core.
type ResumeType int

const (
	ResumeNone ResumeType = iota
	ResumeStep
	ResumeContinue
)

// StopReason enumerates why a core last stopped.
type StopReason int

const (
	StopNone StopReason = iota
	StopSuccess
	StopFailure
	StopInterrupted
	StopTimeout
	StopSyscall
	StopStepped
	StopLockstep
)

type coreState struct {
	live         bool
	resumeType   ResumeType
	stopReason   StopReason
	stopReported bool
}

// Manager owns the per-core state array.
type Manager struct {
	numCores  int
	liveCores int
	states    []coreState
}

// New creates a Manager for count cores, all initially live.
func New(count int) *Manager {
	m := &Manager{numCores: count}
	m.states = make([]coreState, count)
	m.Reset()
	return m
}

// Reset reinitialises every core to live/idle and restores live_cores to
// num_cores.
func (m *Manager) Reset() {
	for i := range m.states {
		m.states[i] = coreState{live: true}
	}
	m.liveCores = m.numCores
}

// NumCores returns the number of cores under management.
func (m *Manager) NumCores() int { return m.numCores }

// LiveCores returns the count of cores not yet killed.
func (m *Manager) LiveCores() int { return m.liveCores }

// IsLive reports whether core i is live.
func (m *Manager) IsLive(i int) bool {
	if i < 0 || i >= m.numCores {
		return false
	}
	return m.states[i].live
}

// Kill marks core i dead. It is idempotent on the live flag itself, but
// (per the source's known quirk, §9 Open Questions) decrements live_cores
// once per call — including repeated kills of an already-dead core. This
// preserves the original's observable behaviour rather than guessing at a
// fix; see DESIGN.md.
func (m *Manager) Kill(i int) {
	if i < 0 || i >= m.numCores {
		return
	}
	m.states[i].live = false
	m.states[i].resumeType = ResumeNone
	m.liveCores--
}

// SetResumeType records what core i was asked to do next. A request on a
// dead core is silently downgraded to ResumeNone.
func (m *Manager) SetResumeType(i int, rt ResumeType) {
	if i < 0 || i >= m.numCores {
		return
	}
	if !m.states[i].live {
		rt = ResumeNone
	}
	m.states[i].resumeType = rt
}

// ResumeType returns core i's last-requested resume type.
func (m *Manager) ResumeType(i int) ResumeType {
	if i < 0 || i >= m.numCores {
		return ResumeNone
	}
	return m.states[i].resumeType
}

// IsRunning reports whether core i has a non-NONE resume type.
func (m *Manager) IsRunning(i int) bool {
	return m.ResumeType(i) != ResumeNone
}

// SetStopReason records why core i stopped and marks the stop unreported.
func (m *Manager) SetStopReason(i int, r StopReason) {
	if i < 0 || i >= m.numCores {
		return
	}
	m.states[i].stopReason = r
	m.states[i].stopReported = false
}

// StopReason returns core i's current stop reason.
func (m *Manager) StopReason(i int) StopReason {
	if i < 0 || i >= m.numCores {
		return StopNone
	}
	return m.states[i].stopReason
}

// HasUnreportedStop reports whether core i is running, has a non-NONE stop
// reason, and that reason has not yet been surfaced to the client.
func (m *Manager) HasUnreportedStop(i int) bool {
	if i < 0 || i >= m.numCores {
		return false
	}
	s := m.states[i]
	return m.IsRunning(i) && s.stopReason != StopNone && !s.stopReported
}

// ReportStop marks core i's current stop reason as reported.
func (m *Manager) ReportStop(i int) {
	if i < 0 || i >= m.numCores {
		return
	}
	m.states[i].stopReported = true
}

// NextUnreportedStop scans cores in index order for a pending stop event.
// SYSCALL stops take priority over any other reason: the first SYSCALL
// core found wins even if an earlier core has a different unreported stop.
func (m *Manager) NextUnreportedStop() (core int, reason StopReason, ok bool) {
	for i := 0; i < m.numCores; i++ {
		if m.HasUnreportedStop(i) && m.states[i].stopReason == StopSyscall {
			return i, StopSyscall, true
		}
	}
	for i := 0; i < m.numCores; i++ {
		if m.HasUnreportedStop(i) {
			return i, m.states[i].stopReason, true
		}
	}
	return 0, StopNone, false
}

package coremgr

import "testing"

func TestStopEventPriority(t *testing.T) {
	m := New(2)
	m.SetResumeType(0, ResumeContinue)
	m.SetResumeType(1, ResumeContinue)
	m.SetStopReason(0, StopInterrupted)
	m.SetStopReason(1, StopSyscall)

	core, reason, ok := m.NextUnreportedStop()
	if !ok {
		t.Fatal("expected an unreported stop")
	}
	if core != 1 || reason != StopSyscall {
		t.Errorf("NextUnreportedStop = (%d, %v), want (1, StopSyscall)", core, reason)
	}
}

func TestDowngradeOnDeadCore(t *testing.T) {
	m := New(1)
	m.Kill(0)
	m.SetResumeType(0, ResumeStep)
	if got := m.ResumeType(0); got != ResumeNone {
		t.Errorf("resume type on dead core = %v, want ResumeNone", got)
	}
}

func TestResetRestoresLiveCores(t *testing.T) {
	m := New(3)
	m.Kill(0)
	m.Kill(1)
	if m.LiveCores() != 1 {
		t.Fatalf("LiveCores = %d, want 1", m.LiveCores())
	}
	m.Reset()
	if m.LiveCores() != 3 {
		t.Fatalf("LiveCores after Reset = %d, want 3", m.LiveCores())
	}
	if !m.IsLive(0) || !m.IsLive(1) {
		t.Error("Reset should resurrect all cores")
	}
}

func TestReportStopClearsUnreported(t *testing.T) {
	m := New(1)
	m.SetResumeType(0, ResumeContinue)
	m.SetStopReason(0, StopStepped)
	if !m.HasUnreportedStop(0) {
		t.Fatal("expected unreported stop")
	}
	m.ReportStop(0)
	if m.HasUnreportedStop(0) {
		t.Error("after ReportStop, stop should no longer be unreported")
	}
}

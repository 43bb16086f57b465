package timeout

import (
	"testing"
	"time"
)

type fakeCycler struct{ n uint64 }

func (f *fakeCycler) CycleCount() uint64 { return f.n }

func TestTrisection(t *testing.T) {
	var to Timeout
	if to.HaveTimeout() {
		t.Fatal("fresh Timeout should have no timeout")
	}

	to.SetReal(time.Second)
	if !to.HaveTimeout() || !to.IsReal() || to.IsCycle() {
		t.Fatal("SetReal should establish a real timeout")
	}

	to.SetCycle(100)
	if !to.IsCycle() || to.IsReal() {
		t.Fatal("SetCycle should clear the real timeout")
	}

	to.Clear()
	if to.HaveTimeout() {
		t.Fatal("Clear should remove any timeout")
	}
}

func TestCycleTimedOut(t *testing.T) {
	var to Timeout
	to.SetCycle(10)
	cpu := &fakeCycler{n: 100}
	to.Stamp(cpu)
	if to.TimedOut(cpu) {
		t.Fatal("should not be timed out immediately")
	}
	cpu.n = 111
	if !to.TimedOut(cpu) {
		t.Fatal("111-100=11 exceeds the limit of 10, should be timed out")
	}
}

func TestNoTimeoutNeverTimesOut(t *testing.T) {
	var to Timeout
	if to.TimedOut(nil) {
		t.Fatal("NONE timeout should never time out")
	}
}

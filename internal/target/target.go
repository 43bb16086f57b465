// Package target defines the abstract CPU backend contract (§6.2): the
// capability set the server drives without ever interpreting an
// instruction itself. A real backend is loaded by the driver (C14) as a
// plugin; this package also carries an in-memory Dummy implementation used
// by every server-package test, grounded on original_source/'s
// include/embdebug/ITarget.h and targets/dummytarget/dummytarget.cpp.
package target

// ResumeType is what a core is armed to do on the next Resume (§6.2
// "prepare").
type ResumeType int

const (
	ResumeStep ResumeType = iota
	ResumeContinue
	ResumeNone
)

// ResumeRes is why a core halted, as reported by Wait (§6.2).
type ResumeRes int

const (
	ResNone ResumeRes = iota
	ResSuccess
	ResFailure
	ResInterrupted
	ResTimeout
	ResSyscall
	ResStepped
	ResLockstep
)

// WaitResult is Wait's top-level outcome (§6.2).
type WaitResult int

const (
	WaitEventOccurred WaitResult = iota
	WaitError
	WaitTimeout
)

// MatchType enumerates the five matchpoint kinds, numbered to match the
// Z/z wire encoding (§3 "MatchpointType").
type MatchType int

const (
	MatchBreak MatchType = iota
	MatchBreakHW
	MatchWatchWrite
	MatchWatchRead
	MatchWatchAccess
)

// ResetType selects a cold (full reconstruction) or warm (state-only)
// reset (§6.2 "reset").
type ResetType int

const (
	ResetCold ResetType = iota
	ResetWarm
)

// ArgLoc names where a host-syscall id, argument, or return value lives:
// either a register index or a fixed memory address (§6.2
// "syscall_arg_locations").
type ArgLoc struct {
	IsMemory bool
	Reg      int
	Addr     uint64
}

// SyscallArgLocs is the ABI description a target supplies so the
// coordinator can read/write host-syscall operands without knowing the
// target's register layout (§4.12).
type SyscallArgLocs struct {
	ID   ArgLoc
	Args []ArgLoc
	Ret  ArgLoc
}

// Target is the capability set the server drives (§6.2). Implementations
// are expected to serialize their own state; the server never calls a
// Target method concurrently with another (§5).
type Target interface {
	CPUCount() int
	CurrentCPU() int
	SetCurrentCPU(i int)

	RegisterCount() int
	RegisterSize() int
	LittleEndian() bool

	ReadRegister(reg int) (value uint64, size int, err error)
	WriteRegister(reg int, value uint64) (size int, err error)

	Read(addr uint64, buf []byte) (n int, err error)
	Write(addr uint64, buf []byte) (n int, err error)

	InsertMatchpoint(addr uint64, t MatchType) bool
	RemoveMatchpoint(addr uint64, t MatchType) bool

	Prepare(actions []ResumeType) bool
	Resume() bool
	Wait(results []ResumeRes) (WaitResult, error)
	Halt() bool
	Reset(t ResetType) ResumeRes

	CycleCount() uint64
	InstrCount() uint64
	TimeStamp() float64

	Command(cmd string, out func(line string)) bool

	SyscallArgLocations() (SyscallArgLocs, bool)

	SupportsTargetXML() bool
	GetTargetXML(annex string) (string, bool)
}

package target

import "fmt"

// Dummy is an in-memory Target used by the test suite and as the
// zero-configuration fallback when the driver is started without
// --soname (§6.4). It models registers and memory as plain slices and
// lets a test script exact Wait outcomes via QueueEvent rather than
// hand-rolling a fake target type per test file, the way
// original_source/'s StubTarget.h does for the original's own unit tests.
type Dummy struct {
	cpuCount     int
	currentCPU   int
	registers    []uint64
	registerSize int
	littleEndian bool

	mem []byte

	matchpoints map[matchKey]bool

	lastActions []ResumeType
	eventQueue  [][]ResumeRes

	cycles uint64
	instrs uint64

	syscallLocs    SyscallArgLocs
	haveSyscallLoc bool

	xmlDocs map[string]string
}

type matchKey struct {
	addr uint64
	t    MatchType
}

// NewDummy builds a Dummy with cpuCount cores, memSize bytes of flat
// memory, registerCount registers of registerSize bytes each, in the
// given endianness.
func NewDummy(cpuCount int, memSize uint64, registerCount, registerSize int, littleEndian bool) *Dummy {
	return &Dummy{
		cpuCount:     cpuCount,
		registers:    make([]uint64, registerCount),
		registerSize: registerSize,
		littleEndian: littleEndian,
		mem:          make([]byte, memSize),
		matchpoints:  make(map[matchKey]bool),
		xmlDocs:      make(map[string]string),
	}
}

// QueueEvent scripts the ResumeRes slice the next Wait call returns,
// FIFO. When the queue is empty, Wait synthesizes results from the
// actions last passed to Prepare (STEP -> STEPPED, CONTINUE -> SUCCESS),
// matching a target that simply does what it was told.
func (d *Dummy) QueueEvent(results []ResumeRes) {
	d.eventQueue = append(d.eventQueue, results)
}

// SetSyscallArgLocations installs the ABI locations beginSyscall reads
// host-syscall operands from (§4.12).
func (d *Dummy) SetSyscallArgLocations(locs SyscallArgLocs) {
	d.syscallLocs = locs
	d.haveSyscallLoc = true
}

// SetTargetXML registers a document servable via qXfer:features:read
// under the given annex name (§4.13).
func (d *Dummy) SetTargetXML(annex, doc string) {
	d.xmlDocs[annex] = doc
}

func (d *Dummy) CPUCount() int       { return d.cpuCount }
func (d *Dummy) CurrentCPU() int     { return d.currentCPU }
func (d *Dummy) SetCurrentCPU(i int) { d.currentCPU = i }
func (d *Dummy) RegisterCount() int  { return len(d.registers) }
func (d *Dummy) RegisterSize() int   { return d.registerSize }
func (d *Dummy) LittleEndian() bool  { return d.littleEndian }

func (d *Dummy) ReadRegister(reg int) (uint64, int, error) {
	if reg < 0 || reg >= len(d.registers) {
		return 0, 0, fmt.Errorf("register %d out of range [0,%d)", reg, len(d.registers))
	}
	return d.registers[reg], d.registerSize, nil
}

func (d *Dummy) WriteRegister(reg int, value uint64) (int, error) {
	if reg < 0 || reg >= len(d.registers) {
		return 0, fmt.Errorf("register %d out of range [0,%d)", reg, len(d.registers))
	}
	d.registers[reg] = value
	return d.registerSize, nil
}

func (d *Dummy) Read(addr uint64, buf []byte) (int, error) {
	if addr >= uint64(len(d.mem)) {
		return 0, fmt.Errorf("read at 0x%x out of bounds", addr)
	}
	n := copy(buf, d.mem[addr:])
	if n < len(buf) {
		return n, fmt.Errorf("short read at 0x%x: got %d of %d bytes", addr, n, len(buf))
	}
	return n, nil
}

func (d *Dummy) Write(addr uint64, buf []byte) (int, error) {
	if addr >= uint64(len(d.mem)) {
		return 0, fmt.Errorf("write at 0x%x out of bounds", addr)
	}
	n := copy(d.mem[addr:], buf)
	if n < len(buf) {
		return n, fmt.Errorf("short write at 0x%x: wrote %d of %d bytes", addr, n, len(buf))
	}
	return n, nil
}

func (d *Dummy) InsertMatchpoint(addr uint64, t MatchType) bool {
	d.matchpoints[matchKey{addr, t}] = true
	return true
}

func (d *Dummy) RemoveMatchpoint(addr uint64, t MatchType) bool {
	k := matchKey{addr, t}
	if !d.matchpoints[k] {
		return false
	}
	delete(d.matchpoints, k)
	return true
}

func (d *Dummy) Prepare(actions []ResumeType) bool {
	d.lastActions = append(d.lastActions[:0], actions...)
	return true
}

func (d *Dummy) Resume() bool {
	d.cycles += 100
	d.instrs += 37
	return true
}

func (d *Dummy) Halt() bool { return true }

func (d *Dummy) Reset(t ResetType) ResumeRes {
	for i := range d.registers {
		d.registers[i] = 0
	}
	if t == ResetCold {
		for i := range d.mem {
			d.mem[i] = 0
		}
	}
	d.cycles = 0
	d.instrs = 0
	return ResSuccess
}

// Wait implements §6.2's "blocks until one core halts; on return, fills
// in every core's reason." A scripted event (QueueEvent) takes priority;
// otherwise results are derived from the actions most recently armed by
// Prepare.
func (d *Dummy) Wait(results []ResumeRes) (WaitResult, error) {
	if len(d.eventQueue) > 0 {
		next := d.eventQueue[0]
		d.eventQueue = d.eventQueue[1:]
		for i := range results {
			results[i] = ResNone
		}
		copy(results, next)
		return WaitEventOccurred, nil
	}

	for i := range results {
		if i >= len(d.lastActions) {
			results[i] = ResNone
			continue
		}
		switch d.lastActions[i] {
		case ResumeStep:
			results[i] = ResStepped
		case ResumeContinue:
			results[i] = ResSuccess
		default:
			results[i] = ResNone
		}
	}
	return WaitEventOccurred, nil
}

func (d *Dummy) CycleCount() uint64 { return d.cycles }
func (d *Dummy) InstrCount() uint64 { return d.instrs }
func (d *Dummy) TimeStamp() float64 { return float64(d.cycles) }

// Command implements the target-specific monitor extension (§4.10.1's
// "forwarded to the target's command hook"). Dummy recognises "ping" for
// test/diagnostic purposes and declines everything else.
func (d *Dummy) Command(cmd string, out func(line string)) bool {
	if cmd == "ping" {
		out("pong")
		return true
	}
	return false
}

func (d *Dummy) SyscallArgLocations() (SyscallArgLocs, bool) {
	return d.syscallLocs, d.haveSyscallLoc
}

func (d *Dummy) SupportsTargetXML() bool { return len(d.xmlDocs) > 0 }

func (d *Dummy) GetTargetXML(annex string) (string, bool) {
	doc, ok := d.xmlDocs[annex]
	return doc, ok
}

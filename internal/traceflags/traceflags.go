// Package traceflags implements the named tracing knobs recognised at
// startup (§4.8). A Flags value is created once and passed by reference
// into every component that consults it; there is no process-global
// singleton.
package traceflags

import (
	"fmt"
	"strconv"
)

// Name enumerates the recognised flag names.
type Name string

const (
	RSP       Name = "rsp"
	Conn      Name = "conn"
	Break     Name = "break"
	VCD       Name = "vcd"
	Silent    Name = "silent"
	Disas     Name = "disas"
	QDisas    Name = "qdisas"
	DFlush    Name = "dflush"
	Mem       Name = "mem"
	Exec      Name = "exec"
	Verbosity Name = "verbosity"
	IPG       Name = "ipg"
)

var numeric = map[Name]bool{
	Verbosity: true,
	IPG:       true,
}

var known = map[Name]bool{
	RSP: true, Conn: true, Break: true, VCD: true, Silent: true,
	Disas: true, QDisas: true, DFlush: true, Mem: true, Exec: true,
	Verbosity: true, IPG: true,
}

type entry struct {
	state bool
	str   string
	num   int64
}

// Flags is the registry of trace flag state.
type Flags struct {
	entries map[Name]entry
}

// New creates a Flags with ipg defaulted to 50, as specified.
func New() *Flags {
	f := &Flags{entries: make(map[Name]entry)}
	f.entries[IPG] = entry{state: false, num: 50}
	return f
}

// Parse handles one "-t/--trace" argument: either "key" or "key=value".
// Setting an unknown name is a fatal configuration error, surfaced to the
// caller (the driver aborts on it, per §4.8).
func (f *Flags) Parse(arg string) error {
	name := arg
	value := ""
	hasValue := false
	for i, c := range arg {
		if c == '=' {
			name = arg[:i]
			value = arg[i+1:]
			hasValue = true
			break
		}
	}

	n := Name(name)
	if !known[n] {
		return fmt.Errorf("traceflags: unknown flag %q", name)
	}

	e := entry{state: true}
	if hasValue {
		e.str = value
		if numeric[n] {
			v, err := strconv.ParseInt(value, 0, 64)
			if err != nil {
				return fmt.Errorf("traceflags: flag %q wants a numeric value: %w", name, err)
			}
			e.num = v
		}
	} else if n == IPG {
		e.num = 50
	}

	f.entries[n] = e
	return nil
}

// Known reports whether n is a recognised flag name.
func Known(n Name) bool { return known[n] }

// SetFlag explicitly sets flag n's state and, for flags carrying a value,
// its associated string, parsed to an int64 for numeric flags. Setting an
// unknown flag is an error, matching Parse (§4.8, §4.10.1's "set debug").
func (f *Flags) SetFlag(n Name, state bool, value string) error {
	if !known[n] {
		return fmt.Errorf("traceflags: unknown flag %q", n)
	}

	e := entry{state: state}
	if value != "" {
		e.str = value
		if numeric[n] {
			v, err := strconv.ParseInt(value, 0, 64)
			if err != nil {
				return fmt.Errorf("traceflags: flag %q wants a numeric value: %w", n, err)
			}
			e.num = v
		}
	} else if n == IPG {
		e.num = 50
	}

	f.entries[n] = e
	return nil
}

// Enabled reports whether the named flag is set.
func (f *Flags) Enabled(n Name) bool {
	return f.entries[n].state
}

// String returns the string value attached to the named flag.
func (f *Flags) String(n Name) string {
	return f.entries[n].str
}

// Int returns the integer value attached to a numeric flag.
func (f *Flags) Int(n Name) int64 {
	return f.entries[n].num
}

// All returns every recognised flag name, in a stable order, for use by
// "show debug" with no argument.
func All() []Name {
	return []Name{RSP, Conn, Break, VCD, Silent, Disas, QDisas, DFlush, Mem, Exec, Verbosity, IPG}
}

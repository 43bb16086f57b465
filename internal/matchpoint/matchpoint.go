// Package matchpoint holds the authoritative record of which addresses
// have had breakpoints or watchpoints placed, and (for software
// breakpoints) the original instruction bytes to restore on removal.
package matchpoint

import "fmt"

// Type mirrors the wire encoding of the Z/z packet's type digit.
type Type int

const (
	BreakMemory Type = iota // 0: software/memory breakpoint
	BreakHW                 // 1: hardware breakpoint
	WatchWrite              // 2
	WatchRead               // 3
	WatchAccess             // 4
)

type key struct {
	t    Type
	addr uint64
}

// Table maps (type, address) to the saved value at insertion time (the
// replaced instruction bytes for BreakMemory, packed little-endian into a
// uint64; 0 for the other types, which the target tracks itself).
type Table struct {
	entries map[key]uint64
}

// New creates an empty matchpoint table.
func New() *Table {
	return &Table{entries: make(map[key]uint64)}
}

// Insert records saved at (t, addr). If an entry already exists there, the
// call is a no-op and the existing saved value is left untouched.
func (m *Table) Insert(t Type, addr uint64, saved uint64) {
	k := key{t, addr}
	if _, ok := m.entries[k]; ok {
		return
	}
	m.entries[k] = saved
}

// Remove erases the entry at (t, addr), returning its saved value. ok is
// false if no such entry existed.
func (m *Table) Remove(t Type, addr uint64) (saved uint64, ok bool) {
	k := key{t, addr}
	saved, ok = m.entries[k]
	if ok {
		delete(m.entries, k)
	}
	return saved, ok
}

// Lookup returns the saved value at (t, addr) without removing it.
func (m *Table) Lookup(t Type, addr uint64) (saved uint64, ok bool) {
	saved, ok = m.entries[key{t, addr}]
	return saved, ok
}

// ErrNotFound names a Remove miss. No caller in this module returns it: the
// server's 'z' handler answers a miss with the RSP E01 reply directly.
var ErrNotFound = fmt.Errorf("matchpoint: no entry")

// Package packetbuf implements the bounded byte buffer used to accumulate
// and inspect RSP packet payloads.
package packetbuf

// MaxPacket is the default upper bound on a packet payload's length.
const MaxPacket = 10000

// Buffer is a bounded, reusable byte accumulator. It never grows past its
// configured capacity: appends beyond that are dropped and reported via the
// bool return, matching the wire framer's "buffer overflow" handling.
type Buffer struct {
	data []byte
	cap  int
}

// New creates a Buffer that holds at most capacity bytes.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = MaxPacket
	}
	return &Buffer{data: make([]byte, 0, capacity), cap: capacity}
}

// Reset empties the buffer without releasing its backing array.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Append adds a single byte. It reports false if doing so would exceed the
// buffer's capacity, in which case the byte is not stored.
func (b *Buffer) Append(c byte) bool {
	if len(b.data) >= b.cap {
		return false
	}
	b.data = append(b.data, c)
	return true
}

// Len returns the number of bytes currently stored.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the configured capacity.
func (b *Buffer) Cap() int { return b.cap }

// Bytes returns a view over the stored bytes. The slice is only valid until
// the next mutating call on b.
func (b *Buffer) Bytes() []byte { return b.data }

// StartsWith reports whether the buffer's contents begin with prefix.
func (b *Buffer) StartsWith(prefix []byte) bool {
	if len(prefix) > len(b.data) {
		return false
	}
	for i, c := range prefix {
		if b.data[i] != c {
			return false
		}
	}
	return true
}

// Find returns the index of the first occurrence of c, or -1.
func (b *Buffer) Find(c byte) int {
	for i, m := range b.data {
		if m == c {
			return i
		}
	}
	return -1
}

// View returns a sub-slice [from:to) of the stored bytes, clamped to the
// buffer's length. Like Bytes, only valid until the next mutation.
func (b *Buffer) View(from, to int) []byte {
	if from < 0 {
		from = 0
	}
	if to > len(b.data) {
		to = len(b.data)
	}
	if from >= to {
		return nil
	}
	return b.data[from:to]
}

// Package conn implements the two Connection back-ends (TCP and stdio)
// behind a common byte-level interface (§6.3).
package conn

// Connection is the byte-level transport the framer reads and writes.
// Implementations serialize reads and writes are never attempted
// concurrently by more than one caller, matching the server's
// single-threaded cooperative model (§5).
type Connection interface {
	// Connect establishes (or, for TCP, accepts) the next client. It
	// blocks until a client is available or a fatal error occurs.
	Connect() bool

	// Close releases the connection's resources. Safe to call multiple
	// times.
	Close()

	// IsConnected reports whether a client is currently attached.
	IsConnected() bool

	// PutByte writes a single byte, reporting success.
	PutByte(b byte) bool

	// GetByte reads a single byte. In blocking mode it waits for data and
	// returns ok=false only at EOF. In non-blocking mode it returns
	// immediately, with ok=false meaning "no data available right now"
	// (not necessarily EOF).
	GetByte(blocking bool) (b byte, ok bool)
}

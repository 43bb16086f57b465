package conn

import (
	"bufio"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Stdio is a Connection backed by the process's standard input/output
// streams, used when the driver is started with -s/--stdin. There is only
// ever one "client"; Connect() reports connected immediately.
type Stdio struct {
	log *logrus.Entry

	in  *bufio.Reader
	out io.Writer

	connected bool
	closed    bool
}

// NewStdio wraps os.Stdin/os.Stdout as a Connection.
func NewStdio(log *logrus.Entry) *Stdio {
	return &Stdio{in: bufio.NewReader(os.Stdin), out: os.Stdout, log: log}
}

// Connect reports "connected" immediately, as stdio has no accept step. Once
// Close has been called it fails.
func (s *Stdio) Connect() bool {
	if s.closed {
		return false
	}
	s.connected = true
	return true
}

// Close marks the stream closed. There is no reconnect in stdio mode: the
// outer server loop exits once this happens.
func (s *Stdio) Close() {
	s.connected = false
	s.closed = true
}

// IsConnected reports whether Close has been called.
func (s *Stdio) IsConnected() bool { return s.connected }

// PutByte writes b to stdout.
func (s *Stdio) PutByte(b byte) bool {
	_, err := s.out.Write([]byte{b})
	if err != nil {
		s.log.WithError(err).Debug("stdout write failed")
		return false
	}
	return true
}

// GetByte reads one byte from stdin. Non-blocking mode is approximated by
// checking Buffered(): stdio offers no portable non-blocking read, so a
// break byte sent ahead of the next packet is only detected once it has
// already arrived in the bufio.Reader's buffer.
func (s *Stdio) GetByte(blocking bool) (byte, bool) {
	if !blocking && s.in.Buffered() == 0 {
		return 0, false
	}
	b, err := s.in.ReadByte()
	if err != nil {
		return 0, false
	}
	return b, true
}

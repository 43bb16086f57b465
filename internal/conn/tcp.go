package conn

import (
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// TCP is a Connection backed by a TCP listener. It accepts one client at a
// time; a new Connect() call after a client disconnects accepts the next
// one, matching the entry-point's accept/reconnect loop (§4.14).
type TCP struct {
	log *logrus.Entry

	listener *net.TCPListener
	client   *net.TCPConn

	// readyFile, if set, receives the chosen port once bound, for test
	// harnesses that need to discover an ephemeral port.
	readyFile string

	requestedPort int
}

// NewTCP creates a TCP connection that will bind requestedPort (0 for an
// ephemeral port) and, if readyFile is non-empty, write the bound port
// there once listening starts.
func NewTCP(requestedPort int, readyFile string, log *logrus.Entry) *TCP {
	return &TCP{requestedPort: requestedPort, readyFile: readyFile, log: log}
}

// Connect binds the listener on first use, then blocks accepting the next
// client. Each accepted socket gets SO_KEEPALIVE and TCP_NODELAY, and
// SIGPIPE is ignored process-wide so a client disconnect surfaces as an
// EPIPE write error rather than terminating the process (§4.14).
func (t *TCP) Connect() bool {
	ignoreSigpipe()

	if t.listener == nil {
		addr := &net.TCPAddr{Port: t.requestedPort}
		ln, err := net.ListenTCP("tcp", addr)
		if err != nil {
			t.log.WithError(err).Error("failed to bind RSP listener")
			return false
		}
		t.listener = ln

		port := ln.Addr().(*net.TCPAddr).Port
		t.log.WithField("port", port).Info("listening for GDB client")
		if t.readyFile != "" {
			if err := os.WriteFile(t.readyFile, []byte(strconv.Itoa(port)), 0o644); err != nil {
				t.log.WithError(err).Warn("failed to write simulation_ready file")
			}
		}
	}

	c, err := t.listener.AcceptTCP()
	if err != nil {
		t.log.WithError(err).Error("accept failed")
		return false
	}

	if err := c.SetKeepAlive(true); err != nil {
		t.log.WithError(err).Warn("failed to enable SO_KEEPALIVE")
	}
	if err := c.SetNoDelay(true); err != nil {
		t.log.WithError(err).Warn("failed to enable TCP_NODELAY")
	}

	t.client = c
	return true
}

// Close closes the active client connection, if any. The listener stays
// open so the next Connect() accepts a fresh client.
func (t *TCP) Close() {
	if t.client != nil {
		t.client.Close()
		t.client = nil
	}
}

// IsConnected reports whether a client is currently attached.
func (t *TCP) IsConnected() bool { return t.client != nil }

// PutByte writes b to the client.
func (t *TCP) PutByte(b byte) bool {
	if t.client == nil {
		return false
	}
	_, err := t.client.Write([]byte{b})
	if err != nil {
		t.log.WithError(err).Debug("write failed")
		return false
	}
	return true
}

// GetByte reads one byte, blocking or polling per the contract.
func (t *TCP) GetByte(blocking bool) (byte, bool) {
	if t.client == nil {
		return 0, false
	}

	if !blocking {
		t.client.SetReadDeadline(time.Now())
	} else {
		t.client.SetReadDeadline(time.Time{})
	}

	var buf [1]byte
	n, err := t.client.Read(buf[:])
	if !blocking {
		t.client.SetReadDeadline(time.Time{})
	}
	if n == 1 {
		return buf[0], true
	}
	if err != nil && blocking {
		t.log.WithError(err).Debug("read failed")
	}
	return 0, false
}

var sigpipeIgnored bool

// ignoreSigpipe mirrors the original server's "ignore SIGPIPE" step on
// accept; net.Conn writes already surface EPIPE as a Go error rather than
// a raw signal, but we keep the explicit unix.SIGPIPE wiring so a future
// lower-level syscall path (e.g. splice-based zero-copy forwarding) cannot
// resurrect the default terminate-on-SIGPIPE behaviour.
func ignoreSigpipe() {
	if sigpipeIgnored {
		return
	}
	sigpipeIgnored = true
	signal.Ignore(unix.SIGPIPE)
}

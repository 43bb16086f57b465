// Package rsplog threads a structured logger through the server's
// components. It wraps logrus the way the rest of the examples corpus
// does (a *logrus.Entry carried by value, never a package-level global),
// so trace flags and diagnostics stay attributable to a connection.
package rsplog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a base logger writing to stderr, matching the original
// server's convention of keeping the wire protocol off stdout.
func New(level logrus.Level) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logrus.NewEntry(l)
}

// Fatal aborts the process with a diagnostic, matching §7 class 3's
// "aborts the process with a diagnostic on the error stream" for
// invariant violations and unrecoverable target failures.
func Fatal(log *logrus.Entry, msg string, args ...interface{}) {
	log.Fatalf(msg, args...)
}

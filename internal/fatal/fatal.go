// Package fatal implements the runtime's single fail-closed exit path.
//
// Every component below the CLI boundary returns ordinary Go errors; there
// is no recoverable-error path once a setup failure reaches this package.
// The half-built state of a launch (cgroup created but process not
// attached, veth created but not moved) is never meaningful to continue
// from, so the only two outcomes are "the launch proceeds" or "the process
// exits non-zero with one diagnostic line".
package fatal

import (
	"errors"
	"os"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Log is the package-level logger used for the fatal-exit diagnostic and
// for orchestrator milestone logging. Tests may point Out at a buffer.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	l.SetOutput(os.Stderr)
	return l
}

// OnError logs a single-line "op: errno-or-err-text" diagnostic and exits
// the process with status 1. It is a no-op when err is nil. Called only at
// the CLI boundary (cmd package) and from the child's pre-exec path, where
// there is no caller left to propagate an error to.
func OnError(op string, err error) {
	if err == nil {
		return
	}
	Log.Errorf("%s: %s", op, Errno(err))
	os.Exit(1)
}

// Errno renders err the way a C caller would see errno: the bare strerror
// text when err wraps a syscall.Errno, otherwise err's own message.
func Errno(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno.Error()
	}
	return err.Error()
}

// Package lock provides an advisory, file-based mutual-exclusion guard.
//
// Unlike a per-resource allocator, this runtime has no per-launch identity
// to key a lock by: the cgroup directory and the veth pair names are fixed
// constants, so two concurrent launches would collide on the same paths
// rather than on independent ones. A single well-known lock file is enough.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// DefaultPath is the lock file used when the caller has no reason to
// redirect it (tests point elsewhere to avoid touching host state).
const DefaultPath = "/run/isolate.lock"

// Guard holds an exclusive advisory lock on a single file for the
// lifetime of one launch.
type Guard struct {
	f *os.File
}

// Acquire creates (if needed) and exclusively locks the file at path,
// blocking until any concurrent holder releases it. Callers must call
// Release when the launch completes or fails.
func Acquire(path string) (*Guard, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock: create lock dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock: open %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock: flock %s: %w", path, err)
	}
	return &Guard{f: f}, nil
}

// Release unlocks and closes the underlying file. Calling it again, or on
// a nil Guard, is a no-op.
func (g *Guard) Release() {
	if g == nil || g.f == nil {
		return
	}
	_ = syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN)
	_ = g.f.Close()
	g.f = nil
}

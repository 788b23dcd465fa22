// Package cgroup manages a single cgroup v2 directory: creating it, writing
// resource limits, and attaching processes to it. Ordering matters — limits
// are written before any process is attached, so a process never observes
// an unlimited window between being forked and being constrained.
package cgroup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// Group is one cgroup v2 directory under a profile's configured root.
type Group struct {
	path string
}

// Open returns a Group bound to <root>/<name>, without touching the
// filesystem. Call EnsureDir before writing any controller file.
func Open(root, name string) *Group {
	return &Group{path: filepath.Join(root, name)}
}

// Path returns the cgroup's absolute directory path.
func (g *Group) Path() string { return g.path }

// EnsureDir creates the cgroup directory, tolerating EEXIST: a previous
// launch may have left the directory behind, and reusing it is correct
// since every limit is rewritten unconditionally afterward.
func (g *Group) EnsureDir() error {
	if err := os.Mkdir(g.path, 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("cgroup: create %s: %w", g.path, err)
	}
	return nil
}

// writeControl opens the control file with O_CLOEXEC set, so a descriptor
// for a cgroup control file is never inherited across the sandbox's own
// exec, and writes value in a single call.
func (g *Group) writeControl(file, value string) error {
	p := filepath.Join(g.path, file)
	fd, err := unix.Open(p, unix.O_WRONLY|unix.O_TRUNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("cgroup: open %s: %w", p, err)
	}
	defer unix.Close(fd)

	n, err := unix.Write(fd, []byte(value))
	if err != nil {
		return fmt.Errorf("cgroup: write %s: %w", p, err)
	}
	if n != len(value) {
		return fmt.Errorf("cgroup: short write to %s: %d of %d bytes", p, n, len(value))
	}
	return nil
}

// SetCPU writes cpu.max as "<quotaMicros> <periodMicros>".
func (g *Group) SetCPU(quotaMicros, periodMicros int) error {
	return g.writeControl("cpu.max", fmt.Sprintf("%d %d", quotaMicros, periodMicros))
}

// SetMemory writes memory.max, e.g. "50M".
func (g *Group) SetMemory(limit string) error {
	return g.writeControl("memory.max", limit)
}

// SetPIDs writes pids.max, e.g. "50".
func (g *Group) SetPIDs(limit string) error {
	return g.writeControl("pids.max", limit)
}

// SetIO writes io.max. The default resource bundle never calls this: no
// default I/O limit is specified for the sandbox, so it is left available
// for callers that configure one explicitly rather than applied
// unconditionally.
func (g *Group) SetIO(limit string) error {
	return g.writeControl("io.max", limit)
}

// Attach writes pid to cgroup.procs, moving that process into the group.
// Callers must have already applied every limit they want in effect before
// the process runs under them; Attach does not check this.
func (g *Group) Attach(pid int) error {
	return g.writeControl("cgroup.procs", strconv.Itoa(pid))
}

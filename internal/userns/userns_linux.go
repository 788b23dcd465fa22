// Package userns maps the sandboxed process's root user onto a single host
// UID/GID, letting the process believe it runs as root while carrying no
// host root privilege.
package userns

import (
	"fmt"
	"os"
	"path/filepath"
)

// procRoot and writeProcFile are overridable so tests can redirect the
// mapping writes to a scratch directory instead of a real /proc/<pid> tree.
var (
	procRoot      = "/proc"
	writeProcFile = os.WriteFile
)

// MapIdentity writes the uid_map and gid_map for pid, mapping host UID/GID
// hostUID/hostGID to namespace ID 0 (root) for a single ID.
//
// Ordering is load-bearing: the kernel refuses to write gid_map for an
// unprivileged process unless setgroups has already been set to "deny", so
// setgroups must be written strictly before gid_map. uid_map has no such
// dependency and may be written first or after setgroups; it is written
// first here to match the sequence the mapping was originally observed in.
func MapIdentity(pid, hostUID, hostGID int) error {
	base := filepath.Join(procRoot, itoa(pid))

	if err := writeProcFile(filepath.Join(base, "uid_map"), mapLine(hostUID), 0); err != nil {
		return fmt.Errorf("userns: write uid_map: %w", err)
	}
	if err := writeProcFile(filepath.Join(base, "setgroups"), []byte("deny"), 0); err != nil {
		return fmt.Errorf("userns: write setgroups: %w", err)
	}
	if err := writeProcFile(filepath.Join(base, "gid_map"), mapLine(hostGID), 0); err != nil {
		return fmt.Errorf("userns: write gid_map: %w", err)
	}
	return nil
}

func mapLine(hostID int) []byte {
	return []byte(fmt.Sprintf("0 %d 1", hostID))
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}

// Package rootfs switches the calling process's root filesystem to a
// sandbox directory via pivot_root(2). It must run after the mount
// namespace has been unshared (CLONE_NEWNS) and before any other process
// setup that depends on paths being resolved inside the sandbox.
package rootfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

const putOldDirName = ".put_old"

// Setup makes path the process's new root. It performs, in order:
//  1. a recursive bind-mount of path onto itself, so pivot_root accepts it
//     as a mount point even when it is not one already;
//  2. chdir into path;
//  3. create .put_old (idempotent);
//  4. pivot_root(".", ".put_old");
//  5. chdir to the new "/";
//  6. mount a fresh procfs at /proc;
//  7. lazily detach .put_old so the old root stops being reachable without
//     blocking on anything still holding it open.
func Setup(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("rootfs: resolve %s: %w", path, err)
	}

	// Bind-mounting onto itself is performed with an empty filesystem type:
	// the kernel ignores fstype under MS_BIND, so any non-empty value (the
	// original implementation used "ext4" regardless of the real
	// filesystem) is misleading and should be left blank.
	if err := unix.Mount(abs, abs, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("rootfs: bind-mount %s onto itself: %w", abs, err)
	}

	if err := unix.Chdir(abs); err != nil {
		return fmt.Errorf("rootfs: chdir %s: %w", abs, err)
	}

	if err := os.Mkdir(putOldDirName, 0o700); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("rootfs: create %s: %w", putOldDirName, err)
	}

	if err := unix.PivotRoot(".", putOldDirName); err != nil {
		return fmt.Errorf("rootfs: pivot_root: %w", err)
	}

	if err := unix.Chdir("/"); err != nil {
		return fmt.Errorf("rootfs: chdir /: %w", err)
	}

	if err := os.Mkdir("/proc", 0o555); err != nil && !errors.Is(err, os.ErrExist) {
		return fmt.Errorf("rootfs: create /proc: %w", err)
	}
	if err := unix.Mount("proc", "/proc", "proc", 0, ""); err != nil {
		return fmt.Errorf("rootfs: mount /proc: %w", err)
	}

	if err := unix.Unmount("/"+putOldDirName, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("rootfs: detach %s: %w", putOldDirName, err)
	}

	return nil
}

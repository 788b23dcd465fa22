package userns

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func withScratchProcRoot(t *testing.T, pid int) string {
	t.Helper()
	dir := t.TempDir()
	pidDir := filepath.Join(dir, itoa(pid))
	if err := os.MkdirAll(pidDir, 0o755); err != nil {
		t.Fatalf("create scratch proc dir: %v", err)
	}
	for _, f := range []string{"uid_map", "gid_map", "setgroups"} {
		if err := os.WriteFile(filepath.Join(pidDir, f), nil, 0o644); err != nil {
			t.Fatalf("seed %s: %v", f, err)
		}
	}

	origRoot, origWrite := procRoot, writeProcFile
	procRoot = dir
	t.Cleanup(func() {
		procRoot = origRoot
		writeProcFile = origWrite
	})
	return pidDir
}

func TestMapIdentityWritesExpectedLines(t *testing.T) {
	pidDir := withScratchProcRoot(t, 4242)

	if err := MapIdentity(4242, 1000, 1000); err != nil {
		t.Fatalf("MapIdentity: %v", err)
	}

	assertContains(t, filepath.Join(pidDir, "uid_map"), "0 1000 1")
	assertContains(t, filepath.Join(pidDir, "gid_map"), "0 1000 1")
	assertContains(t, filepath.Join(pidDir, "setgroups"), "deny")
}

func TestMapIdentityWritesSetgroupsBeforeGidMap(t *testing.T) {
	withScratchProcRoot(t, 99)

	var order []string
	writeProcFile = func(name string, data []byte, perm os.FileMode) error {
		order = append(order, filepath.Base(name))
		return nil
	}

	if err := MapIdentity(99, 1000, 1000); err != nil {
		t.Fatalf("MapIdentity: %v", err)
	}

	setgroupsIdx, gidMapIdx := -1, -1
	for i, name := range order {
		switch name {
		case "setgroups":
			setgroupsIdx = i
		case "gid_map":
			gidMapIdx = i
		}
	}
	if setgroupsIdx == -1 || gidMapIdx == -1 {
		t.Fatalf("expected both setgroups and gid_map writes, got order %v", order)
	}
	if setgroupsIdx >= gidMapIdx {
		t.Fatalf("setgroups must be written before gid_map, got order %v", order)
	}
}

func TestMapIdentityPropagatesWriteError(t *testing.T) {
	withScratchProcRoot(t, 7)
	writeProcFile = func(name string, data []byte, perm os.FileMode) error {
		if strings.HasSuffix(name, "gid_map") {
			return os.ErrPermission
		}
		return nil
	}

	if err := MapIdentity(7, 1000, 1000); err == nil {
		t.Fatal("expected error to propagate from gid_map write")
	}
}

func assertContains(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if !strings.Contains(string(data), want) {
		t.Fatalf("%s = %q, want to contain %q", path, data, want)
	}
}

package cgroup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDirIsIdempotent(t *testing.T) {
	root := t.TempDir()
	g := Open(root, "isolate_group")

	if err := g.EnsureDir(); err != nil {
		t.Fatalf("first EnsureDir: %v", err)
	}
	if err := g.EnsureDir(); err != nil {
		t.Fatalf("second EnsureDir (should tolerate EEXIST): %v", err)
	}

	info, err := os.Stat(g.Path())
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s", g.Path())
	}
}

func TestSetCPUMemoryPIDsWriteExpectedFiles(t *testing.T) {
	root := t.TempDir()
	g := Open(root, "isolate_group")
	if err := g.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}

	if err := g.SetCPU(20000, 100000); err != nil {
		t.Fatalf("SetCPU: %v", err)
	}
	if err := g.SetMemory("50M"); err != nil {
		t.Fatalf("SetMemory: %v", err)
	}
	if err := g.SetPIDs("50"); err != nil {
		t.Fatalf("SetPIDs: %v", err)
	}

	assertFileContent(t, filepath.Join(root, "isolate_group", "cpu.max"), "20000 100000")
	assertFileContent(t, filepath.Join(root, "isolate_group", "memory.max"), "50M")
	assertFileContent(t, filepath.Join(root, "isolate_group", "pids.max"), "50")
}

func TestSetIOIsAvailableButNotRequired(t *testing.T) {
	root := t.TempDir()
	g := Open(root, "isolate_group")
	if err := g.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if err := g.SetIO("8:0 rbps=1048576"); err != nil {
		t.Fatalf("SetIO: %v", err)
	}
	assertFileContent(t, filepath.Join(root, "isolate_group", "io.max"), "8:0 rbps=1048576")
}

func TestAttachWritesPID(t *testing.T) {
	root := t.TempDir()
	g := Open(root, "isolate_group")
	if err := g.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}
	if err := g.Attach(4242); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	assertFileContent(t, filepath.Join(root, "isolate_group", "cgroup.procs"), "4242")
}

func TestWriteControlMissingDirFails(t *testing.T) {
	root := t.TempDir()
	g := Open(root, "isolate_group")
	// Deliberately skip EnsureDir.
	if err := g.SetMemory("50M"); err == nil {
		t.Fatal("expected error writing to a nonexistent cgroup directory")
	}
}

func assertFileContent(t *testing.T, path, want string) {
	t.Helper()
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if string(got) != want {
		t.Fatalf("%s = %q, want %q", path, got, want)
	}
}

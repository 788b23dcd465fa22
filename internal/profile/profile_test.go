package profile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesExternalInterface(t *testing.T) {
	p := Default()

	if p.CPU.QuotaMicros != 20000 || p.CPU.PeriodMicros != 100000 {
		t.Fatalf("unexpected cpu limit: %+v", p.CPU)
	}
	if p.Memory != "50M" {
		t.Fatalf("unexpected memory limit: %s", p.Memory)
	}
	if p.PIDsMax != "50" {
		t.Fatalf("unexpected pids.max: %s", p.PIDsMax)
	}
	if p.HostUID != 1000 {
		t.Fatalf("unexpected host uid: %d", p.HostUID)
	}
	if p.HostVeth.Name != "veth0" || p.SandboxVeth.Name != "veth1" {
		t.Fatalf("unexpected veth names: %s / %s", p.HostVeth.Name, p.SandboxVeth.Name)
	}
	if p.HostVeth.Address.String() != "10.1.1.1" || p.SandboxVeth.Address.String() != "10.1.1.2" {
		t.Fatalf("unexpected veth addresses: %s / %s", p.HostVeth.Address, p.SandboxVeth.Address)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if p.CgroupRoot != DefaultCgroupRoot {
		t.Fatalf("expected default cgroup root, got %s", p.CgroupRoot)
	}
}

func TestLoadOverridesSelectedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isolate.toml")
	content := `
cgroup_root = "/tmp/scratch-cgroup"
memory = "128M"
host_veth_address = "10.1.1.1/24"
sandbox_veth_address = "10.1.1.5/24"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write override file: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.CgroupRoot != "/tmp/scratch-cgroup" {
		t.Fatalf("cgroup root not overridden: %s", p.CgroupRoot)
	}
	if p.Memory != "128M" {
		t.Fatalf("memory not overridden: %s", p.Memory)
	}
	if p.PIDsMax != defaultPIDsMax {
		t.Fatalf("unrelated field changed: %s", p.PIDsMax)
	}
	if p.SandboxVeth.Address.String() != "10.1.1.5" {
		t.Fatalf("sandbox veth address not overridden: %s", p.SandboxVeth.Address)
	}
}

func TestLoadRejectsCollidingAddresses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isolate.toml")
	content := `
host_veth_address = "10.1.1.1/24"
sandbox_veth_address = "10.1.1.1/24"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write override file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for colliding veth addresses")
	}
}

func TestLoadRejectsBroadcastAddress(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isolate.toml")
	content := `
host_veth_address = "10.1.1.255/24"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write override file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for broadcast address")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "isolate.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatalf("write override file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCPULimitString(t *testing.T) {
	c := CPULimit{QuotaMicros: 20000, PeriodMicros: 100000}
	if got, want := c.String(), "20000 100000"; got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

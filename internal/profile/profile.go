// Package profile holds the runtime's resource and addressing defaults as
// named configuration values rather than literals scattered through the
// orchestrator, so a test harness can redirect the cgroup root and veth
// addressing without recompiling.
package profile

import (
	"errors"
	"fmt"
	"net"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultCgroupRoot is where the kernel mounts the unified cgroup
	// hierarchy.
	DefaultCgroupRoot = "/sys/fs/cgroup"
	// DefaultGroupName is the control-group directory created under
	// DefaultCgroupRoot for every launch.
	DefaultGroupName = "isolate_group"
	// DefaultRootfsPath is resolved relative to the working directory at
	// launch.
	DefaultRootfsPath = "rootfs"

	defaultCPUQuotaMicros  = 20000
	defaultCPUPeriodMicros = 100000
	defaultMemoryLimit     = "50M"
	defaultPIDsMax         = "50"
	defaultHostUID         = 1000

	defaultHostVethName    = "veth0"
	defaultSandboxVethName = "veth1"
)

// CPULimit is the cpu.max pair: microseconds of CPU time allowed per
// period of PeriodMicros microseconds.
type CPULimit struct {
	QuotaMicros  int
	PeriodMicros int
}

// String renders the limit the way cpu.max expects it: "<quota> <period>".
func (c CPULimit) String() string {
	return fmt.Sprintf("%d %d", c.QuotaMicros, c.PeriodMicros)
}

// VethEndpoint describes one side of the veth pair: its name and the
// address it is configured with inside whichever namespace owns it.
type VethEndpoint struct {
	Name    string
	Address net.IP
	Netmask net.IP
}

// Profile is the process-wide set of resource and addressing constants for
// one launch. Defaults match the runtime's default resource profile;
// fields are overridable via an on-disk TOML file passed to Load.
type Profile struct {
	RootfsPath string

	CgroupRoot string
	GroupName  string
	CPU        CPULimit
	Memory     string
	PIDsMax    string
	IOMax      string // loaded from io_max; the sandbox orchestrator does not apply it

	HostUID int

	HostVeth    VethEndpoint
	SandboxVeth VethEndpoint
}

// Default returns the compiled-in default profile described in the
// runtime's external interface: 20% CPU, 50M memory, 50 PIDs, veth0
// 10.1.1.1/24 on the host side and veth1 10.1.1.2/24 in the sandbox.
func Default() *Profile {
	mask := net.IPv4(255, 255, 255, 0).To4()
	return &Profile{
		RootfsPath: DefaultRootfsPath,
		CgroupRoot: DefaultCgroupRoot,
		GroupName:  DefaultGroupName,
		CPU: CPULimit{
			QuotaMicros:  defaultCPUQuotaMicros,
			PeriodMicros: defaultCPUPeriodMicros,
		},
		Memory:  defaultMemoryLimit,
		PIDsMax: defaultPIDsMax,
		HostUID: defaultHostUID,
		HostVeth: VethEndpoint{
			Name:    defaultHostVethName,
			Address: net.IPv4(10, 1, 1, 1).To4(),
			Netmask: mask,
		},
		SandboxVeth: VethEndpoint{
			Name:    defaultSandboxVethName,
			Address: net.IPv4(10, 1, 1, 2).To4(),
			Netmask: mask,
		},
	}
}

// override is the on-disk shape a profile can be loaded from. Any field
// left unset keeps its compiled-in default.
type override struct {
	RootfsPath string `toml:"rootfs_path"`
	CgroupRoot string `toml:"cgroup_root"`
	GroupName  string `toml:"group_name"`

	CPUQuotaMicros  int `toml:"cpu_quota_micros"`
	CPUPeriodMicros int `toml:"cpu_period_micros"`

	Memory  string `toml:"memory"`
	PIDsMax string `toml:"pids_max"`
	IOMax   string `toml:"io_max"`

	HostUID int `toml:"host_uid"`

	HostVethName    string `toml:"host_veth_name"`
	HostVethAddress string `toml:"host_veth_address"` // CIDR, e.g. "10.1.1.1/24"

	SandboxVethName    string `toml:"sandbox_veth_name"`
	SandboxVethAddress string `toml:"sandbox_veth_address"`
}

// Load returns the default profile when path is empty, merging in any
// fields set by the TOML file at path otherwise. A malformed file, an
// unparsable address, or an addressing invariant violation (see validate)
// is a configuration error, not a fatal one — callers decide whether to
// abort.
func Load(path string) (*Profile, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	var ov override
	if _, err := toml.DecodeFile(path, &ov); err != nil {
		return nil, fmt.Errorf("profile: decode %s: %w", path, err)
	}
	for _, cidr := range []string{ov.HostVethAddress, ov.SandboxVethAddress} {
		if cidr == "" {
			continue
		}
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return nil, fmt.Errorf("profile: %w", err)
		}
	}
	applyOverride(p, &ov)

	if err := validate(p); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	return p, nil
}

func applyOverride(p *Profile, ov *override) {
	if ov.RootfsPath != "" {
		p.RootfsPath = ov.RootfsPath
	}
	if ov.CgroupRoot != "" {
		p.CgroupRoot = ov.CgroupRoot
	}
	if ov.GroupName != "" {
		p.GroupName = ov.GroupName
	}
	if ov.CPUQuotaMicros != 0 {
		p.CPU.QuotaMicros = ov.CPUQuotaMicros
	}
	if ov.CPUPeriodMicros != 0 {
		p.CPU.PeriodMicros = ov.CPUPeriodMicros
	}
	if ov.Memory != "" {
		p.Memory = ov.Memory
	}
	if ov.PIDsMax != "" {
		p.PIDsMax = ov.PIDsMax
	}
	if ov.IOMax != "" {
		p.IOMax = ov.IOMax
	}
	if ov.HostUID != 0 {
		p.HostUID = ov.HostUID
	}
	if ov.HostVethName != "" {
		p.HostVeth.Name = ov.HostVethName
	}
	if ov.SandboxVethName != "" {
		p.SandboxVeth.Name = ov.SandboxVethName
	}
	if ov.HostVethAddress != "" {
		if ip, net, err := net.ParseCIDR(ov.HostVethAddress); err == nil {
			p.HostVeth.Address = ip.To4()
			p.HostVeth.Netmask = net.Mask
		}
	}
	if ov.SandboxVethAddress != "" {
		if ip, net, err := net.ParseCIDR(ov.SandboxVethAddress); err == nil {
			p.SandboxVeth.Address = ip.To4()
			p.SandboxVeth.Netmask = net.Mask
		}
	}
}

// validate applies the same subnet-membership checks the teacher's CNI
// config parser applies to gateway/pod addressing, here to the host and
// sandbox veth endpoints: both must be IPv4, must not collide, and must
// not be the network or broadcast address of their own netmask.
func validate(p *Profile) error {
	if p.HostVeth.Address.To4() == nil || p.SandboxVeth.Address.To4() == nil {
		return errors.New("veth addresses must be IPv4")
	}
	if p.HostVeth.Address.Equal(p.SandboxVeth.Address) {
		return errors.New("host and sandbox veth addresses must differ")
	}

	for _, ep := range []VethEndpoint{p.HostVeth, p.SandboxVeth} {
		network, broadcast := networkAndBroadcast(ep.Address, ep.Netmask)
		if ep.Address.Equal(network) || ep.Address.Equal(broadcast) {
			return fmt.Errorf("%s: address %s is a network or broadcast address", ep.Name, ep.Address)
		}
	}
	return nil
}

func networkAndBroadcast(addr, mask net.IP) (net.IP, net.IP) {
	a := addr.To4()
	m := mask.To4()
	network := make(net.IP, 4)
	broadcast := make(net.IP, 4)
	for i := range a {
		network[i] = a[i] & m[i]
		broadcast[i] = a[i] | ^m[i]
	}
	return network, broadcast
}

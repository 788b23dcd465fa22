// Package report builds a structured summary of a launch's network wiring.
// It reuses the CNI result type rather than a bespoke struct: the fields it
// needs (interface names, the sandbox address, the default route through
// the host) are exactly what current.Result already models, and keeping it
// means the runtime can emit the same machine-readable shape tooling built
// against CNI results already knows how to parse.
package report

import (
	"net"

	"github.com/containernetworking/cni/pkg/types"
	current "github.com/containernetworking/cni/pkg/types/100"
)

// resultVersion is the CNI result schema version emitted; it is unrelated
// to any plugin protocol version since this runtime is not a CNI plugin.
const resultVersion = "1.0.0"

// BuildLaunchResult describes the veth pair created for one launch: the
// host-side and sandbox-side interface names and addresses, and the
// default route the sandbox gets through the host.
func BuildLaunchResult(hostVeth, sandboxVeth string, sandboxAddr net.IP, sandboxMask net.IPMask, hostAddr net.IP, netnsPath string) *current.Result {
	sandboxInterfaceIndex := 1
	return &current.Result{
		CNIVersion: resultVersion,
		Interfaces: []*current.Interface{
			{Name: hostVeth},
			{Name: sandboxVeth, Sandbox: netnsPath},
		},
		IPs: []*current.IPConfig{
			{
				Address:   net.IPNet{IP: sandboxAddr, Mask: sandboxMask},
				Gateway:   hostAddr,
				Interface: &sandboxInterfaceIndex,
			},
		},
		Routes: []*types.Route{
			{
				Dst: net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)},
				GW:  hostAddr,
			},
		},
	}
}

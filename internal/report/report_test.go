package report

import (
	"net"
	"testing"
)

func TestBuildLaunchResult(t *testing.T) {
	sandboxAddr := net.ParseIP("10.1.1.2").To4()
	mask := net.CIDRMask(24, 32)
	hostAddr := net.ParseIP("10.1.1.1").To4()

	res := BuildLaunchResult("veth0", "veth1", sandboxAddr, mask, hostAddr, "/proc/4242/ns/net")

	if len(res.Interfaces) != 2 {
		t.Fatalf("expected 2 interfaces, got %d", len(res.Interfaces))
	}
	if res.Interfaces[0].Name != "veth0" {
		t.Fatalf("unexpected host interface name: %s", res.Interfaces[0].Name)
	}
	if res.Interfaces[1].Name != "veth1" || res.Interfaces[1].Sandbox != "/proc/4242/ns/net" {
		t.Fatalf("unexpected sandbox interface: %+v", res.Interfaces[1])
	}
	if len(res.IPs) != 1 || res.IPs[0].Interface == nil || *res.IPs[0].Interface != 1 {
		t.Fatalf("unexpected IP config: %+v", res.IPs)
	}
	if res.IPs[0].Gateway.String() != "10.1.1.1" {
		t.Fatalf("unexpected gateway: %s", res.IPs[0].Gateway)
	}
	if len(res.Routes) != 1 || res.Routes[0].Dst.String() != "0.0.0.0/0" {
		t.Fatal("expected default route through host")
	}
}

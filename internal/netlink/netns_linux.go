package netlink

import (
	"fmt"

	"github.com/containernetworking/plugins/pkg/ns"
	"github.com/vishvananda/netns"
)

// OpenProcessNetNS resolves the network namespace of the process with the
// given pid to an open file descriptor, suitable for MoveToNamespace.
// Reused from the teacher's transitive dependency rather than hand-rolling
// another /proc/<pid>/ns/net open+stat.
func OpenProcessNetNS(pid int) (int, error) {
	h, err := netns.GetFromPid(pid)
	if err != nil {
		return -1, fmt.Errorf("netlink: resolve netns for pid %d: %w", pid, err)
	}
	return int(h), nil
}

// InSandboxNetNS runs fn with the calling goroutine's thread entered into
// the network namespace of the process with the given pid, restoring the
// caller's original namespace before returning. This is how the host side
// brings up the peer veth end and assigns its address after it has been
// moved into the sandbox: the parent never lives in that namespace
// otherwise, so it borrows it briefly rather than re-exec'ing into it.
func InSandboxNetNS(pid int, fn func() error) error {
	path := fmt.Sprintf("/proc/%d/ns/net", pid)
	targetNS, err := ns.GetNS(path)
	if err != nil {
		return fmt.Errorf("netlink: open netns %s: %w", path, err)
	}
	defer targetNS.Close()

	return targetNS.Do(func(ns.NetNS) error {
		return fn()
	})
}

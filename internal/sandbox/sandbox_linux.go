// Package sandbox is the orchestrator: it drives a launch through process
// creation, network wiring, resource limiting, and identity mapping, and
// hands control to the sandboxed command only once every piece is in
// place. The parent and the sandboxed child side of a launch share this
// package because they are two halves of one state machine synchronized
// over a pipe; splitting them across packages would just move the shared
// constants (the ready token, the ExtraFiles fd number) somewhere harder to
// keep in sync.
package sandbox

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"syscall"

	current "github.com/containernetworking/cni/pkg/types/100"
	"golang.org/x/sys/unix"

	"github.com/vorinsk/isolate/internal/cgroup"
	"github.com/vorinsk/isolate/internal/netlink"
	"github.com/vorinsk/isolate/internal/profile"
	"github.com/vorinsk/isolate/internal/report"
	"github.com/vorinsk/isolate/internal/rootfs"
	"github.com/vorinsk/isolate/internal/userns"
)

// ChildInitArg is the hidden subcommand name the runtime re-execs itself
// with to run the child side of a launch. It is never invoked directly by
// a user.
const ChildInitArg = "__child_init"

// readyFD is the file descriptor number the child reads its ready token
// from. cmd.ExtraFiles places the read end of the sync pipe here: fd 0-2
// are stdin/stdout/stderr, so the first entry in ExtraFiles always lands
// at fd 3.
const readyFD = 3

// readyToken is the fixed two-byte value the parent writes to unblock the
// child once setup is complete. Its content carries no meaning beyond
// "proceed" — only its arrival does.
var readyToken = [2]byte{'g', 'o'}

// cloneFlags creates every namespace this runtime isolates in a single
// clone: UTS (hostname), user (uid/gid mapping), mount (rootfs pivot),
// PID (process tree), network (veth pair), and IPC.
const cloneFlags = unix.CLONE_NEWUTS |
	unix.CLONE_NEWUSER |
	unix.CLONE_NEWNS |
	unix.CLONE_NEWPID |
	unix.CLONE_NEWNET |
	unix.CLONE_NEWIPC

// Request describes one launch.
type Request struct {
	Profile *profile.Profile
	Argv    []string
}

// Launch runs Argv inside a fresh sandbox built from Profile: a new set of
// namespaces, a pivoted root filesystem, cgroup v2 resource limits, a
// mapped root identity, and a veth pair connecting the sandbox to the
// host. It blocks until the sandboxed command exits.
//
// The parent always returns nil on a completed wait, independent of the
// child's own exit status: the orchestrator's job is standing the sandbox
// up, not relaying the sandboxed command's result code.
func Launch(req *Request) (*Result, error) {
	p := req.Profile

	pipeRead, pipeWrite, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("sandbox: create sync pipe: %w", err)
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("sandbox: locate self executable: %w", err)
	}

	args := append([]string{ChildInitArg, p.RootfsPath, "--"}, req.Argv...)
	cmd := exec.Command(self, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{pipeRead}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: cloneFlags | unix.SIGCHLD,
	}

	if err := cmd.Start(); err != nil {
		pipeRead.Close()
		pipeWrite.Close()
		return nil, fmt.Errorf("sandbox: start child: %w", err)
	}
	// The child has its own copy of the read end via ExtraFiles; this
	// process no longer needs either end open except to write the token.
	pipeRead.Close()

	pid := cmd.Process.Pid

	if err := setUpResources(p, pid); err != nil {
		pipeWrite.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	netnsPath, err := wireNetwork(p, pid)
	if err != nil {
		pipeWrite.Close()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	if _, err := pipeWrite.Write(readyToken[:]); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("sandbox: signal child ready: %w", err)
	}
	pipeWrite.Close()

	_ = cmd.Wait()

	res := report.BuildLaunchResult(
		p.HostVeth.Name, p.SandboxVeth.Name,
		p.SandboxVeth.Address, net.IPMask(p.SandboxVeth.Netmask.To4()),
		p.HostVeth.Address, netnsPath,
	)
	return &Result{CNIResult: res}, nil
}

// setUpResources creates the cgroup, applies its resource limits, attaches
// pid to it, and maps the sandbox's root identity onto the host UID/GID
// from the profile. Limits are applied before Attach so the process never
// runs unconstrained.
func setUpResources(p *profile.Profile, pid int) error {
	group := cgroup.Open(p.CgroupRoot, p.GroupName)
	if err := group.EnsureDir(); err != nil {
		return err
	}
	if err := group.SetCPU(p.CPU.QuotaMicros, p.CPU.PeriodMicros); err != nil {
		return err
	}
	if err := group.SetMemory(p.Memory); err != nil {
		return err
	}
	if err := group.SetPIDs(p.PIDsMax); err != nil {
		return err
	}
	if err := group.Attach(pid); err != nil {
		return err
	}

	if err := userns.MapIdentity(pid, p.HostUID, p.HostUID); err != nil {
		return err
	}
	return nil
}

// wireNetwork creates the veth pair, moves the sandbox end into the
// child's network namespace, and brings both ends up with their
// configured addresses. It returns the child's netns path for reporting.
func wireNetwork(p *profile.Profile, pid int) (string, error) {
	netnsPath := fmt.Sprintf("/proc/%d/ns/net", pid)

	conn, err := netlink.Open()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := conn.CreateVethPair(p.HostVeth.Name, p.SandboxVeth.Name); err != nil {
		return "", err
	}

	nsFd, err := netlink.OpenProcessNetNS(pid)
	if err != nil {
		return "", err
	}
	defer unix.Close(nsFd)

	if err := conn.MoveToNamespace(p.SandboxVeth.Name, nsFd); err != nil {
		return "", err
	}

	if err := netlink.SetAddress(p.HostVeth.Name, p.HostVeth.Address); err != nil {
		return "", err
	}
	if err := netlink.SetNetmask(p.HostVeth.Name, p.HostVeth.Netmask); err != nil {
		return "", err
	}
	if err := netlink.IfUp(p.HostVeth.Name); err != nil {
		return "", err
	}

	err = netlink.InSandboxNetNS(pid, func() error {
		if err := netlink.SetAddress(p.SandboxVeth.Name, p.SandboxVeth.Address); err != nil {
			return err
		}
		if err := netlink.SetNetmask(p.SandboxVeth.Name, p.SandboxVeth.Netmask); err != nil {
			return err
		}
		return netlink.IfUp(p.SandboxVeth.Name)
	})
	if err != nil {
		return "", fmt.Errorf("sandbox: configure sandbox veth: %w", err)
	}

	return netnsPath, nil
}

// Result is the outcome of a successful launch.
type Result struct {
	CNIResult *current.Result
}

// ChildMain runs the child side of a launch: it blocks on the ready token
// from the parent, arms PR_SET_PDEATHSIG so the sandboxed process dies if
// the parent does, pivots into rootfsPath, switches to the mapped root
// identity (gid 0, uid 0), and execs argv. A successful exec replaces this
// process image and never returns; an empty argv returns nil after the
// identity switch without exec'ing anything.
func ChildMain(rootfsPath string, argv []string) error {
	readyFile := os.NewFile(uintptr(readyFD), "sync-pipe")
	buf := make([]byte, len(readyToken))
	if _, err := readFull(readyFile, buf); err != nil {
		return fmt.Errorf("sandbox: wait for ready token: %w", err)
	}
	readyFile.Close()

	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		return fmt.Errorf("sandbox: set PR_SET_PDEATHSIG: %w", err)
	}

	if err := rootfs.Setup(rootfsPath); err != nil {
		return err
	}

	if err := unix.Setgid(0); err != nil {
		return fmt.Errorf("sandbox: setgid 0: %w", err)
	}
	if err := unix.Setuid(0); err != nil {
		return fmt.Errorf("sandbox: setuid 0: %w", err)
	}

	if len(argv) == 0 {
		return nil
	}

	bin, err := exec.LookPath(argv[0])
	if err != nil {
		return fmt.Errorf("sandbox: resolve %s: %w", argv[0], err)
	}
	if err := unix.Exec(bin, argv, os.Environ()); err != nil {
		return fmt.Errorf("sandbox: exec %s: %w", argv[0], err)
	}
	return nil
}

func readFull(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

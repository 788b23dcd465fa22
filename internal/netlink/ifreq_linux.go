package netlink

import (
	"fmt"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Address assignment and interface bring-up are done here via SIOCSIFADDR /
// SIOCSIFNETMASK / SIOCSIFFLAGS on a short-lived AF_INET datagram socket,
// deliberately not folded into the rtnetlink request builder in
// netlink_linux.go: the
// kernel's struct ifreq ioctls are the interface the original runtime uses
// for this, and matching that keeps address-assignment behavior (in
// particular, which operations implicitly bring-up related kernel state)
// identical to it.

const ifNameSize = 16

// ifreqAddr and ifreqFlags mirror struct ifreq for the calls used here: a
// 16-byte interface name followed by a union. In ifreqAddr, AF_INET's
// sockaddr_in fills the next 16 bytes: 2-byte family, 2-byte port (unused,
// zero), 4-byte address, 8 bytes padding. SIOCGIFFLAGS/SIOCSIFFLAGS only use
// the first 2 bytes of the union as flags (ifreqFlags).
type ifreqAddr struct {
	name [ifNameSize]byte
	_    uint16 // sin_family
	_    uint16 // sin_port, unused
	addr [4]byte
	_    [8]byte
}

type ifreqFlags struct {
	name  [ifNameSize]byte
	flags uint16
	_     [14]byte
}

func setName(dst []byte, name string) error {
	if len(name) >= ifNameSize {
		return fmt.Errorf("netlink: interface name %q too long", name)
	}
	copy(dst, name)
	return nil
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// openInetSocket opens the short-lived AF_INET/SOCK_DGRAM socket these
// ioctls are issued against; no packets are ever sent on it.
func openInetSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("netlink: open AF_INET socket: %w", err)
	}
	return fd, nil
}

// SetAddress assigns addr as the interface's IPv4 address via SIOCSIFADDR.
func SetAddress(ifName string, addr net.IP) error {
	fd, err := openInetSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	var req ifreqAddr
	if err := setName(req.name[:], ifName); err != nil {
		return err
	}
	ip4 := addr.To4()
	if ip4 == nil {
		return fmt.Errorf("netlink: %s: address %s is not IPv4", ifName, addr)
	}
	copy(req.addr[:], ip4)

	if err := ioctl(fd, unix.SIOCSIFADDR, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("netlink: SIOCSIFADDR %s: %w", ifName, err)
	}
	return nil
}

// SetNetmask sets the interface's IPv4 netmask via SIOCSIFNETMASK.
func SetNetmask(ifName string, mask net.IP) error {
	fd, err := openInetSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	var req ifreqAddr
	if err := setName(req.name[:], ifName); err != nil {
		return err
	}
	m4 := mask.To4()
	if m4 == nil {
		return fmt.Errorf("netlink: %s: netmask %s is not IPv4", ifName, mask)
	}
	copy(req.addr[:], m4)

	if err := ioctl(fd, unix.SIOCSIFNETMASK, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("netlink: SIOCSIFNETMASK %s: %w", ifName, err)
	}
	return nil
}

// IfUp reads the interface's current flags via SIOCGIFFLAGS, ORs in
// IFF_UP, IFF_BROADCAST, IFF_RUNNING, and IFF_MULTICAST, and writes them
// back via SIOCSIFFLAGS.
func IfUp(ifName string) error {
	fd, err := openInetSocket()
	if err != nil {
		return err
	}
	defer unix.Close(fd)

	var req ifreqFlags
	if err := setName(req.name[:], ifName); err != nil {
		return err
	}
	if err := ioctl(fd, unix.SIOCGIFFLAGS, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("netlink: SIOCGIFFLAGS %s: %w", ifName, err)
	}

	req.flags |= unix.IFF_UP | unix.IFF_BROADCAST | unix.IFF_RUNNING | unix.IFF_MULTICAST
	if err := ioctl(fd, unix.SIOCSIFFLAGS, unsafe.Pointer(&req)); err != nil {
		return fmt.Errorf("netlink: SIOCSIFFLAGS %s: %w", ifName, err)
	}
	return nil
}

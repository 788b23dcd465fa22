// Package netlink is a minimal, hand-rolled rtnetlink client built directly
// on golang.org/x/sys/unix rather than a general-purpose netlink library:
// the runtime only ever issues one link-creation request and one namespace
// move (addresses and flags are set via ioctl, see ifreq_linux.go), so a raw NLM_F_REQUEST|NLM_F_ACK round trip with a
// fixed-size buffer is simpler to reason about (and to bound: see maxMsgLen)
// than carrying a full attribute-decoding dependency for messages it never
// receives.
package netlink

import (
	"encoding/binary"
	"fmt"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxMsgLen bounds every request this package builds. rtnetlink replies are
// read into a buffer of the same size; a reply that doesn't fit is reported
// as truncated rather than silently accepted.
const maxMsgLen = 1024

// Attribute type numbers not exposed by golang.org/x/sys/unix at the pinned
// version. These mirror include/uapi/linux/if_link.h.
const (
	IFLA_LINKINFO  = 18
	IFLA_INFO_KIND = 1
	IFLA_INFO_DATA = 2

	IFLA_INFO_VETH_PEER = 1 // VETH_INFO_PEER within IFLA_INFO_DATA
)

// Conn is an open AF_NETLINK/NETLINK_ROUTE socket bound to this process.
// It is not safe for concurrent use by multiple goroutines: the sequence
// counter and the one-reply-per-request protocol assume a single caller.
type Conn struct {
	fd  int
	seq uint32
}

// Open creates and binds a netlink route socket.
func Open() (*Conn, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("netlink: socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("netlink: bind: %w", err)
	}
	return &Conn{fd: fd}, nil
}

// Close releases the underlying socket.
func (c *Conn) Close() error {
	return unix.Close(c.fd)
}

// request accumulates a single netlink message: a 16-byte nlmsghdr, a
// payload (ifinfomsg here), and a sequence of length-prefixed, 4-byte
// aligned rtattr TLVs, some of which nest further TLVs.
type request struct {
	buf []byte
}

func newRequest(msgType, flags uint16) *request {
	r := &request{buf: make([]byte, 16, 64)}
	binary.LittleEndian.PutUint16(r.buf[4:6], msgType)
	binary.LittleEndian.PutUint16(r.buf[6:8], flags)
	return r
}

func alignLen(n int) int { return (n + 3) &^ 3 }

// appendIfinfomsg appends a 16-byte ifinfomsg payload with the given index
// and flags/change mask, as the top-level payload of the message.
func (r *request) appendIfinfomsg(family uint8, index int32, flags, change uint32) {
	hdr := make([]byte, 16)
	hdr[0] = family
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(index))
	binary.LittleEndian.PutUint32(hdr[8:12], flags)
	binary.LittleEndian.PutUint32(hdr[12:16], change)
	r.buf = append(r.buf, hdr...)
}

// appendSubIfinfomsg appends a nested ifinfomsg header as the first bytes of
// a nested sub-message (used only for VETH_INFO_PEER, where the kernel
// expects a full ifinfomsg — not a bare attribute list — as the peer
// description). This is the one place the generic nest helpers below can't
// hide the wire shape: the caller opens the VETH_INFO_PEER nest first,
// appends this header, then appends the peer's attributes directly after
// it, so the nest's length (and nlmsg_len) covers both.
func (r *request) appendSubIfinfomsg(family uint8) {
	hdr := make([]byte, 16)
	hdr[0] = family
	r.buf = append(r.buf, hdr...)
}

// appendAttr appends a flat (non-nested) TLV attribute.
func (r *request) appendAttr(attrType uint16, data []byte) {
	attrLen := 4 + len(data)
	padded := alignLen(attrLen)
	tlv := make([]byte, padded)
	binary.LittleEndian.PutUint16(tlv[0:2], uint16(attrLen))
	binary.LittleEndian.PutUint16(tlv[2:4], attrType)
	copy(tlv[4:], data)
	r.buf = append(r.buf, tlv...)
}

// nest marks the start of a nested attribute; closeNest backpatches its
// length once the nested content has been appended.
type nest struct {
	headerOffset int
}

func (r *request) openNest(attrType uint16) nest {
	off := len(r.buf)
	r.buf = append(r.buf, make([]byte, 4)...)
	binary.LittleEndian.PutUint16(r.buf[off+2:off+4], unix.NLA_F_NESTED|attrType)
	return nest{headerOffset: off}
}

func (r *request) closeNest(n nest) {
	length := len(r.buf) - n.headerOffset
	binary.LittleEndian.PutUint16(r.buf[n.headerOffset:n.headerOffset+2], uint16(length))
	if pad := alignLen(len(r.buf)) - len(r.buf); pad > 0 {
		r.buf = append(r.buf, make([]byte, pad)...)
	}
}

// finish stamps nlmsg_len, nlmsg_seq and nlmsg_pid and returns the
// completed message, rejecting anything that would not fit in maxMsgLen.
func (r *request) finish(seq uint32) ([]byte, error) {
	if len(r.buf) > maxMsgLen {
		return nil, fmt.Errorf("netlink: request of %d bytes exceeds %d byte limit", len(r.buf), maxMsgLen)
	}
	binary.LittleEndian.PutUint32(r.buf[0:4], uint32(len(r.buf)))
	binary.LittleEndian.PutUint32(r.buf[8:12], seq)
	binary.LittleEndian.PutUint32(r.buf[12:16], 0)
	return r.buf, nil
}

// do sends req and waits for its ACK, returning a decoded error for any
// NLMSG_ERROR reply with a non-zero code.
func (c *Conn) do(r *request) error {
	c.seq++
	msg, err := r.finish(c.seq)
	if err != nil {
		return err
	}
	if err := unix.Sendto(c.fd, msg, 0, &unix.SockaddrNetlink{Family: unix.AF_NETLINK}); err != nil {
		return fmt.Errorf("netlink: sendto: %w", err)
	}
	return c.recvAck()
}

func (c *Conn) recvAck() error {
	buf := make([]byte, maxMsgLen)
	n, _, recvFlags, _, err := unix.Recvmsg(c.fd, buf, nil, 0)
	if err != nil {
		return fmt.Errorf("netlink: recvmsg: %w", err)
	}
	if recvFlags&unix.MSG_TRUNC != 0 {
		return fmt.Errorf("netlink: reply truncated (read %d bytes)", n)
	}
	if n < 16 {
		return fmt.Errorf("netlink: reply too short: %d bytes", n)
	}
	if msgLen := binary.LittleEndian.Uint32(buf[0:4]); msgLen < 16 || int(msgLen) > n {
		return fmt.Errorf("netlink: malformed reply length %d (received %d bytes)", msgLen, n)
	}

	msgType := binary.LittleEndian.Uint16(buf[4:6])
	if msgType != unix.NLMSG_ERROR {
		return fmt.Errorf("netlink: unexpected reply type %d", msgType)
	}
	if n < 16+4 {
		return fmt.Errorf("netlink: truncated NLMSG_ERROR payload")
	}
	errno := *(*int32)(unsafe.Pointer(&buf[16]))
	if errno == 0 {
		return nil
	}
	return fmt.Errorf("netlink: %w", unix.Errno(-errno))
}

// CreateVethPair issues a single RTM_NEWLINK request that creates a veth
// pair in one call: hostName/peerName are the two ends, both created in the
// caller's current network namespace.
func (c *Conn) CreateVethPair(hostName, peerName string) error {
	r := newRequest(unix.RTM_NEWLINK, unix.NLM_F_REQUEST|unix.NLM_F_ACK|unix.NLM_F_CREATE|unix.NLM_F_EXCL)
	r.appendIfinfomsg(unix.AF_UNSPEC, 0, 0, 0)
	r.appendAttr(unix.IFLA_IFNAME, nullTerminated(hostName))

	linkinfo := r.openNest(IFLA_LINKINFO)
	r.appendAttr(IFLA_INFO_KIND, nullTerminated("veth"))
	infoData := r.openNest(IFLA_INFO_DATA)
	peer := r.openNest(IFLA_INFO_VETH_PEER)
	r.appendSubIfinfomsg(unix.AF_UNSPEC)
	r.appendAttr(unix.IFLA_IFNAME, nullTerminated(peerName))
	r.closeNest(peer)
	r.closeNest(infoData)
	r.closeNest(linkinfo)

	if err := c.do(r); err != nil {
		return fmt.Errorf("netlink: create veth %s/%s: %w", hostName, peerName, err)
	}
	return nil
}

// MoveToNamespace moves the named interface into the network namespace
// identified by nsFd (an open /proc/<pid>/ns/net file descriptor).
func (c *Conn) MoveToNamespace(ifName string, nsFd int) error {
	index, err := interfaceIndex(ifName)
	if err != nil {
		return err
	}
	r := newRequest(unix.RTM_NEWLINK, unix.NLM_F_REQUEST|unix.NLM_F_ACK)
	r.appendIfinfomsg(unix.AF_UNSPEC, index, 0, 0)
	netnsAttr := make([]byte, 4)
	binary.LittleEndian.PutUint32(netnsAttr, uint32(nsFd))
	r.appendAttr(unix.IFLA_NET_NS_FD, netnsAttr)

	if err := c.do(r); err != nil {
		return fmt.Errorf("netlink: move %s to namespace: %w", ifName, err)
	}
	return nil
}

func interfaceIndex(name string) (int32, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("netlink: lookup interface %q: %w", name, err)
	}
	return int32(iface.Index), nil
}

func nullTerminated(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

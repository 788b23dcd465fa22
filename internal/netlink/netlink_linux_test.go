package netlink

import (
	"encoding/binary"
	"testing"
)

func TestAlignLen(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8, 17: 20}
	for in, want := range cases {
		if got := alignLen(in); got != want {
			t.Errorf("alignLen(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAppendAttrPadsToAlignment(t *testing.T) {
	r := newRequest(0, 0)
	base := len(r.buf)
	r.appendAttr(1, []byte("ab")) // header(4) + 2 bytes = 6, padded to 8
	if got, want := len(r.buf)-base, 8; got != want {
		t.Fatalf("appended %d bytes, want %d", got, want)
	}
	rtaLen := binary.LittleEndian.Uint16(r.buf[base : base+2])
	if rtaLen != 6 {
		t.Fatalf("rta_len = %d, want 6 (unpadded)", rtaLen)
	}
}

func TestOpenCloseNestBackpatchesLength(t *testing.T) {
	r := newRequest(0, 0)
	n := r.openNest(10)
	r.appendAttr(1, []byte("x"))
	r.closeNest(n)

	length := binary.LittleEndian.Uint16(r.buf[n.headerOffset : n.headerOffset+2])
	if int(length) != len(r.buf)-n.headerOffset && int(length) > len(r.buf)-n.headerOffset {
		t.Fatalf("nest length %d exceeds buffer span %d", length, len(r.buf)-n.headerOffset)
	}
	if length == 0 {
		t.Fatal("nest length was never backpatched")
	}
}

func TestFinishRejectsOversizedRequest(t *testing.T) {
	r := newRequest(0, 0)
	r.buf = make([]byte, maxMsgLen+1)
	if _, err := r.finish(1); err == nil {
		t.Fatal("expected error for request exceeding maxMsgLen")
	}
}

func TestFinishStampsSeq(t *testing.T) {
	r := newRequest(unix_RTM_NEWLINK_placeholder, 0)
	msg, err := r.finish(42)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if got := binary.LittleEndian.Uint32(msg[8:12]); got != 42 {
		t.Fatalf("nlmsg_seq = %d, want 42", got)
	}
	if got := binary.LittleEndian.Uint32(msg[0:4]); int(got) != len(msg) {
		t.Fatalf("nlmsg_len = %d, want %d", got, len(msg))
	}
}

// unix_RTM_NEWLINK_placeholder avoids importing unix just for a literal in
// this table; any non-zero value exercises the same path.
const unix_RTM_NEWLINK_placeholder = 16

func TestNullTerminated(t *testing.T) {
	b := nullTerminated("veth0")
	if len(b) != 6 || b[5] != 0 {
		t.Fatalf("nullTerminated(%q) = %v, want 6 bytes ending in NUL", "veth0", b)
	}
}

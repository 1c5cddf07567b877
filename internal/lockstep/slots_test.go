package lockstep

import (
	"errors"
	"testing"

	"pongsync/internal/net"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(64, 0)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestNewRingRejectsBadSizes(t *testing.T) {
	for _, n := range []int{0, -4, 48, 1<<16 + 1, 1 << 17} {
		if _, err := NewRing(n); err == nil {
			t.Fatalf("NewRing(%d) should fail", n)
		}
	}
	if _, err := NewRing(1 << 16); err != nil {
		t.Fatalf("NewRing(65536): %v", err)
	}
}

func TestWriteOwnGuardsPendingSlot(t *testing.T) {
	s := newTestStore(t)
	if !s.WriteOwn(12, net.CmdUp) {
		t.Fatalf("first write should arm the slot")
	}
	s.MarkAcked(12)
	if s.WriteOwn(12, net.CmdDown) {
		t.Fatalf("second write for the same epoch should be ignored")
	}
	slot, ok := s.Own(12)
	if !ok || slot.Command != net.CmdUp || !slot.Acked {
		t.Fatalf("slot = %+v, want untouched acked UP", slot)
	}
}

func TestStaleSlotAfterWrap(t *testing.T) {
	s := newTestStore(t)
	s.WriteRemote(5, net.CmdUp)
	s.WriteOwn(5, net.CmdNone)
	s.MarkAcked(5)
	if !s.Resolved(5) {
		t.Fatalf("epoch 5 should be resolved")
	}

	s.WriteRemote(5+64, net.CmdDown)
	if s.Resolved(5) {
		t.Fatalf("epoch 5 must not read as resolved after its remote slot was reused")
	}
	if _, err := s.Read(1, 5); !errors.Is(err, ErrStaleSlot) {
		t.Fatalf("Read(1, 5) err = %v, want ErrStaleSlot", err)
	}
	if c, err := s.Read(1, 5+64); err != nil || c != net.CmdDown {
		t.Fatalf("Read(1, 69) = %v, %v", c, err)
	}
}

func TestWriteRemoteRejectsOlderEpoch(t *testing.T) {
	s := newTestStore(t)
	s.WriteRemote(70, net.CmdDown)
	if s.WriteRemote(6, net.CmdUp) {
		t.Fatalf("a late command for epoch 6 must not evict epoch 70")
	}
	if c, err := s.Read(1, 70); err != nil || c != net.CmdDown {
		t.Fatalf("Read(1, 70) = %v, %v", c, err)
	}
	if !s.WriteRemote(70, net.CmdUp) {
		t.Fatalf("same-epoch remote write should overwrite")
	}
}

func TestWriteRemoteAcrossCounterWrap(t *testing.T) {
	s := newTestStore(t)
	s.WriteRemote(65535, net.CmdUp)
	if !s.WriteRemote(63, net.CmdDown) {
		t.Fatalf("epoch 63 follows 65535 after wrap and shares its slot")
	}
	if s.WriteRemote(65535, net.CmdUp) {
		t.Fatalf("65535 precedes 63 after wrap")
	}
}

func TestMarkAckedIgnoresReusedSlot(t *testing.T) {
	s := newTestStore(t)
	s.WriteOwn(3+64, net.CmdUp)
	if s.MarkAcked(3) {
		t.Fatalf("ack for epoch 3 must not touch the slot holding 67")
	}
	if slot, _ := s.Own(67); slot.Acked {
		t.Fatalf("slot 67 was acked by a stale ack")
	}
}

func TestZeroSlotIsNotEpochZero(t *testing.T) {
	s := newTestStore(t)
	s.WriteOwn(0, net.CmdNone)
	s.MarkAcked(0)
	if s.Resolved(0) {
		t.Fatalf("an empty remote slot must not count as epoch 0")
	}
}

func TestSeed(t *testing.T) {
	s := newTestStore(t)
	s.Seed(10)
	for e := net.Epoch(0); e < 10; e++ {
		own, ok := s.Own(e)
		if !ok || own.Acked || own.Command != net.CmdNone {
			t.Fatalf("own seed %d = %+v", e, own)
		}
		if c, err := s.Read(1, e); err != nil || c != net.CmdNone {
			t.Fatalf("remote seed %d = %v, %v", e, c, err)
		}
	}
	if _, ok := s.Own(10); ok {
		t.Fatalf("epoch 10 should not be seeded")
	}
}

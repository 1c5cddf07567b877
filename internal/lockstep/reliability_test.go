package lockstep

import (
	"testing"

	"pongsync/internal/net"
)

type nopControl struct{ active int }

func (c *nopControl) handleStart(net.Packet) {}
func (c *nopControl) handleHash(net.Packet)  {}
func (c *nopControl) peerActive()            { c.active++ }

func newTestReliability(t *testing.T, tr Transport) (*Reliability, *Store, *Stats) {
	t.Helper()
	cfg := DefaultConfig(0)
	store, err := NewStore(cfg.BufferSize, cfg.Player)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	stats := &Stats{}
	return newReliability(cfg, store, tr, &nopControl{}, stats, quietLogger()), store, stats
}

func TestDuplicateCommandIsIdempotent(t *testing.T) {
	once, twice := &endpoint{}, &endpoint{}
	relOnce, storeOnce, _ := newTestReliability(t, once)
	relTwice, storeTwice, _ := newTestReliability(t, twice)

	pkt := net.Encode(net.NewCmd(17, net.CmdUp))
	once.inbox = append(once.inbox, pkt)
	twice.inbox = append(twice.inbox, pkt, pkt)
	relOnce.Drain()
	relTwice.Drain()

	a, _ := storeOnce.remote().Get(17)
	b, _ := storeTwice.remote().Get(17)
	if a != b {
		t.Fatalf("store after one delivery %+v, after two %+v", a, b)
	}
	if got := once.count(net.OpAck, 17); got != 1 {
		t.Fatalf("acks after one delivery = %d, want 1", got)
	}
	if got := twice.count(net.OpAck, 17); got != 2 {
		t.Fatalf("acks after two deliveries = %d, want 2", got)
	}
}

func TestDrainDiscardsMalformedAndUnknown(t *testing.T) {
	tr := &endpoint{}
	rel, store, stats := newTestReliability(t, tr)

	unknown := net.Encode(net.NewAck(1))
	unknown[0] = 9
	badCmd := net.Encode(net.Packet{Opcode: net.OpCmd, Epoch: 2, Input: 77})
	tr.inbox = append(tr.inbox, []byte{1, 2, 3}, unknown, badCmd)

	if n := rel.Drain(); n != 3 {
		t.Fatalf("Drain read %d datagrams, want 3", n)
	}
	if stats.Malformed != 2 || stats.Unknown != 1 {
		t.Fatalf("malformed=%d unknown=%d", stats.Malformed, stats.Unknown)
	}
	if _, ok := store.remote().Get(2); ok {
		t.Fatalf("invalid command reached the store")
	}
	if len(tr.sent) != 0 {
		t.Fatalf("nothing should be sent for discarded packets, sent %v", tr.sent)
	}
}

func TestSubmitSendsOncePerTarget(t *testing.T) {
	tr := &endpoint{}
	rel, _, _ := newTestReliability(t, tr)

	if !rel.Submit(0, net.CmdUp) {
		t.Fatalf("first submit should send")
	}
	if rel.Submit(0, net.CmdDown) {
		t.Fatalf("repeated submit before the epoch advances should not re-arm")
	}
	if got := tr.count(net.OpCmd, 10); got != 1 {
		t.Fatalf("CMD 10 sent %d times, want 1", got)
	}
	if tr.sent[0].Command() != net.CmdUp {
		t.Fatalf("sent %v, want up", tr.sent[0].Command())
	}
}

func TestRetransmitOldestUnackedOnly(t *testing.T) {
	tr := &endpoint{}
	rel, store, stats := newTestReliability(t, tr)
	store.Seed(10)
	store.MarkAcked(0)
	store.MarkAcked(1)

	e, ok := rel.Retransmit(0)
	if !ok || e != 2 {
		t.Fatalf("Retransmit = %d, %v; want epoch 2", e, ok)
	}
	if len(tr.sent) != 1 || stats.Resent != 1 {
		t.Fatalf("sent %d packets, want exactly one", len(tr.sent))
	}

	for i := net.Epoch(0); i < 5; i++ {
		store.MarkAcked(i)
	}
	if _, ok := rel.Retransmit(0); ok {
		t.Fatalf("epochs beyond the window must not be retransmitted")
	}
}

func TestAckMarksOwnSlot(t *testing.T) {
	tr := &endpoint{}
	rel, store, stats := newTestReliability(t, tr)
	store.WriteOwn(4, net.CmdDown)
	tr.inbox = append(tr.inbox, net.Encode(net.NewAck(4)), net.Encode(net.NewAck(4+64)))
	rel.Drain()

	if slot, _ := store.Own(4); !slot.Acked {
		t.Fatalf("ack was not applied")
	}
	if stats.Stale != 1 {
		t.Fatalf("stale = %d, want 1 for the ack of an epoch the slot never held", stats.Stale)
	}
}

package lockstep

import (
	"errors"
	"fmt"

	"pongsync/internal/net"
)

// ErrStaleSlot is returned when a slot does not currently hold the requested epoch.
var ErrStaleSlot = errors.New("lockstep: slot does not hold epoch")

// Slot is one entry of a participant's ring. It is current for epoch E only
// when it is occupied and its stamp equals E.
type Slot struct {
	Command  net.Command
	Epoch    net.Epoch
	Acked    bool
	Occupied bool
}

func (s Slot) holds(e net.Epoch) bool {
	return s.Occupied && s.Epoch == e
}

// Ring is a fixed-capacity, epoch-indexed command buffer for one participant.
type Ring struct {
	slots []Slot
	mask  net.Epoch
}

// NewRing returns a ring of size slots. size must be a power of two no larger
// than 2^16 so that epoch wrap-around maps onto the same indices.
func NewRing(size int) (*Ring, error) {
	if size <= 0 || size > 1<<16 || size&(size-1) != 0 {
		return nil, fmt.Errorf("lockstep: ring size %d is not a power of two in [1, 65536]", size)
	}
	return &Ring{slots: make([]Slot, size), mask: net.Epoch(size - 1)}, nil
}

func (r *Ring) at(e net.Epoch) *Slot {
	return &r.slots[e&r.mask]
}

// Get returns the slot for e and whether it currently holds e.
func (r *Ring) Get(e net.Epoch) (Slot, bool) {
	s := *r.at(e)
	return s, s.holds(e)
}

// Len returns the ring capacity.
func (r *Ring) Len() int {
	return len(r.slots)
}

// Store holds the two rings of a session: one for the local participant and
// one for the peer.
type Store struct {
	rings  [2]*Ring
	player int
}

// NewStore returns an empty store for the given local participant index.
func NewStore(size, player int) (*Store, error) {
	if player != 0 && player != 1 {
		return nil, fmt.Errorf("lockstep: participant %d out of range", player)
	}
	s := &Store{player: player}
	for i := range s.rings {
		r, err := NewRing(size)
		if err != nil {
			return nil, err
		}
		s.rings[i] = r
	}
	return s, nil
}

// Player returns the local participant index.
func (s *Store) Player() int { return s.player }

// Peer returns the remote participant index.
func (s *Store) Peer() int { return 1 - s.player }

func (s *Store) own() *Ring    { return s.rings[s.player] }
func (s *Store) remote() *Ring { return s.rings[1-s.player] }

// Seed stamps epochs 0..delay-1 on both rings with CmdNone so the first
// delay epochs have a defined command pair. Own seeds start unacknowledged.
func (s *Store) Seed(delay int) {
	for i := 0; i < delay; i++ {
		e := net.Epoch(i)
		*s.own().at(e) = Slot{Command: net.CmdNone, Epoch: e, Occupied: true}
		*s.remote().at(e) = Slot{Command: net.CmdNone, Epoch: e, Occupied: true}
	}
}

// WriteOwn records the local command for e. It does nothing and returns false
// when the slot already holds e, so a pending command is never re-stamped.
func (s *Store) WriteOwn(e net.Epoch, c net.Command) bool {
	slot := s.own().at(e)
	if slot.holds(e) {
		return false
	}
	*slot = Slot{Command: c, Epoch: e, Occupied: true}
	return true
}

// WriteRemote records the peer's command for e. Same-epoch writes overwrite;
// a write for an epoch older than the slot's current occupant is rejected.
func (s *Store) WriteRemote(e net.Epoch, c net.Command) bool {
	slot := s.remote().at(e)
	if slot.Occupied && e.Before(slot.Epoch) {
		return false
	}
	*slot = Slot{Command: c, Epoch: e, Occupied: true}
	return true
}

// MarkAcked flags the own command for e as acknowledged by the peer. Acks for
// an epoch the slot no longer holds are ignored.
func (s *Store) MarkAcked(e net.Epoch) bool {
	slot := s.own().at(e)
	if !slot.holds(e) {
		return false
	}
	slot.Acked = true
	return true
}

// Resolved reports whether both commands for e are known and the own command
// has been acknowledged.
func (s *Store) Resolved(e net.Epoch) bool {
	own, ok := s.own().Get(e)
	if !ok || !own.Acked {
		return false
	}
	_, ok = s.remote().Get(e)
	return ok
}

// Read returns participant p's command for e.
func (s *Store) Read(p int, e net.Epoch) (net.Command, error) {
	if p != 0 && p != 1 {
		return net.CmdNone, fmt.Errorf("lockstep: participant %d out of range", p)
	}
	slot, ok := s.rings[p].Get(e)
	if !ok {
		return net.CmdNone, fmt.Errorf("%w: participant %d epoch %d (slot holds %d)", ErrStaleSlot, p, e, slot.Epoch)
	}
	return slot.Command, nil
}

// Own returns the local slot for e and whether it holds e.
func (s *Store) Own(e net.Epoch) (Slot, bool) {
	return s.own().Get(e)
}

// Size returns the per-participant capacity.
func (s *Store) Size() int {
	return s.own().Len()
}

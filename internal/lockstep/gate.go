package lockstep

import (
	"pongsync/internal/net"
)

// GateState is the per-epoch state of the Gate.
type GateState uint8

const (
	// Waiting: the current epoch is missing the peer's command or the ack
	// for the local one.
	Waiting GateState = iota
	// Resolved: both commands are known and reciprocally acknowledged.
	Resolved
)

func (s GateState) String() string {
	if s == Resolved {
		return "resolved"
	}
	return "waiting"
}

// Commit is one epoch handed to the simulation.
type Commit struct {
	Epoch    net.Epoch
	Commands [2]net.Command
}

// Gate commits epochs strictly in order, one per evaluation at most.
type Gate struct {
	store     *Store
	current   net.Epoch
	state     GateState
	committed uint64
}

func newGate(store *Store) *Gate {
	return &Gate{store: store}
}

// Current returns the next epoch to commit.
func (g *Gate) Current() net.Epoch { return g.current }

// State returns the gate state for the current epoch.
func (g *Gate) State() GateState { return g.state }

// Committed returns the number of epochs committed so far. Unlike Current it
// does not wrap.
func (g *Gate) Committed() uint64 { return g.committed }

// Evaluate commits the current epoch if it is resolved. The returned commit
// carries both participants' commands indexed by participant.
func (g *Gate) Evaluate() (Commit, bool) {
	if g.state == Waiting {
		if !g.store.Resolved(g.current) {
			return Commit{}, false
		}
		g.state = Resolved
	}

	c := Commit{Epoch: g.current}
	for p := range c.Commands {
		cmd, err := g.store.Read(p, g.current)
		if err != nil {
			// Unreachable while Resolved holds; never commit a guess.
			g.state = Waiting
			return Commit{}, false
		}
		c.Commands[p] = cmd
	}

	g.current++
	g.committed++
	g.state = Waiting
	return c, true
}

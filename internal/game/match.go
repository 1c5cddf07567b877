package game

import (
	"time"

	"pongsync/internal/net"
)

// Match holds the running State of a lockstep session. It is owned by the
// control loop; the renderer reads it between ticks on the same goroutine.
type Match struct {
	state State
}

func NewMatch(width, height int) *Match {
	return &Match{state: Init(width, height)}
}

// Advance steps the match by one committed epoch.
func (m *Match) Advance(cmds [2]net.Command, dt time.Duration) {
	m.state = Step(m.state, cmds, dt)
}

func (m *Match) Checksum() uint64 { return Checksum(m.state) }

// State returns a copy of the last committed state.
func (m *Match) State() State { return m.state }

package lockstep

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"pongsync/internal/net"
)

// endpoint is an in-memory transport. Sends land in the peer's inbox
// immediately unless drop says otherwise.
type endpoint struct {
	inbox [][]byte
	peer  *endpoint
	drop  func(p net.Packet) bool
	sent  []net.Packet
}

func (e *endpoint) Send(b []byte) error {
	p, err := net.Decode(b)
	if err != nil {
		return err
	}
	e.sent = append(e.sent, p)
	if e.drop != nil && e.drop(p) {
		return nil
	}
	if e.peer != nil {
		e.peer.inbox = append(e.peer.inbox, append([]byte(nil), b...))
	}
	return nil
}

func (e *endpoint) Poll() ([]byte, bool) {
	if len(e.inbox) == 0 {
		return nil, false
	}
	b := e.inbox[0]
	e.inbox = e.inbox[1:]
	return b, true
}

func (e *endpoint) count(op net.Opcode, ep net.Epoch) int {
	n := 0
	for _, p := range e.sent {
		if p.Opcode == op && p.Epoch == ep {
			n++
		}
	}
	return n
}

func link() (*endpoint, *endpoint) {
	a, b := &endpoint{}, &endpoint{}
	a.peer, b.peer = b, a
	return a, b
}

// recordSim keeps every committed pair and a running checksum over them.
type recordSim struct {
	pairs [][2]net.Command
	sum   uint64
	bias  uint64
}

func (r *recordSim) Advance(c [2]net.Command, dt time.Duration) {
	r.pairs = append(r.pairs, c)
	r.sum = r.sum*31 + uint64(c[0])*3 + uint64(c[1]) + 1
}

func (r *recordSim) Checksum() uint64 { return r.sum + r.bias }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type pair struct {
	t      *testing.T
	a, b   *Session
	ta, tb *endpoint
	sa, sb *recordSim
	epochs [2][]net.Epoch
}

func newPair(t *testing.T, cfg Config) *pair {
	t.Helper()
	p := &pair{t: t, sa: &recordSim{}, sb: &recordSim{}}
	p.ta, p.tb = link()

	cfgA, cfgB := cfg, cfg
	cfgA.Player, cfgB.Player = 0, 1
	var err error
	if p.a, err = NewSession(cfgA, p.ta, p.sa, quietLogger()); err != nil {
		t.Fatalf("session a: %v", err)
	}
	if p.b, err = NewSession(cfgB, p.tb, p.sb, quietLogger()); err != nil {
		t.Fatalf("session b: %v", err)
	}
	p.a.OnCommit(func(c Commit) { p.epochs[0] = append(p.epochs[0], c.Epoch) })
	p.b.OnCommit(func(c Commit) { p.epochs[1] = append(p.epochs[1], c.Epoch) })
	return p
}

// round ticks a then b once with the given inputs.
func (p *pair) round(ina, inb net.Command) {
	p.a.Tick(ina)
	p.b.Tick(inb)
}

func (p *pair) assertInOrder() {
	p.t.Helper()
	for side, seq := range p.epochs {
		for i, e := range seq {
			if e != net.Epoch(i) {
				p.t.Fatalf("side %d: commit #%d was epoch %d", side, i, e)
			}
		}
	}
}

func (p *pair) assertAgree() {
	p.t.Helper()
	n := len(p.sa.pairs)
	if len(p.sb.pairs) < n {
		n = len(p.sb.pairs)
	}
	for i := 0; i < n; i++ {
		if p.sa.pairs[i] != p.sb.pairs[i] {
			p.t.Fatalf("epoch %d: a executed %v, b executed %v", i, p.sa.pairs[i], p.sb.pairs[i])
		}
	}
}

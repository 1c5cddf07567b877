package lockstep

import (
	"time"

	"github.com/sirupsen/logrus"

	"pongsync/internal/net"
)

// Phase is the session lifecycle stage.
type Phase uint8

const (
	// Handshake: exchanging START packets until the peer answers ours.
	Handshake Phase = iota
	// Running: the epoch loop.
	Running
	// Closed: Tick is a no-op.
	Closed
)

func (p Phase) String() string {
	switch p {
	case Handshake:
		return "handshake"
	case Running:
		return "running"
	}
	return "closed"
}

// Simulation is the deterministic step function the session feeds. Both peers
// must produce the same state from the same sequence of command pairs.
type Simulation interface {
	Advance(cmds [2]net.Command, dt time.Duration)
	Checksum() uint64
}

// Session is the synchronization state of one two-party session: the command
// store, the reliability layer and the epoch gate. It is not safe for
// concurrent use; one control loop owns it.
type Session struct {
	cfg   Config
	store *Store
	rel   *Reliability
	gate  *Gate
	hash  hashCheck
	sim   Simulation
	log   logrus.FieldLogger
	stats Stats
	phase Phase
	now   func() time.Time

	onCommit []func(Commit)
}

// NewSession validates cfg and builds a session in the Handshake phase with
// epochs 0..Delay-1 seeded to CmdNone.
func NewSession(cfg Config, tr Transport, sim Simulation, log logrus.FieldLogger) (*Session, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := NewStore(cfg.BufferSize, cfg.Player)
	if err != nil {
		return nil, err
	}
	store.Seed(cfg.Delay)

	s := &Session{
		cfg:   cfg,
		store: store,
		gate:  newGate(store),
		hash:  hashCheck{interval: cfg.HashInterval},
		sim:   sim,
		log:   log.WithField("player", cfg.Player),
		now:   time.Now,
	}
	s.rel = newReliability(cfg, store, tr, s, &s.stats, s.log)
	return s, nil
}

// SetClock replaces the wall clock used for epoch timing.
func (s *Session) SetClock(now func() time.Time) {
	s.now = now
}

// OnCommit registers f to run after each committed epoch has been applied to
// the simulation.
func (s *Session) OnCommit(f func(Commit)) {
	s.onCommit = append(s.onCommit, f)
}

func (s *Session) Config() Config     { return s.cfg }
func (s *Session) Phase() Phase       { return s.phase }
func (s *Session) Current() net.Epoch { return s.gate.Current() }
func (s *Session) Committed() uint64  { return s.gate.Committed() }
func (s *Session) Stats() *Stats      { return &s.stats }
func (s *Session) Store() *Store      { return s.store }

// Tick runs one fixed interval: drain inbound packets, submit the local
// command for Current()+Delay, retransmit, then try to commit Current().
func (s *Session) Tick(in net.Command) (Commit, bool) {
	if s.phase == Closed {
		return Commit{}, false
	}
	s.rel.Drain()
	if s.phase == Handshake {
		s.rel.send(net.NewStart(s.store.Player(), false))
		return Commit{}, false
	}

	cur := s.gate.Current()
	s.rel.Submit(cur, in)
	s.rel.Retransmit(cur)

	if s.stats.Received == 0 {
		return Commit{}, false
	}
	c, ok := s.gate.Evaluate()
	if !ok {
		return Commit{}, false
	}
	s.commit(c)
	return c, true
}

func (s *Session) commit(c Commit) {
	s.stats.observe(s.now())
	s.sim.Advance(c.Commands, s.cfg.Interval)

	if c.Epoch > 0 && c.Epoch%recentEpochs == 0 {
		s.log.WithFields(logrus.Fields{
			"epoch":   c.Epoch,
			"average": s.stats.RecentAverage(),
		}).Info("epoch time over last epochs")
	}

	if s.hash.due(c.Epoch) {
		sum := s.sim.Checksum()
		s.rel.send(net.Packet{Opcode: net.OpHash, Epoch: c.Epoch, Input: sum})
		if compared, match := s.hash.local(c.Epoch, sum); compared {
			s.reportHash(c.Epoch, match)
		}
	}

	for _, f := range s.onCommit {
		f(c)
	}
}

// Close ends the session and logs its totals. It may be called mid-epoch.
func (s *Session) Close() {
	if s.phase == Closed {
		return
	}
	s.phase = Closed
	fields := logrus.Fields{}
	summary := s.stats.Summary()
	for el := summary.Front(); el != nil; el = el.Next() {
		fields[el.Key] = el.Value
	}
	s.log.WithFields(fields).Info("session closed")
}

func (s *Session) handleStart(p net.Packet) {
	from := int(p.Input & 0xff)
	if from == s.store.Player() {
		s.log.WithField("peer", from).Error("peer is configured with our participant index; ignoring START")
		return
	}
	if p.Input&net.StartReply == 0 {
		s.rel.send(net.NewStart(s.store.Player(), true))
		return
	}
	s.begin()
}

func (s *Session) handleHash(p net.Packet) {
	if compared, match := s.hash.remote(p.Epoch, p.Input); compared {
		s.reportHash(p.Epoch, match)
	}
}

func (s *Session) peerActive() {
	s.begin()
}

func (s *Session) begin() {
	if s.phase != Handshake {
		return
	}
	s.phase = Running
	s.stats.start(s.now())
	n := s.rel.Flush(s.gate.Current())
	s.log.WithField("seeded", n).Info("peer started, entering epoch loop")
}

func (s *Session) reportHash(e net.Epoch, match bool) {
	if match {
		s.log.WithField("epoch", e).Debug("state hash agrees with peer")
		return
	}
	s.stats.Desyncs++
	s.log.WithField("epoch", e).Error("state hash differs from peer; simulations have diverged")
}

package lockstep

import (
	"time"

	"github.com/elliotchance/orderedmap/v2"
)

// recentEpochs is the length of the rolling epoch-time window.
const recentEpochs = 100

// Stats counts protocol events and times committed epochs. It is owned by the
// control loop like the rest of the session.
type Stats struct {
	Sent         uint64
	Resent       uint64
	AcksSent     uint64
	AcksReceived uint64
	Received     uint64
	Malformed    uint64
	Unknown      uint64
	Stale        uint64
	SendErrors   uint64
	Desyncs      uint64

	Epochs uint64
	total  time.Duration
	min    time.Duration
	max    time.Duration
	last   time.Time
	recent [recentEpochs]time.Duration
	next   int
}

// start marks the beginning of the first timed epoch.
func (s *Stats) start(now time.Time) {
	s.last = now
}

// observe records the wall time since the previous commit.
func (s *Stats) observe(now time.Time) time.Duration {
	d := now.Sub(s.last)
	s.last = now
	s.total += d
	if s.Epochs == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.Epochs++
	s.recent[s.next] = d
	s.next = (s.next + 1) % recentEpochs
	return d
}

// RecentAverage averages the last 100 epoch times, or all of them if fewer
// have been committed.
func (s *Stats) RecentAverage() time.Duration {
	n := s.Epochs
	if n == 0 {
		return 0
	}
	if n > recentEpochs {
		n = recentEpochs
	}
	var sum time.Duration
	for i := uint64(0); i < n; i++ {
		sum += s.recent[i]
	}
	return sum / time.Duration(n)
}

// Average returns the mean epoch time over the whole session.
func (s *Stats) Average() time.Duration {
	if s.Epochs == 0 {
		return 0
	}
	return s.total / time.Duration(s.Epochs)
}

// Summary lists the session totals in a stable order for printing.
func (s *Stats) Summary() *orderedmap.OrderedMap[string, any] {
	m := orderedmap.NewOrderedMap[string, any]()
	m.Set("epochs", s.Epochs)
	m.Set("total_time", s.total)
	m.Set("avg_epoch", s.Average())
	m.Set("min_epoch", s.min)
	m.Set("max_epoch", s.max)
	m.Set("sent", s.Sent)
	m.Set("resent", s.Resent)
	m.Set("acks_sent", s.AcksSent)
	m.Set("acks_received", s.AcksReceived)
	m.Set("received", s.Received)
	m.Set("malformed", s.Malformed)
	m.Set("unknown", s.Unknown)
	m.Set("stale", s.Stale)
	m.Set("send_errors", s.SendErrors)
	m.Set("desyncs", s.Desyncs)
	return m
}

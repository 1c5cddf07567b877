package lockstep

import (
	"testing"
	"time"

	"pongsync/internal/net"
)

var summaryKeys = []string{
	"epochs", "total_time", "avg_epoch", "min_epoch", "max_epoch",
	"sent", "resent", "acks_sent", "acks_received", "received",
	"malformed", "unknown", "stale", "send_errors", "desyncs",
}

// observeEach starts s at base and records one epoch per duration.
func observeEach(s *Stats, base time.Time, ds ...time.Duration) time.Time {
	now := base
	for _, d := range ds {
		now = now.Add(d)
		s.observe(now)
	}
	return now
}

func repeat(d time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func TestStatsEmpty(t *testing.T) {
	var s Stats
	if s.RecentAverage() != 0 || s.Average() != 0 {
		t.Fatalf("empty averages = %v, %v", s.RecentAverage(), s.Average())
	}

	m := s.Summary()
	if m.Len() != len(summaryKeys) {
		t.Fatalf("summary has %d keys, want %d", m.Len(), len(summaryKeys))
	}
	i := 0
	for el := m.Front(); el != nil; el = el.Next() {
		if el.Key != summaryKeys[i] {
			t.Fatalf("key %d = %q, want %q", i, el.Key, summaryKeys[i])
		}
		i++
	}
	if v, _ := m.Get("epochs"); v != uint64(0) {
		t.Fatalf("epochs = %v", v)
	}
	if v, _ := m.Get("avg_epoch"); v != time.Duration(0) {
		t.Fatalf("avg_epoch = %v", v)
	}
}

func TestStatsObserve(t *testing.T) {
	var s Stats
	base := time.Unix(1000, 0)
	s.start(base)
	observeEach(&s, base, 10*time.Millisecond, 30*time.Millisecond, 20*time.Millisecond)

	if s.Epochs != 3 {
		t.Fatalf("epochs = %d", s.Epochs)
	}
	if s.min != 10*time.Millisecond || s.max != 30*time.Millisecond {
		t.Fatalf("min/max = %v/%v", s.min, s.max)
	}
	if s.total != 60*time.Millisecond {
		t.Fatalf("total = %v", s.total)
	}
	if s.Average() != 20*time.Millisecond || s.RecentAverage() != 20*time.Millisecond {
		t.Fatalf("averages = %v, %v", s.Average(), s.RecentAverage())
	}

	m := s.Summary()
	if v, _ := m.Get("min_epoch"); v != 10*time.Millisecond {
		t.Fatalf("min_epoch = %v", v)
	}
	if v, _ := m.Get("max_epoch"); v != 30*time.Millisecond {
		t.Fatalf("max_epoch = %v", v)
	}
	if v, _ := m.Get("total_time"); v != 60*time.Millisecond {
		t.Fatalf("total_time = %v", v)
	}
}

// The first epoch sets the minimum even when it is the longest so far.
func TestStatsFirstEpochSetsMin(t *testing.T) {
	var s Stats
	base := time.Unix(1000, 0)
	s.start(base)
	observeEach(&s, base, 50*time.Millisecond)
	if s.min != 50*time.Millisecond || s.max != 50*time.Millisecond {
		t.Fatalf("min/max = %v/%v", s.min, s.max)
	}
	observeEach(&s, base.Add(50*time.Millisecond), 40*time.Millisecond)
	if s.min != 40*time.Millisecond {
		t.Fatalf("min = %v", s.min)
	}
}

// Only the last 100 epochs count toward the recent average.
func TestStatsRecentWindow(t *testing.T) {
	var s Stats
	base := time.Unix(1000, 0)
	s.start(base)
	now := observeEach(&s, base, repeat(10*time.Millisecond, 50)...)
	if s.RecentAverage() != 10*time.Millisecond {
		t.Fatalf("recent after 50 = %v", s.RecentAverage())
	}

	observeEach(&s, now, repeat(20*time.Millisecond, recentEpochs)...)
	if s.Epochs != 150 {
		t.Fatalf("epochs = %d", s.Epochs)
	}
	if s.RecentAverage() != 20*time.Millisecond {
		t.Fatalf("recent after wrap = %v", s.RecentAverage())
	}
	if want := 2500 * time.Millisecond / 150; s.Average() != want {
		t.Fatalf("average = %v, want %v", s.Average(), want)
	}
}

// A running pair times its epochs on the injected clock.
func TestSessionStatsUseClock(t *testing.T) {
	p := newPair(t, DefaultConfig(0))
	start := time.Unix(5000, 0)
	now := start
	clock := func() time.Time { return now }
	p.a.SetClock(clock)
	p.b.SetClock(clock)

	const rounds = 200
	for i := 0; i < rounds; i++ {
		p.round(net.CmdUp, net.CmdDown)
		now = now.Add(10 * time.Millisecond)
	}

	for side, s := range []*Session{p.a, p.b} {
		st := s.Stats()
		if st.Epochs == 0 || st.Epochs != s.Committed() {
			t.Fatalf("side %d: stats epochs %d, committed %d", side, st.Epochs, s.Committed())
		}
		if st.min < 10*time.Millisecond || st.min%(10*time.Millisecond) != 0 {
			t.Fatalf("side %d: min epoch %v", side, st.min)
		}
		if st.total > now.Sub(start) {
			t.Fatalf("side %d: total %v exceeds elapsed %v", side, st.total, now.Sub(start))
		}
		if st.RecentAverage() != 10*time.Millisecond {
			t.Fatalf("side %d: recent average %v", side, st.RecentAverage())
		}
	}
}

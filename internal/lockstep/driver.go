package lockstep

import (
	"context"
	"time"

	"pongsync/internal/net"
)

// Input is one instantaneous sample of the local controls.
type Input struct {
	Up   bool
	Down bool
	Quit bool
}

// Command maps the sample to a command; up wins over down.
func (in Input) Command() net.Command {
	switch {
	case in.Up:
		return net.CmdUp
	case in.Down:
		return net.CmdDown
	}
	return net.CmdNone
}

// InputSource samples the local controls.
type InputSource interface {
	PollInput() Input
}

// Presenter shows the most recently committed state. It is called every
// frame whether or not an epoch was committed.
type Presenter interface {
	Present()
}

// Driver paces a session at a fixed interval from a monotonic clock.
type Driver struct {
	sess     *Session
	interval time.Duration
	last     time.Time
	started  bool
}

func NewDriver(s *Session) *Driver {
	return &Driver{sess: s, interval: s.cfg.Interval}
}

// Advance runs one session tick for every whole interval elapsed since the
// previous boundary, all with the same sampled command. The first call only
// anchors the clock.
func (d *Driver) Advance(now time.Time, in net.Command) (ticks, commits int) {
	if !d.started {
		d.last, d.started = now, true
		return 0, 0
	}
	for now.Sub(d.last) >= d.interval {
		d.last = d.last.Add(d.interval)
		ticks++
		if _, ok := d.sess.Tick(in); ok {
			commits++
		}
	}
	return ticks, commits
}

// Run polls input, advances the session and presents until the input source
// reports quit or ctx is cancelled. The session is closed on return.
func (d *Driver) Run(ctx context.Context, src InputSource, p Presenter) error {
	poll := time.NewTicker(d.interval / 2)
	defer poll.Stop()
	defer d.sess.Close()

	for {
		in := src.PollInput()
		if in.Quit {
			return nil
		}
		d.Advance(time.Now(), in.Command())
		p.Present()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
		}
	}
}

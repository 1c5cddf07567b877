package lockstep

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrBufferTooSmall means the ring cannot hold the in-flight epoch range
	// for the configured delay and would report live data as stale.
	ErrBufferTooSmall = errors.New("lockstep: buffer size too small for delay")
	ErrBadWindow      = errors.New("lockstep: retransmit window out of range")
	ErrBadInterval    = errors.New("lockstep: tick interval out of range")
)

const (
	DefaultDelay      = 10
	DefaultBufferSize = 64
	DefaultInterval   = 10 * time.Millisecond

	// MinInterval and MaxInterval bound the tick interval. The driver polls at
	// half the interval and the window runs at two updates per interval.
	MinInterval = time.Millisecond
	MaxInterval = time.Second

	// BufferDelayRatio is the minimum BufferSize/Delay ratio. The peer may run
	// up to Delay epochs ahead and send Delay epochs beyond that, and the
	// retransmit window trails the current epoch.
	BufferDelayRatio = 4
)

// Config tunes the synchronization engine. Zero fields are filled with
// defaults by WithDefaults; Delay 0 is only kept when NoDelay is set.
type Config struct {
	Player     int
	Delay      int
	NoDelay    bool
	BufferSize int
	// Window is the number of oldest epochs scanned for an unacknowledged own
	// command each tick. Zero means Delay/2 (at least 1).
	Window     int
	Retransmit bool
	Interval   time.Duration
	// HashInterval enables the state-hash exchange every HashInterval epochs.
	HashInterval int
}

// DefaultConfig returns the configuration both peers use unless told otherwise.
func DefaultConfig(player int) Config {
	return Config{
		Player:     player,
		Delay:      DefaultDelay,
		BufferSize: DefaultBufferSize,
		Retransmit: true,
		Interval:   DefaultInterval,
	}.WithDefaults()
}

// WithDefaults returns c with unset fields filled in.
func (c Config) WithDefaults() Config {
	if c.Delay == 0 && !c.NoDelay {
		c.Delay = DefaultDelay
	}
	if c.BufferSize == 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.Window == 0 {
		c.Window = c.Delay / 2
		if c.Window == 0 {
			c.Window = 1
		}
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	return c
}

// Validate checks the invariants the engine relies on. A failure here must
// stop the session from starting.
func (c Config) Validate() error {
	if c.Player != 0 && c.Player != 1 {
		return fmt.Errorf("lockstep: player must be 0 or 1, got %d", c.Player)
	}
	if c.Delay < 0 {
		return fmt.Errorf("lockstep: negative delay %d", c.Delay)
	}
	if c.BufferSize <= 0 || c.BufferSize > 1<<16 || c.BufferSize&(c.BufferSize-1) != 0 {
		return fmt.Errorf("lockstep: buffer size %d must be a power of two in [1, 65536]", c.BufferSize)
	}
	if c.BufferSize < BufferDelayRatio*c.Delay {
		return fmt.Errorf("%w: buffer %d < %d x delay %d", ErrBufferTooSmall, c.BufferSize, BufferDelayRatio, c.Delay)
	}
	if c.Retransmit {
		limit := c.Delay
		if limit == 0 {
			limit = 1
		}
		if c.Window < 1 || c.Window > limit {
			return fmt.Errorf("%w: window %d, delay %d", ErrBadWindow, c.Window, c.Delay)
		}
	}
	if c.Interval < MinInterval || c.Interval > MaxInterval {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrBadInterval, c.Interval, MinInterval, MaxInterval)
	}
	if c.HashInterval < 0 {
		return fmt.Errorf("lockstep: negative hash interval %d", c.HashInterval)
	}
	return nil
}

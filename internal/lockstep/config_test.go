package lockstep

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig(1)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Window != 5 {
		t.Fatalf("window = %d, want delay/2", cfg.Window)
	}
	if cfg.Interval != 10*time.Millisecond {
		t.Fatalf("interval = %v", cfg.Interval)
	}
}

func TestValidate(t *testing.T) {
	base := DefaultConfig(0)
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"buffer below 4x delay", func(c *Config) { c.BufferSize = 32 }, ErrBufferTooSmall},
		{"buffer not power of two", func(c *Config) { c.BufferSize = 96 }, nil},
		{"window wider than delay", func(c *Config) { c.Window = 11 }, ErrBadWindow},
		{"player out of range", func(c *Config) { c.Player = 2 }, nil},
		{"zero interval", func(c *Config) { c.Interval = 0 }, ErrBadInterval},
		{"interval below a millisecond", func(c *Config) { c.Interval = time.Nanosecond }, ErrBadInterval},
		{"interval above a second", func(c *Config) { c.Interval = 2 * time.Second }, ErrBadInterval},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected an error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestNoDelayKeepsZero(t *testing.T) {
	cfg := Config{NoDelay: true, Retransmit: true}.WithDefaults()
	if cfg.Delay != 0 || cfg.Window != 1 {
		t.Fatalf("delay=%d window=%d", cfg.Delay, cfg.Window)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("no-delay config invalid: %v", err)
	}
}

func TestIntervalBoundsAccepted(t *testing.T) {
	for _, d := range []time.Duration{MinInterval, MaxInterval} {
		cfg := DefaultConfig(0)
		cfg.Interval = d
		if err := cfg.Validate(); err != nil {
			t.Fatalf("interval %v rejected: %v", d, err)
		}
	}
}

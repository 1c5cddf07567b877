// Package config loads peer and relay settings. Sources are applied in
// order, later ones winning: defaults, an optional YAML file, .env and the
// process environment, then command-line flags and positional arguments.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"pongsync/internal/lockstep"
)

const (
	TransportUDP   = "udp"
	TransportRelay = "relay"
)

var (
	ErrBufferTooSmall = lockstep.ErrBufferTooSmall
	ErrBadInterval    = lockstep.ErrBadInterval
	ErrUsage          = errors.New("usage: <self_port> <peer_hostname> <peer_port> <player>")
)

// Session configures one peer.
type Session struct {
	LocalPort int    `yaml:"local_port"`
	PeerHost  string `yaml:"peer_host"`
	PeerPort  int    `yaml:"peer_port"`
	Player    int    `yaml:"player"`

	Delay            int           `yaml:"delay"`
	NoDelay          bool          `yaml:"no_delay"`
	BufferSize       int           `yaml:"buffer_size"`
	Retransmit       bool          `yaml:"retransmit"`
	RetransmitWindow int           `yaml:"retransmit_window"`
	Interval         time.Duration `yaml:"interval"`
	HashInterval     int           `yaml:"hash_interval"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	Transport string `yaml:"transport"`
	RelayURL  string `yaml:"relay_url"`
	Room      string `yaml:"room"`
	Name      string `yaml:"name"`
	Password  string `yaml:"password"`

	LogLevel  string `yaml:"log_level"`
	SentryDSN string `yaml:"sentry_dsn"`
	StatsView string `yaml:"statsview"`

	Headless      bool `yaml:"headless"`
	HeadlessPolls int  `yaml:"headless_polls"`
	DropEvery     int  `yaml:"drop_every"`
}

// Default returns the settings of the classic two-window setup.
func Default() Session {
	return Session{
		PeerHost:   "127.0.0.1",
		Delay:      lockstep.DefaultDelay,
		BufferSize: lockstep.DefaultBufferSize,
		Retransmit: true,
		Interval:   lockstep.DefaultInterval,
		Width:      720,
		Height:     640,
		Transport:  TransportUDP,
		RelayURL:   "ws://localhost:8080/ws",
		Name:       "player",
		LogLevel:   "info",
	}
}

// LoadFile overlays the YAML file at path onto s. Keys absent from the file
// keep their current values.
func (s *Session) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("yaml unmarshal %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads the given .env files into the environment. Missing files
// are skipped; variables already set are not overwritten.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv reads PONG_* variables through lookup.
func (s *Session) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"PONG_LOCAL_PORT":    &s.LocalPort,
		"PONG_PEER_PORT":     &s.PeerPort,
		"PONG_PLAYER":        &s.Player,
		"PONG_DELAY":         &s.Delay,
		"PONG_BUFFER_SIZE":   &s.BufferSize,
		"PONG_WINDOW":        &s.RetransmitWindow,
		"PONG_HASH_INTERVAL": &s.HashInterval,
		"PONG_DROP_EVERY":    &s.DropEvery,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	strs := map[string]*string{
		"PONG_PEER_HOST": &s.PeerHost,
		"PONG_TRANSPORT": &s.Transport,
		"PONG_RELAY_URL": &s.RelayURL,
		"PONG_ROOM":      &s.Room,
		"PONG_NAME":      &s.Name,
		"GAME_PASSWORD":  &s.Password,
		"PONG_LOG_LEVEL": &s.LogLevel,
		"SENTRY_DSN":     &s.SentryDSN,
		"PONG_STATSVIEW": &s.StatsView,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("PONG_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PONG_INTERVAL: %w", err)
		}
		s.Interval = d
	}
	if v, ok := lookup("PONG_RETRANSMIT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PONG_RETRANSMIT: %w", err)
		}
		s.Retransmit = b
	}
	return nil
}

// ParseArgs applies flags and the positional arguments
// <self_port> <peer_hostname> <peer_port> <player>. With the relay
// transport only the player may be given positionally.
func (s *Session) ParseArgs(name string, args []string, out io.Writer) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [flags] <self_port> <peer_hostname> <peer_port> <player>\n", name)
		fmt.Fprintf(out, "       %s -transport relay -room CODE [flags] <player>\n\n", name)
		fmt.Fprintf(out, "Examples:\n  %s 9930 127.0.0.1 9931 0\n  %s 9931 127.0.0.1 9930 1\n\nFlags:\n", name, name)
		fs.PrintDefaults()
	}

	fs.IntVar(&s.Delay, "delay", s.Delay, "epochs between sampling a command and executing it")
	fs.BoolVar(&s.NoDelay, "no-delay", s.NoDelay, "execute commands in the epoch they are sampled")
	fs.IntVar(&s.BufferSize, "buffer", s.BufferSize, "command ring size, a power of two at least 4x delay")
	fs.BoolVar(&s.Retransmit, "retransmit", s.Retransmit, "resend unacknowledged commands")
	fs.IntVar(&s.RetransmitWindow, "window", s.RetransmitWindow, "retransmit window in epochs (0 = delay/2)")
	fs.DurationVar(&s.Interval, "interval", s.Interval, "simulation interval")
	fs.IntVar(&s.HashInterval, "hash", s.HashInterval, "exchange state hashes every N epochs (0 = off)")
	fs.IntVar(&s.Width, "width", s.Width, "screen width")
	fs.IntVar(&s.Height, "height", s.Height, "screen height")
	fs.StringVar(&s.Transport, "transport", s.Transport, "udp or relay")
	fs.StringVar(&s.RelayURL, "relay", s.RelayURL, "relay websocket URL")
	fs.StringVar(&s.Room, "room", s.Room, "relay room code")
	fs.StringVar(&s.Name, "name", s.Name, "name shown to the other player")
	fs.StringVar(&s.LogLevel, "log", s.LogLevel, "log level")
	fs.StringVar(&s.StatsView, "statsview", s.StatsView, "serve runtime charts on this address")
	fs.BoolVar(&s.Headless, "headless", s.Headless, "run without a window using scripted input")
	fs.IntVar(&s.HeadlessPolls, "polls", s.HeadlessPolls, "headless: quit after this many input polls")
	fs.IntVar(&s.DropEvery, "drop", s.DropEvery, "drop every Nth outbound datagram")

	if err := fs.Parse(args); err != nil {
		return err
	}

	rest := fs.Args()
	switch {
	case len(rest) == 4:
		var err error
		if s.LocalPort, err = strconv.Atoi(rest[0]); err != nil {
			return fmt.Errorf("self_port: %w", err)
		}
		s.PeerHost = rest[1]
		if s.PeerPort, err = strconv.Atoi(rest[2]); err != nil {
			return fmt.Errorf("peer_port: %w", err)
		}
		rest = rest[3:]
	case len(rest) == 1 && s.Transport == TransportRelay:
	case len(rest) == 0:
		return nil
	default:
		fs.Usage()
		return ErrUsage
	}

	p, err := strconv.Atoi(rest[0])
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	s.Player = p
	return nil
}

// Lockstep returns the engine configuration.
func (s Session) Lockstep() lockstep.Config {
	return lockstep.Config{
		Player:       s.Player,
		Delay:        s.Delay,
		NoDelay:      s.NoDelay,
		BufferSize:   s.BufferSize,
		Window:       s.RetransmitWindow,
		Retransmit:   s.Retransmit,
		Interval:     s.Interval,
		HashInterval: s.HashInterval,
	}.WithDefaults()
}

// Validate reports the first setting that makes a session impossible.
func (s Session) Validate() error {
	switch s.Transport {
	case TransportUDP:
		if s.LocalPort < 1 || s.LocalPort > 65535 {
			return fmt.Errorf("self_port %d out of range", s.LocalPort)
		}
		if s.PeerPort < 1 || s.PeerPort > 65535 {
			return fmt.Errorf("peer_port %d out of range", s.PeerPort)
		}
		if strings.TrimSpace(s.PeerHost) == "" {
			return errors.New("peer hostname is empty")
		}
	case TransportRelay:
		if s.Room == "" {
			return errors.New("relay transport needs a room code")
		}
		if s.RelayURL == "" {
			return errors.New("relay transport needs a relay URL")
		}
	default:
		return fmt.Errorf("unknown transport %q", s.Transport)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("screen size %dx%d", s.Width, s.Height)
	}
	if s.DropEvery < 0 {
		return fmt.Errorf("drop every %d", s.DropEvery)
	}
	if _, err := logrus.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return s.Lockstep().Validate()
}

// Relay configures the relay server.
type Relay struct {
	Port      string
	Password  string
	LogLevel  string
	SentryDSN string
}

// LoadRelay reads PORT, GAME_PASSWORD, LOG_LEVEL and SENTRY_DSN.
func LoadRelay(lookup func(string) (string, bool)) Relay {
	r := Relay{Port: "8080", LogLevel: "info"}
	if v, ok := lookup("PORT"); ok && v != "" {
		r.Port = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		r.LogLevel = v
	}
	r.Password, _ = lookup("GAME_PASSWORD")
	r.SentryDSN, _ = lookup("SENTRY_DSN")
	return r
}

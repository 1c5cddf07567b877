package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
	"github.com/sirupsen/logrus"

	"pongsync/internal/client"
	"pongsync/internal/config"
	"pongsync/internal/game"
	"pongsync/internal/lockstep"
	"pongsync/internal/transport"
)

type peerTransport interface {
	lockstep.Transport
	transport.Reporter
	Close() error
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := loadConfig()
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.WithError(err).Warn("Sentry disabled")
		} else {
			defer sentry.Flush(2 * time.Second)
			defer sentry.Recover()
		}
	}

	if cfg.StatsView != "" {
		// set configurations before calling `statsview.New()` method
		viewer.SetConfiguration(viewer.WithTheme(viewer.ThemeWesteros), viewer.WithAddr(cfg.StatsView))
		mgr := statsview.New()
		go mgr.Start()
		defer mgr.Stop()
		log.WithField("addr", cfg.StatsView).Info("Runtime charts enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	tr, err := dial(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Error("Transport setup failed")
		return 1
	}
	defer tr.Close()

	var link lockstep.Transport = tr
	report := tr.Report
	if cfg.DropEvery > 0 {
		lossy := transport.DropEvery(tr, cfg.DropEvery)
		link, report = lossy, lossy.Report
		log.WithField("every", cfg.DropEvery).Warn("Dropping outbound datagrams")
	}
	defer func() { log.WithFields(report()).Info("Transport summary") }()

	match := game.NewMatch(cfg.Width, cfg.Height)
	sess, err := lockstep.NewSession(cfg.Lockstep(), link, match, log)
	if err != nil {
		log.WithError(err).Error("Session refused")
		return 1
	}
	log.Printf("waiting for player %d to start the game", 1-cfg.Player)

	if cfg.Headless {
		src := &client.Script{Hold: 25, Polls: cfg.HeadlessPolls}
		pres := &client.LogPresenter{Match: match, Sess: sess, Log: log, Every: 1000}
		if err := lockstep.NewDriver(sess).Run(ctx, src, pres); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("Session failed")
			return 1
		}
		return 0
	}

	win := client.NewWindow(sess, match, cfg.Width, cfg.Height)
	if err := win.Run(fmt.Sprintf("pong - player %d", cfg.Player)); err != nil {
		log.WithError(err).Error("Window failed")
		return 1
	}
	return 0
}

func loadConfig() (config.Session, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Session{}, err
	}
	cfg := config.Default()
	if path := os.Getenv("PONG_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.ParseArgs(os.Args[0], os.Args[1:], os.Stderr); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func dial(ctx context.Context, cfg config.Session, log logrus.FieldLogger) (peerTransport, error) {
	if cfg.Transport == config.TransportRelay {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return transport.DialRelay(ctx, transport.RelayOptions{
			URL:      cfg.RelayURL,
			Name:     cfg.Name,
			Room:     cfg.Room,
			Player:   cfg.Player,
			Password: cfg.Password,
		}, log)
	}
	return transport.DialUDP(cfg.LocalPort, cfg.PeerHost, cfg.PeerPort, log)
}

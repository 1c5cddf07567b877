package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"pongsync/internal/config"
	"pongsync/internal/server"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatal(err)
	}
	cfg := config.LoadRelay(os.LookupEnv)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.SentryDSN}); err != nil {
			log.WithError(err).Warn("Sentry disabled")
		} else {
			defer sentry.Flush(2 * time.Second)
			defer sentry.Recover()
		}
	}

	if cfg.Password == "" {
		log.Warn("GAME_PASSWORD not set, relay is open to anyone")
	}

	sessionStore := server.NewSessionStore(cfg.Password)
	defer sessionStore.Close()
	mm := server.NewMatchmaking(log)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Routes(mm, sessionStore, log),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go reportCounters(ctx, mm, log)
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Printf("Server starting on :%s", cfg.Port)
	log.Printf("WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("Server error")
	}
}

func reportCounters(ctx context.Context, mm *server.Matchmaking, log logrus.FieldLogger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		fwd, dropped, orphaned := mm.Counters()
		log.WithFields(logrus.Fields{
			"rooms":     len(mm.Rooms()),
			"forwarded": fwd,
			"dropped":   dropped,
			"orphaned":  orphaned,
		}).Info("Relay counters")
	}
}

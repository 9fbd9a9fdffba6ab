package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environment variables win
	envErr := godotenv.Load()

	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	log := logrus.NewEntry(logger)
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.WithError(envErr).Warn("could not load .env, using environment")
	}

	var db *DB
	if cfg.DBPath != "" {
		db, err = OpenDB(cfg.DBPath)
		if err != nil {
			log.WithError(err).Fatal("open run journal")
		}
		defer db.Close()
	}
	journal := NewJournal(db, log.WithField("component", "journal"))
	auth := NewAuth(cfg.Secret, cfg.TokenTTL, db, log.WithField("component", "auth"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions := NewSessionManager(ctx, cfg.SessionOptions(), db, journal, log.WithField("component", "session"))
	hub := NewHub(sessions, auth, db, cfg.HubOptions(), log.WithField("component", "hub"))
	// The hub outlives the sessions so their goodbye messages reach the sockets.
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	server := &http.Server{Addr: cfg.Addr, Handler: SetupRoutes(hub)}

	go func() {
		log.WithFields(logrus.Fields{
			"addr":      cfg.Addr,
			"tick_rate": cfg.TickRate,
			"journal":   cfg.DBPath,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.WithError(err).Fatal("ListenAndServe")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	sessions.Wait()
	stopHub()
	<-hub.Done()
	journal.Stop()
	if n := journal.Dropped(); n > 0 {
		log.WithField("dropped", n).Warn("journal dropped events")
	}
}

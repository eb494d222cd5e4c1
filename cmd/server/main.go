// Package main is the entry point for the ApplySync subscription API.
//
// MAIN PACKAGE IN GO:
// main should stay minimal. Its job is to:
//  1. Read configuration
//  2. Create dependencies (logger, store, event publisher)
//  3. Start the server and exit non-zero if it fails
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/applysync/internal/config"
	"github.com/sakif/applysync/internal/events"
	"github.com/sakif/applysync/internal/repository/store"
	"github.com/sakif/applysync/internal/server"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup still runs before os.Exit.
func run() int {
	// === 1. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return 1
	}

	// === 2. SET UP LOGGING ===
	// Validate already checked the level, so the error can't happen here.
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// === 3. SIGNALS ===
	// ctx is cancelled on Ctrl+C or SIGTERM; Run then shuts down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === 4. CONNECT TO THE STORE ===
	// No retry: an unreachable store at startup is fatal.
	openCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	repo, err := store.Open(openCtx, cfg.StoreURI)
	cancel()
	if err != nil {
		logger.Error("store connection failed",
			slog.String("store", store.Redact(cfg.StoreURI)),
			slog.String("error", err.Error()),
		)
		return 1
	}
	logger.Info("store connected", slog.String("store", store.Redact(cfg.StoreURI)))

	// === 5. EVENT PUBLISHER ===
	// Optional: without brokers, new subscribers are simply not announced.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.EventsEnabled() {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Error("kafka publisher setup failed", slog.String("error", err.Error()))
			closeStore(logger, repo)
			return 1
		}
		publisher = kp
		logger.Info("publishing subscriber events",
			slog.Any("brokers", cfg.Kafka.Brokers),
			slog.String("topic", cfg.Kafka.Topic),
		)
	}

	// === 6. CREATE AND RUN THE SERVER ===
	// Run blocks until shutdown and closes the store and publisher itself.
	srv := server.New(cfg, logger, repo, publisher)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// closeStore releases the store on an early exit, logging rather than
// dropping a close error.
func closeStore(logger *slog.Logger, repo io.Closer) {
	if err := repo.Close(); err != nil {
		logger.Error("closing store", slog.String("error", err.Error()))
	}
}

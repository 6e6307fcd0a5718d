// Reader is the feed cache.
//
// It holds the feed records it has fetched from the reader API, answers
// reads of them over HTTP, and periodically snapshots the valid ones to
// sqlite so a restart comes back warm.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	_ "modernc.org/sqlite"

	"github.com/jdholdren/reader/internal/feeds"
	"github.com/jdholdren/reader/internal/migrations"
	"github.com/jdholdren/reader/internal/remote"
	"github.com/jdholdren/reader/internal/server"
	"github.com/jdholdren/reader/internal/snapshot"
	"github.com/jdholdren/reader/internal/sqlite"
	"github.com/jdholdren/reader/logger"
)

type config struct {
	Port     int    `env:"PORT, default=4444"`
	Database string `env:"DATABASE, required"`

	// Root of the reader API feeds are fetched from
	ReaderAPIURL    string        `env:"READER_API_URL, required"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT, default=3s"`
	FetchMaxRetries uint64        `env:"FETCH_MAX_RETRIES, default=2"`

	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL, default=1m"`
	CorsOrigin       string        `env:"CORS_ORIGIN, default=*"`

	// Which format to use for logging: either text or json
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
	Debug        bool   `env:"DEBUG, default=false"`
}

func main() {
	ctx := context.Background()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(logger.New(os.Stderr, cfg.LoggerFormat, level))

	// Start the application
	if err := start(ctx, cfg); err != nil {
		slog.Error("error running", "error", err)
		os.Exit(1)
	}
}

func start(ctx context.Context, cfg config) error {
	slog.Info("running", "config", cfg)

	// Connect to the db
	dbx, err := sqlx.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)", cfg.Database))
	if err != nil {
		return fmt.Errorf("error opening database: %s", err)
	}
	defer dbx.Close()

	// Migrate, always
	if err := migrations.Run(dbx); err != nil {
		return fmt.Errorf("error migrating: %s", err)
	}

	var (
		store  = feeds.NewStore()
		client = remote.NewClient(remote.Config{
			BaseURL:    cfg.ReaderAPIURL,
			Timeout:    cfg.FetchTimeout,
			MaxRetries: cfg.FetchMaxRetries,
		})
		requester   = feeds.NewRequester(store, client)
		snapshotter = snapshot.New(store, sqlite.New(dbx), cfg.SnapshotInterval)
		srvr        = server.NewServer(server.Config{
			Port:       cfg.Port,
			CorsOrigin: cfg.CorsOrigin,
		}, store, requester)
	)

	// Come back with whatever was last saved
	if err := snapshotter.Restore(ctx); err != nil {
		return fmt.Errorf("error restoring snapshot: %s", err)
	}

	var g run.Group
	g.Add(func() error {
		if err := srvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error listening: %s", err)
		}

		return nil
	}, func(error) {
		downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srvr.Shutdown(downCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})

	snapCtx, cancelSnap := context.WithCancel(ctx)
	g.Add(func() error {
		if err := snapshotter.Run(snapCtx); err != nil {
			return fmt.Errorf("error running snapshotter: %s", err)
		}

		return nil
	}, func(error) {
		cancelSnap()
	})

	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	if err := g.Run(); err != nil {
		var sigErr run.SignalError
		if errors.As(err, &sigErr) {
			slog.Info("shutting down", "signal", sigErr.Signal.String())
			return nil
		}
		return fmt.Errorf("error running: %s", err)
	}

	return nil
}

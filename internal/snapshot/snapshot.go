// Package snapshot keeps the feed cache durable across restarts by writing
// its serialized form to a repository and reading it back on start.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jdholdren/reader/internal/feeds"
	"github.com/jdholdren/reader/internal/sqlite"
)

// Name the feed items are stored under.
const itemsName = "reader.feeds.items"

// Repo is where snapshots are kept.
type Repo interface {
	SaveSnapshot(ctx context.Context, name string, data []byte) error
	Snapshot(ctx context.Context, name string) (sqlite.StoredSnapshot, error)
}

// Snapshotter saves and restores the store's items.
type Snapshotter struct {
	store    *feeds.Store
	repo     Repo
	interval time.Duration
}

func New(store *feeds.Store, repo Repo, interval time.Duration) *Snapshotter {
	return &Snapshotter{
		store:    store,
		repo:     repo,
		interval: interval,
	}
}

// Restore loads the last saved snapshot into the store. No snapshot, or
// one that can't be read, leaves the store empty.
func (s *Snapshotter) Restore(ctx context.Context) error {
	stored, err := s.repo.Snapshot(ctx, itemsName)
	if errors.Is(err, sqlite.ErrNotFound) {
		slog.InfoContext(ctx, "no feed snapshot to restore")
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading snapshot: %w", err)
	}

	snap, err := feeds.DecodeSnapshot(stored.Data)
	if err != nil {
		slog.WarnContext(ctx, "discarding unreadable feed snapshot", "error", err)
		snap = feeds.Snapshot{}
	}

	items := s.store.Dispatch(ctx, feeds.Deserialize{Snapshot: snap})
	slog.InfoContext(ctx, "restored feed snapshot",
		"feeds", len(items),
		"saved_at", stored.UpdatedAt,
	)

	return nil
}

// Save writes what the store currently holds, minus error markers.
func (s *Snapshotter) Save(ctx context.Context) error {
	items := s.store.Dispatch(ctx, feeds.Serialize{})
	data, err := feeds.Encode(items)
	if err != nil {
		return err
	}

	if err := s.repo.SaveSnapshot(ctx, itemsName, data); err != nil {
		return fmt.Errorf("error saving snapshot: %w", err)
	}
	slog.DebugContext(ctx, "saved feed snapshot", "feeds", len(items))

	return nil
}

// Run saves on every tick until the context ends, then saves one last time.
func (s *Snapshotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			downCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			return s.Save(downCtx)
		case <-ticker.C:
			if err := s.Save(ctx); err != nil {
				slog.ErrorContext(ctx, "error saving feed snapshot", "error", err)
			}
		}
	}
}

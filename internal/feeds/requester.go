package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// How many recent fetch failures are remembered for diagnostics.
const failureCacheSize = 1024

// Fetcher retrieves a single feed from upstream.
type Fetcher interface {
	Feed(ctx context.Context, feedID int64) (Record, error)
}

// Requester fetches feeds and dispatches the outcome to the store.
type Requester struct {
	store   *Store
	fetcher Fetcher

	group    singleflight.Group
	failures *lru.Cache[int64, error]
}

func NewRequester(store *Store, fetcher Fetcher) *Requester {
	failures, _ := lru.New[int64, error](failureCacheSize)

	return &Requester{
		store:    store,
		fetcher:  fetcher,
		failures: failures,
	}
}

// Request fetches the feed and folds the result into the store. Concurrent
// requests for the same feed share one fetch.
//
// On failure the store keeps whatever it held for the feed and the error is
// returned. A caller whose context ends stops waiting, but the shared fetch
// carries on for the others and its outcome is still recorded.
func (r *Requester) Request(ctx context.Context, feedID int64) (Record, error) {
	ch := r.group.DoChan(strconv.FormatInt(feedID, 10), func() (any, error) {
		// Bounded by the fetcher's own timeout, not by whoever asked first
		return r.request(context.WithoutCancel(ctx), feedID)
	})

	select {
	case <-ctx.Done():
		return Record{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Record{}, res.Err
		}
		return res.Val.(Record), nil
	}
}

func (r *Requester) request(ctx context.Context, feedID int64) (Record, error) {
	r.store.Dispatch(ctx, RequestFeed{FeedID: feedID})

	rec, err := r.fetcher.Feed(ctx, feedID)
	if err == nil && rec.FeedID != feedID {
		err = fmt.Errorf("asked for feed %d, got feed %d", feedID, rec.FeedID)
	}
	if err != nil {
		r.failures.Add(feedID, err)
		r.store.Dispatch(ctx, RequestFailure{FeedID: feedID, Err: err})
		slog.WarnContext(ctx, "feed request failed", "feed_id", feedID, "error", err)

		return Record{}, fmt.Errorf("error requesting feed %d: %w", feedID, err)
	}

	r.failures.Remove(feedID)
	r.store.Dispatch(ctx, RequestSuccess{Payload: rec})

	return rec, nil
}

// LastFailure returns the most recent fetch error for the feed, or nil if
// it has succeeded since.
func (r *Requester) LastFailure(feedID int64) error {
	err, _ := r.failures.Get(feedID)
	return err
}

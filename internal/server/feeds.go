package server

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	feedsv1 "github.com/jdholdren/reader/api/feeds/v1"
	rerrs "github.com/jdholdren/reader/internal/errors"
	"github.com/jdholdren/reader/internal/feeds"
	"github.com/jdholdren/reader/internal/serverutil"
)

// How many upstream fetches one prefetch runs at once.
const prefetchConcurrency = 8

func feedID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["feedID"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, rerrs.E("invalid feed id", http.StatusBadRequest, rerrs.Detail{
			Field: "feedID",
			Error: "must be a positive integer",
		})
	}

	return id, nil
}

// Turns a failed fetch into the error response for it.
func fetchError(id int64, err error) error {
	if errors.Is(err, feeds.ErrNotFound) {
		return rerrs.E("feed not found", http.StatusNotFound)
	}

	var details []rerrs.Detail
	if err != nil {
		details = append(details, rerrs.Detail{
			Field: "feed_ID",
			Error: err.Error(),
		})
	}
	return rerrs.E(fmt.Sprintf("feed %d could not be fetched", id), http.StatusBadGateway, details)
}

func (s Server) writeEntry(w http.ResponseWriter, rec feeds.Record) error {
	if rec.IsError {
		return fetchError(rec.FeedID, s.requester.LastFailure(rec.FeedID))
	}

	return serverutil.WriteJSON(w, http.StatusOK, rec)
}

func (s Server) getFeeds(w http.ResponseWriter, r *http.Request) error {
	items := s.store.Items()

	resp := feedsv1.ListFeedsResponse{Feeds: make([]feeds.Record, 0, len(items))}
	for _, id := range slices.Sorted(maps.Keys(items)) {
		resp.Feeds = append(resp.Feeds, items[id])
	}

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) getFeed(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id, err := feedID(r)
	if err != nil {
		return err
	}

	rec, ok := s.store.Feed(id)
	if !ok {
		// A failed fetch ends up in the store as an error marker
		if _, err := s.requester.Request(ctx, id); err != nil && ctx.Err() != nil {
			return err
		}

		rec, ok = s.store.Feed(id)
		if !ok {
			return rerrs.E("feed missing after request")
		}
	}

	return s.writeEntry(w, rec)
}

func (s Server) postRefresh(w http.ResponseWriter, r *http.Request) error {
	id, err := feedID(r)
	if err != nil {
		return err
	}

	rec, err := s.requester.Request(r.Context(), id)
	if err != nil {
		return fetchError(id, err)
	}

	return serverutil.WriteJSON(w, http.StatusOK, rec)
}

func (s Server) postPrefetch(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	body, err := serverutil.DecodeValid[feedsv1.PrefetchRequest](r.Body)
	if err != nil {
		return err
	}

	var (
		mu     sync.Mutex
		failed = map[int64]error{}
		g      errgroup.Group
	)
	g.SetLimit(prefetchConcurrency)
	for _, id := range slices.Compact(slices.Sorted(slices.Values(body.FeedIDs))) {
		if rec, ok := s.store.Feed(id); ok && !rec.IsError {
			continue
		}

		g.Go(func() error {
			if _, err := s.requester.Request(ctx, id); err != nil {
				mu.Lock()
				failed[id] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := feedsv1.PrefetchResponse{
		Feeds:  []feeds.Record{},
		Failed: []feedsv1.FailedFeed{},
	}
	for _, id := range slices.Compact(slices.Sorted(slices.Values(body.FeedIDs))) {
		if err, ok := failed[id]; ok {
			resp.Failed = append(resp.Failed, feedsv1.FailedFeed{FeedID: id, Error: err.Error()})
			continue
		}
		if rec, ok := s.store.Feed(id); ok && !rec.IsError {
			resp.Feeds = append(resp.Feeds, rec)
		}
	}
	slog.InfoContext(ctx, "prefetched feeds", "requested", len(body.FeedIDs), "failed", len(resp.Failed))

	return serverutil.WriteJSON(w, http.StatusOK, resp)
}

func (s Server) getSnapshot(w http.ResponseWriter, r *http.Request) error {
	items := s.store.Dispatch(r.Context(), feeds.Serialize{})
	data, err := feeds.Encode(items)
	if err != nil {
		return err
	}

	return serverutil.WriteRawJSON(w, http.StatusOK, data)
}

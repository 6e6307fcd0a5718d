package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/reader/internal/feeds"
)

type fakeFetcher struct {
	mu      sync.Mutex
	records map[int64]feeds.Record
	errs    map[int64]error
	calls   map[int64]int
}

func (f *fakeFetcher) Feed(ctx context.Context, feedID int64) (feeds.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[feedID]++
	if err, ok := f.errs[feedID]; ok {
		return feeds.Record{}, err
	}
	if r, ok := f.records[feedID]; ok {
		return r, nil
	}
	return feeds.Record{}, feeds.ErrNotFound
}

func newTestServer(t *testing.T) (*Server, *feeds.Store, *fakeFetcher) {
	t.Helper()

	var (
		store   = feeds.NewStore()
		fetcher = &fakeFetcher{
			records: map[int64]feeds.Record{
				1: {FeedID: 1, BlogID: 10, Name: "One", URL: "https://one.example"},
				2: {FeedID: 2, BlogID: 20, Name: "Two"},
			},
			errs:  map[int64]error{},
			calls: map[int64]int{},
		}
	)

	return NewServer(Config{Port: 0, CorsOrigin: "*"}, store, feeds.NewRequester(store, fetcher)), store, fetcher
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var (
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		rec = httptest.NewRecorder()
	)
	s.Handler.ServeHTTP(rec, req)

	return rec
}

func TestGetFeed_FetchesWhenMissing(t *testing.T) {
	s, store, fetcher := newTestServer(t)

	rec := do(s, http.MethodGet, "/v1/feeds/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"feed_ID": 1, "blog_ID": 10, "name": "One", "URL": "https://one.example"}`, rec.Body.String())

	_, ok := store.Feed(1)
	assert.True(t, ok)

	// Served from the cache the second time
	rec = do(s, http.MethodGet, "/v1/feeds/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fetcher.calls[1])
}

func TestGetFeed_NotFoundUpstream(t *testing.T) {
	s, store, _ := newTestServer(t)

	rec := do(s, http.MethodGet, "/v1/feeds/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	held, ok := store.Feed(404)
	require.True(t, ok)
	assert.True(t, held.IsError)
}

func TestGetFeed_UpstreamFailure(t *testing.T) {
	s, _, fetcher := newTestServer(t)
	fetcher.errs[3] = errors.New("upstream exploded")

	rec := do(s, http.MethodGet, "/v1/feeds/3", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream exploded")

	// The error marker is served without fetching again
	rec = do(s, http.MethodGet, "/v1/feeds/3", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1, fetcher.calls[3])
}

func TestGetFeed_BadID(t *testing.T) {
	s, _, _ := newTestServer(t)

	for _, path := range []string{"/v1/feeds/abc", "/v1/feeds/0", "/v1/feeds/-3"} {
		rec := do(s, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestPostRefresh_KeepsValidRecordOnFailure(t *testing.T) {
	s, store, fetcher := newTestServer(t)

	rec := do(s, http.MethodPost, "/v1/feeds/2/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	fetcher.errs[2] = errors.New("flaky")
	rec = do(s, http.MethodPost, "/v1/feeds/2/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	held, ok := store.Feed(2)
	require.True(t, ok)
	assert.False(t, held.IsError)
	assert.Equal(t, "Two", held.Name)

	rec = do(s, http.MethodGet, "/v1/feeds/2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPostRefresh_ReplacesErrorMarker(t *testing.T) {
	s, store, fetcher := newTestServer(t)
	fetcher.errs[1] = errors.New("down")

	do(s, http.MethodGet, "/v1/feeds/1", "")
	held, _ := store.Feed(1)
	require.True(t, held.IsError)

	delete(fetcher.errs, 1)
	rec := do(s, http.MethodPost, "/v1/feeds/1/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)

	held, _ = store.Feed(1)
	assert.False(t, held.IsError)
}

func TestGetFeeds(t *testing.T) {
	s, _, _ := newTestServer(t)
	do(s, http.MethodGet, "/v1/feeds/2", "")
	do(s, http.MethodGet, "/v1/feeds/1", "")
	do(s, http.MethodGet, "/v1/feeds/9", "")

	rec := do(s, http.MethodGet, "/v1/feeds", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"feeds": [
		{"feed_ID": 1, "blog_ID": 10, "name": "One", "URL": "https://one.example"},
		{"feed_ID": 2, "blog_ID": 20, "name": "Two"},
		{"feed_ID": 9, "blog_ID": 0, "is_error": true}
	]}`, rec.Body.String())
}

func TestGetSnapshot_LeavesOutErrors(t *testing.T) {
	s, store, _ := newTestServer(t)
	do(s, http.MethodGet, "/v1/feeds/1", "")
	do(s, http.MethodGet, "/v1/feeds/9", "")

	rec := do(s, http.MethodGet, "/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"1": {"feed_ID": 1, "blog_ID": 10, "name": "One", "URL": "https://one.example"}}`, rec.Body.String())

	// Still cached
	_, ok := store.Feed(9)
	assert.True(t, ok)
}

func TestPostPrefetch(t *testing.T) {
	s, _, fetcher := newTestServer(t)
	fetcher.errs[3] = errors.New("down")
	do(s, http.MethodGet, "/v1/feeds/1", "")

	rec := do(s, http.MethodPost, "/v1/feeds:prefetch", `{"feed_ids": [1, 2, 3, 2]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"feeds": [
			{"feed_ID": 1, "blog_ID": 10, "name": "One", "URL": "https://one.example"},
			{"feed_ID": 2, "blog_ID": 20, "name": "Two"}
		],
		"failed": [{"feed_ID": 3, "error": "error requesting feed 3: down"}]
	}`, rec.Body.String())

	// Already cached feeds aren't fetched again
	assert.Equal(t, 1, fetcher.calls[1])
	assert.Equal(t, 1, fetcher.calls[2])
}

func TestPostPrefetch_Invalid(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodPost, "/v1/feeds:prefetch", `{"feed_ids": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodPost, "/v1/feeds:prefetch", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := do(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status": "ok", "feeds": 0}`, rec.Body.String())
}

func TestGetFeed_AbandonedRequestLeavesNoMarker(t *testing.T) {
	s, store, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var (
		req = httptest.NewRequest(http.MethodGet, "/v1/feeds/1", nil).WithContext(ctx)
		rec = httptest.NewRecorder()
	)
	s.Handler.ServeHTTP(rec, req)

	// The fetch outlives the client that started it
	require.Eventually(t, func() bool {
		held, ok := store.Feed(1)
		return ok && !held.IsError
	}, time.Second, time.Millisecond)

	rec = do(s, http.MethodGet, "/v1/feeds/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

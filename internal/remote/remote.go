// Package remote is the client for the reader API that feed records are
// fetched from.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"github.com/jdholdren/reader/internal/feeds"
)

const userAgent = "reader-feed-cache/1.0"

// Ensure Client can back a requester
var _ feeds.Fetcher = (*Client)(nil)

type (
	// Client fetches feed records from the reader API.
	Client struct {
		baseURL    string
		httpClient *http.Client
		parser     *gofeed.Parser
		maxRetries uint64
		backoff    time.Duration
	}

	Config struct {
		// Root of the reader API, e.g. https://public-api.example.com/rest/v1.1
		BaseURL    string
		Timeout    time.Duration
		MaxRetries uint64
		// Base of the fibonacci backoff between retries
		Backoff time.Duration
	}
)

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 250 * time.Millisecond
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}
	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = userAgent

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
		parser:     parser,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
	}
}

// Feed fetches one feed record. Transient failures are retried; a missing
// feed is reported as [feeds.ErrNotFound].
func (c *Client) Feed(ctx context.Context, feedID int64) (feeds.Record, error) {
	var (
		rec feeds.Record
		b   = retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(c.backoff))
	)
	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		rec, err = c.fetch(ctx, feedID)
		return err
	}); err != nil {
		return feeds.Record{}, err
	}

	rec.Name = sanitize(rec.Name)
	if rec.Name == "" && rec.FeedURL != "" {
		title, err := c.feedTitle(ctx, rec.FeedURL)
		if err != nil {
			slog.DebugContext(ctx, "could not probe feed for a title", "feed_id", feedID, "error", err)
		}
		rec.Name = title
	}

	return rec, nil
}

func (c *Client) fetch(ctx context.Context, feedID int64) (feeds.Record, error) {
	url := fmt.Sprintf("%s/read/feed/%d", c.baseURL, feedID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return feeds.Record{}, fmt.Errorf("error building feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return feeds.Record{}, err
		}
		return feeds.Record{}, retry.RetryableError(fmt.Errorf("error getting feed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return feeds.Record{}, fmt.Errorf("feed %d: %w", feedID, feeds.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return feeds.Record{}, retry.RetryableError(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return feeds.Record{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var rec feeds.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return feeds.Record{}, fmt.Errorf("error decoding feed: %w", err)
	}
	if rec.FeedID == 0 {
		rec.FeedID = feedID
	}
	// A record that won't validate could never be restored from a snapshot
	if err := feeds.Validate(rec); err != nil {
		return feeds.Record{}, fmt.Errorf("upstream sent a malformed feed: %w", err)
	}

	return rec, nil
}

// Reads the feed document itself to find what it calls itself.
func (c *Client) feedTitle(ctx context.Context, feedURL string) (string, error) {
	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return "", fmt.Errorf("feed answered %d", httpErr.StatusCode)
		}
		return "", fmt.Errorf("error parsing feed: %w", err)
	}

	return sanitize(feed.Title), nil
}

var stripPolicy = bluemonday.StrictPolicy()

// Longest display string kept, in bytes.
const maxDisplayLen = 512

// Removes all html tags from a display string and caps its length. The
// policy escapes entities, which are turned back into text here.
func sanitize(s string) string {
	s = strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
	if len(s) <= maxDisplayLen {
		return s
	}

	cut := maxDisplayLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

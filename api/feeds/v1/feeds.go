// Package v1 holds the request and response bodies of the feed cache API.
package v1

import (
	"fmt"
	"net/http"

	rerrs "github.com/jdholdren/reader/internal/errors"
	"github.com/jdholdren/reader/internal/feeds"
)

// Most feeds a single prefetch may ask for.
const MaxPrefetch = 50

type ListFeedsResponse struct {
	Feeds []feeds.Record `json:"feeds"`
}

type PrefetchRequest struct {
	FeedIDs []int64 `json:"feed_ids"`
}

type PrefetchResponse struct {
	Feeds  []feeds.Record `json:"feeds"`
	Failed []FailedFeed   `json:"failed"`
}

// FailedFeed is a feed that could not be fetched during a prefetch.
type FailedFeed struct {
	FeedID int64  `json:"feed_ID"`
	Error  string `json:"error"`
}

// Validate checks that the body (minus logic checks) is valid.
//
// Returns an errors.Error if the request is invalid.
func (r PrefetchRequest) Validate() error {
	errs := []rerrs.Detail{}
	if len(r.FeedIDs) == 0 {
		errs = append(errs, rerrs.Detail{
			Field: "feed_ids",
			Error: "feed_ids is required",
		})
	}
	if len(r.FeedIDs) > MaxPrefetch {
		errs = append(errs, rerrs.Detail{
			Field: "feed_ids",
			Error: fmt.Sprintf("at most %d feeds per request", MaxPrefetch),
		})
	}
	for i, id := range r.FeedIDs {
		if id <= 0 {
			errs = append(errs, rerrs.Detail{
				Field: fmt.Sprintf("feed_ids[%d]", i),
				Error: "must be a positive feed id",
			})
		}
	}
	if len(errs) > 0 {
		return rerrs.E("request was invalid", http.StatusBadRequest, errs)
	}

	return nil
}

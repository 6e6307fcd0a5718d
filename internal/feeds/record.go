// Package feeds holds the reader feed cache: the records fetched from the
// reader API, the reducers that fold fetch outcomes into the cache, and the
// store that owns the current cache value.
package feeds

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned by a [Fetcher] when the feed does not exist upstream.
var ErrNotFound = errors.New("feed not found")

type (
	// Record is a feed as the reader API describes it.
	//
	// Error markers are records with only FeedID and IsError set.
	Record struct {
		FeedID           int64  `json:"feed_ID" validate:"required,gt=0"`
		BlogID           int64  `json:"blog_ID" validate:"required,gt=0"`
		Name             string `json:"name,omitempty"`
		URL              string `json:"URL,omitempty" validate:"omitempty,http_url"`
		FeedURL          string `json:"feed_URL,omitempty" validate:"omitempty,http_url"`
		SubscribersCount int    `json:"subscribers_count,omitempty" validate:"gte=0"`
		IsFollowing      bool   `json:"is_following,omitempty"`
		IsError          bool   `json:"is_error,omitempty"`

		// Attrs holds any other attribute the API sent along. They are passed
		// through untouched.
		Attrs map[string]json.RawMessage `json:"-" validate:"-"`
	}

	// Items maps a feed ID to its record or error marker.
	Items map[int64]Record
)

// ErrorMarker is what gets stored for a feed whose fetch failed.
func ErrorMarker(feedID int64) Record {
	return Record{FeedID: feedID, IsError: true}
}

// recordFields is the set of JSON keys decoded into the typed fields.
var recordFields = []string{
	"feed_ID",
	"blog_ID",
	"name",
	"URL",
	"feed_URL",
	"subscribers_count",
	"is_following",
	"is_error",
}

func isRecordField(key string) bool {
	for _, f := range recordFields {
		// encoding/json matches struct fields case-insensitively
		if strings.EqualFold(f, key) {
			return true
		}
	}

	return false
}

// Avoids recursing into the custom (un)marshalers.
type plainRecord Record

func (r Record) MarshalJSON() ([]byte, error) {
	byts, err := json.Marshal(plainRecord(r))
	if err != nil {
		return nil, err
	}
	if len(r.Attrs) == 0 {
		return byts, nil
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(byts, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Attrs {
		if isRecordField(k) {
			continue
		}
		merged[k] = v
	}

	return json.Marshal(merged)
}

func (r *Record) UnmarshalJSON(byts []byte) error {
	var p plainRecord
	if err := json.Unmarshal(byts, &p); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(byts, &all); err != nil {
		return err
	}
	for k := range all {
		if isRecordField(k) {
			delete(all, k)
		}
	}
	p.Attrs = nil
	if len(all) > 0 {
		p.Attrs = all
	}

	*r = Record(p)
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports whether the record has the shape of a feed record.
// Error markers never validate.
func Validate(r Record) error {
	if r.IsError {
		return fmt.Errorf("feed %d is an error marker", r.FeedID)
	}
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid feed record %d: %w", r.FeedID, err)
	}

	return nil
}

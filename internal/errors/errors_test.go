package errors_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrs "github.com/jdholdren/reader/internal/errors"
)

func TestEConstructor(t *testing.T) {
	got := rerrs.E(
		"something went wrong",
		rerrs.Detail{Field: "feed_ID", Error: "was bad"},
		http.StatusBadRequest,
	)
	want := &rerrs.Error{
		Err: errors.New("something went wrong"),
		Details: []rerrs.Detail{
			{Field: "feed_ID", Error: "was bad"},
		},
		Status: http.StatusBadRequest,
	}

	assert.Equal(t, want, got)
}

func TestEDefaultsToInternal(t *testing.T) {
	got := rerrs.E()
	assert.Equal(t, http.StatusInternalServerError, got.Status)

	byts, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"message": "Internal Server Error", "status": 500}`, string(byts))
}

func TestUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := error(rerrs.E(sentinel, http.StatusBadGateway))

	assert.ErrorIs(t, err, sentinel)
}

func TestJSONRoundTrip(t *testing.T) {
	in := rerrs.E("feed could not be fetched", http.StatusBadGateway, []rerrs.Detail{
		{Field: "feed_ID", Error: "upstream said no"},
	})

	byts, err := json.Marshal(in)
	require.NoError(t, err)

	var out rerrs.Error
	require.NoError(t, json.Unmarshal(byts, &out))
	assert.Equal(t, in, &out)
}

func TestErrorString(t *testing.T) {
	err := rerrs.E("bad request", http.StatusBadRequest, rerrs.Detail{Field: "feed_ids[0]", Error: "must be positive"})

	assert.Equal(t, "400 bad request; feed_ids[0]: must be positive", err.Error())
	assert.Equal(t, "502 Bad Gateway", rerrs.E(http.StatusBadGateway).Error())
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("while fetching: %w", rerrs.E("feed not found", http.StatusNotFound))

	got, ok := rerrs.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, got.Status)

	got, ok = rerrs.As(errors.New("disk on fire"))
	assert.False(t, ok)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, "internal server error", got.Err.Error())
}

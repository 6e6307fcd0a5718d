package feeds

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_PassesThroughUnknownAttrs(t *testing.T) {
	const in = `{"feed_ID": 3, "blog_ID": 4, "name": "Three", "image": "https://three.example/i.png", "meta": {"links": {"site": "x"}}}`

	var r Record
	require.NoError(t, json.Unmarshal([]byte(in), &r))

	assert.Equal(t, int64(3), r.FeedID)
	assert.Equal(t, "Three", r.Name)
	require.Len(t, r.Attrs, 2)
	assert.JSONEq(t, `"https://three.example/i.png"`, string(r.Attrs["image"]))

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestRecord_NoAttrs(t *testing.T) {
	var r Record
	require.NoError(t, json.Unmarshal([]byte(`{"feed_ID": 1, "blog_ID": 2}`), &r))

	assert.Nil(t, r.Attrs)
	assert.Equal(t, Record{FeedID: 1, BlogID: 2}, r)
}

func TestRecord_ErrorMarkerJSON(t *testing.T) {
	out, err := json.Marshal(ErrorMarker(666))
	require.NoError(t, err)

	assert.JSONEq(t, `{"feed_ID": 666, "blog_ID": 0, "is_error": true}`, string(out))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{
			name:   "minimal",
			record: Record{FeedID: 1, BlogID: 2},
		},
		{
			name: "full",
			record: Record{
				FeedID:           1234,
				BlogID:           4567,
				Name:             "Example Dot Com",
				URL:              "http://example.com",
				FeedURL:          "http://example.com/feed",
				SubscribersCount: 10,
			},
		},
		{
			name:    "missing feed id",
			record:  Record{BlogID: 2},
			wantErr: true,
		},
		{
			name:    "missing blog id",
			record:  Record{FeedID: 2},
			wantErr: true,
		},
		{
			name:    "error marker",
			record:  ErrorMarker(9),
			wantErr: true,
		},
		{
			name:    "bad feed url",
			record:  Record{FeedID: 1, BlogID: 2, FeedURL: "ftp://example.com/feed"},
			wantErr: true,
		},
		{
			name:    "negative subscribers",
			record:  Record{FeedID: 1, BlogID: 2, SubscribersCount: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.record)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

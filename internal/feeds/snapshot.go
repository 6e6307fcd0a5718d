package feeds

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Snapshot is the persisted form of the items, keyed by the feed ID as a
// decimal string.
type Snapshot map[string]json.RawMessage

// Items decodes and validates every entry of the snapshot.
//
// A single bad entry fails the whole snapshot.
func (s Snapshot) Items() (Items, error) {
	items := make(Items, len(s))
	for key, raw := range s {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("snapshot key %q is not a feed id", key)
		}

		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("error decoding snapshot entry %q: %w", key, err)
		}
		if err := Validate(r); err != nil {
			return nil, err
		}
		if r.FeedID != id {
			return nil, fmt.Errorf("snapshot entry %q holds feed %d", key, r.FeedID)
		}

		items[id] = r
	}

	return items, nil
}

// Encode renders items in the snapshot format. Apply [Serialize] first to
// leave error markers out.
func Encode(items Items) ([]byte, error) {
	out := make(map[string]Record, len(items))
	for id, r := range items {
		out[strconv.FormatInt(id, 10)] = r
	}

	byts, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("error encoding snapshot: %w", err)
	}

	return byts, nil
}

// DecodeSnapshot parses a persisted snapshot. Entries are not validated
// until the snapshot is deserialized.
func DecodeSnapshot(byts []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(byts, &s); err != nil {
		return nil, fmt.Errorf("error decoding snapshot: %w", err)
	}

	return s, nil
}

package feeds

import (
	"log/slog"
	"maps"
)

// Requesting is the set of feed IDs with a fetch in flight.
type Requesting map[int64]bool

// ItemsReducer folds an action into the feed items.
//
// state is never modified. Actions that don't change anything hand state
// back as is.
func ItemsReducer(state Items, action Action) Items {
	if state == nil {
		state = Items{}
	}

	switch a := action.(type) {
	case RequestSuccess:
		next := maps.Clone(state)
		next[a.Payload.FeedID] = a.Payload
		return next

	case RequestFailure:
		// Never clobber what's already there, valid or not
		if _, ok := state[a.FeedID]; ok {
			return state
		}
		next := maps.Clone(state)
		next[a.FeedID] = ErrorMarker(a.FeedID)
		return next

	case Serialize:
		next := make(Items, len(state))
		for id, r := range state {
			if r.IsError {
				continue
			}
			next[id] = r
		}
		return next

	case Deserialize:
		items, err := a.Snapshot.Items()
		if err != nil {
			slog.Warn("discarding feed snapshot", "entries", len(a.Snapshot), "error", err)
			return Items{}
		}
		return items
	}

	return state
}

// RequestingReducer tracks which feeds are being fetched.
func RequestingReducer(state Requesting, action Action) Requesting {
	if state == nil {
		state = Requesting{}
	}

	switch a := action.(type) {
	case RequestFeed:
		next := maps.Clone(state)
		next[a.FeedID] = true
		return next
	case RequestSuccess:
		return without(state, a.Payload.FeedID)
	case RequestFailure:
		return without(state, a.FeedID)
	}

	return state
}

func without(state Requesting, feedID int64) Requesting {
	if !state[feedID] {
		return state
	}
	next := maps.Clone(state)
	delete(next, feedID)
	return next
}

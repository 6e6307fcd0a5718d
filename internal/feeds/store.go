package feeds

import (
	"context"
	"log/slog"
	"maps"
	"sync"
)

// Store owns the current items and in-flight set and applies actions to
// them one at a time.
type Store struct {
	mu         sync.RWMutex
	items      Items
	requesting Requesting
}

func NewStore() *Store {
	return &Store{
		items:      Items{},
		requesting: Requesting{},
	}
}

// Dispatch runs the action through the reducers and returns the resulting
// items.
//
// Serialize never replaces the held items: its result is only what should
// be persisted.
func (s *Store) Dispatch(ctx context.Context, action Action) Items {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := ItemsReducer(s.items, action)
	if _, ok := action.(Serialize); ok {
		return next
	}

	s.items = next
	s.requesting = RequestingReducer(s.requesting, action)

	slog.DebugContext(ctx, "dispatched feed action", "type", action.Type(), "items", len(next))

	return next
}

// Feed returns the entry held for the feed, valid or error marker.
func (s *Store) Feed(feedID int64) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.items[feedID]
	return r, ok
}

// Items returns a copy of everything held.
func (s *Store) Items() Items {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.items)
}

func (s *Store) IsRequesting(feedID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requesting[feedID]
}

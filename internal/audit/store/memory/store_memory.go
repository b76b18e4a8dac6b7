// Package memory provides the in-memory ledger used by unit tests and
// development mode. It intentionally favors clarity over performance.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ecoaudit/internal/audit"
)

// Store keeps events in an append-only slice guarded by a RWMutex. IDs come
// from a monotonic counter; timestamps are clamped to be non-decreasing so
// the default ordering is total within one process.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	lastTS time.Time
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

// Append assigns the next ID, stamps the event if needed, and stores a copy.
func (s *Store) Append(_ context.Context, event *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	event.ID = s.nextID

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Timestamp.Before(s.lastTS) {
		event.Timestamp = s.lastTS
	}
	s.lastTS = event.Timestamp

	s.events = append(s.events, *event)
	return nil
}

// Query returns matching events in timestamp-descending order, ties broken
// by id descending, honoring the cursor and limit.
func (s *Store) Query(_ context.Context, filter audit.Filter, page audit.Page) ([]audit.Event, error) {
	s.mu.RLock()
	matched := make([]audit.Event, 0)
	for _, e := range s.events {
		if filter.Matches(e) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	if c := page.Cursor; c != nil {
		idx := 0
		for idx < len(matched) && !afterCursor(matched[idx], *c) {
			idx++
		}
		matched = matched[idx:]
	}

	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return matched, nil
}

// Len reports how many events the ledger holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// afterCursor reports whether e sorts strictly after the cursor position in
// (timestamp DESC, id DESC) order.
func afterCursor(e audit.Event, c audit.Cursor) bool {
	if !e.Timestamp.Equal(c.Timestamp) {
		return e.Timestamp.Before(c.Timestamp)
	}
	return e.ID < c.ID
}

// Package store holds the in-memory notification cache for the active
// session. It is the single source of truth for unread counts and for what
// the presentation layer renders.
package store

import (
	"sort"
	"sync"
	"time"

	"facility-notify/internal/models"
)

// Store keeps notifications most-recent-first. All methods are safe for
// concurrent use; the pipeline, the acknowledgement path, and bulk loads
// all funnel through the same mutex.
type Store struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func New() *Store {
	return &Store{}
}

// BulkLoad replaces the store contents. Records are re-sorted newest-first
// locally rather than trusting the backend's ordering; ties keep their
// incoming order. Repeating the same load is idempotent.
func (s *Store) BulkLoad(records []models.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = make([]models.Notification, len(records))
	copy(s.notifications, records)
	sort.SliceStable(s.notifications, func(i, j int) bool {
		return s.notifications[i].CreatedAt.After(s.notifications[j].CreatedAt)
	})
}

// Insert prepends a newly arrived record. A record whose id is already
// present is skipped; the feed is not expected to redeliver, so the guard
// only exists to keep a misbehaving stream from corrupting counts.
func (s *Store) Insert(n models.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == n.ID {
			return false
		}
	}
	s.notifications = append([]models.Notification{n}, s.notifications...)
	return true
}

// MarkRead flags the matching record read, stamping readAt exactly once.
// Returns false when the id is absent or already read.
func (s *Store) MarkRead(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			if s.notifications[i].IsRead {
				return false
			}
			s.notifications[i].IsRead = true
			readAt := at
			s.notifications[i].ReadAt = &readAt
			return true
		}
	}
	return false
}

// MarkAllRead flags every unread record and returns how many changed.
func (s *Store) MarkAllRead(at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.notifications {
		if !s.notifications[i].IsRead {
			s.notifications[i].IsRead = true
			readAt := at
			s.notifications[i].ReadAt = &readAt
			changed++
		}
	}
	return changed
}

// All returns a copy of the cached records, most recent first.
func (s *Store) All() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Get returns the record with the given id, if cached.
func (s *Store) Get(id string) (models.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			return s.notifications[i], true
		}
	}
	return models.Notification{}, false
}

// UnreadCount returns how many cached records are unread.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.notifications {
		if !s.notifications[i].IsRead {
			count++
		}
	}
	return count
}

// Clear drops the cache. Used when the session ends so stale records never
// leak into the next sign-in.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = nil
}

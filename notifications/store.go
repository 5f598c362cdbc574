// Package notifications keeps the operator's notification panel in sync with
// the customs API.
package notifications

import (
	"slices"
	"sync"

	"github.com/jrsteele09/customs-console/customsapi"
)

// Panel is what the header and notification panel render.
type Panel struct {
	// Newest first. May be shorter than UnreadCount suggests: the list is
	// capped at the page size, the counter is not.
	Notifications []customsapi.Notification
	UnreadCount   int
	SoundEnabled  bool
	IsOpen        bool
}

// Store holds the panel state. It performs no I/O; the Syncer applies server
// results to it.
type Store struct {
	mu          sync.RWMutex
	panel       Panel
	subscribers map[int]func(Panel)
	nextSubID   int
}

func NewStore() *Store {
	return &Store{
		panel:       Panel{SoundEnabled: true},
		subscribers: make(map[int]func(Panel)),
	}
}

// SetNotifications replaces the list and the counter.
func (s *Store) SetNotifications(list []customsapi.Notification, unread int) {
	sorted := slices.Clone(list)
	sortNewestFirst(sorted)
	s.update(func(p *Panel) {
		p.Notifications = sorted
		p.UnreadCount = max(unread, 0)
	})
}

func (s *Store) SetUnreadCount(n int) {
	s.update(func(p *Panel) {
		p.UnreadCount = max(n, 0)
	})
}

func (s *Store) SetSoundEnabled(enabled bool) {
	s.update(func(p *Panel) {
		p.SoundEnabled = enabled
	})
}

// MarkAsRead flips the local record and takes one off the counter. Nothing
// changes when the record is already read.
func (s *Store) MarkAsRead(id int64) {
	s.update(func(p *Panel) {
		i := indexOf(p.Notifications, id)
		if i >= 0 && p.Notifications[i].IsRead {
			return
		}
		if i >= 0 {
			p.Notifications = slices.Clone(p.Notifications)
			p.Notifications[i].IsRead = true
		}
		p.UnreadCount = max(p.UnreadCount-1, 0)
	})
}

// MarkAllRead flips every local record and zeroes the counter.
func (s *Store) MarkAllRead() {
	s.update(func(p *Panel) {
		list := slices.Clone(p.Notifications)
		for i := range list {
			list[i].IsRead = true
		}
		p.Notifications = list
		p.UnreadCount = 0
	})
}

// Remove drops a record. The counter only moves if the record was unread.
func (s *Store) Remove(id int64) {
	s.update(func(p *Panel) {
		i := indexOf(p.Notifications, id)
		if i < 0 {
			return
		}
		if !p.Notifications[i].IsRead {
			p.UnreadCount = max(p.UnreadCount-1, 0)
		}
		p.Notifications = slices.Delete(slices.Clone(p.Notifications), i, i+1)
	})
}

func (s *Store) ClearAll() {
	s.update(func(p *Panel) {
		p.Notifications = nil
		p.UnreadCount = 0
	})
}

// Add prepends a newly arrived record.
func (s *Store) Add(n customsapi.Notification) {
	s.update(func(p *Panel) {
		p.Notifications = append([]customsapi.Notification{n}, p.Notifications...)
		if !n.IsRead {
			p.UnreadCount++
		}
	})
}

func (s *Store) TogglePanel() {
	s.update(func(p *Panel) {
		p.IsOpen = !p.IsOpen
	})
}

func (s *Store) ClosePanel() {
	s.update(func(p *Panel) {
		p.IsOpen = false
	})
}

// Reset returns the store to its initial state, used on logout.
func (s *Store) Reset() {
	s.update(func(p *Panel) {
		*p = Panel{SoundEnabled: true}
	})
}

// Snapshot returns a copy safe to read without the lock.
func (s *Store) Snapshot() Panel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyLocked()
}

// Subscribe registers fn to be called after every change. The returned
// func removes it.
func (s *Store) Subscribe(fn func(Panel)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

func (s *Store) update(fn func(*Panel)) {
	s.mu.Lock()
	fn(&s.panel)
	snap := s.copyLocked()
	subs := make([]func(Panel), 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

func (s *Store) copyLocked() Panel {
	p := s.panel
	p.Notifications = slices.Clone(s.panel.Notifications)
	return p
}

func indexOf(list []customsapi.Notification, id int64) int {
	return slices.IndexFunc(list, func(n customsapi.Notification) bool {
		return n.ID == id
	})
}

// sortNewestFirst orders by creation time, newest first. Equal times keep
// the server's order.
func sortNewestFirst(list []customsapi.Notification) {
	slices.SortStableFunc(list, func(a, b customsapi.Notification) int {
		return b.CreatedAt.Compare(a.CreatedAt.Time)
	})
}

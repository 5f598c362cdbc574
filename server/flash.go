package server

import (
	"context"
	"sync"

	"github.com/jrsteele09/customs-console/gateway"
)

const defaultFlashCapacity = 20

// Flash is one toast waiting to be shown.
type Flash struct {
	Level   gateway.Level
	Message string
}

// FlashQueue collects toasts from the gateway and the flows until the next
// page or partial renders them. When full the oldest toast is dropped.
type FlashQueue struct {
	mu       sync.Mutex
	items    []Flash
	capacity int
}

func NewFlashQueue(capacity int) *FlashQueue {
	if capacity <= 0 {
		capacity = defaultFlashCapacity
	}
	return &FlashQueue{capacity: capacity}
}

func (q *FlashQueue) Notify(_ context.Context, level gateway.Level, message string) {
	if message == "" {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Flash{Level: level, Message: message})
	if over := len(q.items) - q.capacity; over > 0 {
		q.items = q.items[over:]
	}
}

// Drain returns the queued toasts and empties the queue.
func (q *FlashQueue) Drain() []Flash {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

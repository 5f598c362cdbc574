package authflowrepo

import (
	"errors"
	"sync"
	"time"

	"github.com/jrsteele09/customs-console/authflow"
	apperrors "github.com/jrsteele09/customs-console/internal/errors"
)

// DefaultTTL bounds how long an abandoned attempt is kept.
const DefaultTTL = 10 * time.Minute

// InMemoryRepo is a thread-safe in-memory implementation of the Repo interface
type InMemoryRepo struct {
	mu       sync.RWMutex
	attempts map[string]*authflow.Attempt
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemoryRepo creates a new in-memory attempt repository
func NewInMemoryRepo(ttl time.Duration, now func() time.Time) *InMemoryRepo {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &InMemoryRepo{
		attempts: make(map[string]*authflow.Attempt),
		ttl:      ttl,
		now:      now,
	}
}

// Upsert stores or updates an attempt. Expired attempts are dropped on
// every write.
func (r *InMemoryRepo) Upsert(id string, attempt *authflow.Attempt) error {
	if id == "" {
		return errors.New("attempt id cannot be empty")
	}
	if attempt == nil {
		return errors.New("attempt cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for k, a := range r.attempts {
		if r.expired(a, now) {
			delete(r.attempts, k)
		}
	}

	// Store a copy to prevent external modifications
	c := attempt.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	r.attempts[id] = c
	return nil
}

// Get retrieves an attempt by id
func (r *InMemoryRepo) Get(id string) (*authflow.Attempt, error) {
	if id == "" {
		return nil, apperrors.ErrAttemptNotFound
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.attempts[id]
	if !exists || r.expired(a, r.now()) {
		return nil, apperrors.ErrAttemptNotFound
	}
	return a.Clone(), nil
}

// Delete removes an attempt
func (r *InMemoryRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.attempts, id)
	return nil
}

func (r *InMemoryRepo) expired(a *authflow.Attempt, now time.Time) bool {
	return now.Sub(a.CreatedAt) > r.ttl
}

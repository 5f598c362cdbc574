package sessions

import (
	"errors"
	"sync"
)

// InMemoryRepo is a thread-safe Repo that forgets everything on restart
type InMemoryRepo struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates a new in-memory session repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		values: make(map[string]string),
	}
}

func (r *InMemoryRepo) Get(key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("key cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.values[key]
	return v, ok, nil
}

func (r *InMemoryRepo) Set(key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = value
	return nil
}

func (r *InMemoryRepo) Delete(keys ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}

package repofakes

import (
	"sort"
	"sync"

	"github.com/jrsteele09/customs-console/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is an in-memory Repo whose failures can be scripted
type FakeSessionRepo struct {
	lock   sync.RWMutex
	values map[string]string

	GetErr    error
	SetErr    error
	DeleteErr error

	setCalls  int
	failSetAt int
	failErr   error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		values: make(map[string]string),
	}
}

// Seed writes values directly, bypassing SetErr.
func (r *FakeSessionRepo) Seed(values map[string]string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for k, v := range values {
		r.values[k] = v
	}
}

// FailSetCall makes only the n-th following Set call (1-based) return err.
func (r *FakeSessionRepo) FailSetCall(n int, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.setCalls = 0
	r.failSetAt = n
	r.failErr = err
}

// Keys returns the stored keys in sorted order.
func (r *FakeSessionRepo) Keys() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *FakeSessionRepo) Get(key string) (string, bool, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.GetErr != nil {
		return "", false, r.GetErr
	}
	v, ok := r.values[key]
	return v, ok, nil
}

func (r *FakeSessionRepo) Set(key, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.SetErr != nil {
		return r.SetErr
	}
	r.setCalls++
	if r.failSetAt > 0 && r.setCalls == r.failSetAt {
		return r.failErr
	}
	r.values[key] = value
	return nil
}

func (r *FakeSessionRepo) Delete(keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.DeleteErr != nil {
		return r.DeleteErr
	}
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}

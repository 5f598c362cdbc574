package sessions

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/customs-console/internal/errors"
	"github.com/jrsteele09/customs-console/users"
	"github.com/rs/zerolog"
)

// Session is a point-in-time copy of the operator's identity.
// IsAuthenticated is true exactly when Token is non-empty and User is set.
type Session struct {
	Token           string
	User            *users.User
	IsAdmin         bool
	IsAuthenticated bool
	CompanyStatus   users.CompanyStatus

	// Generation changes every time the session is established or destroyed.
	// Work started against one generation must not be applied to another.
	Generation uint64
}

// State is the process-wide session holder. Reads are cheap snapshots;
// mutations persist through the Repo before they become visible.
type State struct {
	mu         sync.RWMutex
	repo       Repo
	session    Session
	generation uint64

	subMu   sync.Mutex
	subs    map[int]func(Session)
	nextSub int

	log zerolog.Logger
	now func() time.Time
}

type Option func(*State)

func WithLogger(l zerolog.Logger) Option {
	return func(s *State) {
		s.log = l
	}
}

func WithNowTime(now func() time.Time) Option {
	return func(s *State) {
		s.now = now
	}
}

func NewState(repo Repo, opts ...Option) (*State, error) {
	if repo == nil {
		return nil, fmt.Errorf("[sessions NewState] repo is required")
	}
	s := &State{
		repo: repo,
		subs: make(map[int]func(Session)),
		log:  zerolog.Nop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// LoadFromStorage rehydrates the session from the repo. It is meant to run
// once at start-up. Any stored value that fails to decode, or a JWT that has
// already expired, purges every key and leaves the session empty. Only
// repo read failures are returned.
func (s *State) LoadFromStorage() error {
	s.mu.Lock()
	defer s.notifyAfter(s.snapshotLocked)()
	defer s.mu.Unlock()

	token, ok, err := s.repo.Get(KeyAccessToken)
	if err != nil {
		return errors.Wrapf(err, "[State LoadFromStorage] read %s", KeyAccessToken)
	}
	if !ok || token == "" {
		return nil
	}
	rawUser, ok, err := s.repo.Get(KeyUser)
	if err != nil {
		return errors.Wrapf(err, "[State LoadFromStorage] read %s", KeyUser)
	}
	if !ok || rawUser == "" {
		return nil
	}
	rawAdmin, _, err := s.repo.Get(KeyIsAdmin)
	if err != nil {
		return errors.Wrapf(err, "[State LoadFromStorage] read %s", KeyIsAdmin)
	}

	var user *users.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user == nil {
		s.log.Warn().Err(err).Msg("stored user is unreadable, clearing session")
		s.purgeLocked()
		return nil
	}
	isAdmin := false
	if rawAdmin != "" {
		if isAdmin, err = strconv.ParseBool(rawAdmin); err != nil {
			s.log.Warn().Err(err).Msg("stored admin flag is unreadable, clearing session")
			s.purgeLocked()
			return nil
		}
	}
	if TokenExpired(token, s.now()) {
		s.log.Info().Msg("stored access token has expired, clearing session")
		s.purgeLocked()
		return nil
	}

	s.establishLocked(token, user, isAdmin)
	return nil
}

// SetAuth persists and installs a new authenticated session. It is the only
// way into the authenticated state.
func (s *State) SetAuth(token string, user *users.User, isAdmin bool) error {
	if token == "" || user == nil {
		return fmt.Errorf("[State SetAuth] token and user are required")
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return errors.Wrapf(err, "[State SetAuth] encode user")
	}

	s.mu.Lock()
	defer s.notifyAfter(s.snapshotLocked)()
	defer s.mu.Unlock()

	values := [][2]string{
		{KeyAccessToken, token},
		{KeyUser, string(rawUser)},
		{KeyIsAdmin, strconv.FormatBool(isAdmin)},
	}
	for _, kv := range values {
		if err := s.repo.Set(kv[0], kv[1]); err != nil {
			s.restoreLocked()
			return errors.Wrapf(err, "[State SetAuth] persist %s", kv[0])
		}
	}

	s.establishLocked(token, user.Clone(), isAdmin)
	return nil
}

// SetUser replaces the cached user of the current session.
func (s *State) SetUser(user *users.User) error {
	s.mu.Lock()
	defer s.notifyAfter(s.snapshotLocked)()
	defer s.mu.Unlock()

	if !s.session.IsAuthenticated {
		return errors.ErrNoSession
	}
	return s.setUserLocked(user)
}

// SetCompanyStatus records the company status in memory only.
func (s *State) SetCompanyStatus(status users.CompanyStatus) {
	s.mu.Lock()
	defer s.notifyAfter(s.snapshotLocked)()
	defer s.mu.Unlock()

	s.session.CompanyStatus = status
}

// ApplyProfile writes a freshly fetched user and company status, but only if
// the session is still the generation the fetch was started under.
func (s *State) ApplyProfile(generation uint64, user *users.User, status users.CompanyStatus) error {
	s.mu.Lock()
	defer s.notifyAfter(s.snapshotLocked)()
	defer s.mu.Unlock()

	if !s.session.IsAuthenticated || s.generation != generation {
		return errors.ErrSessionChanged
	}
	if err := s.setUserLocked(user); err != nil {
		return err
	}
	s.session.CompanyStatus = status
	return nil
}

// Logout purges the persisted keys and resets every field. Calling it on an
// empty session is a no-op apart from the purge.
func (s *State) Logout() {
	s.mu.Lock()
	defer s.notifyAfter(s.snapshotLocked)()
	defer s.mu.Unlock()

	s.purgeLocked()
}

func (s *State) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Token
}

func (s *State) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated
}

func (s *State) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAdmin
}

func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Subscribe registers fn to receive a snapshot after every change. The
// returned func removes the subscription.
func (s *State) Subscribe(fn func(Session)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *State) setUserLocked(user *users.User) error {
	if user == nil {
		return fmt.Errorf("[State SetUser] user is required")
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return errors.Wrapf(err, "[State SetUser] encode user")
	}
	if err := s.repo.Set(KeyUser, string(rawUser)); err != nil {
		return errors.Wrapf(err, "[State SetUser] persist user")
	}
	s.session.User = user.Clone()
	return nil
}

func (s *State) establishLocked(token string, user *users.User, isAdmin bool) {
	s.generation++
	s.session = Session{
		Token:           token,
		User:            user,
		IsAdmin:         isAdmin,
		IsAuthenticated: true,
		Generation:      s.generation,
	}
}

// restoreLocked rewrites the current session's keys after a partial write.
// Without a session to fall back on, or if the rewrite fails too, storage is
// purged so a restart never pairs one login's token with another's user.
func (s *State) restoreLocked() {
	if !s.session.IsAuthenticated {
		s.purgeLocked()
		return
	}
	rawUser, err := json.Marshal(s.session.User)
	if err == nil {
		err = s.repo.Set(KeyAccessToken, s.session.Token)
	}
	if err == nil {
		err = s.repo.Set(KeyUser, string(rawUser))
	}
	if err == nil {
		err = s.repo.Set(KeyIsAdmin, strconv.FormatBool(s.session.IsAdmin))
	}
	if err != nil {
		s.log.Error().Err(err).Msg("failed to restore stored session, clearing it")
		s.purgeLocked()
	}
}

func (s *State) purgeLocked() {
	if err := s.repo.Delete(Keys...); err != nil {
		s.log.Error().Err(err).Msg("failed to purge stored session")
	}
	if s.session == (Session{Generation: s.generation}) {
		return
	}
	s.generation++
	s.session = Session{Generation: s.generation}
}

func (s *State) snapshotLocked() Session {
	c := s.session
	c.User = s.session.User.Clone()
	return c
}

// notifyAfter captures the session before a mutation and returns a func that,
// once the lock is released, publishes the new snapshot if anything changed.
func (s *State) notifyAfter(snapshot func() Session) func() {
	before := snapshot()
	return func() {
		s.mu.RLock()
		after := s.snapshotLocked()
		s.mu.RUnlock()

		if sameSession(before, after) {
			return
		}

		s.subMu.Lock()
		subs := make([]func(Session), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
		s.subMu.Unlock()

		for _, fn := range subs {
			fn(after)
		}
	}
}

func sameSession(a, b Session) bool {
	if a.Token != b.Token || a.IsAdmin != b.IsAdmin || a.IsAuthenticated != b.IsAuthenticated ||
		a.CompanyStatus != b.CompanyStatus || a.Generation != b.Generation {
		return false
	}
	if (a.User == nil) != (b.User == nil) {
		return false
	}
	if a.User == nil {
		return true
	}
	ra, _ := json.Marshal(a.User)
	rb, _ := json.Marshal(b.User)
	return string(ra) == string(rb)
}

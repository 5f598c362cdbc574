package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/internal/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const (
	DefaultInterval = 30 * time.Second
	DefaultPageSize = 50
)

// API is the customs notifications API as used by the syncer.
type API interface {
	List(ctx context.Context, opts customsapi.ListOptions) (*customsapi.NotificationList, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, ids ...int64) error
	MarkOneRead(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context) error
	SetSound(ctx context.Context, enabled bool) error
	SoundStatus(ctx context.Context) (bool, error)
}

// Session tells the syncer whether results may still be applied. A result
// fetched under one session generation is dropped if the session has since
// changed.
type Session interface {
	IsAuthenticated() bool
	Generation() uint64
}

// Syncer polls the API into a Store and sends operator actions to the API
// before applying them locally.
type Syncer struct {
	store    *Store
	api      API
	session  Session
	interval time.Duration
	pageSize int
	log      zerolog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

type Option func(*Syncer)

func WithInterval(d time.Duration) Option {
	return func(s *Syncer) {
		s.interval = d
	}
}

func WithPageSize(n int) Option {
	return func(s *Syncer) {
		s.pageSize = n
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Syncer) {
		s.log = l
	}
}

func NewSyncer(store *Store, api API, session Session, opts ...Option) (*Syncer, error) {
	if store == nil || api == nil || session == nil {
		return nil, fmt.Errorf("[notifications NewSyncer] store, api and session are required")
	}
	s := &Syncer{
		store:    store,
		api:      api,
		session:  session,
		interval: DefaultInterval,
		pageSize: DefaultPageSize,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.interval < time.Second {
		return nil, fmt.Errorf("[notifications NewSyncer] poll interval %s is below one second", s.interval)
	}
	if s.pageSize <= 0 {
		return nil, fmt.Errorf("[notifications NewSyncer] page size must be positive")
	}
	return s, nil
}

// Start loads the panel and begins polling. Calling Start while running is
// a no-op. The sound setting is fetched in the background.
func (s *Syncer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cron != nil {
		s.mu.Unlock()
		return nil
	}
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger{s.log}),
		cron.SkipIfStillRunning(cronLogger{s.log}),
	))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.poll(pollCtx) }); err != nil {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("[Syncer Start] schedule poll: %w", err)
	}
	s.cron = c
	s.cancel = cancel
	c.Start()
	s.mu.Unlock()

	go s.loadSound(pollCtx)

	s.log.Debug().Dur("interval", s.interval).Msg("notification polling started")
	return s.Refresh(ctx)
}

// Stop cancels polling and any request it has in flight. Safe to call when
// not running.
func (s *Syncer) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.log.Debug().Msg("notification polling stopped")
}

func (s *Syncer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Refresh fetches the first page and the unread counter.
func (s *Syncer) Refresh(ctx context.Context) error {
	gen := s.session.Generation()
	list, err := s.api.List(ctx, customsapi.ListOptions{Limit: s.pageSize})
	if err != nil {
		return errors.Wrapf(err, "[Syncer Refresh] list notifications")
	}
	if !s.current(gen) {
		return nil
	}
	s.store.SetNotifications(list.Notifications, list.UnreadCount)
	return nil
}

// RefreshUnread fetches only the unread counter.
func (s *Syncer) RefreshUnread(ctx context.Context) error {
	gen := s.session.Generation()
	count, err := s.api.UnreadCount(ctx)
	if err != nil {
		return errors.Wrapf(err, "[Syncer RefreshUnread] unread count")
	}
	if s.current(gen) {
		s.store.SetUnreadCount(count)
	}
	return nil
}

// poll keeps the bell counter current while the panel is closed and the
// whole first page current while it is open. Opening the panel refreshes
// the page.
func (s *Syncer) poll(ctx context.Context) {
	if !s.session.IsAuthenticated() {
		return
	}
	refresh := s.RefreshUnread
	if s.store.Snapshot().IsOpen {
		refresh = s.Refresh
	}
	if err := refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Msg("notification poll failed")
	}
}

func (s *Syncer) loadSound(ctx context.Context) {
	gen := s.session.Generation()
	enabled, err := s.api.SoundStatus(ctx)
	if err != nil {
		s.log.Debug().Err(err).Msg("sound status unavailable")
		return
	}
	if s.current(gen) {
		s.store.SetSoundEnabled(enabled)
	}
}

// MarkAsRead marks one notification read on the server, then locally.
func (s *Syncer) MarkAsRead(ctx context.Context, id int64) error {
	gen := s.session.Generation()
	if err := s.api.MarkOneRead(ctx, id); err != nil {
		return errors.Wrapf(err, "[Syncer MarkAsRead] %d", id)
	}
	if s.current(gen) {
		s.store.MarkAsRead(id)
	}
	return nil
}

// Delete removes one notification on the server, then locally.
func (s *Syncer) Delete(ctx context.Context, id int64) error {
	gen := s.session.Generation()
	if err := s.api.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "[Syncer Delete] %d", id)
	}
	if s.current(gen) {
		s.store.Remove(id)
	}
	return nil
}

// MarkAllRead marks everything read, zeroes the counter and reloads the list.
func (s *Syncer) MarkAllRead(ctx context.Context) error {
	gen := s.session.Generation()
	if err := s.api.MarkRead(ctx); err != nil {
		return errors.Wrapf(err, "[Syncer MarkAllRead] mark read")
	}
	if !s.current(gen) {
		return nil
	}
	s.store.MarkAllRead()

	list, err := s.api.List(ctx, customsapi.ListOptions{Limit: s.pageSize})
	if err != nil {
		return errors.Wrapf(err, "[Syncer MarkAllRead] reload")
	}
	if s.current(gen) {
		s.store.SetNotifications(list.Notifications, 0)
	}
	return nil
}

// ClearAll deletes every notification on the server, then locally.
func (s *Syncer) ClearAll(ctx context.Context) error {
	gen := s.session.Generation()
	if err := s.api.DeleteAll(ctx); err != nil {
		return errors.Wrapf(err, "[Syncer ClearAll] delete all")
	}
	if s.current(gen) {
		s.store.ClearAll()
	}
	return nil
}

// ToggleSound stores the sound setting on the server, then locally.
func (s *Syncer) ToggleSound(ctx context.Context, enabled bool) error {
	gen := s.session.Generation()
	if err := s.api.SetSound(ctx, enabled); err != nil {
		return errors.Wrapf(err, "[Syncer ToggleSound] %t", enabled)
	}
	if s.current(gen) {
		s.store.SetSoundEnabled(enabled)
	}
	return nil
}

// current reports whether a result fetched under gen may be applied.
func (s *Syncer) current(gen uint64) bool {
	if !s.session.IsAuthenticated() || s.session.Generation() != gen {
		s.log.Debug().Msg("session changed, discarding notification result")
		return false
	}
	return true
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

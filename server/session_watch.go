package server

import (
	"context"

	"github.com/jrsteele09/customs-console/sessions"
)

// watchSession keeps notification polling in step with the session: running
// while a non-admin operator of an active company is signed in, stopped and
// cleared otherwise.
// Session changes only nudge the watcher; it always acts on the latest state,
// so a logout raised from inside a poll cannot block on that poll.
func (s *Server) watchSession() {
	ctx, cancel := context.WithCancel(context.Background())
	s.watchKick = make(chan struct{}, 1)
	s.watchCancel = cancel
	s.watchDone = make(chan struct{})

	unsubscribe := s.session.Subscribe(func(sessions.Session) {
		s.kickWatcher()
	})
	s.kickWatcher()

	go func() {
		defer close(s.watchDone)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.watchKick:
				s.reconcileNotifications(ctx)
			}
		}
	}()
}

func (s *Server) kickWatcher() {
	select {
	case s.watchKick <- struct{}{}:
	default:
	}
}

func (s *Server) reconcileNotifications(ctx context.Context) {
	snap := s.session.Snapshot()
	want := snap.IsAuthenticated && !snap.IsAdmin && snap.CompanyStatus.IsActive()

	switch {
	case want && !s.syncer.Running():
		if err := s.syncer.Start(ctx); err != nil {
			s.log.Warn().Err(err).Msg("initial notification load failed")
		}
	case !want && s.syncer.Running():
		s.syncer.Stop()
		s.panel.Reset()
	case !want:
		s.panel.Reset()
	}
}

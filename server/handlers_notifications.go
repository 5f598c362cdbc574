package server

import (
	"context"
	"net/http"
	"strconv"
)

const notificationPanelPartial = "notification_panel"

// NotificationPanelHandler renders the bell and, when open, the panel.
func (s *Server) NotificationPanelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPanel(w, r)
	}
}

// NotificationToggleHandler opens or closes the panel. Opening it refreshes
// the list.
func (s *Server) NotificationToggleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.panel.TogglePanel()
		if s.panel.Snapshot().IsOpen {
			if err := s.syncer.Refresh(r.Context()); err != nil {
				s.log.Debug().Err(err).Msg("panel refresh failed")
			}
		}
		s.respondPanel(w, r)
	}
}

func (s *Server) NotificationCloseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.panel.ClosePanel()
		s.renderPanel(w, r)
	}
}

func (s *Server) NotificationReadAllHandler() http.HandlerFunc {
	return s.panelAction(func(ctx context.Context, _ *http.Request) error {
		return s.syncer.MarkAllRead(ctx)
	})
}

// NotificationSoundHandler stores the sound preference sent as enabled=true
// or enabled=false.
func (s *Server) NotificationSoundHandler() http.HandlerFunc {
	return s.panelAction(func(ctx context.Context, r *http.Request) error {
		return s.syncer.ToggleSound(ctx, r.FormValue("enabled") == "true")
	})
}

func (s *Server) NotificationReadHandler() http.HandlerFunc {
	return s.notificationAction(s.syncer.MarkAsRead)
}

func (s *Server) NotificationDeleteHandler() http.HandlerFunc {
	return s.notificationAction(s.syncer.Delete)
}

func (s *Server) NotificationClearHandler() http.HandlerFunc {
	return s.panelAction(func(ctx context.Context, _ *http.Request) error {
		return s.syncer.ClearAll(ctx)
	})
}

// notificationAction runs fn on the notification named in the path.
func (s *Server) notificationAction(fn func(context.Context, int64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "Invalid notification id", http.StatusBadRequest)
			return
		}
		s.panelAction(func(ctx context.Context, _ *http.Request) error {
			return fn(ctx, id)
		})(w, r)
	}
}

// panelAction runs a server-side change and re-renders the panel. A failed
// change has already been reported by the API gateway.
func (s *Server) panelAction(fn func(context.Context, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		if err := fn(r.Context(), r); err != nil {
			s.log.Debug().Err(err).Str("request_id", requestID(r)).Msg("notification action failed")
		}
		s.respondPanel(w, r)
	}
}

// respondPanel re-renders the panel unless the request ended the session.
func (s *Server) respondPanel(w http.ResponseWriter, r *http.Request) {
	if followNavigation(w, r) {
		return
	}
	s.renderPanel(w, r)
}

func (s *Server) renderPanel(w http.ResponseWriter, r *http.Request) {
	s.renderPartial(w, r, notificationPanelPartial, PageData{})
}

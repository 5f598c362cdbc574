package server

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/customs-console/authflow"
	apperrors "github.com/jrsteele09/customs-console/internal/errors"
	"github.com/jrsteele09/customs-console/server/authflowrepo"
)

// AdminLoginPageHandler shows the admin login at whatever step the current
// attempt is at. Without an attempt the credentials step is shown.
func (s *Server) AdminLoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, attempt := s.loadAttempt(r)
		if from := returnPath(r); from != "" {
			attempt.ReturnURL = from
		}
		s.saveAttempt(w, r, id, attempt)
		s.renderPage(w, r, "admin_login.html", PageData{Title: "Administrator sign in", Attempt: attempt})
	}
}

func (s *Server) AdminCredentialsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		id, attempt := s.loadAttempt(r)
		if err := s.admin.SubmitCredentials(r.Context(), attempt, r.FormValue("login"), r.FormValue("password")); err != nil {
			s.formError(w, r, "admin_login.html", PageData{Title: "Administrator sign in", Attempt: attempt})
			return
		}
		s.saveAttempt(w, r, id, attempt)
		s.renderAdminStep(w, r, attempt)
	}
}

func (s *Server) AdminCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		id, attempt := s.loadAttempt(r)
		location, err := s.admin.SubmitCode(r.Context(), attempt, r.FormValue("code"))
		if err != nil {
			if followNavigation(w, r) {
				return
			}
			// The attempt keeps its credentials so the code can be retried.
			s.saveAttempt(w, r, id, attempt)
			s.renderAdminStep(w, r, attempt)
			return
		}
		s.clearAttempt(w, id)
		s.log.Info().Str("login", attempt.Login).Msg("administrator signed in")
		redirectSuccess(w, r, location)
	}
}

// AdminBackHandler returns the attempt to the credentials step.
func (s *Server) AdminBackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, attempt := s.loadAttempt(r)
		attempt.Back()
		s.saveAttempt(w, r, id, attempt)
		s.renderAdminStep(w, r, attempt)
	}
}

func (s *Server) renderAdminStep(w http.ResponseWriter, r *http.Request, attempt *authflow.Attempt) {
	data := PageData{Title: "Administrator sign in", Attempt: attempt}
	if isHTMXRequest(r) {
		s.renderPartial(w, r, "admin_login_form", data)
		return
	}
	s.renderPage(w, r, "admin_login.html", data)
}

// loadAttempt returns the attempt named by the operator's cookie. A missing
// or expired attempt is replaced by a fresh one under a new id.
func (s *Server) loadAttempt(r *http.Request) (string, *authflow.Attempt) {
	if c, err := r.Cookie(attemptCookieName); err == nil && c.Value != "" {
		attempt, err := s.attempts.Get(c.Value)
		if err == nil {
			return c.Value, attempt
		}
		if !errors.Is(err, apperrors.ErrAttemptNotFound) {
			s.log.Warn().Err(err).Msg("failed to load admin login attempt")
		}
	}
	return uuid.NewString(), authflow.NewAttempt(s.now())
}

func (s *Server) saveAttempt(w http.ResponseWriter, r *http.Request, id string, attempt *authflow.Attempt) {
	if err := s.attempts.Upsert(id, attempt); err != nil {
		s.log.Error().Err(err).Str("request_id", requestID(r)).Msg("failed to store admin login attempt")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     attemptCookieName,
		Value:    id,
		Path:     RouteAdminLogin,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(authflowrepo.DefaultTTL.Seconds()),
	})
}

func (s *Server) clearAttempt(w http.ResponseWriter, id string) {
	if err := s.attempts.Delete(id); err != nil && !errors.Is(err, apperrors.ErrAttemptNotFound) {
		s.log.Warn().Err(err).Msg("failed to delete admin login attempt")
	}
	http.SetCookie(w, &http.Cookie{
		Name:     attemptCookieName,
		Value:    "",
		Path:     RouteAdminLogin,
		HttpOnly: true,
		MaxAge:   -1,
	})
}

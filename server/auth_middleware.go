package server

import (
	"net/http"

	"github.com/jrsteele09/customs-console/guard"
)

// RequireSession runs the standard guard before a protected page. Nothing is
// written until the check has finished; the profile and company status are
// re-read from the API on every navigation.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			res := s.guard.Check(r.Context(), r.URL.RequestURI())
			switch res.Decision {
			case guard.Granted:
				next(w, r)
			case guard.Abandoned:
				// The operator navigated away; nobody is waiting for a response.
			default:
				s.log.Debug().Str("path", r.URL.Path).Stringer("decision", res.Decision).Msg("guard redirect")
				redirectSuccess(w, r, res.Location)
			}
		}
	}
}

// RequireAdmin runs the admin guard. It only consults the local session.
func (s *Server) RequireAdmin() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			res := s.guard.CheckAdmin(r.URL.RequestURI())
			if res.Decision != guard.Granted {
				redirectSuccess(w, r, res.Location)
				return
			}
			next(w, r)
		}
	}
}

// RequireOperator protects htmx partials inside the main area. The page that
// loaded them has already been through RequireSession, so this only checks
// the local session and leaves re-validation to the next navigation. Until a
// guard check has seen an active company the partials are not served.
func (s *Server) RequireOperator() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			snap := s.session.Snapshot()
			switch {
			case !snap.IsAuthenticated:
				redirectSuccess(w, r, guard.PathLogin)
			case snap.IsAdmin:
				redirectSuccess(w, r, guard.PathAdminDashboard)
			case !snap.CompanyStatus.IsActive():
				redirectSuccess(w, r, guard.PathCompanySetup)
			default:
				next(w, r)
			}
		}
	}
}

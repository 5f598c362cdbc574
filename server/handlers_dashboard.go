package server

import "net/http"

// DashboardHandler renders the operator's home page. RequireSession has
// already re-validated the session.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, "dashboard.html", PageData{Title: "Dashboard"})
	}
}

func (s *Server) AdminDashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, "admin_dashboard.html", PageData{Title: "Administration"})
	}
}

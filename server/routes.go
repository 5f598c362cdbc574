package server

import (
	"net/http"
	"strings"
)

func (s *Server) initRoutes() {
	html := s.HTMLMiddleWare

	// Root and anything unknown
	s.RegisterRouteHandler("GET /", ChainMiddleware(s.RootHandler(), html()...))

	// Public auth pages
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteLogin, ChainMiddleware(s.LoginSubmitHandler(), html()...))
	s.RegisterRouteHandler("GET "+RouteRegister, ChainMiddleware(s.RegisterPageHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteRegister, ChainMiddleware(s.RegisterSubmitHandler(), html()...))
	s.RegisterRouteHandler("GET "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordPageHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordSubmitHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), html()...))

	// Admin login
	s.RegisterRouteHandler("GET "+RouteAdminLogin, ChainMiddleware(s.AdminLoginPageHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteAdminLoginCredentials, ChainMiddleware(s.AdminCredentialsHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteAdminLoginCode, ChainMiddleware(s.AdminCodeHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteAdminLoginBack, ChainMiddleware(s.AdminBackHandler(), html()...))

	// Company setup is reachable without the standard guard
	s.RegisterRouteHandler("GET "+RouteCompanySetup, ChainMiddleware(s.CompanySetupPageHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteCompanyLookup, ChainMiddleware(s.CompanyLookupHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteCompanyCreate, ChainMiddleware(s.CompanyCreateHandler(), html()...))
	s.RegisterRouteHandler("POST "+RouteCompanyJoin, ChainMiddleware(s.CompanyJoinHandler(), html()...))

	// Protected areas
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), html(s.RequireSession())...))
	s.RegisterRouteHandler("GET "+RouteAdminDashboard, ChainMiddleware(s.AdminDashboardHandler(), html(s.RequireAdmin())...))

	// Notification panel
	operator := html(s.RequireOperator())
	s.RegisterRouteHandler("GET "+RouteNotificationsPanel, ChainMiddleware(s.NotificationPanelHandler(), operator...))
	s.RegisterRouteHandler("POST "+RouteNotificationsToggle, ChainMiddleware(s.NotificationToggleHandler(), operator...))
	s.RegisterRouteHandler("POST "+RouteNotificationsClose, ChainMiddleware(s.NotificationCloseHandler(), operator...))
	s.RegisterRouteHandler("POST "+RouteNotificationsReadAll, ChainMiddleware(s.NotificationReadAllHandler(), operator...))
	s.RegisterRouteHandler("POST "+RouteNotificationsSound, ChainMiddleware(s.NotificationSoundHandler(), operator...))
	s.RegisterRouteHandler("POST "+RouteNotificationRead, ChainMiddleware(s.NotificationReadHandler(), operator...))
	s.RegisterRouteHandler("DELETE "+RouteNotification, ChainMiddleware(s.NotificationDeleteHandler(), operator...))
	s.RegisterRouteHandler("DELETE "+RouteNotifications, ChainMiddleware(s.NotificationClearHandler(), operator...))

	s.RegisterRouteHandler("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteStaticJS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

// RootHandler sends the root and every unknown path to the login page.
func (s *Server) RootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirectSuccess(w, r, RouteLogin)
	}
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := strings.TrimPrefix(r.URL.Path, "/")
		if filePath == "" {
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
		if err := StreamFile(w, r, filePath); err != nil {
			s.log.Warn().Err(err).Str("path", filePath).Msg("static file not served")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
			return
		}
	}
}

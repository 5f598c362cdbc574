package server

// Route path constants
// All console routes are defined here to ensure consistency and prevent typos
const (
	// Public auth pages
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteForgotPassword = "/forgot-password"
	RouteLogout         = "/logout"

	// Admin login, two steps
	RouteAdminLogin            = "/admin/login"
	RouteAdminLoginCredentials = "/admin/login/credentials"
	RouteAdminLoginCode        = "/admin/login/code"
	RouteAdminLoginBack        = "/admin/login/back"

	// Company setup
	RouteCompanySetup  = "/company-setup"
	RouteCompanyLookup = "/company-setup/lookup"
	RouteCompanyCreate = "/company-setup/create"
	RouteCompanyJoin   = "/company-setup/join"

	// Protected areas
	RouteDashboard      = "/dashboard"
	RouteAdminDashboard = "/admin/dashboard"

	// Notification panel partials
	RouteNotificationsPanel   = "/notifications/panel"
	RouteNotificationsToggle  = "/notifications/toggle"
	RouteNotificationsClose   = "/notifications/close"
	RouteNotificationsReadAll = "/notifications/read-all"
	RouteNotificationsSound   = "/notifications/sound"
	RouteNotificationRead     = "/notifications/{id}/read"
	RouteNotification         = "/notifications/{id}"
	RouteNotifications        = "/notifications"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
	RouteStaticJS  = "/js/{file}"
)

const attemptCookieName = "admin_login_attempt"

package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/customs-console/authflow"
	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/guard"
	"github.com/jrsteele09/customs-console/internal/config"
	"github.com/jrsteele09/customs-console/notifications"
	"github.com/jrsteele09/customs-console/server/authflowrepo"
	"github.com/jrsteele09/customs-console/server/ui"
	"github.com/jrsteele09/customs-console/sessions"
	"github.com/rs/zerolog"
)

// Server is the operator console: HTML pages and htmx partials in front of
// the customs API, for the one operator whose session the process holds.
type Server struct {
	env    string // Environment (e.g., "DEV", "PROD")
	mux    *http.ServeMux
	routes []string
	log    zerolog.Logger

	session  *sessions.State
	guard    *guard.Guard
	login    *authflow.LoginFlow
	admin    *authflow.AdminFlow
	company  *authflow.CompanyFlow
	attempts authflowrepo.Repo
	panel    *notifications.Store
	syncer   *notifications.Syncer
	flash    *FlashQueue
	now      func() time.Time

	pages    map[string]*template.Template
	partials *template.Template

	watchKick   chan struct{}
	watchCancel context.CancelFunc
	watchDone   chan struct{}
	closeOnce   sync.Once
}

type Option func(*options)

type options struct {
	log        zerolog.Logger
	httpClient *http.Client
	now        func() time.Time
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithHTTPClient replaces the client used for customs API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

func WithNowTime(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New wires the console around an already loaded session. Notification
// polling follows the session: it runs while a non-admin operator is signed
// in.
func New(cfg config.Config, session *sessions.State, attempts authflowrepo.Repo, opts ...Option) (*Server, error) {
	if cfg == nil || session == nil || attempts == nil {
		return nil, fmt.Errorf("[Server New] config, session and attempt repo are required")
	}
	o := options{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	flash := NewFlashQueue(defaultFlashCapacity)
	gwOpts := []gateway.Option{
		gateway.WithTimeout(cfg.GetAPITimeout()),
		gateway.WithNotifier(flash),
		gateway.WithNavigator(RequestNavigator{}),
		gateway.WithLogger(o.log.With().Str("component", "gateway").Logger()),
	}
	if o.httpClient != nil {
		gwOpts = append(gwOpts, gateway.WithHTTPClient(o.httpClient))
	}
	gw, err := gateway.New(cfg.GetAPIBaseURL(), session, gwOpts...)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create API gateway: %w", err)
	}
	authAPI := customsapi.NewAuthAPI(gw)

	s := &Server{
		env:      cfg.GetEnv(),
		mux:      http.NewServeMux(),
		log:      o.log,
		session:  session,
		attempts: attempts,
		panel:    notifications.NewStore(),
		flash:    flash,
		now:      o.now,
	}

	if s.guard, err = guard.New(session, authAPI, guard.WithLogger(o.log)); err != nil {
		return nil, fmt.Errorf("[Server New] failed to create route guard: %w", err)
	}
	flowOpts := []authflow.Option{authflow.WithNotifier(flash), authflow.WithLogger(o.log)}
	if s.login, err = authflow.NewLoginFlow(session, authAPI, flowOpts...); err != nil {
		return nil, fmt.Errorf("[Server New] failed to create login flow: %w", err)
	}
	if s.admin, err = authflow.NewAdminFlow(session, authAPI, flowOpts...); err != nil {
		return nil, fmt.Errorf("[Server New] failed to create admin login flow: %w", err)
	}
	if s.company, err = authflow.NewCompanyFlow(session, authAPI, flowOpts...); err != nil {
		return nil, fmt.Errorf("[Server New] failed to create company flow: %w", err)
	}
	s.syncer, err = notifications.NewSyncer(s.panel, customsapi.NewNotificationsAPI(gw), session,
		notifications.WithInterval(cfg.GetNotificationPollInterval()),
		notifications.WithPageSize(cfg.GetNotificationPageSize()),
		notifications.WithLogger(o.log.With().Str("component", "notifications").Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to create notification syncer: %w", err)
	}

	if err := s.parseTemplates(); err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse templates: %w", err)
	}

	s.initRoutes()
	s.logRoutes()
	s.watchSession()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops notification polling. The server must not be used afterwards.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.watchCancel()
		<-s.watchDone
		s.syncer.Stop()
	})
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := ui.MethodColors[method]; ok {
		displayMethod = color + paddedMethod + ui.ResetColor
	} else {
		displayMethod = ui.Gray + paddedMethod + ui.ResetColor
	}
	s.log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Package authflow drives the console's login, registration and company
// setup interactions against the customs API. Flows never present API errors
// themselves; the gateway already has by the time a flow sees one.
package authflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/users"
	"github.com/rs/zerolog"
)

// Pages the flows send the operator to
const (
	PathLogin          = "/login"
	PathDashboard      = "/dashboard"
	PathAdminDashboard = "/admin/dashboard"
	PathCompanySetup   = "/company-setup"
)

// Session is the part of sessions.State the flows write to.
type Session interface {
	SetAuth(token string, user *users.User, isAdmin bool) error
	SetCompanyStatus(status users.CompanyStatus)
}

// AuthService is the customs auth API as used by the flows.
type AuthService interface {
	Login(ctx context.Context, req customsapi.LoginRequest, opts ...gateway.RequestOption) (*customsapi.TokenResponse, error)
	AdminLogin(ctx context.Context, req customsapi.AdminLoginRequest, opts ...gateway.RequestOption) (*customsapi.TokenResponse, error)
	Register(ctx context.Context, req customsapi.RegisterRequest) (*customsapi.RegisterResponse, error)
	ForgotPassword(ctx context.Context, req customsapi.ForgotPasswordRequest) error
	Me(ctx context.Context, opts ...gateway.RequestOption) (*users.User, error)
	CompanyStatus(ctx context.Context, opts ...gateway.RequestOption) (users.CompanyStatus, error)
	LookupCompany(ctx context.Context, inn string) (*customsapi.CompanyLookupResponse, error)
	CreateCompany(ctx context.Context, req customsapi.CompanyCreateRequest) error
	JoinCompany(ctx context.Context, inn string) error
}

type deps struct {
	session  Session
	api      AuthService
	notifier gateway.Notifier
	log      zerolog.Logger
}

type Option func(*deps)

func WithNotifier(n gateway.Notifier) Option {
	return func(d *deps) {
		d.notifier = n
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(d *deps) {
		d.log = l
	}
}

func newDeps(fn string, session Session, api AuthService, opts []Option) (deps, error) {
	if session == nil || api == nil {
		return deps{}, fmt.Errorf("[%s] session and auth service are required", fn)
	}
	d := deps{session: session, api: api, notifier: silent{}, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&d)
	}
	return d, nil
}

type silent struct{}

func (silent) Notify(context.Context, gateway.Level, string) {}

// commit fetches the profile with a token that is not yet in the session and
// only then establishes the session.
func (d deps) commit(ctx context.Context, token string, isAdmin bool) (*users.User, error) {
	user, err := d.api.Me(ctx, gateway.WithBearer(token))
	if err != nil {
		return nil, err
	}
	if err := d.session.SetAuth(token, user, isAdmin); err != nil {
		d.log.Error().Err(err).Msg("failed to persist session")
		return nil, err
	}
	return user, nil
}

// safeReturn accepts only local, non-auth paths as a post-login destination.
func safeReturn(from, fallback string) string {
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || gateway.IsPublicPath(from) {
		return fallback
	}
	return from
}

package guard

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/internal/errors"
	"github.com/jrsteele09/customs-console/sessions"
	"github.com/jrsteele09/customs-console/users"
	"github.com/rs/zerolog"
)

// Page paths the guards send operators to
const (
	PathLogin          = "/login"
	PathAdminLogin     = "/admin/login"
	PathDashboard      = "/dashboard"
	PathAdminDashboard = "/admin/dashboard"
	PathCompanySetup   = "/company-setup"
)

type Decision int

const (
	Granted Decision = iota
	RedirectLogin
	RedirectAdminHome
	RedirectCompanySetup
	RedirectDashboard
	// Abandoned means the request went away before the check finished.
	Abandoned
)

func (d Decision) String() string {
	switch d {
	case Granted:
		return "granted"
	case RedirectLogin:
		return "redirect-login"
	case RedirectAdminHome:
		return "redirect-admin-home"
	case RedirectCompanySetup:
		return "redirect-company-setup"
	case RedirectDashboard:
		return "redirect-dashboard"
	default:
		return "abandoned"
	}
}

// Result is the outcome of a guard check. Location is the redirect target,
// empty when access is granted.
type Result struct {
	Decision Decision
	Location string
}

// SessionState is the part of sessions.State the guard uses.
type SessionState interface {
	Snapshot() sessions.Session
	ApplyProfile(generation uint64, user *users.User, status users.CompanyStatus) error
	Logout()
}

// ProfileSource re-reads the operator's identity from the API.
type ProfileSource interface {
	Me(ctx context.Context, opts ...gateway.RequestOption) (*users.User, error)
	CompanyStatus(ctx context.Context, opts ...gateway.RequestOption) (users.CompanyStatus, error)
}

// Guard gates the main and admin areas of the console.
type Guard struct {
	session SessionState
	profile ProfileSource
	latest  atomic.Uint64
	log     zerolog.Logger
}

type Option func(*Guard)

func WithLogger(l zerolog.Logger) Option {
	return func(g *Guard) {
		g.log = l
	}
}

func New(session SessionState, profile ProfileSource, opts ...Option) (*Guard, error) {
	if session == nil || profile == nil {
		return nil, fmt.Errorf("[guard New] session and profile source are required")
	}
	g := &Guard{session: session, profile: profile, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Check runs the standard guard for location. It always re-validates the
// user and company status against the API; nothing is cached between
// navigations. A check that was superseded by a newer one, or whose session
// was replaced while it ran, does not write into the session.
func (g *Guard) Check(ctx context.Context, location string) Result {
	snap := g.session.Snapshot()
	if !snap.IsAuthenticated {
		return loginRedirect(PathLogin, location)
	}

	id := g.latest.Add(1)

	user, err := g.profile.Me(ctx)
	var status users.CompanyStatus
	if err == nil {
		status, err = g.profile.CompanyStatus(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{Decision: Abandoned}
		}
		if g.session.Snapshot().Generation == snap.Generation {
			g.log.Info().Err(err).Str("location", location).Msg("session re-validation failed, logging out")
			g.session.Logout()
		}
		return loginRedirect(PathLogin, location)
	}

	if g.latest.Load() == id {
		err := g.session.ApplyProfile(snap.Generation, user, status)
		switch {
		case errors.Is(err, errors.ErrSessionChanged):
			return loginRedirect(PathLogin, location)
		case err != nil:
			g.log.Error().Err(err).Msg("failed to store refreshed profile")
		}
	} else {
		g.log.Debug().Str("location", location).Msg("guard check superseded, not storing profile")
	}

	switch {
	case snap.IsAdmin:
		return Result{Decision: RedirectAdminHome, Location: PathAdminDashboard}
	case !status.IsActive():
		return Result{Decision: RedirectCompanySetup, Location: PathCompanySetup}
	default:
		return Result{Decision: Granted}
	}
}

// CheckAdmin runs the admin guard. It only consults the local session.
func (g *Guard) CheckAdmin(location string) Result {
	snap := g.session.Snapshot()
	switch {
	case !snap.IsAuthenticated:
		return loginRedirect(PathAdminLogin, location)
	case !snap.IsAdmin:
		return Result{Decision: RedirectDashboard, Location: PathDashboard}
	default:
		return Result{Decision: Granted}
	}
}

// loginRedirect keeps the attempted location so login can return to it.
func loginRedirect(loginPath, from string) Result {
	target := loginPath
	if from != "" && from != loginPath {
		target += "?from=" + url.QueryEscape(from)
	}
	return Result{Decision: RedirectLogin, Location: target}
}

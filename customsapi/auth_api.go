package customsapi

import (
	"context"

	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/users"
)

const (
	PathLogin          = "/api/auth/login"
	PathAdminLogin     = "/api/auth/admin/login"
	PathRegister       = "/api/auth/register"
	PathForgotPassword = "/api/auth/forgot-password"
	PathMe             = "/api/auth/me"
	PathCompanyStatus  = "/api/auth/me/company-status"
	PathCompanyLookup  = "/api/auth/company/lookup"
	PathCompanyCreate  = "/api/auth/company/create"
	PathCompanyJoin    = "/api/auth/company/join"
)

// AuthAPI wraps the /api/auth endpoints.
type AuthAPI struct {
	gw *gateway.Client
}

func NewAuthAPI(gw *gateway.Client) *AuthAPI {
	return &AuthAPI{gw: gw}
}

// Login and AdminLogin never send the session token.
func (a *AuthAPI) Login(ctx context.Context, req LoginRequest, opts ...gateway.RequestOption) (*TokenResponse, error) {
	var out TokenResponse
	if err := a.gw.Post(ctx, PathLogin, req, &out, append(opts, gateway.Anonymous())...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) AdminLogin(ctx context.Context, req AdminLoginRequest, opts ...gateway.RequestOption) (*TokenResponse, error) {
	var out TokenResponse
	if err := a.gw.Post(ctx, PathAdminLogin, req, &out, append(opts, gateway.Anonymous())...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var out RegisterResponse
	if err := a.gw.Post(ctx, PathRegister, req, &out, gateway.Anonymous()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	return a.gw.Post(ctx, PathForgotPassword, req, nil, gateway.Anonymous())
}

// Me fetches the current user. Pass gateway.WithBearer to use a token that
// hasn't been committed to the session yet.
func (a *AuthAPI) Me(ctx context.Context, opts ...gateway.RequestOption) (*users.User, error) {
	var out users.User
	if err := a.gw.Get(ctx, PathMe, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) CompanyStatus(ctx context.Context, opts ...gateway.RequestOption) (users.CompanyStatus, error) {
	var out CompanyStatusResponse
	if err := a.gw.Get(ctx, PathCompanyStatus, &out, opts...); err != nil {
		return users.CompanyUnset, err
	}
	return users.ParseCompanyStatus(out.Status), nil
}

func (a *AuthAPI) LookupCompany(ctx context.Context, inn string) (*CompanyLookupResponse, error) {
	var out CompanyLookupResponse
	if err := a.gw.Post(ctx, PathCompanyLookup, CompanyJoinRequest{INN: inn}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) CreateCompany(ctx context.Context, req CompanyCreateRequest) error {
	return a.gw.Post(ctx, PathCompanyCreate, req, nil)
}

func (a *AuthAPI) JoinCompany(ctx context.Context, inn string) error {
	return a.gw.Post(ctx, PathCompanyJoin, CompanyJoinRequest{INN: inn}, nil)
}

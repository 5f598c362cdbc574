package authflow

import (
	"context"
	"strings"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/internal/errors"
)

// AdminFlow is the two-step admin login: credentials are collected locally,
// then sent together with the one-time code.
type AdminFlow struct {
	deps
}

func NewAdminFlow(session Session, api AuthService, opts ...Option) (*AdminFlow, error) {
	d, err := newDeps("authflow NewAdminFlow", session, api, opts)
	if err != nil {
		return nil, err
	}
	return &AdminFlow{deps: d}, nil
}

// SubmitCredentials moves the attempt to the code step. No request is made.
func (f *AdminFlow) SubmitCredentials(ctx context.Context, a *Attempt, login, password string) error {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		f.notifier.Notify(ctx, gateway.LevelError, "enter login and password")
		return errors.ErrCredentialsRequired
	}
	a.Login = login
	a.Password = password
	a.Code = ""
	a.Step = StepCode
	return nil
}

// SubmitCode exchanges the credentials and code for a token and establishes
// an admin session. It returns the page to navigate to. On any failure the
// attempt stays on the code step with the code cleared and the session is
// left untouched.
func (f *AdminFlow) SubmitCode(ctx context.Context, a *Attempt, code string) (string, error) {
	if a.Step != StepCode {
		f.notifier.Notify(ctx, gateway.LevelError, "login attempt expired, start again")
		return "", errors.ErrWrongStep
	}
	code = strings.TrimSpace(code)
	if code == "" {
		f.notifier.Notify(ctx, gateway.LevelError, "enter the code")
		return "", errors.ErrCodeRequired
	}
	a.Code = code

	tok, err := f.api.AdminLogin(ctx, customsapi.AdminLoginRequest{
		Login:    a.Login,
		Password: a.Password,
		Code:     a.Code,
	})
	if err == nil {
		_, err = f.commit(ctx, tok.AccessToken, true)
	}
	if err != nil {
		a.Code = ""
		return "", errors.Wrapf(err, "[AdminFlow SubmitCode] admin login for %s", a.Login)
	}

	f.log.Info().Str("login", a.Login).Msg("admin signed in")
	f.notifier.Notify(ctx, gateway.LevelSuccess, WelcomeMessage)
	return safeReturn(a.ReturnURL, PathAdminDashboard), nil
}

package authflow

import (
	"context"
	"strings"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/internal/errors"
	"github.com/jrsteele09/customs-console/users"
)

const (
	WelcomeMessage      = "welcome"
	InvalidLoginMessage = "invalid email or password"
)

// LoginResult is where a successful regular login leads. When the account is
// an administrator nothing has been committed yet: Admin holds an attempt
// already on the code step and the operator continues on the admin login page.
type LoginResult struct {
	Location string
	Admin    *Attempt
}

// RegisterInput is the registration form.
type RegisterInput struct {
	FullName     string
	Email        string
	Phone        string
	ActivityType users.ActivityType
	Password     string
	Confirmation string
}

// LoginFlow covers the public, non-admin auth pages.
type LoginFlow struct {
	deps
}

func NewLoginFlow(session Session, api AuthService, opts ...Option) (*LoginFlow, error) {
	d, err := newDeps("authflow NewLoginFlow", session, api, opts)
	if err != nil {
		return nil, err
	}
	return &LoginFlow{deps: d}, nil
}

// Login signs in with email and password. from is the page the operator was
// bounced from, used as the destination when it is safe.
func (f *LoginFlow) Login(ctx context.Context, email, password, from string) (LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		f.notifier.Notify(ctx, gateway.LevelError, "fill in all fields")
		return LoginResult{}, errors.ErrCredentialsRequired
	}

	tok, err := f.api.Login(ctx, customsapi.LoginRequest{Email: email, Password: password},
		gateway.WithErrorMessage(loginMessage))
	if err != nil {
		return LoginResult{}, errors.Wrapf(err, "[LoginFlow Login] %s", email)
	}

	if tok.IsAdmin {
		f.log.Info().Str("email", email).Msg("administrator credentials, code required")
		return LoginResult{
			Location: "/admin/login",
			Admin: &Attempt{
				Login:     email,
				Password:  password,
				Step:      StepCode,
				ReturnURL: from,
			},
		}, nil
	}

	if _, err := f.commit(ctx, tok.AccessToken, false); err != nil {
		return LoginResult{}, errors.Wrapf(err, "[LoginFlow Login] profile for %s", email)
	}
	f.notifier.Notify(ctx, gateway.LevelSuccess, WelcomeMessage)
	return LoginResult{Location: f.landing(ctx, from)}, nil
}

// landing picks the first page after sign-in from the company status. If the
// status can't be read the protected area's guard decides instead.
func (f *LoginFlow) landing(ctx context.Context, from string) string {
	status, err := f.api.CompanyStatus(ctx)
	if err != nil {
		f.log.Warn().Err(err).Msg("company status unavailable after sign-in")
		return safeReturn(from, PathDashboard)
	}
	f.session.SetCompanyStatus(status)
	if !status.IsActive() {
		return PathCompanySetup
	}
	return safeReturn(from, PathDashboard)
}

// loginMessage shows blocked-account messages verbatim and hides which of
// email or password was wrong.
func loginMessage(e *gateway.Error) (string, bool) {
	if strings.Contains(strings.ToLower(e.Info.Message), "blocked") {
		return e.Info.Message, true
	}
	if e.Kind == gateway.KindUnauthorized {
		return InvalidLoginMessage, true
	}
	return "", false
}

// Register creates the account, signs in with it and sends the operator to
// company setup.
func (f *LoginFlow) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.FullName == "" || in.Email == "" || in.Phone == "" || in.Password == "" {
		f.notifier.Notify(ctx, gateway.LevelError, "fill in all required fields")
		return "", errors.Wrapf(errors.ErrValidation, "[LoginFlow Register] missing fields")
	}
	if err := users.ValidatePassword(in.Password, in.Confirmation); err != nil {
		f.notifier.Notify(ctx, gateway.LevelError, err.Error())
		return "", errors.Wrapf(errors.ErrValidation, "[LoginFlow Register] %s", err)
	}
	if in.ActivityType == "" {
		in.ActivityType = users.ActivityDeclarant
	}

	res, err := f.api.Register(ctx, customsapi.RegisterRequest{
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		ActivityType: in.ActivityType,
		Password:     in.Password,
	})
	if err != nil {
		return "", errors.Wrapf(err, "[LoginFlow Register] %s", in.Email)
	}
	message := res.Message
	if message == "" {
		message = "registration successful"
	}
	f.notifier.Notify(ctx, gateway.LevelSuccess, message)

	tok, err := f.api.Login(ctx, customsapi.LoginRequest{Email: in.Email, Password: in.Password})
	if err == nil {
		_, err = f.commit(ctx, tok.AccessToken, false)
	}
	if err != nil {
		return "", errors.Wrapf(err, "[LoginFlow Register] sign in %s", in.Email)
	}
	return PathCompanySetup, nil
}

// ForgotPassword asks the API to send a reset code to the operator's
// Telegram bot.
func (f *LoginFlow) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		f.notifier.Notify(ctx, gateway.LevelError, "enter your email")
		return errors.Wrapf(errors.ErrValidation, "[LoginFlow ForgotPassword] email is required")
	}
	if err := f.api.ForgotPassword(ctx, customsapi.ForgotPasswordRequest{Email: email}); err != nil {
		return errors.Wrapf(err, "[LoginFlow ForgotPassword] %s", email)
	}
	f.notifier.Notify(ctx, gateway.LevelSuccess, "code sent to the Telegram bot")
	return nil
}

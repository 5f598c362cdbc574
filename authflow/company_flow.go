package authflow

import (
	"context"
	"strings"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/internal/errors"
	"github.com/jrsteele09/customs-console/internal/utils"
	"github.com/jrsteele09/customs-console/users"
)

// CompanyFlow is the company setup page: find a company by INN, then ask to
// join it, or ask for a new one to be registered. Both requests wait for
// approval, so the operator is sent back to the login page afterwards.
type CompanyFlow struct {
	deps
}

func NewCompanyFlow(session Session, api AuthService, opts ...Option) (*CompanyFlow, error) {
	d, err := newDeps("authflow NewCompanyFlow", session, api, opts)
	if err != nil {
		return nil, err
	}
	return &CompanyFlow{deps: d}, nil
}

func (f *CompanyFlow) checkINN(ctx context.Context, inn string) error {
	if !users.ValidateINN(inn) {
		f.notifier.Notify(ctx, gateway.LevelError, errors.ErrInvalidINN.Error())
		return errors.ErrInvalidINN
	}
	return nil
}

// Lookup finds a company by INN. A company that doesn't exist is not an
// error; the result's Found is false.
func (f *CompanyFlow) Lookup(ctx context.Context, inn string) (*customsapi.CompanyLookupResponse, error) {
	inn = strings.TrimSpace(inn)
	if err := f.checkINN(ctx, inn); err != nil {
		return nil, err
	}
	res, err := f.api.LookupCompany(ctx, inn)
	if err != nil {
		return nil, errors.Wrapf(err, "[CompanyFlow Lookup] %s", inn)
	}
	if res.Found {
		f.notifier.Notify(ctx, gateway.LevelSuccess, "company found: "+utils.Value(res.CompanyName))
	} else {
		f.notifier.Notify(ctx, gateway.LevelError, "company not found, check the INN")
	}
	return res, nil
}

// Create asks for a new company to be registered.
func (f *CompanyFlow) Create(ctx context.Context, name, inn string) (string, error) {
	name = strings.TrimSpace(name)
	inn = strings.TrimSpace(inn)
	if name == "" {
		f.notifier.Notify(ctx, gateway.LevelError, "enter the company name")
		return "", errors.Wrapf(errors.ErrValidation, "[CompanyFlow Create] name is required")
	}
	if err := f.checkINN(ctx, inn); err != nil {
		return "", err
	}
	if err := f.api.CreateCompany(ctx, customsapi.CompanyCreateRequest{Name: name, INN: inn}); err != nil {
		return "", errors.Wrapf(err, "[CompanyFlow Create] %s", inn)
	}
	f.session.SetCompanyStatus(users.CompanyPending)
	f.log.Info().Str("inn", inn).Msg("company registration requested")
	f.notifier.Notify(ctx, gateway.LevelSuccess, "company registration request sent, wait for approval")
	return PathLogin, nil
}

// Join asks to join an existing company. found reports whether the company
// was looked up first.
func (f *CompanyFlow) Join(ctx context.Context, inn string, found bool) (string, error) {
	inn = strings.TrimSpace(inn)
	if err := f.checkINN(ctx, inn); err != nil {
		return "", err
	}
	if !found {
		f.notifier.Notify(ctx, gateway.LevelError, "look up the company by INN first")
		return "", errors.Wrapf(errors.ErrValidation, "[CompanyFlow Join] company not looked up")
	}
	if err := f.api.JoinCompany(ctx, inn); err != nil {
		return "", errors.Wrapf(err, "[CompanyFlow Join] %s", inn)
	}
	f.session.SetCompanyStatus(users.CompanyPending)
	f.log.Info().Str("inn", inn).Msg("company join requested")
	f.notifier.Notify(ctx, gateway.LevelSuccess, "join request sent")
	return PathLogin, nil
}

package guard_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/customsapi/apifake"
	"github.com/jrsteele09/customs-console/gateway"
	"github.com/jrsteele09/customs-console/guard"
	"github.com/jrsteele09/customs-console/sessions"
	"github.com/jrsteele09/customs-console/users"
	"github.com/stretchr/testify/require"
)

const operatorEmail = "dilnoza@example.com"

type guardFixture struct {
	fake    *apifake.Server
	account *apifake.Account
	state   *sessions.State
	guard   *guard.Guard
}

func setupGuard(t *testing.T) *guardFixture {
	t.Helper()
	fake := apifake.New(t)
	acc := fake.AddAccount(apifake.Account{
		User:          users.User{FullName: "Dilnoza Karimova", Email: operatorEmail},
		Password:      "secret1",
		CompanyStatus: "active",
	})

	state, err := sessions.NewState(sessions.NewInMemoryRepo())
	require.NoError(t, err)
	gw, err := gateway.New(fake.URL, state)
	require.NoError(t, err)
	g, err := guard.New(state, customsapi.NewAuthAPI(gw))
	require.NoError(t, err)

	return &guardFixture{fake: fake, account: acc, state: state, guard: g}
}

func (f *guardFixture) signIn(t *testing.T, isAdmin bool) {
	t.Helper()
	user := f.account.User
	require.NoError(t, f.state.SetAuth(f.fake.IssueToken(operatorEmail), &user, isAdmin))
}

func TestNew_Validation(t *testing.T) {
	_, err := guard.New(nil, nil)
	require.Error(t, err)
}

func TestCheck_Unauthenticated(t *testing.T) {
	f := setupGuard(t)

	res := f.guard.Check(context.Background(), "/dashboard")
	require.Equal(t, guard.RedirectLogin, res.Decision)
	require.Equal(t, "/login?from=%2Fdashboard", res.Location)
	require.Zero(t, f.fake.Calls(apifake.RouteMe))
}

func TestCheck_Granted(t *testing.T) {
	f := setupGuard(t)
	f.signIn(t, false)
	f.fake.UpdateUser(operatorEmail, func(u *users.User) { u.FullName = "Dilnoza K." })

	res := f.guard.Check(context.Background(), "/dashboard")
	require.Equal(t, guard.Granted, res.Decision)
	require.Empty(t, res.Location)

	snap := f.state.Snapshot()
	require.Equal(t, "Dilnoza K.", snap.User.FullName)
	require.Equal(t, users.CompanyActive, snap.CompanyStatus)
}

func TestCheck_RevalidatesEveryTime(t *testing.T) {
	f := setupGuard(t)
	f.signIn(t, false)

	for range 3 {
		require.Equal(t, guard.Granted, f.guard.Check(context.Background(), "/dashboard").Decision)
	}
	require.Equal(t, 3, f.fake.Calls(apifake.RouteMe))
	require.Equal(t, 3, f.fake.Calls(apifake.RouteCompanyStatus))
}

func TestCheck_CompanyNotActive(t *testing.T) {
	for _, status := range []string{"pending", "none", ""} {
		t.Run(status, func(t *testing.T) {
			f := setupGuard(t)
			f.fake.SetCompanyStatus(operatorEmail, status)
			f.signIn(t, false)

			res := f.guard.Check(context.Background(), "/dashboard")
			require.Equal(t, guard.RedirectCompanySetup, res.Decision)
			require.Equal(t, guard.PathCompanySetup, res.Location)
			require.True(t, f.state.IsAuthenticated())
		})
	}
}

func TestCheck_AdminSentToAdminHome(t *testing.T) {
	f := setupGuard(t)
	f.signIn(t, true)

	res := f.guard.Check(context.Background(), "/dashboard")
	require.Equal(t, guard.RedirectAdminHome, res.Decision)
	require.Equal(t, guard.PathAdminDashboard, res.Location)
}

func TestCheck_RejectedTokenLogsOut(t *testing.T) {
	f := setupGuard(t)
	f.signIn(t, false)
	f.fake.RevokeTokens()

	res := f.guard.Check(context.Background(), "/dashboard")
	require.Equal(t, guard.RedirectLogin, res.Decision)
	require.Equal(t, "/login?from=%2Fdashboard", res.Location)
	require.False(t, f.state.IsAuthenticated())
}

func TestCheck_ServerFailureLogsOut(t *testing.T) {
	f := setupGuard(t)
	f.signIn(t, false)
	f.fake.Fail(apifake.RouteCompanyStatus, http.StatusInternalServerError, "boom")

	res := f.guard.Check(context.Background(), "/dashboard")
	require.Equal(t, guard.RedirectLogin, res.Decision)
	require.False(t, f.state.IsAuthenticated())
}

func TestCheck_CanceledIsAbandoned(t *testing.T) {
	f := setupGuard(t)
	f.signIn(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := f.guard.Check(ctx, "/dashboard")
	require.Equal(t, guard.Abandoned, res.Decision)
	require.True(t, f.state.IsAuthenticated())
}

func TestCheck_SupersededDoesNotStore(t *testing.T) {
	f := setupGuard(t)
	f.signIn(t, false)

	release := f.fake.Hold(apifake.RouteCompanyStatus)
	defer release()

	first := make(chan guard.Result, 1)
	go func() {
		first <- f.guard.Check(context.Background(), "/dashboard")
	}()
	require.Eventually(t, func() bool {
		return f.fake.Calls(apifake.RouteCompanyStatus) == 1
	}, time.Second, 5*time.Millisecond)

	// The held check already has the old name; the newer one sees the new one.
	f.fake.UpdateUser(operatorEmail, func(u *users.User) { u.FullName = "Newer Name" })
	require.Equal(t, guard.Granted, f.guard.Check(context.Background(), "/dashboard").Decision)
	require.Equal(t, "Newer Name", f.state.Snapshot().User.FullName)

	release()
	require.Equal(t, guard.Granted, (<-first).Decision)
	require.Equal(t, "Newer Name", f.state.Snapshot().User.FullName)
}

func TestCheck_SessionReplacedMidCheck(t *testing.T) {
	f := setupGuard(t)
	f.signIn(t, false)

	release := f.fake.Hold(apifake.RouteCompanyStatus)
	defer release()

	done := make(chan guard.Result, 1)
	go func() {
		done <- f.guard.Check(context.Background(), "/dashboard")
	}()
	require.Eventually(t, func() bool {
		return f.fake.Calls(apifake.RouteCompanyStatus) == 1
	}, time.Second, 5*time.Millisecond)

	f.state.Logout()
	f.signIn(t, false)
	token := f.state.AccessToken()

	release()
	res := <-done
	require.Equal(t, guard.RedirectLogin, res.Decision)

	snap := f.state.Snapshot()
	require.True(t, snap.IsAuthenticated)
	require.Equal(t, token, snap.Token)
	require.Equal(t, users.CompanyUnset, snap.CompanyStatus)
}

func TestCheckAdmin(t *testing.T) {
	f := setupGuard(t)

	res := f.guard.CheckAdmin("/admin/dashboard")
	require.Equal(t, guard.RedirectLogin, res.Decision)
	require.Equal(t, "/admin/login?from=%2Fadmin%2Fdashboard", res.Location)

	f.signIn(t, false)
	res = f.guard.CheckAdmin("/admin/dashboard")
	require.Equal(t, guard.RedirectDashboard, res.Decision)
	require.Equal(t, guard.PathDashboard, res.Location)

	f.state.Logout()
	f.signIn(t, true)
	require.Equal(t, guard.Granted, f.guard.CheckAdmin("/admin/dashboard").Decision)
	require.Zero(t, f.fake.Calls(apifake.RouteMe))
}

func TestDecisionString(t *testing.T) {
	require.Equal(t, "granted", guard.Granted.String())
	require.Equal(t, "redirect-company-setup", guard.RedirectCompanySetup.String())
	require.Equal(t, "abandoned", guard.Abandoned.String())
}

package server_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/customsapi/apifake"
	"github.com/jrsteele09/customs-console/internal/config"
	"github.com/jrsteele09/customs-console/server"
	"github.com/jrsteele09/customs-console/server/authflowrepo"
	"github.com/jrsteele09/customs-console/sessions"
	"github.com/jrsteele09/customs-console/users"
	"github.com/stretchr/testify/require"
)

const (
	operatorEmail = "sardor@example.com"
	adminEmail    = "admin@customs.example"
)

type consoleFixture struct {
	fake     *apifake.Server
	operator *apifake.Account
	state    *sessions.State
	srv      *server.Server
	http     *httptest.Server
	client   *http.Client
}

func setupConsole(t *testing.T) *consoleFixture {
	t.Helper()
	fake := apifake.New(t)
	operator := fake.AddAccount(apifake.Account{
		User:          users.User{FullName: "Sardor Aliev", Email: operatorEmail, ActivityType: users.ActivityDeclarant},
		Password:      "secret1",
		CompanyStatus: "active",
		SoundEnabled:  true,
	})
	fake.AddAccount(apifake.Account{
		User:       users.User{FullName: "Console Admin", Email: adminEmail},
		Password:   "secret",
		IsAdmin:    true,
		AdminLogin: "admin",
		AdminCode:  "123456",
	})

	t.Setenv("API_BASE_URL", fake.URL)
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("ENV", "TEST")
	cfg, err := config.Load(config.WithEnvFile(filepath.Join(t.TempDir(), ".env")))
	require.NoError(t, err)

	state, err := sessions.NewState(sessions.NewInMemoryRepo())
	require.NoError(t, err)
	srv, err := server.New(cfg, state, authflowrepo.NewInMemoryRepo(0, time.Now))
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &consoleFixture{fake: fake, operator: operator, state: state, srv: srv, http: ts, client: client}
}

func (f *consoleFixture) signIn(t *testing.T, email string, isAdmin bool) {
	t.Helper()
	user := users.User{Email: email}
	require.NoError(t, f.state.SetAuth(f.fake.IssueToken(email), &user, isAdmin))
}

// signInOperator signs in an operator whose company a guard check has
// already seen as active.
func (f *consoleFixture) signInOperator(t *testing.T) {
	t.Helper()
	f.signIn(t, operatorEmail, false)
	f.state.SetCompanyStatus(users.CompanyActive)
}

func (f *consoleFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := f.client.Get(f.http.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *consoleFixture) post(t *testing.T, path string, form url.Values, htmx bool) *http.Response {
	t.Helper()
	return f.send(t, http.MethodPost, path, form, htmx)
}

func (f *consoleFixture) send(t *testing.T, method, path string, form url.Values, htmx bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
		req.Header.Set("HX-Current-URL", f.http.URL+"/dashboard")
	}
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func requireRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get("Location"))
}

func requireHTMXRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, location, resp.Header.Get("HX-Redirect"))
}

func TestNew_Validation(t *testing.T) {
	_, err := server.New(nil, nil, nil)
	require.Error(t, err)
}

func TestRootRedirectsToLogin(t *testing.T) {
	f := setupConsole(t)
	requireRedirect(t, f.get(t, "/"), "/login")
	requireRedirect(t, f.get(t, "/no/such/page"), "/login")
}

func TestLoginPage(t *testing.T) {
	f := setupConsole(t)
	resp := f.get(t, "/login?from=%2Fdashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))

	html := body(t, resp)
	require.Contains(t, html, `action="/login"`)
	require.Contains(t, html, `value="/dashboard"`)
}

func TestLogin_ToDashboard(t *testing.T) {
	f := setupConsole(t)

	resp := f.post(t, "/login", url.Values{"email": {operatorEmail}, "password": {"secret1"}}, false)
	requireRedirect(t, resp, "/dashboard")
	require.True(t, f.state.IsAuthenticated())

	resp = f.get(t, "/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	require.Contains(t, html, "Sardor Aliev")
	require.Contains(t, html, "welcome")
}

func TestLogin_ReturnsToFrom(t *testing.T) {
	f := setupConsole(t)
	resp := f.post(t, "/login", url.Values{
		"email":    {operatorEmail},
		"password": {"secret1"},
		"from":     {"/dashboard?tab=recent"},
	}, true)
	requireHTMXRedirect(t, resp, "/dashboard?tab=recent")
}

func TestLogin_FailureKeepsForm(t *testing.T) {
	f := setupConsole(t)

	resp := f.post(t, "/login", url.Values{"email": {operatorEmail}, "password": {"wrong"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "none", resp.Header.Get("HX-Reswap"))
	html := body(t, resp)
	require.Contains(t, html, `hx-swap-oob="beforeend"`)
	require.Contains(t, html, "invalid email or password")
	require.False(t, f.state.IsAuthenticated())

	// Without htmx the page comes back with the email filled in.
	resp = f.post(t, "/login", url.Values{"email": {operatorEmail}, "password": {"wrong"}}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html = body(t, resp)
	require.Contains(t, html, `value="`+operatorEmail+`"`)
	require.Contains(t, html, "invalid email or password")
}

func TestGuard_RedirectsWithFrom(t *testing.T) {
	f := setupConsole(t)
	requireRedirect(t, f.get(t, "/dashboard"), "/login?from=%2Fdashboard")
}

func TestGuard_PendingCompanyGoesToSetup(t *testing.T) {
	f := setupConsole(t)
	f.fake.SetCompanyStatus(operatorEmail, "pending")
	f.signIn(t, operatorEmail, false)

	requireRedirect(t, f.get(t, "/dashboard"), "/company-setup")

	resp := f.get(t, "/company-setup")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "waiting for approval")
}

func TestGuard_UnreadableProfileShowsToast(t *testing.T) {
	f := setupConsole(t)
	f.signInOperator(t)
	f.fake.Garble(apifake.RouteMe)

	requireRedirect(t, f.get(t, "/dashboard"), "/login?from=%2Fdashboard")
	require.False(t, f.state.IsAuthenticated())

	resp := f.get(t, "/login?from=%2Fdashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "an error occurred")
}

func TestGuard_AdminAreaRejectsOperator(t *testing.T) {
	f := setupConsole(t)
	f.signIn(t, operatorEmail, false)
	requireRedirect(t, f.get(t, "/admin/dashboard"), "/dashboard")
}

func TestGuard_AdminSentHome(t *testing.T) {
	f := setupConsole(t)
	f.signIn(t, adminEmail, true)
	requireRedirect(t, f.get(t, "/dashboard"), "/admin/dashboard")

	resp := f.get(t, "/admin/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "Administration")
}

func TestAdminLogin_HandOffAndCode(t *testing.T) {
	f := setupConsole(t)

	resp := f.post(t, "/login", url.Values{"email": {adminEmail}, "password": {"secret"}}, true)
	requireHTMXRedirect(t, resp, "/admin/login")
	require.False(t, f.state.IsAuthenticated())

	resp = f.get(t, "/admin/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), `name="code"`)

	// A wrong code keeps the attempt at the code step.
	resp = f.post(t, "/admin/login/code", url.Values{"code": {"000000"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	require.Contains(t, html, `name="code"`)
	require.Contains(t, html, "Invalid or expired code")
	require.False(t, f.state.IsAuthenticated())

	resp = f.post(t, "/admin/login/code", url.Values{"code": {"123456"}}, true)
	requireHTMXRedirect(t, resp, "/admin/dashboard")
	require.True(t, f.state.IsAuthenticated())
	require.True(t, f.state.IsAdmin())
}

func TestAdminLogin_CredentialsStep(t *testing.T) {
	f := setupConsole(t)

	resp := f.post(t, "/admin/login/credentials", url.Values{"login": {"admin"}, "password": {"secret"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), `name="code"`)

	resp = f.post(t, "/admin/login/back", nil, true)
	html := body(t, resp)
	require.Contains(t, html, `name="password"`)
	require.Contains(t, html, `value="admin"`)

	resp = f.post(t, "/admin/login/credentials", url.Values{"login": {""}}, true)
	require.Equal(t, "none", resp.Header.Get("HX-Reswap"))
	require.Contains(t, body(t, resp), "enter login and password")
}

func TestAdminLogin_CodeWithoutAttempt(t *testing.T) {
	f := setupConsole(t)
	resp := f.post(t, "/admin/login/code", url.Values{"code": {"123456"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "login attempt expired, start again")
	require.False(t, f.state.IsAuthenticated())
}

func TestRegister(t *testing.T) {
	f := setupConsole(t)

	resp := f.post(t, "/register", url.Values{
		"full_name":        {"Nodira Yusupova"},
		"email":            {"nodira@example.com"},
		"phone":            {"+998901234567"},
		"activity_type":    {"certification"},
		"password":         {"secret12"},
		"confirm_password": {"secret12"},
	}, true)
	requireHTMXRedirect(t, resp, "/company-setup")
	require.True(t, f.state.IsAuthenticated())

	resp = f.post(t, "/register", url.Values{
		"full_name":        {"Someone"},
		"email":            {"someone@example.com"},
		"phone":            {"+998900000000"},
		"password":         {"secret12"},
		"confirm_password": {"different"},
	}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), `value="someone@example.com"`)
}

func TestForgotPassword(t *testing.T) {
	f := setupConsole(t)

	resp := f.post(t, "/forgot-password", url.Values{"email": {operatorEmail}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "Telegram bot linked to "+operatorEmail)

	resp = f.post(t, "/forgot-password", url.Values{"email": {"nobody@example.com"}}, true)
	require.Equal(t, "none", resp.Header.Get("HX-Reswap"))
	require.Contains(t, body(t, resp), "User not found")
}

func TestCompanySetup_LookupAndJoin(t *testing.T) {
	f := setupConsole(t)
	f.fake.AddCompany("123456789", "Silk Road Logistics")
	f.fake.SetCompanyStatus(operatorEmail, "none")
	f.signIn(t, operatorEmail, false)

	resp := f.post(t, "/company-setup/lookup", url.Values{"inn": {"123456789"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	require.Contains(t, html, "Silk Road Logistics")
	require.Contains(t, html, `name="found" value="true"`)

	resp = f.post(t, "/company-setup/join", url.Values{"inn": {"123456789"}, "found": {"true"}}, true)
	requireHTMXRedirect(t, resp, "/login")
	require.Equal(t, users.CompanyPending, f.state.Snapshot().CompanyStatus)
}

func TestCompanySetup_InvalidINN(t *testing.T) {
	f := setupConsole(t)
	f.signIn(t, operatorEmail, false)

	resp := f.post(t, "/company-setup/lookup", url.Values{"inn": {"12"}}, true)
	require.Equal(t, "none", resp.Header.Get("HX-Reswap"))
	require.Zero(t, f.fake.Calls(apifake.RouteCompanyLookup))
}

func TestLogout(t *testing.T) {
	f := setupConsole(t)
	f.signIn(t, operatorEmail, false)

	requireHTMXRedirect(t, f.post(t, "/logout", nil, true), "/login")
	require.False(t, f.state.IsAuthenticated())
}

func TestNotifications_PanelAndActions(t *testing.T) {
	f := setupConsole(t)
	note := f.fake.AddNotification(f.operator.User.ID, customsapi.Notification{
		Title: "Declaration approved",
		Type:  "declaration",
	})
	f.signInOperator(t)
	require.Eventually(t, func() bool {
		return f.fake.Calls(apifake.RouteSoundStatus) > 0
	}, time.Second, 10*time.Millisecond)

	resp := f.post(t, "/notifications/toggle", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	require.Contains(t, html, "Declaration approved")
	require.Contains(t, html, `class="badge">1<`)

	resp = f.post(t, "/notifications/"+itoa(note.ID)+"/read", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotContains(t, body(t, resp), `class="badge"`)

	resp = f.send(t, http.MethodDelete, "/notifications/"+itoa(note.ID), nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "No notifications")
	require.Empty(t, f.fake.Notifications(f.operator.User.ID))

	resp = f.post(t, "/notifications/sound", url.Values{"enabled": {"false"}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body(t, resp), "Sound off")
	require.False(t, f.fake.SoundEnabled(operatorEmail))

	resp = f.post(t, "/notifications/close", nil, true)
	require.NotContains(t, body(t, resp), `class="panel"`)
}

func TestNotifications_InvalidID(t *testing.T) {
	f := setupConsole(t)
	f.signInOperator(t)

	resp := f.post(t, "/notifications/abc/read", nil, true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNotifications_RequireOperator(t *testing.T) {
	f := setupConsole(t)
	requireHTMXRedirect(t, f.post(t, "/notifications/toggle", nil, true), "/login")

	f.signIn(t, operatorEmail, false)
	requireHTMXRedirect(t, f.post(t, "/notifications/toggle", nil, true), "/company-setup")

	f.state.Logout()
	f.signIn(t, adminEmail, true)
	requireHTMXRedirect(t, f.post(t, "/notifications/toggle", nil, true), "/admin/dashboard")
}

func TestNotifications_NoPollingWhileCompanyPending(t *testing.T) {
	f := setupConsole(t)
	f.fake.SetCompanyStatus(operatorEmail, "pending")
	f.fake.Fail(apifake.RouteList, http.StatusForbidden, "company not approved")
	f.signIn(t, operatorEmail, false)

	requireRedirect(t, f.get(t, "/dashboard"), "/company-setup")
	resp := f.get(t, "/company-setup")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	require.NotContains(t, html, "access denied")
	require.NotContains(t, html, `id="notification-panel"`)

	time.Sleep(50 * time.Millisecond)
	require.Zero(t, f.fake.Calls(apifake.RouteList))
	require.Zero(t, f.fake.Calls(apifake.RouteUnreadCount))
}

func TestNotifications_PollingStartsOnceCompanyActive(t *testing.T) {
	f := setupConsole(t)
	f.signIn(t, operatorEmail, false)
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, f.fake.Calls(apifake.RouteList))

	require.Equal(t, http.StatusOK, f.get(t, "/dashboard").StatusCode)
	require.Eventually(t, func() bool {
		return f.fake.Calls(apifake.RouteList) > 0
	}, time.Second, 10*time.Millisecond)

	// The company losing its approval stops polling again.
	f.fake.SetCompanyStatus(operatorEmail, "pending")
	requireRedirect(t, f.get(t, "/dashboard"), "/company-setup")
	time.Sleep(50 * time.Millisecond)
	calls := f.fake.Calls(apifake.RouteList)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, calls, f.fake.Calls(apifake.RouteList))
}

func TestNotifications_RejectedTokenLogsOut(t *testing.T) {
	f := setupConsole(t)
	f.signInOperator(t)
	f.fake.RevokeTokens()

	resp := f.post(t, "/notifications/read-all", nil, true)
	requireHTMXRedirect(t, resp, "/login")
	require.Eventually(t, func() bool {
		return !f.state.IsAuthenticated()
	}, time.Second, 10*time.Millisecond)
}

func TestNotifications_PollingFollowsSession(t *testing.T) {
	f := setupConsole(t)
	f.fake.AddNotification(f.operator.User.ID, customsapi.Notification{Title: "Inspection scheduled"})
	f.signInOperator(t)

	require.Eventually(t, func() bool {
		return f.fake.Calls(apifake.RouteList) > 0
	}, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(body(t, f.get(t, "/notifications/panel")), `class="badge">1<`)
	}, time.Second, 10*time.Millisecond)

	// An admin session does not poll.
	f.state.Logout()
	f.signIn(t, adminEmail, true)
	time.Sleep(50 * time.Millisecond)
	calls := f.fake.Calls(apifake.RouteList)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, calls, f.fake.Calls(apifake.RouteList))
}

func TestStaticAssets(t *testing.T) {
	f := setupConsole(t)

	resp := f.get(t, "/css/console.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/css")
	require.Contains(t, resp.Header.Get("Cache-Control"), "max-age")
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, f.http.URL+"/css/console.css", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)
	cached, err := f.client.Do(req)
	require.NoError(t, err)
	defer cached.Body.Close()
	require.Equal(t, http.StatusNotModified, cached.StatusCode)

	require.Equal(t, http.StatusNotFound, f.get(t, "/js/missing.js").StatusCode)
}

func TestClose_Idempotent(t *testing.T) {
	f := setupConsole(t)
	f.srv.Close()
	f.srv.Close()
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Package apifake is an in-process stand-in for the customs REST API, used
// by tests across the console.
package apifake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/internal/utils"
	"github.com/jrsteele09/customs-console/users"
)

// Route patterns, usable with Fail, Hold and Calls.
const (
	RouteLogin          = "POST /api/auth/login"
	RouteAdminLogin     = "POST /api/auth/admin/login"
	RouteRegister       = "POST /api/auth/register"
	RouteForgotPassword = "POST /api/auth/forgot-password"
	RouteMe             = "GET /api/auth/me"
	RouteCompanyStatus  = "GET /api/auth/me/company-status"
	RouteCompanyLookup  = "POST /api/auth/company/lookup"
	RouteCompanyCreate  = "POST /api/auth/company/create"
	RouteCompanyJoin    = "POST /api/auth/company/join"
	RouteList           = "GET /api/notifications/{$}"
	RouteUnreadCount    = "GET /api/notifications/unread-count"
	RouteMarkRead       = "POST /api/notifications/mark-read"
	RouteMarkOneRead    = "POST /api/notifications/{id}/read"
	RouteDeleteOne      = "DELETE /api/notifications/{id}"
	RouteDeleteAll      = "DELETE /api/notifications/{$}"
	RouteSound          = "POST /api/notifications/sound"
	RouteSoundStatus    = "GET /api/notifications/sound-status"
)

// Account is a user known to the fake.
type Account struct {
	User          users.User
	Password      string
	IsAdmin       bool
	Blocked       bool
	AdminLogin    string
	AdminCode     string
	CompanyStatus string
	SoundEnabled  bool
}

type failure struct {
	status int
	detail string
	raw    string
}

type Server struct {
	*httptest.Server

	mu            sync.Mutex
	accounts      map[string]*Account // by email
	tokens        map[string]*Account
	notifications map[int64][]customsapi.Notification // by user id
	companies     map[string]string                   // inn -> name
	nextUserID    int64
	nextNoteID    int64
	calls         map[string]int
	failures      map[string]failure
	holds         map[string]chan struct{}
	lastMarkRead  *customsapi.MarkReadRequest
}

// New starts a fake API that is closed when the test ends.
func New(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		accounts:      make(map[string]*Account),
		tokens:        make(map[string]*Account),
		notifications: make(map[int64][]customsapi.Notification),
		companies:     make(map[string]string),
		nextUserID:    1000,
		calls:         make(map[string]int),
		failures:      make(map[string]failure),
		holds:         make(map[string]chan struct{}),
	}

	mux := http.NewServeMux()
	s.handle(mux, RouteLogin, s.login)
	s.handle(mux, RouteAdminLogin, s.adminLogin)
	s.handle(mux, RouteRegister, s.register)
	s.handle(mux, RouteForgotPassword, s.forgotPassword)
	s.handle(mux, RouteMe, s.authed(s.me))
	s.handle(mux, RouteCompanyStatus, s.authed(s.companyStatus))
	s.handle(mux, RouteCompanyLookup, s.authed(s.companyLookup))
	s.handle(mux, RouteCompanyCreate, s.authed(s.companyCreate))
	s.handle(mux, RouteCompanyJoin, s.authed(s.companyJoin))
	s.handle(mux, RouteList, s.authed(s.list))
	s.handle(mux, RouteUnreadCount, s.authed(s.unreadCount))
	s.handle(mux, RouteMarkRead, s.authed(s.markRead))
	s.handle(mux, RouteMarkOneRead, s.authed(s.markOneRead))
	s.handle(mux, RouteDeleteOne, s.authed(s.deleteOne))
	s.handle(mux, RouteDeleteAll, s.authed(s.deleteAll))
	s.handle(mux, RouteSound, s.authed(s.setSound))
	s.handle(mux, RouteSoundStatus, s.authed(s.soundStatus))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddAccount registers a user. A zero user ID is assigned automatically.
func (s *Server) AddAccount(a Account) *Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.User.ID == 0 {
		s.nextUserID++
		a.User.ID = s.nextUserID
	}
	if a.User.CreatedAt.IsZero() {
		a.User.CreatedAt = utils.Timestamp{Time: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	}
	acc := &a
	s.accounts[strings.ToLower(a.User.Email)] = acc
	return acc
}

// IssueToken returns a valid token for email, as if the user had logged in.
func (s *Server) IssueToken(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(s.accounts[strings.ToLower(email)])
}

// RevokeTokens makes every issued token invalid.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]*Account)
}

func (s *Server) SetCompanyStatus(email, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[strings.ToLower(email)]; ok {
		acc.CompanyStatus = status
	}
}

func (s *Server) AddCompany(inn, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[inn] = name
}

// AddNotification stores n for userID, assigning an id when n.ID is zero.
func (s *Server) AddNotification(userID int64, n customsapi.Notification) customsapi.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == 0 {
		s.nextNoteID++
		n.ID = s.nextNoteID
	}
	n.UserID = userID
	s.notifications[userID] = append(s.notifications[userID], n)
	return n
}

// Fail makes route answer with status until Recover is called.
func (s *Server) Fail(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, detail: detail}
}

// Garble makes route answer 200 with a truncated JSON body until Recover is
// called.
func (s *Server) Garble(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: http.StatusOK, raw: `{"id":`}
}

func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Hold blocks the next request to route until the returned func is called.
// Later requests are not held.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// UpdateUser edits the stored user for email.
func (s *Server) UpdateUser(email string, fn func(*users.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[strings.ToLower(email)]; ok {
		fn(&acc.User)
	}
}

func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// LastMarkRead returns the body of the most recent mark-read request.
func (s *Server) LastMarkRead() *customsapi.MarkReadRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMarkRead
}

func (s *Server) Notifications(userID int64) []customsapi.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]customsapi.Notification(nil), s.notifications[userID]...)
}

func (s *Server) SoundEnabled(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc, ok := s.accounts[strings.ToLower(email)]; ok {
		return acc.SoundEnabled
	}
	return false
}

func (s *Server) handle(mux *http.ServeMux, route string, h http.HandlerFunc) {
	mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[route]++
		f, failing := s.failures[route]
		hold := s.holds[route]
		delete(s.holds, route)
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if failing && f.raw != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.raw))
			return
		}
		if failing {
			writeDetail(w, f.status, f.detail)
			return
		}
		h(w, r)
	})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, acc *Account)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		acc := s.tokens[token]
		s.mu.Unlock()
		if !ok || acc == nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, acc)
	}
}

func (s *Server) issueLocked(acc *Account) string {
	if acc == nil {
		return ""
	}
	token := uuid.NewString()
	s.tokens[token] = acc
	return token
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req customsapi.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[strings.ToLower(req.Email)]
	if !ok || acc.Password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if acc.Blocked {
		writeDetail(w, http.StatusForbidden, "Your account is blocked")
		return
	}
	writeJSON(w, http.StatusOK, customsapi.TokenResponse{
		AccessToken: s.issueLocked(acc),
		TokenType:   "bearer",
		UserID:      acc.User.ID,
		IsAdmin:     acc.IsAdmin,
	})
}

func (s *Server) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req customsapi.AdminLoginRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range s.accounts {
		if !acc.IsAdmin || acc.Password != req.Password {
			continue
		}
		if acc.AdminLogin != req.Login && !strings.EqualFold(acc.User.Email, req.Login) {
			continue
		}
		if acc.AdminCode != req.Code {
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired code")
			return
		}
		writeJSON(w, http.StatusOK, customsapi.TokenResponse{
			AccessToken: s.issueLocked(acc),
			TokenType:   "bearer",
		})
		return
	}
	writeDetail(w, http.StatusUnauthorized, "Invalid admin credentials")
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req customsapi.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "email and password are required"}},
		})
		return
	}
	s.mu.Lock()
	if _, exists := s.accounts[strings.ToLower(req.Email)]; exists {
		s.mu.Unlock()
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	s.mu.Unlock()

	acc := s.AddAccount(Account{
		User: users.User{
			FullName:     req.FullName,
			Email:        req.Email,
			Phone:        req.Phone,
			ActivityType: req.ActivityType,
			IsActive:     true,
			SoundEnabled: true,
		},
		Password:      req.Password,
		CompanyStatus: "none",
		SoundEnabled:  true,
	})
	writeJSON(w, http.StatusOK, customsapi.RegisterResponse{
		Message:           "Registration successful",
		UserID:            acc.User.ID,
		NeedsCompanySetup: true,
	})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req customsapi.ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	_, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, customsapi.MessageResponse{Message: "Code sent"})
}

func (s *Server) me(w http.ResponseWriter, _ *http.Request, acc *Account) {
	s.mu.Lock()
	u := acc.User
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) companyStatus(w http.ResponseWriter, _ *http.Request, acc *Account) {
	s.mu.Lock()
	status := acc.CompanyStatus
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, customsapi.CompanyStatusResponse{Status: status})
}

func (s *Server) companyLookup(w http.ResponseWriter, r *http.Request, _ *Account) {
	var req customsapi.CompanyJoinRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	name, ok := s.companies[req.INN]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, customsapi.CompanyLookupResponse{Found: false})
		return
	}
	writeJSON(w, http.StatusOK, customsapi.CompanyLookupResponse{Found: true, CompanyName: &name})
}

func (s *Server) companyCreate(w http.ResponseWriter, r *http.Request, acc *Account) {
	var req customsapi.CompanyCreateRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.companies[req.INN]; exists {
		writeDetail(w, http.StatusBadRequest, "Company with this INN already exists")
		return
	}
	s.companies[req.INN] = req.Name
	acc.CompanyStatus = "pending"
	writeJSON(w, http.StatusOK, customsapi.MessageResponse{Message: "Request submitted"})
}

func (s *Server) companyJoin(w http.ResponseWriter, r *http.Request, acc *Account) {
	var req customsapi.CompanyJoinRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.companies[req.INN]; !exists {
		writeDetail(w, http.StatusNotFound, "Company not found")
		return
	}
	acc.CompanyStatus = "pending"
	writeJSON(w, http.StatusOK, customsapi.MessageResponse{Message: "Request submitted"})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request, acc *Account) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	skip, _ := strconv.Atoi(q.Get("skip"))
	unreadOnly := q.Get("unread_only") == "true"

	s.mu.Lock()
	all := append([]customsapi.Notification(nil), s.notifications[acc.User.ID]...)
	s.mu.Unlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt.Time) })
	unread := 0
	filtered := make([]customsapi.Notification, 0, len(all))
	for _, n := range all {
		if !n.IsRead {
			unread++
		}
		if unreadOnly && n.IsRead {
			continue
		}
		filtered = append(filtered, n)
	}
	total := len(filtered)
	if skip > len(filtered) {
		skip = len(filtered)
	}
	filtered = filtered[skip:]
	if limit > 0 && limit < len(filtered) {
		filtered = filtered[:limit]
	}
	writeJSON(w, http.StatusOK, customsapi.NotificationList{
		Notifications: filtered,
		UnreadCount:   unread,
		Total:         total,
	})
}

func (s *Server) unreadCount(w http.ResponseWriter, _ *http.Request, acc *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications[acc.User.ID] {
		if !n.IsRead {
			count++
		}
	}
	writeJSON(w, http.StatusOK, customsapi.UnreadCountResponse{Count: count})
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request, acc *Account) {
	var req customsapi.MarkReadRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMarkRead = &req

	ids := make(map[int64]bool, len(req.NotificationIDs))
	for _, id := range req.NotificationIDs {
		ids[id] = true
	}
	notes := s.notifications[acc.User.ID]
	for i := range notes {
		if req.NotificationIDs == nil || ids[notes[i].ID] {
			notes[i].IsRead = true
		}
	}
	writeJSON(w, http.StatusOK, customsapi.MessageResponse{Message: "ok"})
}

func (s *Server) markOneRead(w http.ResponseWriter, r *http.Request, acc *Account) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Notification not found")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.notifications[acc.User.ID]
	for i := range notes {
		if notes[i].ID == id {
			notes[i].IsRead = true
			writeJSON(w, http.StatusOK, notes[i])
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Notification not found")
}

func (s *Server) deleteOne(w http.ResponseWriter, r *http.Request, acc *Account) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Notification not found")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.notifications[acc.User.ID]
	for i := range notes {
		if notes[i].ID == id {
			s.notifications[acc.User.ID] = append(notes[:i:i], notes[i+1:]...)
			writeJSON(w, http.StatusOK, customsapi.MessageResponse{Message: "deleted"})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Notification not found")
}

func (s *Server) deleteAll(w http.ResponseWriter, _ *http.Request, acc *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notifications, acc.User.ID)
	writeJSON(w, http.StatusOK, customsapi.MessageResponse{Message: "deleted"})
}

func (s *Server) setSound(w http.ResponseWriter, r *http.Request, acc *Account) {
	var req customsapi.SoundRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	acc.SoundEnabled = req.Enabled
	acc.User.SoundEnabled = req.Enabled
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, customsapi.SoundStatusResponse{Enabled: req.Enabled})
}

func (s *Server) soundStatus(w http.ResponseWriter, _ *http.Request, acc *Account) {
	s.mu.Lock()
	enabled := acc.SoundEnabled
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, customsapi.SoundStatusResponse{Enabled: enabled})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid body: %v", err))
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

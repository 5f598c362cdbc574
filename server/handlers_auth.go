package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jrsteele09/customs-console/authflow"
	"github.com/jrsteele09/customs-console/users"
)

// LoginPageHandler displays the login page (GET /login)
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, "login.html", PageData{Title: "Sign in", From: returnPath(r)})
	}
}

// LoginSubmitHandler processes the login form. Administrators continue on
// the admin login page at the code step.
func (s *Server) LoginSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := r.FormValue("email")
		from := returnPath(r)

		res, err := s.login.Login(r.Context(), email, r.FormValue("password"), from)
		if err != nil {
			s.formError(w, r, "login.html", PageData{
				Title: "Sign in",
				From:  from,
				Form:  formValues(map[string]string{"email": email}),
			})
			return
		}

		if res.Admin != nil {
			s.saveAttempt(w, r, uuid.NewString(), res.Admin)
		}
		redirectSuccess(w, r, res.Location)
	}
}

// RegisterPageHandler displays the registration page (GET /register)
func (s *Server) RegisterPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, "register.html", PageData{
			Title:      "Register",
			Activities: []users.ActivityType{users.ActivityDeclarant, users.ActivityCertification},
		})
	}
}

func (s *Server) RegisterSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		in := authflow.RegisterInput{
			FullName:     r.FormValue("full_name"),
			Email:        r.FormValue("email"),
			Phone:        r.FormValue("phone"),
			ActivityType: users.ActivityType(r.FormValue("activity_type")),
			Password:     r.FormValue("password"),
			Confirmation: r.FormValue("confirm_password"),
		}

		location, err := s.login.Register(r.Context(), in)
		if err != nil {
			s.formError(w, r, "register.html", PageData{
				Title:      "Register",
				Activities: []users.ActivityType{users.ActivityDeclarant, users.ActivityCertification},
				Form: formValues(map[string]string{
					"full_name":     in.FullName,
					"email":         in.Email,
					"phone":         in.Phone,
					"activity_type": string(in.ActivityType),
				}),
			})
			return
		}
		redirectSuccess(w, r, location)
	}
}

// ForgotPasswordPageHandler renders the forgot-password page
func (s *Server) ForgotPasswordPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, "forgot_password.html", PageData{Title: "Reset password"})
	}
}

func (s *Server) ForgotPasswordSubmitHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		email := r.FormValue("email")
		data := PageData{Title: "Reset password", Form: formValues(map[string]string{"email": email})}

		if err := s.login.ForgotPassword(r.Context(), email); err != nil {
			s.formError(w, r, "forgot_password.html", data)
			return
		}
		data.Sent = true
		if isHTMXRequest(r) {
			s.renderPartial(w, r, "forgot_password_form", data)
			return
		}
		s.renderPage(w, r, "forgot_password.html", data)
	}
}

// LogoutHandler ends the operator's session
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.session.Logout()
		s.log.Info().Msg("operator logged out")
		redirectSuccess(w, r, RouteLogin)
	}
}

// formError answers a failed form submission. The toasts explain what went
// wrong: htmx forms keep their inputs and only receive the toasts, plain
// form posts get the page back with the non-secret fields filled in. A 401
// raised while handling the form wins over both.
func (s *Server) formError(w http.ResponseWriter, r *http.Request, page string, data PageData) {
	if followNavigation(w, r) {
		return
	}
	if isHTMXRequest(r) {
		s.renderToasts(w, r)
		return
	}
	s.renderPage(w, r, page, data)
}

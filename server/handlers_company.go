package server

import (
	"net/http"
	"strings"
)

// CompanySetupPageHandler shows the company registration and join forms.
func (s *Server) CompanySetupPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, r, "company_setup.html", PageData{Title: "Company setup"})
	}
}

// CompanyLookupHandler looks a company up by INN and shows the result with
// the join action.
func (s *Server) CompanyLookupHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		inn := strings.TrimSpace(r.FormValue("inn"))
		res, err := s.company.Lookup(r.Context(), inn)
		if err != nil {
			s.formError(w, r, "company_setup.html", PageData{
				Title: "Company setup",
				Form:  map[string]string{"inn": inn},
			})
			return
		}

		data := PageData{Title: "Company setup", Lookup: res, LookupINN: inn}
		if isHTMXRequest(r) {
			s.renderPartial(w, r, "company_lookup", data)
			return
		}
		s.renderPage(w, r, "company_setup.html", data)
	}
}

func (s *Server) CompanyCreateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		name, inn := r.FormValue("name"), r.FormValue("inn")
		location, err := s.company.Create(r.Context(), name, inn)
		if err != nil {
			s.formError(w, r, "company_setup.html", PageData{
				Title: "Company setup",
				Form:  map[string]string{"name": name, "create_inn": inn},
			})
			return
		}
		redirectSuccess(w, r, location)
	}
}

// CompanyJoinHandler asks to join the company found by the last lookup.
func (s *Server) CompanyJoinHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		inn := r.FormValue("inn")
		location, err := s.company.Join(r.Context(), inn, r.FormValue("found") == "true")
		if err != nil {
			s.formError(w, r, "company_setup.html", PageData{
				Title: "Company setup",
				Form:  map[string]string{"inn": inn},
			})
			return
		}
		redirectSuccess(w, r, location)
	}
}

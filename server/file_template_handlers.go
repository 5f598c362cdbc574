package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/internal/utils"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	contentTypeHTML = "text/html; charset=utf-8"

	layoutTemplate   = "layout.html"
	partialsTemplate = "partials.html"
)

// Page templates, each rendered inside the layout.
var pageTemplates = []string{
	"login.html",
	"register.html",
	"forgot_password.html",
	"admin_login.html",
	"company_setup.html",
	"dashboard.html",
	"admin_dashboard.html",
}

func TemplateFilesFS() fs.FS {
	// Create the sub filesystem once
	subFS, err := fs.Sub(templateFiles, "templates")
	if err != nil {
		panic("Failed to create templates sub filesystem: " + err.Error())
	}
	return subFS
}

var templateFuncs = template.FuncMap{
	"deref": func(s *string) string { return utils.Value(s) },
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("02.01.2006 15:04")
	},
	"unread": func(list []customsapi.Notification) bool {
		for _, n := range list {
			if !n.IsRead {
				return true
			}
		}
		return false
	},
}

// ParseTemplate parses the named files from the embedded filesystem together
// with the shared partials.
func ParseTemplate(names ...string) (*template.Template, error) {
	files := []string{partialsTemplate}
	for _, n := range names {
		if n != partialsTemplate {
			files = append(files, n)
		}
	}
	return template.New(names[len(names)-1]).Funcs(templateFuncs).ParseFS(TemplateFilesFS(), files...)
}

func (s *Server) parseTemplates() error {
	s.pages = make(map[string]*template.Template, len(pageTemplates))
	for _, name := range pageTemplates {
		t, err := ParseTemplate(layoutTemplate, name)
		if err != nil {
			return fmt.Errorf("[Server parseTemplates] %s: %w", name, err)
		}
		s.pages[name] = t
	}
	partials, err := ParseTemplate(partialsTemplate)
	if err != nil {
		return fmt.Errorf("[Server parseTemplates] partials: %w", err)
	}
	s.partials = partials
	return nil
}

// renderPage renders a full page. Queued toasts are shown with it.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, page string, data PageData) {
	t, ok := s.pages[page]
	if !ok {
		s.log.Error().Str("page", page).Msg("unknown page template")
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	s.fill(&data)
	s.execute(w, r, t, "layout", data)
}

// renderPartial renders one fragment for htmx, followed by the queued toasts
// as an out-of-band swap.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, name string, data PageData) {
	s.fill(&data)
	var buf bytes.Buffer
	if name != "" {
		if err := s.partials.ExecuteTemplate(&buf, name, data); err != nil {
			s.renderError(w, r, name, err)
			return
		}
	}
	if err := s.partials.ExecuteTemplate(&buf, "toasts_oob", data); err != nil {
		s.renderError(w, r, "toasts_oob", err)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	_, _ = buf.WriteTo(w)
}

// renderToasts answers an htmx request that has nothing to show but toasts,
// leaving the operator's form as it was.
func (s *Server) renderToasts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("HX-Reswap", "none")
	s.renderPartial(w, r, "", PageData{})
}

// fill adds the state every template may show: the session, the
// notification panel and the toasts queued since the last render.
func (s *Server) fill(data *PageData) {
	data.Session = s.session.Snapshot()
	data.Panel = s.panel.Snapshot()
	data.Toasts = s.flash.Drain()
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request, t *template.Template, name string, data PageData) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		s.renderError(w, r, name, err)
		return
	}
	w.Header().Set("Content-Type", contentTypeHTML)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, name string, err error) {
	s.log.Error().Err(err).Str("request_id", requestID(r)).Str("template", name).Msg("Failed to render template")
	http.Error(w, "Failed to render page", http.StatusInternalServerError)
}

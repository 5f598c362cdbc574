package server

import (
	"net/http"
	"net/url"
	"strings"
)

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// returnPath reads the from parameter set by the guards. Only local paths are
// accepted.
func returnPath(r *http.Request) string {
	from := r.FormValue("from")
	if from == "" {
		from = r.URL.Query().Get("from")
	}
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return ""
	}
	if u, err := url.Parse(from); err != nil || u.Host != "" {
		return ""
	}
	return from
}

package server

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/jrsteele09/customs-console/gateway"
)

type navigationKey struct{}

// navigation records where the gateway wants the operator to go while a
// request is being handled.
type navigation struct {
	mu   sync.Mutex
	path string
}

// RequestNavigator delivers gateway navigation to the request being handled.
// Navigation requested outside a request is dropped.
type RequestNavigator struct{}

func (RequestNavigator) Navigate(ctx context.Context, path string) {
	if n, ok := ctx.Value(navigationKey{}).(*navigation); ok {
		n.mu.Lock()
		n.path = path
		n.mu.Unlock()
	}
}

func withNavigation(ctx context.Context) context.Context {
	return context.WithValue(ctx, navigationKey{}, &navigation{})
}

func navigationTarget(r *http.Request) string {
	n, ok := r.Context().Value(navigationKey{}).(*navigation)
	if !ok {
		return ""
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// followNavigation redirects if the gateway asked for navigation during this
// request, and reports whether it did.
func followNavigation(w http.ResponseWriter, r *http.Request) bool {
	target := navigationTarget(r)
	if target == "" {
		return false
	}
	redirectSuccess(w, r, target)
	return true
}

// currentLocation is the page the operator is looking at. For htmx requests
// that is the page that issued the request, not the partial's URL.
func currentLocation(r *http.Request) string {
	if current := r.Header.Get("HX-Current-URL"); current != "" {
		if u, err := url.Parse(current); err == nil {
			return u.RequestURI()
		}
	}
	return r.URL.RequestURI()
}

// NavigationMiddleware attaches the operator's location and a navigation
// slot to the request context for the gateway.
func (s *Server) NavigationMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := gateway.WithLocation(r.Context(), currentLocation(r))
		next(w, r.WithContext(withNavigation(ctx)))
	}
}

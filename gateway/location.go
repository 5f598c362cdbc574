package gateway

import (
	"context"
	"strings"
)

type locationKey struct{}

// Public auth pages. A 401 seen while the operator is on one of these does
// not navigate anywhere.
var PublicPaths = []string{"/login", "/register", "/admin/login"}

// WithLocation records the page the operator is currently on.
func WithLocation(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, locationKey{}, path)
}

func LocationFrom(ctx context.Context) string {
	path, _ := ctx.Value(locationKey{}).(string)
	return path
}

func IsPublicPath(path string) bool {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	for _, p := range PublicPaths {
		if path == p {
			return true
		}
	}
	return false
}

package authflowrepo

import "github.com/jrsteele09/customs-console/authflow"

// Repo holds in-progress admin login attempts, keyed by the id in the
// operator's attempt cookie.
type Repo interface {
	Upsert(id string, attempt *authflow.Attempt) error
	Get(id string) (*authflow.Attempt, error)
	Delete(id string) error
}

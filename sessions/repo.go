package sessions

// Keys written by the session state. Nothing else is persisted: company status
// and notification state are always re-derived from the server.
const (
	KeyAccessToken = "access_token"
	KeyUser        = "user"
	KeyIsAdmin     = "is_admin"
)

// Keys lists every persisted key, in the order they are written.
var Keys = []string{KeyAccessToken, KeyUser, KeyIsAdmin}

// Repo is the durable key/value storage behind the operator session.
// Values survive a console restart.
type Repo interface {
	// Get returns the stored value and whether the key exists
	Get(key string) (string, bool, error)

	// Set creates or replaces a value
	Set(key, value string) error

	// Delete removes keys, ignoring ones that don't exist
	Delete(keys ...string) error
}

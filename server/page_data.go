package server

import (
	"github.com/jrsteele09/customs-console/authflow"
	"github.com/jrsteele09/customs-console/customsapi"
	"github.com/jrsteele09/customs-console/notifications"
	"github.com/jrsteele09/customs-console/sessions"
	"github.com/jrsteele09/customs-console/users"
)

// PageData is the template model shared by every page and partial.
type PageData struct {
	Title   string
	Session sessions.Session
	Panel   notifications.Panel
	Toasts  []Flash

	// Where login returns to
	From string
	// Submitted form values, re-shown after a failed submission
	Form map[string]string

	Attempt    *authflow.Attempt
	Lookup     *customsapi.CompanyLookupResponse
	LookupINN  string
	Sent       bool
	Activities []users.ActivityType
}

func formValues(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		if k != "password" && k != "confirm_password" {
			out[k] = v
		}
	}
	return out
}

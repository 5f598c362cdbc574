package authflow

import "time"

// Step is the stage an admin login attempt is at.
type Step int

const (
	StepCredentials Step = iota
	StepCode
)

func (s Step) String() string {
	if s == StepCode {
		return "code"
	}
	return "credentials"
}

// Attempt is one in-progress two-step admin login. It lives only for the
// duration of the login and is never persisted.
type Attempt struct {
	Login     string
	Password  string
	Step      Step
	Code      string
	ReturnURL string
	CreatedAt time.Time
}

func NewAttempt(now time.Time) *Attempt {
	return &Attempt{Step: StepCredentials, CreatedAt: now}
}

func (a *Attempt) Clone() *Attempt {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Back returns to the credentials step. Login and password are kept so the
// form can be re-shown pre-filled.
func (a *Attempt) Back() {
	a.Step = StepCredentials
	a.Code = ""
}

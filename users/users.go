package users

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/customs-console/internal/utils"
)

// ActivityType is the line of business an operator registered with.
type ActivityType string

const (
	ActivityDeclarant     ActivityType = "declarant"
	ActivityCertification ActivityType = "certification"
)

// RoleType represents a user's role inside their company
type RoleType string

const (
	RoleDirector RoleType = "director" // Owns the company account, approves join requests
	RoleSenior   RoleType = "senior"   // Senior staff, can assign work
	RoleEmployee RoleType = "employee" // Regular staff member
)

// CompanyStatus is the membership state reported by /auth/me/company-status.
// It is never persisted and is re-fetched on every protected navigation.
type CompanyStatus string

const (
	CompanyUnset   CompanyStatus = ""
	CompanyPending CompanyStatus = "pending"
	CompanyActive  CompanyStatus = "active"
)

// ParseCompanyStatus maps the server's status string. Anything other than
// pending or active (e.g. "none") is treated as unset.
func ParseCompanyStatus(s string) CompanyStatus {
	switch CompanyStatus(strings.ToLower(strings.TrimSpace(s))) {
	case CompanyActive:
		return CompanyActive
	case CompanyPending:
		return CompanyPending
	default:
		return CompanyUnset
	}
}

func (c CompanyStatus) IsActive() bool {
	return c == CompanyActive
}

// User is the server's view of the signed-in operator, cached locally and
// refreshed on every protected navigation.
type User struct {
	ID           int64           `json:"id"`
	FullName     string          `json:"full_name"`
	Email        string          `json:"email"`
	Phone        string          `json:"phone"`
	ActivityType ActivityType    `json:"activity_type"`
	AvatarURL    *string         `json:"avatar_url"`
	SoundEnabled bool            `json:"sound_enabled"`
	IsActive     bool            `json:"is_active"`
	CreatedAt    utils.Timestamp `json:"created_at"`

	// Company membership, nil until the user joins or creates a company
	CompanyID   *int64    `json:"company_id"`
	CompanyName *string   `json:"company_name"`
	CompanyINN  *string   `json:"company_inn"`
	Role        *RoleType `json:"role"`
}

// Clone returns a deep copy so callers can't mutate cached session state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.AvatarURL = clonePtr(u.AvatarURL)
	c.CompanyID = clonePtr(u.CompanyID)
	c.CompanyName = clonePtr(u.CompanyName)
	c.CompanyINN = clonePtr(u.CompanyINN)
	c.Role = clonePtr(u.Role)
	return &c
}

func (u *User) HasCompany() bool {
	return u != nil && u.CompanyID != nil
}

func (u *User) HasRole(role RoleType) bool {
	return u != nil && u.Role != nil && *u.Role == role
}

// DisplayName falls back to the email when no full name was registered.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return u.Email
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

const minPasswordLength = 6

// ValidatePassword checks the registration password rules:
// - at least 6 characters long
// - equal to its confirmation
func ValidatePassword(password, confirmation string) error {
	if password != confirmation {
		return fmt.Errorf("passwords do not match")
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLength)
	}
	return nil
}

// ValidateINN checks a company taxpayer number: exactly 9 digits.
func ValidateINN(inn string) bool {
	if len(inn) != 9 {
		return false
	}
	for _, r := range inn {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

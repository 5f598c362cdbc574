package customsapi

import (
	"encoding/json"

	"github.com/jrsteele09/customs-console/internal/utils"
	"github.com/jrsteele09/customs-console/users"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminLoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Code     string `json:"code"`
}

// TokenResponse is returned by both login endpoints. The admin endpoint
// leaves UserID and IsAdmin at their zero values.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      int64  `json:"user_id"`
	IsAdmin     bool   `json:"is_admin"`
}

type RegisterRequest struct {
	FullName     string             `json:"full_name"`
	Email        string             `json:"email"`
	Phone        string             `json:"phone"`
	ActivityType users.ActivityType `json:"activity_type"`
	Password     string             `json:"password"`
}

type RegisterResponse struct {
	Message           string `json:"message"`
	UserID            int64  `json:"user_id"`
	NeedsCompanySetup bool   `json:"needs_company_setup"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type CompanyStatusResponse struct {
	Status string `json:"status"`
}

type CompanyCreateRequest struct {
	Name string `json:"name"`
	INN  string `json:"inn"`
}

type CompanyJoinRequest struct {
	INN string `json:"inn"`
}

type CompanyLookupResponse struct {
	Found       bool    `json:"found"`
	CompanyName *string `json:"company_name"`
	CompanyID   *int64  `json:"company_id"`
}

// Notification mirrors one server-side notification record.
type Notification struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   *string         `json:"message"`
	IsRead    bool            `json:"is_read"`
	Data      json.RawMessage `json:"data"`
	CreatedAt utils.Timestamp `json:"created_at"`
}

type NotificationList struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	Total         int            `json:"total"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

// MarkReadRequest marks the listed ids as read; nil ids means every
// notification.
type MarkReadRequest struct {
	NotificationIDs []int64 `json:"notification_ids"`
}

type SoundRequest struct {
	Enabled bool `json:"enabled"`
}

type SoundStatusResponse struct {
	Enabled bool `json:"enabled"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

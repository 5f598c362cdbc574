package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jrsteele09/customs-console/internal/errors"
)

// Kind is the central classification of a failed API call.
type Kind int

const (
	KindOther Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindValidation
	KindServer
	KindUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindUnreachable:
		return "unreachable"
	default:
		return "other"
	}
}

func kindForStatus(status int) Kind {
	switch status {
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	case 404:
		return KindNotFound
	case 422:
		return KindValidation
	case 500:
		return KindServer
	default:
		return KindOther
	}
}

const (
	GenericMessage     = "an error occurred"
	ServerMessage      = "server error"
	UnreachableMessage = "server unreachable, check your connection"
)

// ErrorInfo is the API error payload reduced to one message. The API sends
// detail either as a string or as a list of {msg} objects.
type ErrorInfo struct {
	Message string
}

// ParseErrorInfo never fails; anything it can't read becomes GenericMessage.
func ParseErrorInfo(body []byte) ErrorInfo {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return ErrorInfo{Message: GenericMessage}
	}

	detail := bytes.TrimSpace(payload.Detail)
	switch {
	case len(detail) > 0 && detail[0] == '"':
		var s string
		if err := json.Unmarshal(detail, &s); err == nil && s != "" {
			return ErrorInfo{Message: s}
		}
	case len(detail) > 0 && detail[0] == '[':
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return ErrorInfo{Message: strings.Join(msgs, ", ")}
			}
		}
	}
	return ErrorInfo{Message: GenericMessage}
}

// Error is returned for every failed call. errors.Is matches it against the
// sentinel for its Kind.
type Error struct {
	Kind   Kind
	Status int
	Info   ErrorInfo
	Method string
	Path   string
	cause  error
}

func (e *Error) Error() string {
	if e.Kind == KindUnreachable {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, UnreachableMessage, e.cause)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Info.Message)
}

func (e *Error) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func (e *Error) sentinel() error {
	switch e.Kind {
	case KindUnauthorized:
		return errors.ErrUnauthorized
	case KindForbidden:
		return errors.ErrForbidden
	case KindNotFound:
		return errors.ErrNotFound
	case KindValidation:
		return errors.ErrValidation
	case KindServer:
		return errors.ErrServer
	case KindUnreachable:
		return errors.ErrUnreachable
	default:
		return errors.ErrRequestFailed
	}
}

// ToastMessage is the operator-facing copy for this error. 401 has none: it
// is handled by logging out and redirecting.
func (e *Error) ToastMessage() string {
	switch e.Kind {
	case KindUnauthorized:
		return ""
	case KindForbidden:
		return "access denied: " + e.Info.Message
	case KindNotFound:
		return "not found: " + e.Info.Message
	case KindValidation:
		return "validation error: " + e.Info.Message
	case KindServer:
		return ServerMessage
	case KindUnreachable:
		return UnreachableMessage
	default:
		return e.Info.Message
	}
}

// AsError extracts the gateway error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

package rbac

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is the stable reason string API consumers branch on.
type Code string

// Denial reason codes.
const (
	CodeNotAuthenticated       Code = "NOT_AUTHENTICATED"
	CodeNoToken                Code = "NO_TOKEN"
	CodeTokenExpired           Code = "TOKEN_EXPIRED"
	CodeInvalidToken           Code = "INVALID_TOKEN"
	CodeInsufficientRole       Code = "INSUFFICIENT_ROLE"
	CodeInsufficientPermission Code = "INSUFFICIENT_PERMISSION"
	CodeNotResourceOwner       Code = "NOT_RESOURCE_OWNER"
)

// HTTPStatus maps the code to the response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotAuthenticated, CodeNoToken, CodeTokenExpired, CodeInvalidToken:
		return http.StatusUnauthorized
	case CodeInsufficientRole, CodeInsufficientPermission, CodeNotResourceOwner:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Sentinel errors matched by Denial through errors.Is.
var (
	ErrNotAuthenticated       = errors.New("rbac: not authenticated")
	ErrInsufficientRole       = errors.New("rbac: insufficient role")
	ErrInsufficientPermission = errors.New("rbac: insufficient permission")
	ErrNotResourceOwner       = errors.New("rbac: not resource owner")
)

// Denial is the structured reason a request was refused.
type Denial struct {
	Code    Code
	Message string
	Context map[string]any
}

// NewDenial builds a Denial with optional diagnostic context.
func NewDenial(code Code, message string, context map[string]any) *Denial {
	return &Denial{Code: code, Message: message, Context: context}
}

func (d *Denial) Error() string {
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// Is lets callers match a Denial against the package sentinels.
func (d *Denial) Is(target error) bool {
	switch target {
	case ErrNotAuthenticated:
		return d.Code == CodeNotAuthenticated
	case ErrInsufficientRole:
		return d.Code == CodeInsufficientRole
	case ErrInsufficientPermission:
		return d.Code == CodeInsufficientPermission
	case ErrNotResourceOwner:
		return d.Code == CodeNotResourceOwner
	}
	return false
}

// Status returns the HTTP status for the denial.
func (d *Denial) Status() int {
	return d.Code.HTTPStatus()
}

// Body renders the denial as the response envelope.
func (d *Denial) Body() map[string]any {
	body := make(map[string]any, len(d.Context)+3)
	for k, v := range d.Context {
		body[k] = v
	}
	body["success"] = false
	body["message"] = d.Message
	body["code"] = string(d.Code)
	return body
}

// MarshalJSON encodes the response envelope.
func (d *Denial) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Body())
}

// ConfigError reports a malformed hierarchy, matrix or guard definition.
// It must stop the process at startup; it is never a per-request outcome.
type ConfigError struct {
	Component string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rbac: invalid %s: %s", e.Component, e.Reason)
}

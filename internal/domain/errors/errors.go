package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for different domains
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeBusiness   ErrorType = "business"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 400,
	}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       code,
		Message:    message,
		Retryable:  false,
		StatusCode: 422,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: 500,
	}
}

// NewNoCoverageError rejects a recommendation request whose required menu
// items include at least one that no role grants. A partial answer would be
// misleading for a provisioning decision, so the whole request fails.
func NewNoCoverageError(uncoverableItems []string) *AppError {
	return &AppError{
		Type:       ErrorTypeBusiness,
		Code:       "NO_COVERAGE_FOUND",
		Message:    fmt.Sprintf("no role covers menu items: %s", strings.Join(uncoverableItems, ", ")),
		Retryable:  false,
		StatusCode: 422,
		Details:    map[string]interface{}{"uncoverable_items": uncoverableItems},
	}
}

// NewDuplicateRoleError rejects a security index build containing the same
// role id with conflicting definitions
func NewDuplicateRoleError(roleID string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       "DUPLICATE_ROLE_DEFINITION",
		Message:    fmt.Sprintf("role %s defined twice with conflicting menu item sets", roleID),
		Retryable:  false,
		StatusCode: 422,
		Details:    map[string]interface{}{"role_id": roleID},
	}
}

// NewDuplicateConflictRuleError rejects a conflict matrix build in which two
// rules target the same role pair with different severities and neither
// supersedes the other
func NewDuplicateConflictRuleError(roleA, roleB string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       "DUPLICATE_CONFLICT_RULE",
		Message:    fmt.Sprintf("ambiguous conflict rules for role pair (%s, %s)", roleA, roleB),
		Retryable:  false,
		StatusCode: 422,
		Details:    map[string]interface{}{"role_a": roleA, "role_b": roleB},
	}
}

// NewInvalidTransitionError reports a pattern lifecycle event fired in a state
// that does not accept it. This is a programming or ordering bug in the
// caller, never retried.
func NewInvalidTransitionError(state, event string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INVALID_TRANSITION",
		Message:    fmt.Sprintf("pattern in state %s does not accept event %s", state, event),
		Retryable:  false,
		StatusCode: 500,
		Details:    map[string]interface{}{"state": state, "event": event},
	}
}

// Predefined common errors
var (
	ErrSnapshotNotReady = NewInternalError("no security snapshot has been published yet")
)

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsCode checks if an error carries a specific application code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return 500
}

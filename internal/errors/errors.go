package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Every domain error wraps exactly one of them.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("authentication error")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage error")
)

var (
	// ErrUsernameTaken is returned when signing up with an existing username.
	ErrUsernameTaken = newKind(ErrValidation, "Username already exists")
	// ErrWeakPassword is returned when a user password is below the minimum length.
	ErrWeakPassword = newKind(ErrValidation, "Password must be at least 4 characters")
	// ErrWeakAdminPassword is returned when an admin password is below the minimum length.
	ErrWeakAdminPassword = newKind(ErrValidation, "Password must be at least 6 characters")
	// ErrMissingCredentials is returned when username or password is empty.
	ErrMissingCredentials = newKind(ErrValidation, "Username and password required")
	// ErrTaskTextRequired is returned when a task would have no text.
	ErrTaskTextRequired = newKind(ErrValidation, "Task text required")
	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = newKind(ErrValidation, "Date must be formatted as YYYY-MM-DD")
	// ErrInvalidPriority is returned for unknown priorities.
	ErrInvalidPriority = newKind(ErrValidation, "Priority must be one of high, medium, low")
	// ErrInvalidRecurrence is returned for unknown recurrence rules.
	ErrInvalidRecurrence = newKind(ErrValidation, "Recurrence must be one of none, daily, weekly, monthly")

	// ErrInvalidCredentials is returned when username or password is wrong.
	ErrInvalidCredentials = newKind(ErrAuth, "Invalid credentials")
	// ErrUnauthorized is returned by the auth gates for any token failure.
	ErrUnauthorized = newKind(ErrAuth, "Invalid or expired token")
	// ErrInvalidAdminKey is returned when the admin signup key does not match.
	ErrInvalidAdminKey = newKind(ErrForbidden, "Invalid admin key")
	// ErrAdminRequired is returned when a non-admin token reaches an admin route.
	ErrAdminRequired = newKind(ErrForbidden, "Admin access required")

	// ErrUserNotFound is returned for unknown usernames.
	ErrUserNotFound = newKind(ErrNotFound, "User not found")
	// ErrTaskNotFound is returned for unknown task ids.
	ErrTaskNotFound = newKind(ErrNotFound, "Task not found")
)

// kindError is a domain error carrying a client-safe message and its kind.
type kindError struct {
	kind error
	msg  string
}

func newKind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Storage wraps an I/O failure of the persistence layer.
func Storage(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var codes = map[error]string{
	ErrUsernameTaken:      "USERNAME_TAKEN",
	ErrWeakPassword:       "WEAK_PASSWORD",
	ErrWeakAdminPassword:  "WEAK_PASSWORD",
	ErrMissingCredentials: "MISSING_CREDENTIALS",
	ErrTaskTextRequired:   "TASK_TEXT_REQUIRED",
	ErrInvalidDate:        "INVALID_DATE",
	ErrInvalidPriority:    "INVALID_PRIORITY",
	ErrInvalidRecurrence:  "INVALID_RECURRENCE",
	ErrInvalidCredentials: "INVALID_CREDENTIALS",
	ErrUnauthorized:       "UNAUTHORIZED",
	ErrInvalidAdminKey:    "INVALID_ADMIN_KEY",
	ErrAdminRequired:      "ADMIN_REQUIRED",
	ErrUserNotFound:       "USER_NOT_FOUND",
	ErrTaskNotFound:       "TASK_NOT_FOUND",
}

var kindCodes = map[error]string{
	ErrValidation: "VALIDATION_ERROR",
	ErrAuth:       "UNAUTHORIZED",
	ErrForbidden:  "FORBIDDEN",
	ErrNotFound:   "NOT_FOUND",
}

// MapErrorToHTTP maps domain errors to HTTP errors. Storage failures and
// unknown errors never leak their text.
func MapErrorToHTTP(err error) *HTTPError {
	var ke *kindError
	if errors.As(err, &ke) {
		code, ok := codes[error(ke)]
		if !ok {
			code = kindCodes[ke.kind]
		}
		switch ke.kind {
		case ErrValidation:
			return NewHTTPError(http.StatusBadRequest, ke.msg, code)
		case ErrAuth:
			return NewHTTPError(http.StatusUnauthorized, ke.msg, code)
		case ErrForbidden:
			return NewHTTPError(http.StatusForbidden, ke.msg, code)
		case ErrNotFound:
			return NewHTTPError(http.StatusNotFound, ke.msg, code)
		}
	}
	if errors.Is(err, ErrStorage) {
		return NewHTTPError(http.StatusInternalServerError, "storage error", "STORAGE_ERROR")
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}

// Validation builds an ad-hoc validation error with a client-safe message.
func Validation(msg string) error {
	return newKind(ErrValidation, msg)
}

// Is forwards to the standard library so callers need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As forwards to the standard library.
func As(err error, target any) bool { return errors.As(err, target) }

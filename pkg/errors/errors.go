package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// AppError is implemented by every error that maps onto an HTTP response
type AppError interface {
	error
	HTTPStatus() int
	Code() string
}

// NotFoundError is returned when a clinic, doctor, patient or token does not exist
type NotFoundError struct {
	Resource string
	ID       string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.ID != "" {
		return fmt.Sprintf("%s with ID '%s' not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) HTTPStatus() int { return http.StatusNotFound }
func (e *NotFoundError) Code() string    { return "NOT_FOUND" }

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewNotFoundMessage creates a NotFoundError with a caller-facing message
func NewNotFoundMessage(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

// ValidationError represents invalid input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" && e.Field != "body" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) HTTPStatus() int { return http.StatusBadRequest }
func (e *ValidationError) Code() string    { return "VALIDATION_ERROR" }

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewBadRequest creates a ValidationError that is not bound to a field
func NewBadRequest(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// FieldErrors collects validation failures keyed by field, in the shape
// the registration form expects: {"phone_number": ["..."]}
type FieldErrors map[string][]string

// Add records a message for a field
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Empty reports whether no field failed
func (fe FieldErrors) Empty() bool { return len(fe) == 0 }

func (fe FieldErrors) Error() string {
	fields := make([]string, 0, len(fe))
	for f := range fe {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(fe[f], "; ")))
	}
	return strings.Join(parts, ", ")
}

func (fe FieldErrors) HTTPStatus() int { return http.StatusBadRequest }
func (fe FieldErrors) Code() string    { return "VALIDATION_ERROR" }

// PermissionError represents a role that may not perform the action
type PermissionError struct {
	Action   string
	Resource string
	Message  string
}

func (e *PermissionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permission denied: cannot %s %s", e.Action, e.Resource)
}

func (e *PermissionError) HTTPStatus() int { return http.StatusForbidden }
func (e *PermissionError) Code() string    { return "PERMISSION_DENIED" }

// NewPermissionError creates a new PermissionError
func NewPermissionError(action, resource string) *PermissionError {
	return &PermissionError{Action: action, Resource: resource}
}

// NewForbidden creates a PermissionError with a caller-facing message
func NewForbidden(message string) *PermissionError {
	return &PermissionError{Message: message}
}

// UnauthorizedError represents authentication failures
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unauthorized: %s", e.Reason)
	}
	return "unauthorized"
}

func (e *UnauthorizedError) HTTPStatus() int { return http.StatusUnauthorized }
func (e *UnauthorizedError) Code() string    { return "UNAUTHORIZED" }

// NewUnauthorizedError creates a new UnauthorizedError
func NewUnauthorizedError(reason string) *UnauthorizedError {
	return &UnauthorizedError{Reason: reason}
}

// ConflictError represents a collision with existing data
type ConflictError struct {
	Resource string
	Field    string
	Value    string
}

func (e *ConflictError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("%s already exists with %s='%s'", e.Resource, e.Field, e.Value)
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

func (e *ConflictError) HTTPStatus() int { return http.StatusConflict }
func (e *ConflictError) Code() string    { return "CONFLICT" }

// NewConflictError creates a new ConflictError
func NewConflictError(resource, field, value string) *ConflictError {
	return &ConflictError{Resource: resource, Field: field, Value: value}
}

// InternalError represents unexpected server errors
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s (caused by: %v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) HTTPStatus() int { return http.StatusInternalServerError }
func (e *InternalError) Code() string    { return "INTERNAL_ERROR" }
func (e *InternalError) Unwrap() error   { return e.Cause }

// NewInternalError creates a new InternalError
func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{Message: message, Cause: cause}
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

// IsValidation checks if an error is a ValidationError or FieldErrors
func IsValidation(err error) bool {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return true
	}
	var fields FieldErrors
	return errors.As(err, &fields)
}

// IsPermission checks if an error is a PermissionError
func IsPermission(err error) bool {
	var permission *PermissionError
	return errors.As(err, &permission)
}

// IsUnauthorized checks if an error is an UnauthorizedError
func IsUnauthorized(err error) bool {
	var unauthorized *UnauthorizedError
	return errors.As(err, &unauthorized)
}

// IsConflict checks if an error is a ConflictError
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}

// GetHTTPStatus returns the HTTP status code for an error.
// Errors that do not implement AppError map to 500.
func GetHTTPStatus(err error) int {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// GetErrorCode returns the machine-readable code for an error
func GetErrorCode(err error) string {
	var appErr AppError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return "UNKNOWN_ERROR"
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ToResponse converts an error to an ErrorResponse
func ToResponse(err error) ErrorResponse {
	resp := ErrorResponse{
		Code:    GetErrorCode(err),
		Message: err.Error(),
	}
	var fields FieldErrors
	if errors.As(err, &fields) {
		resp.Details = fields
	}
	return resp
}

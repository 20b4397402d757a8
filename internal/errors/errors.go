// Package errors provides custom error types for the grievedesk client.
//
// This package defines domain-specific errors that let controllers pick the
// right recovery for each failure class:
//   - ValidationError: local required-field failure, the request is never sent
//   - FetchError: network/transport failure, surfaced as a generic message
//   - ServerError: the portal answered with success:false or a 4xx/5xx status
//   - NotAuthenticatedError: the portal has no session for our cookie
//   - LoginFailedError: credentials rejected or login transport failure
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// NotAuthenticatedError indicates that the portal has no admin session for
// the current cookie jar.
//
// Recovery strategy: show the login view, or re-login when running unattended.
type NotAuthenticatedError struct {
	Message string
}

func (e *NotAuthenticatedError) Error() string {
	return fmt.Sprintf("not authenticated: %s", e.Message)
}

// NewNotAuthenticatedError creates a new not-authenticated error with context
func NewNotAuthenticatedError(msg string) *NotAuthenticatedError {
	return &NotAuthenticatedError{Message: msg}
}

// LoginFailedError indicates that a login attempt failed.
//
// This error is returned when:
//   - The portal rejects the credentials
//   - The login request cannot be sent or decoded
type LoginFailedError struct {
	Message string
	Err     error
}

func (e *LoginFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("login failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("login failed: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *LoginFailedError) Unwrap() error {
	return e.Err
}

// NewLoginFailedError creates a new login failed error with context
func NewLoginFailedError(msg string, err error) *LoginFailedError {
	return &LoginFailedError{Message: msg, Err: err}
}

// FetchError wraps transport-level failures: connection refused, timeouts,
// cancelled contexts and bodies that are not JSON.
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("fetch error: %s", e.Message)
}

// Unwrap returns the wrapped error for error chain inspection
func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError creates a new fetch error with context
func NewFetchError(msg string, err error) *FetchError {
	return &FetchError{Message: msg, Err: err}
}

// ServerError is a business failure reported by the portal.
type ServerError struct {
	Status  int
	Code    Code
	Message string
}

func (e *ServerError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("server error (%d, %s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server error (%s): %s", e.Code, e.Message)
}

// NewServerError builds a ServerError, resolving the code from the explicit
// code field when present and from the message otherwise.
func NewServerError(status int, code, message string) *ServerError {
	return &ServerError{
		Status:  status,
		Code:    ResolveCode(code, message),
		Message: message,
	}
}

// ValidationError lists required fields that were left blank.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// NewValidationError creates a validation error for the given field names
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// IsLoginFailed checks if the error is a login failure error
func IsLoginFailed(err error) bool {
	var target *LoginFailedError
	return stderrors.As(err, &target)
}

// IsNotAuthenticated checks if the error is a not-authenticated error
func IsNotAuthenticated(err error) bool {
	var target *NotAuthenticatedError
	return stderrors.As(err, &target)
}

// IsFetch checks if the error is a transport failure
func IsFetch(err error) bool {
	var target *FetchError
	return stderrors.As(err, &target)
}

// IsValidation checks if the error is a local validation failure
func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

// AsServer returns the ServerError in err's chain, if any.
func AsServer(err error) (*ServerError, bool) {
	var target *ServerError
	if stderrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the bot core, the gateway router and the HTTP layer.
const (
	CodeAlreadyOpen         = "ALREADY_OPEN"
	CodeAlreadyClaimed      = "ALREADY_CLAIMED"
	CodeNotPrivileged       = "NOT_PRIVILEGED"
	CodeNotFound            = "NOT_FOUND"
	CodeProvisioningFailure = "PROVISIONING_FAILURE"
	CodeArchivalFailure     = "ARCHIVAL_FAILURE"
	CodePersistenceFailure  = "PERSISTENCE_FAILURE"
	CodeValidationFailed    = "VALIDATION_FAILED"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Rejection reports whether the error is a user-facing refusal rather than a failure.
func (e *DomainError) Rejection() bool {
	switch e.Code {
	case CodeAlreadyOpen, CodeAlreadyClaimed, CodeNotPrivileged, CodeNotFound, CodeValidationFailed:
		return true
	}
	return false
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewAlreadyOpen(details map[string]any) error {
	return NewDomainError(CodeAlreadyOpen, "you already have an open ticket", http.StatusConflict, details)
}

func NewAlreadyClaimed(details map[string]any) error {
	return NewDomainError(CodeAlreadyClaimed, "ticket already claimed", http.StatusConflict, details)
}

func NewNotPrivileged(message string) error {
	return NewDomainError(CodeNotPrivileged, message, http.StatusForbidden, nil)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewProvisioningFailure(err error) error {
	return &DomainError{
		Code:       CodeProvisioningFailure,
		Message:    "could not provision ticket channel",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewArchivalFailure(err error) error {
	return &DomainError{
		Code:       CodeArchivalFailure,
		Message:    "could not archive ticket transcript",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewPersistenceFailure(err error) error {
	return &DomainError{
		Code:       CodePersistenceFailure,
		Message:    "could not persist engagement ledger",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

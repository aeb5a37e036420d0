// Package errors provides structured error handling for shodan-notifier.
// It defines error codes and typed errors for the lookup, storage, publishing
// and configuration stages of a notifier run.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeTimeout       ErrorCode = "TIMEOUT"
	CodeCanceled      ErrorCode = "CANCELED"

	// Lookup errors.
	CodeLookupFailed   ErrorCode = "LOOKUP_FAILED"
	CodeHostNotFound   ErrorCode = "HOST_NOT_FOUND"
	CodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	CodeRateLimited    ErrorCode = "RATE_LIMITED"
	CodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"

	// Snapshot store errors.
	CodeFileNotFound    ErrorCode = "FILE_NOT_FOUND"
	CodeSnapshotRead    ErrorCode = "SNAPSHOT_READ"
	CodeSnapshotWrite   ErrorCode = "SNAPSHOT_WRITE"
	CodeSnapshotCorrupt ErrorCode = "SNAPSHOT_CORRUPT"
	CodeDirectoryCreate ErrorCode = "DIRECTORY_CREATE"

	// Publish errors.
	CodePublishFailed      ErrorCode = "PUBLISH_FAILED"
	CodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// LookupError is returned when the host lookup for a single target fails.
type LookupError struct {
	Code       ErrorCode
	Message    string
	Target     string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Target != "" {
		msg += fmt.Sprintf(" (target: %s)", e.Target)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *LookupError) Unwrap() error {
	return e.Cause
}

// NewLookupError creates a lookup error for a specific target.
func NewLookupError(code ErrorCode, message, target string) *LookupError {
	return &LookupError{
		Code:    code,
		Message: message,
		Target:  target,
	}
}

// WrapLookupError wraps an existing error as a lookup error.
func WrapLookupError(code ErrorCode, message, target string, err error) *LookupError {
	return &LookupError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
	}
}

// WithStatus records the HTTP status returned by the lookup API.
func (e *LookupError) WithStatus(status int) *LookupError {
	e.StatusCode = status
	return e
}

// StoreError represents snapshot persistence errors.
type StoreError struct {
	Code      ErrorCode
	Message   string
	Path      string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path: %s)", e.Path)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a store error for the given path.
func NewStoreError(code ErrorCode, message, path string) *StoreError {
	return &StoreError{
		Code:    code,
		Message: message,
		Path:    path,
	}
}

// WrapStoreError wraps an existing error as a store error.
func WrapStoreError(code ErrorCode, operation, path string, err error) *StoreError {
	return &StoreError{
		Code:      code,
		Message:   operation + " failed",
		Path:      path,
		Operation: operation,
		Cause:     err,
	}
}

// PublishError represents a failed report delivery.
type PublishError struct {
	Code          ErrorCode
	Message       string
	Provider      string
	ProviderError string
	Cause         error
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Provider != "" {
		msg += fmt.Sprintf(" (provider: %s)", e.Provider)
	}
	if e.ProviderError != "" {
		msg += ": " + e.ProviderError
	} else if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *PublishError) Unwrap() error {
	return e.Cause
}

// NewPublishError creates a publish error carrying the provider's error string.
func NewPublishError(provider, providerError string) *PublishError {
	return &PublishError{
		Code:          CodePublishFailed,
		Message:       "Report delivery failed",
		Provider:      provider,
		ProviderError: providerError,
	}
}

// WrapPublishError wraps a transport error as a publish error.
func WrapPublishError(provider string, err error) *PublishError {
	return &PublishError{
		Code:     CodePublishFailed,
		Message:  "Report delivery failed",
		Provider: provider,
		Cause:    err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new configuration error.
func NewConfigError(code ErrorCode, message string) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
	}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var lookupErr *LookupError
	if stderrors.As(err, &lookupErr) {
		return lookupErr.Code
	}
	var storeErr *StoreError
	if stderrors.As(err, &storeErr) {
		return storeErr.Code
	}
	var publishErr *PublishError
	if stderrors.As(err, &publishErr) {
		return publishErr.Code
	}
	var configErr *ConfigError
	if stderrors.As(err, &configErr) {
		return configErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsFatal determines if an error should stop the whole run rather than be
// recorded against a single target or delivery attempt.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeConfiguration, CodeValidation, CodeSnapshotCorrupt, CodeSnapshotRead,
		CodeSnapshotWrite, CodeDirectoryCreate:
		return true
	default:
		return false
	}
}

// Common error creation functions

// ErrHostNotFound creates an error for addresses the lookup API has no data for.
func ErrHostNotFound(target string) *LookupError {
	return NewLookupError(CodeHostNotFound, "No information available for host", target)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}

// ErrConfigMissing creates an error for missing required configuration.
func ErrConfigMissing(field string) *ConfigError {
	return NewConfigFieldError(CodeConfiguration, "Required configuration field missing", field, nil)
}

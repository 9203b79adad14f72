// Package errors provides structured error handling for violette operations.
// It defines error codes, error types, and utilities for creating and
// inspecting errors across the scan, store, and configuration boundaries.
package errors

import (
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

	// Target resolution errors.
	CodeInvalidRange ErrorCode = "INVALID_RANGE"

	// Engine errors, recorded per host and never fatal to a run.
	CodeHostUnreachable  ErrorCode = "HOST_UNREACHABLE"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeProtocolError    ErrorCode = "PROTOCOL_ERROR"
	CodeScanFailed       ErrorCode = "SCAN_FAILED"

	// Storage errors.
	CodePersistence ErrorCode = "PERSISTENCE"
	CodeNotFound    ErrorCode = "NOT_FOUND"
)

// ScanError represents an error that occurred while scanning a target.
type ScanError struct {
	Code    ErrorCode
	Message string
	Target  string
	Cause   error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{Code: code, Message: message}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{Code: code, Message: message, Target: target}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Cause: err}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{Code: code, Message: message, Target: target, Cause: err}
}

// StoreError represents storage-layer errors.
type StoreError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new storage error.
func NewStoreError(code ErrorCode, message string) *StoreError {
	return &StoreError{Code: code, Message: message}
}

// WrapStoreError wraps an existing error as a storage error for an operation.
func WrapStoreError(operation string, err error) *StoreError {
	return &StoreError{
		Code:      CodePersistence,
		Message:   fmt.Sprintf("storage operation failed: %s", operation),
		Operation: operation,
		Cause:     err,
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
	return &ConfigError{Code: code, Message: message}
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{Code: code, Message: message, Field: field, Value: value}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error if it has one.
func GetCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ScanError:
		return e.Code
	case *StoreError:
		return e.Code
	case *ConfigError:
		return e.Code
	}
	return CodeUnknown
}

// IsFatal determines if an error indicates a condition that should stop the
// process. Per-host scan and storage errors are contained within their task
// and never fatal; only startup-time configuration problems are.
func IsFatal(err error) bool {
	switch GetCode(err) {
	case CodeInvalidRange, CodeConfiguration, CodeValidation:
		return true
	default:
		return false
	}
}

// ErrInvalidRange creates an error for a malformed CIDR or exclusion entry.
func ErrInvalidRange(input string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeInvalidRange, "invalid target range", input, err)
}

// ErrScanTimeout creates an error for per-host scan timeouts.
func ErrScanTimeout(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTimeout, "scan deadline exceeded", target)
}

// ErrHostUnreachable creates an error for unreachable hosts.
func ErrHostUnreachable(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeHostUnreachable, "host is unreachable", target, err)
}

// ErrPermissionDenied creates an error for probes rejected by the OS,
// typically raw-socket scans without sufficient privileges.
func ErrPermissionDenied(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodePermissionDenied, "insufficient privileges for scan", target, err)
}

// ErrProtocolError creates an error for malformed engine responses.
func ErrProtocolError(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeProtocolError, "engine returned malformed response", target, err)
}

// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below unwrap to one or more of these so
// callers can use errors.Is without knowing the concrete type.
var (
	ErrNotConnected       = errors.New("store not connected")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrValidationFailed   = errors.New("validation failed")
	ErrProtected          = errors.New("resource is protected")
	ErrConflictingConfig  = errors.New("conflicting configuration")
	ErrInvalidRange       = errors.New("invalid VLAN range")
	ErrInvalidValue       = errors.New("invalid value")
	ErrPoolExhausted      = errors.New("internal VLAN pool exhausted")
	ErrNotAllocated       = errors.New("VLAN not allocated")
	ErrNotSupported       = errors.New("not supported on this platform")
	ErrPreconditionFailed = errors.New("precondition not met")
	ErrPermissionDenied   = errors.New("permission denied")
)

// Code classifies a rejected configuration change.
type Code string

const (
	CodeDuplicateVlanID   Code = "DuplicateVlanId"
	CodeProtectedResource Code = "ProtectedResource"
	CodeConflictingConfig Code = "ConflictingConfig"
	CodeInvalidRange      Code = "InvalidRange"
	CodeInvalidValue      Code = "InvalidValue"
	CodeNotFound          Code = "NotFound"
	CodeAlreadyExists     Code = "AlreadyExists"
)

var codeSentinels = map[Code]error{
	CodeDuplicateVlanID:   ErrAlreadyExists,
	CodeProtectedResource: ErrProtected,
	CodeConflictingConfig: ErrConflictingConfig,
	CodeInvalidRange:      ErrInvalidRange,
	CodeInvalidValue:      ErrInvalidValue,
	CodeNotFound:          ErrNotFound,
	CodeAlreadyExists:     ErrAlreadyExists,
}

// ValidationError is a rejected configuration change with a stable code.
type ValidationError struct {
	Code      Code
	Operation string
	Resource  string
	Details   string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: %s %s", e.Code, e.Operation, e.Resource)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

// Unwrap exposes ErrValidationFailed plus the sentinel for the code.
func (e *ValidationError) Unwrap() []error {
	errs := []error{ErrValidationFailed}
	if s, ok := codeSentinels[e.Code]; ok {
		errs = append(errs, s)
	}
	return errs
}

// NewValidationError creates a validation error
func NewValidationError(code Code, operation, resource, details string) *ValidationError {
	return &ValidationError{
		Code:      code,
		Operation: operation,
		Resource:  resource,
		Details:   details,
	}
}

// CodeOf returns the validation code carried by err, or "" if err is not
// a validation error.
func CodeOf(err error) Code {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// IsCode reports whether err carries the given validation code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// PreconditionError represents a failed precondition check with context
type PreconditionError struct {
	Operation    string
	Resource     string
	Precondition string
	Details      string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed for %s on %s: %s", e.Operation, e.Resource, e.Precondition)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(operation, resource, precondition, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: precondition,
		Details:      details,
	}
}

// ExhaustedError is returned when the internal VLAN pool has no free id.
type ExhaustedError struct {
	Start, End int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no free internal VLAN in range %d-%d", e.Start, e.End)
}

func (e *ExhaustedError) Unwrap() error {
	return ErrPoolExhausted
}

package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError(CodeProtectedResource, "delete", "VLAN 1", "DEFAULT_VLAN_1 cannot be deleted")

	msg := err.Error()
	for _, want := range []string{"ProtectedResource", "delete", "VLAN 1", "cannot be deleted"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}

	if !errors.Is(err, ErrValidationFailed) {
		t.Error("ValidationError should unwrap to ErrValidationFailed")
	}
	if !errors.Is(err, ErrProtected) {
		t.Error("ProtectedResource should unwrap to ErrProtected")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("ProtectedResource should not unwrap to ErrNotFound")
	}
}

func TestValidationError_NoDetails(t *testing.T) {
	err := NewValidationError(CodeNotFound, "modify", "port 1", "")
	if strings.HasSuffix(err.Error(), ": ") {
		t.Errorf("Error() should not end with an empty details separator: %q", err.Error())
	}
}

func TestValidationError_Sentinels(t *testing.T) {
	tests := []struct {
		code Code
		want error
	}{
		{CodeDuplicateVlanID, ErrAlreadyExists},
		{CodeAlreadyExists, ErrAlreadyExists},
		{CodeConflictingConfig, ErrConflictingConfig},
		{CodeInvalidRange, ErrInvalidRange},
		{CodeInvalidValue, ErrInvalidValue},
		{CodeNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := NewValidationError(tt.code, "op", "res", "")
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%s, %v) = false", tt.code, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("commit: %w", NewValidationError(CodeInvalidRange, "configure", "internal range", ""))
	if got := CodeOf(err); got != CodeInvalidRange {
		t.Errorf("CodeOf(wrapped) = %q, want %q", got, CodeInvalidRange)
	}
	if !IsCode(err, CodeInvalidRange) {
		t.Error("IsCode(wrapped, InvalidRange) = false")
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError("allocate", "internal VLAN", "range must be configured", "")
	if !strings.Contains(err.Error(), "range must be configured") {
		t.Errorf("Error message should contain precondition: %s", err.Error())
	}
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("PreconditionError should unwrap to ErrPreconditionFailed")
	}
}

func TestExhaustedError(t *testing.T) {
	err := &ExhaustedError{Start: 10, End: 10}
	if !errors.Is(err, ErrPoolExhausted) {
		t.Error("ExhaustedError should unwrap to ErrPoolExhausted")
	}
	if !strings.Contains(err.Error(), "10-10") {
		t.Errorf("Error() = %q, want range in message", err.Error())
	}
}

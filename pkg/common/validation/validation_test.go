package validation

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/vnykmshr/bgflow/pkg/common/errors"
)

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"positive value 1", 1, false},
		{"zero value", 0, true},
		{"negative value", -1, true},
		{"large positive", 1000000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositive("workerpool", "workers", tt.value)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantError bool
	}{
		{"positive value", 10.5, false},
		{"zero value", 0.0, false},
		{"negative value", -1.5, true},
		{"small negative", -0.001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegative("background", "failure_log_rate", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateNonNegative(%v) error = %v, wantError %v", tt.value, err, tt.wantError)
			}
		})
	}
}

func TestValidateNonNegativeDuration(t *testing.T) {
	if err := ValidateNonNegativeDuration("scheduler", "tick_interval", 0); err != nil {
		t.Errorf("zero duration should be valid, got %v", err)
	}
	if err := ValidateNonNegativeDuration("scheduler", "tick_interval", time.Second); err != nil {
		t.Errorf("positive duration should be valid, got %v", err)
	}
	if err := ValidateNonNegativeDuration("scheduler", "tick_interval", -time.Second); err == nil {
		t.Error("negative duration should be rejected")
	}
}

func TestValidateNotNil(t *testing.T) {
	var nilFunc func()
	var nilPtr *int
	one := 1

	tests := []struct {
		name      string
		value     interface{}
		wantError bool
	}{
		{"nil interface", nil, true},
		{"typed nil func", nilFunc, true},
		{"typed nil pointer", nilPtr, true},
		{"func", func() {}, false},
		{"pointer", &one, false},
		{"string", "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotNil("scheduler", "target", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateNotNil() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidateNotEmpty(t *testing.T) {
	if err := ValidateNotEmpty("scheduler", "id", "nightly"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := ValidateNotEmpty("scheduler", "id", "")
	if err == nil {
		t.Fatal("expected error for empty string")
	}
	if !strings.Contains(err.Error(), "provide a non-empty id") {
		t.Errorf("error should carry hint, got %q", err.Error())
	}
}

func TestValidationErrorWrapping(t *testing.T) {
	err := ValidatePositive("workerpool", "workers", 0)
	if !stderrors.Is(err, errors.ErrInvalidConfiguration) {
		t.Error("validation errors should match ErrInvalidConfiguration")
	}

	want := "workerpool: invalid workers=0 (must be positive) - value must be greater than 0"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

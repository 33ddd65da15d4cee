package config

import (
	"strings"
	"time"

	bferrors "github.com/vnykmshr/bgflow/pkg/common/errors"
)

// ParseDurationField parses a Go duration string. Empty means zero;
// negative durations are rejected.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, bferrors.NewValidationError("config", path, raw, "invalid duration").
			WithHint(`use a Go duration such as "250ms" or "1m30s"`)
	}
	if d < 0 {
		return 0, bferrors.NewValidationError("config", path, raw, "must be >= 0")
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

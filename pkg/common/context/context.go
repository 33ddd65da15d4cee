// Package context holds small helpers around the standard context package.
package context

import (
	"context"
	"errors"
)

// IsCanceled returns true if the context has been canceled or has expired.
// It never blocks.
func IsCanceled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// IsCancellation reports whether err is the result of a context ending,
// either by cancellation or by deadline.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

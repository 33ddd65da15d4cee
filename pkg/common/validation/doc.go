// Package validation provides common validation utilities for configuration
// parameters across the bgflow library.
//
// Constructors and config loaders use these helpers so that every rejected
// value surfaces as a *errors.ValidationError with the same message shape.
package validation

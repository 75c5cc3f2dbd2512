// Package errors provides the structured error type (ConvertError) used for
// category-based classification across conversion, optimization, and
// hydration.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies a ConvertError for handling policy decisions.
type Category string

const (
	// CategoryTransform marks a transformer failure; recovered per node.
	CategoryTransform Category = "transform"
	// CategoryConfig marks invalid or contradictory options; fatal to the call.
	CategoryConfig Category = "config"
	// CategoryHydration marks a per-target activation failure; isolated.
	CategoryHydration Category = "hydration"
	// CategoryTree marks a block tree invariant violation; fatal, no output.
	CategoryTree Category = "tree"
	// CategoryRuntime marks infrastructure failures (stores, publishers).
	CategoryRuntime Category = "runtime"
)

// Severity indicates how critical an error is.
type Severity string

const (
	SeverityFatal   Severity = "fatal"   // stops the call
	SeverityError   Severity = "error"   // error, but not fatal to the call
	SeverityWarning Severity = "warning" // continues with degraded output
	SeverityInfo    Severity = "info"    // informational only
)

// ContextFields carries structured context for a ConvertError.
type ContextFields map[string]any

// ConvertError is a structured error with category, severity, retryability,
// and context.
type ConvertError struct {
	Category  Category      `json:"category"`
	Severity  Severity      `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *ConvertError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap supports errors.Is/errors.As chains.
func (e *ConvertError) Unwrap() error {
	return e.Cause
}

// WithContext adds a structured context field and returns the error.
func (e *ConvertError) WithContext(key string, value any) *ConvertError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// WithRetryable marks the error retryable and returns it.
func (e *ConvertError) WithRetryable() *ConvertError {
	e.Retryable = true
	return e
}

// New creates a ConvertError.
func New(category Category, severity Severity, message string) *ConvertError {
	return &ConvertError{Category: category, Severity: severity, Message: message}
}

// Wrap creates a ConvertError wrapping an existing error.
func Wrap(err error, category Category, severity Severity, message string) *ConvertError {
	return &ConvertError{Category: category, Severity: severity, Message: message, Cause: err}
}

// AsConvertError extracts a ConvertError from an error chain.
func AsConvertError(err error) (*ConvertError, bool) {
	var ce *ConvertError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category Category) bool {
	if ce, ok := AsConvertError(err); ok {
		return ce.Category == category
	}
	return false
}

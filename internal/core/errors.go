// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Engine errors. Numeric degenerate cases (zero trades, zero losses,
	// zero variance) are never errors; they surface as sentinel values in
	// the summary instead.
	ErrInvalidStrategyConfig = &Error{Code: "INVALID_STRATEGY_CONFIG", Message: "strategy has no usable entry condition"}
	ErrDataUnavailable       = &Error{Code: "DATA_UNAVAILABLE", Message: "no historical data for the requested range"}
	ErrInsufficientData      = &Error{Code: "INSUFFICIENT_DATA", Message: "not enough data to split or simulate"}
	ErrInvalidFilterCount    = &Error{Code: "INVALID_FILTER_COUNT", Message: "filter verification requires 1 to 5 predicates"}

	// Run store errors
	ErrRunNotFound = &Error{Code: "RUN_NOT_FOUND", Message: "run not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)

// Unified error handling for the g2 motion core

package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Admission rejections - reported synchronously, no buffer consumed
	ErrAdmitZeroFeed  ErrorCode = "ADMIT_ZERO_FEED"
	ErrAdmitNoAxes    ErrorCode = "ADMIT_NO_AXES"
	ErrAdmitMinLength ErrorCode = "ADMIT_MIN_LENGTH"
	ErrAdmitAxisMode  ErrorCode = "ADMIT_AXIS_MODE"

	// Resource exhaustion - caller retries on a later pass
	ErrPoolExhausted ErrorCode = "POOL_EXHAUSTED"

	// Invariant violations - fatal, motion must halt via flush
	ErrInvariant ErrorCode = "INVARIANT"

	// Cycle collaborator failures
	ErrCycleFailed    ErrorCode = "CYCLE_FAILED"
	ErrCycleBadTarget ErrorCode = "CYCLE_BAD_TARGET"
	ErrCycleBusy      ErrorCode = "CYCLE_BUSY"

	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Encoder/link errors
	ErrEncoderLink ErrorCode = "ENCODER_LINK"
)

// MotionError is the unified error type for the motion core
type MotionError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Axis names the offending axis for per-axis admission errors
	Axis string

	// Err wraps the underlying error
	Err error
}

// Error implements the error interface
func (e *MotionError) Error() string {
	if e.Axis != "" {
		return fmt.Sprintf("[%s] %s (axis %s)", e.Code, e.Message, e.Axis)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *MotionError) Unwrap() error {
	return e.Err
}

// SetAxis names the offending axis
func (e *MotionError) SetAxis(axis string) *MotionError {
	e.Axis = axis
	return e
}

// New creates a new MotionError
func New(code ErrorCode, message string) *MotionError {
	return &MotionError{Code: code, Message: message}
}

// Newf creates a new MotionError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *MotionError {
	return &MotionError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a code and message
func Wrap(err error, code ErrorCode, message string) *MotionError {
	return &MotionError{Code: code, Message: message, Err: err}
}

// Is checks if err carries the given error code
func Is(err error, code ErrorCode) bool {
	var me *MotionError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}

// IsAdmission reports whether err is an admission rejection: the move was
// refused before any buffer was claimed and the caller may correct and resend.
func IsAdmission(err error) bool {
	return Is(err, ErrAdmitZeroFeed) ||
		Is(err, ErrAdmitNoAxes) ||
		Is(err, ErrAdmitMinLength) ||
		Is(err, ErrAdmitAxisMode)
}

// IsRetryable reports whether err indicates a transient condition the caller
// should retry on a later scheduler pass.
func IsRetryable(err error) bool {
	return Is(err, ErrPoolExhausted) || Is(err, ErrCycleBusy)
}

// IsFatal reports whether err indicates a programming invariant violation.
// Fatal errors halt motion immediately via queue flush.
func IsFatal(err error) bool {
	return Is(err, ErrInvariant)
}

// Admission rejection constructors

// ZeroFeedError rejects a move admitted with no feed rate
func ZeroFeedError() *MotionError {
	return New(ErrAdmitZeroFeed, "feed rate not specified or zero")
}

// NoAxesError rejects a move with no participating axes
func NoAxesError() *MotionError {
	return New(ErrAdmitNoAxes, "no axes specified for move")
}

// MinLengthError rejects a move shorter than the configured minimum
func MinLengthError(length, minimum float64) *MotionError {
	return Newf(ErrAdmitMinLength, "move length %.6f below minimum %.6f", length, minimum)
}

// AxisModeError rejects motion on an axis not permitted for the operation
func AxisModeError(axis string) *MotionError {
	return Newf(ErrAdmitAxisMode, "axis not permitted for this operation").SetAxis(axis)
}

// PoolExhaustedError signals no planner buffer is available
func PoolExhaustedError() *MotionError {
	return New(ErrPoolExhausted, "no planner buffer available")
}

// InvariantError reports a corrupted planner state; motion halts
func InvariantError(detail string) *MotionError {
	return Newf(ErrInvariant, "planner invariant violated: %s", detail)
}

// CycleFailedError reports a terminal cycle failure
func CycleFailedError(cycle, reason string) *MotionError {
	return Newf(ErrCycleFailed, "%s cycle failed: %s", cycle, reason)
}

// BadTargetError rejects a cycle destination
func BadTargetError(cycle, reason string) *MotionError {
	return Newf(ErrCycleBadTarget, "%s cycle: invalid destination: %s", cycle, reason)
}

// ConfigError reports a configuration problem
func ConfigError(section, option, reason string) *MotionError {
	return Newf(ErrConfigValidation, "option '%s' in section '%s': %s", option, section, reason)
}

// Package errors provides centralized error definitions and error handling utilities
// for capctl. It defines the controller's error taxonomy, typed errors with context
// wrapping, and classification helpers.
//
// # Error Taxonomy
//
// Four classes of failure can occur while negotiating capture parameters:
//   - Unsupported: a configuration key has no meaning for the device or mode.
//     Callers skip silently; see [ErrUnsupported].
//   - Transient device failure: a query or write failed because the device was busy
//     or an I/O error occurred. See [DeviceError]. Prior state is kept.
//   - Precondition violation: a user action is invalid in the current state, such as
//     starting a capture with no device attached. See [PreconditionError].
//   - Protocol invariant breach: a key the controller relies on is absent, such as the
//     maximum oscilloscope sample rate. See [ErrProtocolInvariant].
//
// # Usage
//
//	err := errors.NewDeviceError("write failed", errors.ErrDeviceBusy).
//	    WithKey("samplerate").WithOperation("set")
//
//	if errors.Is(err, errors.ErrDeviceBusy) { ... }
//
//	var pre *errors.PreconditionError
//	if errors.As(err, &pre) { ... }
//
//	if errors.IsUserFacing(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers only import this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Device-related sentinel errors
var (
	// ErrUnsupported indicates that a configuration key is not supported by the device.
	ErrUnsupported = New("config key not supported")
	// ErrNoDevice indicates that no device instance is attached.
	ErrNoDevice = New("no device attached")
	// ErrDeviceBusy indicates that the device rejected a request because it is busy.
	ErrDeviceBusy = New("device busy")
	// ErrDeviceIO indicates a transport failure while talking to the device.
	ErrDeviceIO = New("device i/o failure")
	// ErrTypeMismatch indicates a value had a different type than the key requires.
	ErrTypeMismatch = New("config value type mismatch")
	// ErrProtocolInvariant indicates that a key the controller requires was absent.
	ErrProtocolInvariant = New("required config key absent")
)

// Capture-related sentinel errors
var (
	// ErrAlreadySampling indicates that a capture is already running or repeating.
	ErrAlreadySampling = New("capture already running")
	// ErrNoSelection indicates that a selector has no entries to choose from.
	ErrNoSelection = New("nothing selected")
)

// General sentinel errors
var (
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ControllerError is the base interface for all capctl errors.
type ControllerError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// DeviceError represents a failed query or write against an instrument.
// Device errors are retryable by default: the device may have been busy.
//
// Example:
//
//	err := errors.NewDeviceError("set failed", errors.ErrDeviceBusy).WithKey("rle")
//	fmt.Println(err) // "device error [key=rle]: set failed: device busy"
type DeviceError struct {
	baseError
	Device    string
	Key       string
	Operation string
}

// NewDeviceError creates a new DeviceError.
func NewDeviceError(message string, cause error) *DeviceError {
	return &DeviceError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithDevice adds a device name to the error context.
func (e *DeviceError) WithDevice(name string) *DeviceError {
	e.Device = name
	return e
}

// WithKey adds the config key to the error context.
func (e *DeviceError) WithKey(key string) *DeviceError {
	e.Key = key
	return e
}

// WithOperation adds the operation ("get", "list", "set") to the error context.
func (e *DeviceError) WithOperation(op string) *DeviceError {
	e.Operation = op
	return e
}

// WithSeverity sets the error severity.
func (e *DeviceError) WithSeverity(s Severity) *DeviceError {
	e.severity = s
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *DeviceError) WithRetryable(r bool) *DeviceError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *DeviceError) Error() string {
	var parts []string
	if e.Device != "" {
		parts = append(parts, fmt.Sprintf("device=%s", e.Device))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Operation))
	}

	prefix := "device error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("device error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *DeviceError) Is(target error) bool {
	if _, ok := target.(*DeviceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PreconditionError represents a user action that is invalid in the current state.
// The action is reported to the user and the state machine does not change state.
//
// Example:
//
//	err := errors.NewPreconditionError("start", errors.ErrNoDevice)
//	fmt.Println(err) // "cannot start: no device attached"
type PreconditionError struct {
	baseError
	Action string
	State  string
}

// NewPreconditionError creates a new PreconditionError for the given action.
func NewPreconditionError(action string, cause error) *PreconditionError {
	return &PreconditionError{
		baseError: baseError{
			message:    fmt.Sprintf("cannot %s", action),
			cause:      cause,
			severity:   SeverityInfo,
			retryable:  false,
			userFacing: true,
		},
		Action: action,
	}
}

// WithState adds the state the machine was in to the error context.
func (e *PreconditionError) WithState(state string) *PreconditionError {
	e.State = state
	return e
}

// Error returns the formatted error message.
func (e *PreconditionError) Error() string {
	msg := e.message
	if e.State != "" {
		msg = fmt.Sprintf("%s while %s", msg, e.State)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *PreconditionError) Is(target error) bool {
	if _, ok := target.(*PreconditionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input.
//
// Example:
//
//	err := errors.NewValidationError("unknown work mode").WithField("mode").WithValue("scope")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsUnsupported reports whether err means "feature absent" rather than a failure.
func IsUnsupported(err error) bool {
	return err != nil && Is(err, ErrUnsupported)
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ctrlErr ControllerError
	if As(err, &ctrlErr) {
		return ctrlErr.IsRetryable()
	}

	return Is(err, ErrDeviceBusy) || Is(err, ErrDeviceIO)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var ctrlErr ControllerError
	if As(err, &ctrlErr) {
		return ctrlErr.IsUserFacing()
	}

	var validation *ValidationError
	return As(err, &validation)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement ControllerError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var ctrlErr ControllerError
	if As(err, &ctrlErr) {
		return ctrlErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

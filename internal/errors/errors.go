package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ConfigurationError indicates missing or structurally invalid configuration.
	// Fatal: the run aborts before any map is returned.
	ConfigurationError ErrorCode = "CONFIGURATION_ERROR"
	// Cancelled indicates the caller cancelled the scan mid-run
	Cancelled ErrorCode = "CANCELLED"
	// PartialResult indicates an operation was handed a partial ArchitectureMap
	PartialResult ErrorCode = "PARTIAL_RESULT"
	// LedgerError indicates the plan ledger rejected or failed a write
	LedgerError ErrorCode = "LEDGER_ERROR"
	// SinkError indicates the report sink failed
	SinkError ErrorCode = "SINK_ERROR"
	// InvariantViolation indicates a detector produced self-contradicting output
	InvariantViolation ErrorCode = "INVARIANT_VIOLATION"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests changing a configuration value
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Field       string        `json:"field,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// ArchError is a coded error carrying suggested fixes.
type ArchError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates an ArchError with the default suggested fixes for its code.
func New(code ErrorCode, message string, cause error) *ArchError {
	return &ArchError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause.
func Newf(code ErrorCode, format string, args ...interface{}) *ArchError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *ArchError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ArchError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *ArchError) WithDetails(details interface{}) *ArchError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first ArchError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ae *ArchError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// IsConfigurationError reports whether err is a CONFIGURATION_ERROR.
func IsConfigurationError(err error) bool {
	return CodeOf(err) == ConfigurationError
}

// IsCancelled reports whether err is a CANCELLED error.
func IsCancelled(err error) bool {
	return CodeOf(err) == Cancelled
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	ConfigurationError: {
		{
			Type:        RunCommand,
			Command:     "archscan init",
			Safe:        true,
			Description: "Write a default .archscan/config.json and policy.toml",
		},
	},
	PartialResult: {
		{
			Type:        RunCommand,
			Command:     "archscan scan",
			Safe:        true,
			Description: "Re-run the scan to completion",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}

package cli

import (
	"fmt"
	"strings"
)

// ErrorCode categorizes the failures of building or running a command.
type ErrorCode string

const (
	CodeUnknownOperation      ErrorCode = "UnknownOperation"
	CodeInvalidToolSelector   ErrorCode = "InvalidToolSelector"
	CodeInvalidParameter      ErrorCode = "InvalidParameter"
	CodeToolNotFound          ErrorCode = "ToolNotFound"
	CodeExecutionTimeout      ErrorCode = "ExecutionTimeout"
	CodeExecutionCanceled     ErrorCode = "ExecutionCanceled"
	CodeExternalCommandFailed ErrorCode = "ExternalCommandFailed"
)

// Sentinels for errors.Is comparisons, matched by Code only.
var (
	ErrUnknownOperation      = &Error{Code: CodeUnknownOperation}
	ErrInvalidToolSelector   = &Error{Code: CodeInvalidToolSelector}
	ErrInvalidParameter      = &Error{Code: CodeInvalidParameter}
	ErrToolNotFound          = &Error{Code: CodeToolNotFound}
	ErrExecutionTimeout      = &Error{Code: CodeExecutionTimeout}
	ErrExecutionCanceled     = &Error{Code: CodeExecutionCanceled}
	ErrExternalCommandFailed = &Error{Code: CodeExternalCommandFailed}
)

// Error is returned by the Builder, the Executor and the Dispatcher.
type Error struct {
	Code      ErrorCode
	Message   string
	Operation string
	// Parameter is set for InvalidParameter and InvalidToolSelector.
	Parameter string
	// ExitCode and Stderr are set for ExternalCommandFailed.
	ExitCode int
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	if e.Operation != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", e.Operation))
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Code == CodeExternalCommandFailed {
		sb.WriteString(fmt.Sprintf("\n  Exit code: %d", e.ExitCode))
		if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
			sb.WriteString("\n  Stderr: ")
			sb.WriteString(stderr)
		}
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func invalidParameter(parameter, format string, args ...any) *Error {
	return &Error{
		Code:      CodeInvalidParameter,
		Parameter: parameter,
		Message:   fmt.Sprintf(format, args...),
	}
}

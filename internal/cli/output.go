package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // All scenarios passed
	ExitFailure      = 1 // Scenario or validation failure
	ExitCommandError = 2 // Bad config, missing paths, unreachable database
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
	// Reported is set when the command already wrote its results, so the
	// failure needs no further output.
	Reported bool
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// reportedFailure is the error of a command whose output already shows
// what failed.
func reportedFailure(format string, args ...any) *ExitError {
	return &ExitError{Code: ExitFailure, Message: fmt.Sprintf(format, args...), Reported: true}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope every command writes with --format json.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed command.
type ResponseError struct {
	Code     string `json:"code"`
	ExitCode int    `json:"exit_code"`
	Message  string `json:"message"`
}

func errorCode(exit int) string {
	switch exit {
	case ExitFailure:
		return "FAILED"
	case ExitCommandError:
		return "COMMAND_ERROR"
	default:
		return "ERROR"
	}
}

// OutputFormatter writes command results as text or as a JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; defaults to Writer
	Verbose   bool
}

// Emit writes data in a JSON envelope, or renders it with text.
func (f *OutputFormatter) Emit(data any, text func(w io.Writer) error) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	return text(f.Writer)
}

// Fail reports err unless the command already did and returns the exit
// code. JSON failures go to Writer so a consumer always reads one envelope.
func (f *OutputFormatter) Fail(err error) int {
	code := GetExitCode(err)
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Reported {
		return code
	}
	if f.Format == "json" {
		json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: errorCode(code), ExitCode: code, Message: err.Error()},
		})
		return code
	}
	fmt.Fprintf(f.errWriter(), "Error: %v\n", err)
	return code
}

// VerboseLog writes a diagnostic line in verbose mode. It never goes to
// Writer when ErrWriter is set, so JSON output stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

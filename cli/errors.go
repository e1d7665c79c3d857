package cli

import "fmt"

// CommandError carries user-facing failure details for a CLI command: a
// message, an optional cause, an actionable suggestion, and the process
// exit code Execute should use.
type CommandError struct {
	Message    string
	Cause      error
	Suggestion string
	ExitCode   int
}

func (e CommandError) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return e.Cause.Error()
	default:
		return "command failed"
	}
}

func (e CommandError) Unwrap() error {
	return e.Cause
}

// ExitStatus maps a zero ExitCode to the generic failure code 1.
func (e CommandError) ExitStatus() int {
	if e.ExitCode == 0 {
		return 1
	}
	return e.ExitCode
}

// wrapError builds a CommandError, falling back to the cause text when no
// message is given.
func wrapError(message string, cause error, suggestion string, exitCode int) error {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return CommandError{
		Message:    message,
		Cause:      cause,
		Suggestion: suggestion,
		ExitCode:   exitCode,
	}
}

func formatSuggestion(hint string) string {
	if hint == "" {
		return ""
	}
	return fmt.Sprintf("hint: %s", hint)
}

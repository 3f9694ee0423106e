package common

import (
	"fmt"
	"strings"
)

const (
	OutputFormatPlain = "plain"
	OutputFormatJSON  = "json"
)

// ParseOutputFormat validates and normalizes output format values.
// Empty values default to plain output.
func ParseOutputFormat(raw string) (string, error) {
	normalized := strings.TrimSpace(strings.ToLower(raw))
	if normalized == "" {
		return OutputFormatPlain, nil
	}

	switch normalized {
	case OutputFormatPlain, OutputFormatJSON:
		return normalized, nil
	default:
		return "", fmt.Errorf("invalid output format %q (supported: %q, %q)", raw, OutputFormatPlain, OutputFormatJSON)
	}
}

// ExitError carries the process exit status of a finished test that
// did not pass.
type ExitError struct {
	message  string
	exitCode int
}

func NewExitError(message string, exitCode int) *ExitError {
	if exitCode == 0 {
		exitCode = 1
	}
	return &ExitError{
		message:  message,
		exitCode: exitCode,
	}
}

func (e *ExitError) Error() string {
	return e.message
}

func (e *ExitError) ExitStatus() int {
	return e.exitCode
}

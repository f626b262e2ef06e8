package commands

import (
	"errors"

	"financetracker/internal/core"
)

// Process exit codes by error category.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitValidation = 2
	ExitNotFound   = 3
	ExitFormat     = 4
)

// ExitCode maps an error returned by a command to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, core.ErrValidation):
		return ExitValidation
	case errors.Is(err, core.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, core.ErrFormat):
		return ExitFormat
	default:
		return ExitError
	}
}

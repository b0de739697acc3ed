// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"strconv"
)

// Process exit codes. Zero is success.
const (
	ExitRejected = 1 // validation rejected the batch, or bad usage or input
	ExitDefect   = 2 // the compiled database failed its self check
)

// ExitError carries a process exit code out of a RunE handler. When Err is
// nil the failure was already printed and handleError stays quiet.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return "exit status " + strconv.Itoa(e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode maps the error returned by the command tree to a process exit code.
func exitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.Code
	default:
		return ExitRejected
	}
}

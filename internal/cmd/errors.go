package cmd

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	exitOK    = 0
	exitError = 1 // decode failure in strict mode, unreadable input, write failure
	exitUsage = 2 // bad flags or arguments
)

// ArgumentError reports an invalid flag value or combination. It is always
// raised before the input file is touched.
type ArgumentError struct {
	Flag string
	Err  error
}

func (e *ArgumentError) Error() string {
	if e.Flag == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid --%s: %v", e.Flag, e.Err)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ae *ArgumentError
	if errors.As(err, &ae) {
		return exitUsage
	}
	return exitError
}

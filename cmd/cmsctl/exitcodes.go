package main

import (
	"errors"

	"github.com/JonMunkholm/cms/internal/core"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
	exitSafetyNet  = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}

// importExitCode classifies a failed import: store failures are write
// errors, everything else is bad input.
func importExitCode(err error) int {
	var sf *core.StoreFailure
	switch {
	case errors.As(err, &sf):
		return exitDBWrite
	case errors.Is(err, core.ErrTooManyImports):
		return exitDB
	default:
		return exitValidation
	}
}

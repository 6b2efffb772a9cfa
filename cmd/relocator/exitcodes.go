package main

import (
	"errors"

	"github.com/desertwitch/relocator/internal/filesystem"
	"github.com/desertwitch/relocator/internal/relocation"
)

const (
	exitSuccess           = 0
	exitFailed            = 1
	exitCancelled         = 2
	exitInvalid           = 3
	exitRemediationFailed = 4
)

// exitCodeFor returns the process exit code for the errors of a run. A failed
// remediation outranks the error of the relocation itself.
func exitCodeFor(runErr error, remediationErr error) int {
	switch {
	case remediationErr != nil:
		return exitRemediationFailed

	case runErr == nil:
		return exitSuccess

	case errors.Is(runErr, ErrRemediationFailed):
		return exitRemediationFailed

	case errors.Is(runErr, relocation.ErrCancelled):
		return exitCancelled

	case errors.Is(runErr, ErrInvalidRequest),
		errors.Is(runErr, filesystem.ErrNotEnoughSpace),
		errors.Is(runErr, relocation.ErrStagingExists):
		return exitInvalid

	default:
		return exitFailed
	}
}

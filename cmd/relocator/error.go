package main

import "errors"

var (
	// ErrInvalidRequest occurs when the relocation request fails validation
	// before any work was done.
	ErrInvalidRequest = errors.New("invalid relocation request")

	// ErrRemediationFailed occurs when not all remedies of a failed or
	// cancelled relocation could be applied.
	ErrRemediationFailed = errors.New("remediation failed")

	// ErrNoJournal occurs when a journal command is used with the journal
	// disabled.
	ErrNoJournal = errors.New("the run journal is disabled")
)

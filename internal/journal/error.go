package journal

import "errors"

var (
	// ErrRunNotFound occurs when a run is looked up that was never journaled.
	ErrRunNotFound = errors.New("run not found")
)

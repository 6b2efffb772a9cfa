package link

import "errors"

var (
	// ErrInvalidTemplate occurs when a link command template is empty or
	// does not reference both the {link} and the {target} placeholder.
	ErrInvalidTemplate = errors.New("invalid link command template")
)

package filesystem

import "errors"

var (
	// ErrNotEnoughSpace is an error that occurs when the destination
	// filesystem cannot take the contents of the source directory tree.
	ErrNotEnoughSpace = errors.New("not enough free space on destination")

	// ErrNoExistingAncestor is an error that occurs when no part of a path
	// exists, so no filesystem can be determined for it.
	ErrNoExistingAncestor = errors.New("no existing ancestor of path")
)

package relocation

import "errors"

var (
	// ErrCopyFailure occurs when the source tree could not be scanned or
	// replicated to the destination. The destination needs cleaning.
	ErrCopyFailure = errors.New("failed to copy source tree")

	// ErrRenameFailure occurs when the source directory could not be moved to
	// its staging path.
	ErrRenameFailure = errors.New("failed to move source to staging")

	// ErrLinkFailure occurs when the link provider failed to create the link
	// replacing the source directory.
	ErrLinkFailure = errors.New("failed to create link")

	// ErrCancelled occurs when the relocation was cancelled by the caller.
	ErrCancelled = errors.New("relocation cancelled")

	// ErrUnexpectedFault occurs when the relocation failed in an unforeseen
	// way (a recovered panic).
	ErrUnexpectedFault = errors.New("unexpected fault")

	// ErrUnsupportedFileType occurs when the source tree contains an element
	// that is neither a directory, a regular file nor a symbolic link.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrStagingExists occurs when the staging path of the source directory
	// is already taken, for example by a leftover of an earlier relocation.
	ErrStagingExists = errors.New("staging path already exists")

	// ErrLinkUnresolved occurs when the created link does not resolve to a
	// directory.
	ErrLinkUnresolved = errors.New("link does not resolve to a directory")
)

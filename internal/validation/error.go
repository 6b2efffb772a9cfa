package validation

import "errors"

var (
	// ErrNoSource occurs when no source path was set.
	ErrNoSource = errors.New("no source path")

	// ErrNoDestination occurs when no destination path was set.
	ErrNoDestination = errors.New("no destination path")

	// ErrSourcePathRelative occurs when a source path is provided as relative
	// rather than absolute.
	ErrSourcePathRelative = errors.New("source path is relative")

	// ErrDestPathRelative occurs when a destination path is provided as
	// relative rather than absolute.
	ErrDestPathRelative = errors.New("destination path is relative")

	// ErrSamePath occurs when source and destination path are the same.
	ErrSamePath = errors.New("source and destination path are the same")

	// ErrDestInsideSource occurs when the destination path lies within the
	// source directory tree, which would make the tree copy itself.
	ErrDestInsideSource = errors.New("destination path is inside source path")

	// ErrSourceIsRoot occurs when the source path is a filesystem root, which
	// cannot be renamed and replaced by a link.
	ErrSourceIsRoot = errors.New("source path is a filesystem root")

	// ErrSourceNotFound occurs when the source directory does not exist.
	ErrSourceNotFound = errors.New("source directory not found")

	// ErrSourceNotDir occurs when the source path is not a directory.
	ErrSourceNotDir = errors.New("source path is not a directory")

	// ErrSourceIsLink occurs when the source path is a symbolic link, usually
	// meaning the directory was already relocated before.
	ErrSourceIsLink = errors.New("source path is a symbolic link")

	// ErrDestNotDir occurs when the destination path exists, but is not a
	// directory.
	ErrDestNotDir = errors.New("destination path is not a directory")

	// ErrDestParentNotFound occurs when the destination does not exist and
	// neither does a parent directory to create it in.
	ErrDestParentNotFound = errors.New("destination parent directory not found")

	// ErrDestinationNotEmpty occurs when the destination directory exists, but
	// already has contents.
	ErrDestinationNotEmpty = errors.New("destination directory is not empty")
)

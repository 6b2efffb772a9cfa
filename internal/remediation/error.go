package remediation

import "errors"

var (
	// ErrUnexpectedEntry occurs when the element at the source path is
	// neither a symbolic link nor an empty directory, so it cannot be a link
	// left behind by a relocation and is not removed.
	ErrUnexpectedEntry = errors.New("unexpected element at link path")

	// ErrSourceOccupied occurs when the source cannot be reverted, because a
	// link still occupies the source path.
	ErrSourceOccupied = errors.New("source path is occupied by a link")

	// ErrStagingMissing occurs when neither the source nor its staged copy
	// exist, so there is nothing left to revert.
	ErrStagingMissing = errors.New("staged source directory is missing")

	// ErrDestinationKept occurs when the destination is not cleaned or
	// deleted, because the source could not be reverted and the destination
	// may hold the only complete copy.
	ErrDestinationKept = errors.New("destination kept as source was not reverted")
)

package relocation

import (
	"context"
	"fmt"

	"github.com/desertwitch/relocator/internal/schema"
)

// retireSource moves the source directory to its staging path, making room
// for the link. RevertSource is recorded before the move, so a crash during
// the move is still undone. Once moved, the destination holds the only
// complete tree outside of staging and no longer needs cleaning, but a
// destination directory created by this relocation is still removed when a
// later phase fails.
func (e *Handler) retireSource(ctx context.Context, r *run) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	staging := r.outcome.StagingPath
	r.tracker.milestone(fmt.Sprintf("renaming %s to %s", r.req.Source, staging))

	r.mark([]schema.Remedy{schema.RevertSource}, nil)

	if exists, err := e.fsHandler.Exists(staging); err != nil {
		return fmt.Errorf("(relocation-retire) %w: failed to check staging path: %w", ErrRenameFailure, err)
	} else if exists {
		return fmt.Errorf("(relocation-retire) %w: %w: %s", ErrRenameFailure, ErrStagingExists, staging)
	}

	if err := e.osHandler.Rename(r.req.Source, staging); err != nil {
		return fmt.Errorf("(relocation-retire) %w: %w", ErrRenameFailure, err)
	}

	r.mark(nil, []schema.Remedy{schema.CleanDestination})

	return nil
}

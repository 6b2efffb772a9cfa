package relocation

import (
	"context"
	"fmt"

	"github.com/desertwitch/relocator/internal/schema"
)

// prepareDestination creates the destination directory when it is absent.
// From here on the destination is considered unclean until the source has
// been retired.
func (e *Handler) prepareDestination(ctx context.Context, r *run) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	exists, err := e.fsHandler.Exists(r.req.Destination)
	if err != nil {
		return fmt.Errorf("(relocation-prepare) %w: %w", ErrCopyFailure, err)
	}

	if !exists {
		meta, err := e.fsHandler.GetMetadata(r.req.Source)
		if err != nil {
			return fmt.Errorf("(relocation-prepare) %w: %w", ErrCopyFailure, err)
		}

		r.tracker.milestone("creating folder " + r.req.Destination)

		if err := e.unixHandler.Mkdir(r.req.Destination, meta.Perms); err != nil {
			return fmt.Errorf("(relocation-prepare) %w: failed to mkdir %s: %w", ErrCopyFailure, r.req.Destination, err)
		}
		r.mark([]schema.Remedy{schema.DeleteDestinationDir}, nil)

		if err := e.unixHandler.Chmod(r.req.Destination, meta.Perms); err != nil {
			return fmt.Errorf("(relocation-prepare) %w: failed to chmod %s: %w", ErrCopyFailure, r.req.Destination, err)
		}

		r.dirs = append(r.dirs, createdDir{path: r.req.Destination, metadata: meta, depth: 0})
	}

	r.mark([]schema.Remedy{schema.CleanDestination}, nil)

	return nil
}

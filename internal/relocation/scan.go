package relocation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/desertwitch/relocator/internal/filesystem"
	"github.com/dustin/go-humanize"
)

// scanSource takes the inventory of the source tree, which is the basis of
// the progress calculation, and checks that the relocation can fit and be
// staged before anything is changed.
func (e *Handler) scanSource(ctx context.Context, r *run) error {
	r.tracker.milestone("calculating folder size")

	inv, err := e.fsHandler.Inventory(ctx, r.req.Source)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return cancelled(ctx)
		}

		return fmt.Errorf("(relocation-scan) %w: %w", ErrCopyFailure, err)
	}

	r.inv = inv
	r.tracker.setTotal(inv.Units())

	slog.Info("Source scanned",
		"source", r.req.Source,
		"dirs", inv.Dirs,
		"files", inv.Files,
		"size", humanize.IBytes(inv.Bytes),
	)

	if ok, err := e.fsHandler.HasEnoughFreeSpace(r.req.Destination, inv.Bytes); err != nil {
		slog.Warn("Failure checking free space on destination (skipped)",
			"path", r.req.Destination,
			"err", err,
		)
	} else if !ok {
		return fmt.Errorf("(relocation-scan) %w: %s needed", filesystem.ErrNotEnoughSpace, humanize.IBytes(inv.Bytes))
	}

	if exists, err := e.fsHandler.Exists(r.outcome.StagingPath); err != nil {
		return fmt.Errorf("(relocation-scan) %w: failed to check staging path: %w", ErrRenameFailure, err)
	} else if exists {
		return fmt.Errorf("(relocation-scan) %w: %w: %s", ErrRenameFailure, ErrStagingExists, r.outcome.StagingPath)
	}

	return cancelled(ctx)
}

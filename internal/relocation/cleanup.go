package relocation

import (
	"context"
	"log/slog"

	"github.com/desertwitch/relocator/internal/schema"
)

// removeStaged removes the staged source directory. The link is in place and
// the destination complete, so all remedies are dropped before the removal
// starts. A failing removal leaves the staged directory as a leftover.
func (e *Handler) removeStaged(ctx context.Context, r *run) error {
	if err := cancelled(ctx); err != nil {
		r.mark([]schema.Remedy{schema.DeleteLink}, nil)

		return err
	}

	r.mark(nil, schema.AllRemedies)
	r.tracker.milestone("removing " + r.outcome.StagingPath)

	if err := e.osHandler.RemoveAll(r.outcome.StagingPath); err != nil {
		slog.Warn("Failure removing the staged source directory (left behind)",
			"path", r.outcome.StagingPath,
			"err", err,
		)
		r.outcome.Leftovers = append(r.outcome.Leftovers, r.outcome.StagingPath)
	}

	return nil
}

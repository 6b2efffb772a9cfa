package relocation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/desertwitch/relocator/internal/link"
	"github.com/desertwitch/relocator/internal/schema"
)

// createLink has the [link.Provider] create the link at the source path.
// Informational provider output is forwarded as progress, any error output
// fails the relocation.
func (e *Handler) createLink(ctx context.Context, r *run) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	r.tracker.milestone(fmt.Sprintf("creating symbolic link %s <<===>> %s", r.req.Source, r.req.Destination))

	onLine := func(stream link.Stream, line string) {
		if stream == link.Stdout {
			r.tracker.milestone(line)

			return
		}

		if line != "" {
			slog.Error("Link provider reported an error",
				"path", r.req.Source,
				"line", line,
			)
		}
	}

	res, err := e.linkProvider.CreateLink(ctx, r.req.Source, r.req.Destination, onLine)
	if err != nil {
		r.mark([]schema.Remedy{schema.DeleteLink}, nil)

		if ctx.Err() != nil {
			return cancelled(ctx)
		}

		return fmt.Errorf("(relocation-link) %w: %w", ErrLinkFailure, err)
	}

	if res.Failed() {
		r.mark([]schema.Remedy{schema.DeleteLink}, nil)

		return fmt.Errorf("(relocation-link) %w: exit code %d: %s", ErrLinkFailure, res.ExitCode, res.ErrorText())
	}

	if info, err := e.osHandler.Stat(r.req.Source); err != nil || !info.IsDir() {
		r.mark([]schema.Remedy{schema.DeleteLink}, nil)

		return fmt.Errorf("(relocation-link) %w: %w: %s", ErrLinkFailure, ErrLinkUnresolved, r.req.Source)
	}

	return nil
}

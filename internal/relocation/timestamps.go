package relocation

import (
	"log/slog"
	"sort"

	"github.com/desertwitch/relocator/internal/schema"
	"golang.org/x/sys/unix"
)

// createdDir is a directory created in the destination tree.
type createdDir struct {
	path     string
	metadata *schema.Metadata
	depth    int
}

// ensureTimestamps restores the timestamps of all created directories,
// deepest first, as creating their contents has changed them.
func (e *Handler) ensureTimestamps(r *run) {
	sort.SliceStable(r.dirs, func(i, j int) bool {
		return r.dirs[i].depth > r.dirs[j].depth
	})

	for _, d := range r.dirs {
		e.ensureTimestamp(d.path, d.metadata)
	}
}

func (e *Handler) ensureTimestamp(path string, metadata *schema.Metadata) {
	ts := []unix.Timespec{metadata.AccessedAt, metadata.ModifiedAt}

	if err := e.unixHandler.UtimesNano(path, ts); err != nil {
		slog.Warn("Failure setting a timestamp (was skipped)",
			"path", path,
			"err", err,
		)
	}
}

func (e *Handler) ensureLinkTimestamp(path string, metadata *schema.Metadata) {
	ts := []unix.Timespec{metadata.AccessedAt, metadata.ModifiedAt}

	if err := e.unixHandler.UtimesNanoAt(unix.AT_FDCWD, path, ts, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		slog.Warn("Failure setting a link timestamp (was skipped)",
			"path", path,
			"err", err,
		)
	}
}

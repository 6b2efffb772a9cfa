// Package remediation applies the remedies of a [schema.Outcome] after a
// relocation did not succeed. Each remedy is applied independently of the
// others and every remedy tolerates already removed or restored targets, so
// remediating the same outcome twice is safe.
package remediation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/desertwitch/relocator/internal/schema"
)

type osProvider interface {
	Lstat(name string) (os.FileInfo, error)
	ReadDir(name string) ([]os.DirEntry, error)
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

// Handler is the principal implementation of the result remediation.
type Handler struct {
	osHandler osProvider
}

// NewHandler returns a pointer to a new remediation [Handler].
func NewHandler(osHandler osProvider) *Handler {
	return &Handler{
		osHandler: osHandler,
	}
}

// Remediate applies all remedies of the outcome for the request, in the order
// of [schema.AllRemedies]. A failing remedy does not prevent the others from
// being applied, all failures are returned joined. The exception is a source
// that could not be reverted: the destination may then hold the only complete
// copy and is neither cleaned nor deleted.
func (h *Handler) Remediate(req schema.Request, outcome *schema.Outcome) error {
	var errs []error

	sourceLost := false

	for _, r := range outcome.Remedies() {
		var err error

		switch {
		case r == schema.DeleteLink:
			err = h.deleteLink(req.Source)
		case r == schema.RevertSource:
			err = h.revertSource(req.Source, outcome.StagingPath)
			sourceLost = err != nil
		case sourceLost:
			err = fmt.Errorf("%w: %s", ErrDestinationKept, req.Destination)
		case r == schema.CleanDestination:
			err = h.cleanDestination(req.Destination)
		case r == schema.DeleteDestinationDir:
			err = h.deleteDestinationDir(req.Destination)
		}

		if err != nil {
			slog.Error("Failure applying a remedy",
				"remedy", r.String(),
				"source", req.Source,
				"destination", req.Destination,
				"err", err,
			)
			errs = append(errs, fmt.Errorf("(remediation) %s: %w", r, err))

			continue
		}

		slog.Info("Remedy applied",
			"remedy", r.String(),
			"source", req.Source,
			"destination", req.Destination,
		)
	}

	return errors.Join(errs...)
}

// deleteLink removes a symbolic link or an empty directory (placeholder) at
// the source path.
func (h *Handler) deleteLink(source string) error {
	info, err := h.osHandler.Lstat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to lstat: %w", err)
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:

	case info.IsDir():
		entries, err := h.osHandler.ReadDir(source)
		if err != nil {
			return fmt.Errorf("failed to readdir: %w", err)
		}
		if len(entries) > 0 {
			return fmt.Errorf("%w: non-empty directory %s", ErrUnexpectedEntry, source)
		}

	default:
		return fmt.Errorf("%w: %s (%s)", ErrUnexpectedEntry, source, info.Mode().Type())
	}

	if err := h.osHandler.Remove(source); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove: %w", err)
	}

	return nil
}

// revertSource renames the staged source directory back to its original path,
// unless the original path is already (or still) taken by the source.
func (h *Handler) revertSource(source string, staging string) error {
	info, err := h.osHandler.Lstat(source)
	if err == nil {
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrSourceOccupied, source)
		}

		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to lstat source: %w", err)
	}

	if staging == "" {
		return fmt.Errorf("%w: no staging path", ErrStagingMissing)
	}

	if _, err := h.osHandler.Lstat(staging); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrStagingMissing, staging)
		}

		return fmt.Errorf("failed to lstat staging: %w", err)
	}

	if err := h.osHandler.Rename(staging, source); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}

// cleanDestination removes all contents of the destination directory, which
// restores its state from before the relocation.
func (h *Handler) cleanDestination(dest string) error {
	entries, err := h.osHandler.ReadDir(dest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to readdir: %w", err)
	}

	var errs []error

	for _, entry := range entries {
		if err := h.osHandler.RemoveAll(filepath.Join(dest, entry.Name())); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove: %w", err))
		}
	}

	return errors.Join(errs...)
}

// deleteDestinationDir removes the destination directory created by the
// relocation, including any contents.
func (h *Handler) deleteDestinationDir(dest string) error {
	if err := h.osHandler.RemoveAll(dest); err != nil {
		return fmt.Errorf("failed to remove: %w", err)
	}

	return nil
}

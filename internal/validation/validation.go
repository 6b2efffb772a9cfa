// Package validation implements the precondition checks of a relocation
// request, shared by the command-line interface and the relocation engine.
package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/desertwitch/relocator/internal/schema"
)

type fsProvider interface {
	GetMetadata(path string) (*schema.Metadata, error)
	IsEmptyFolder(path string) (bool, error)
}

// Handler is the principal implementation of the request validation.
type Handler struct {
	fsHandler fsProvider
}

// NewHandler returns a pointer to a new validation [Handler].
func NewHandler(fsHandler fsProvider) *Handler {
	return &Handler{
		fsHandler: fsHandler,
	}
}

// ValidateRequest checks that a [schema.Request] can be executed: both paths
// are absolute and distinct, the source is an existing directory (and not a
// link) and the destination is either an empty directory or absent with an
// existing parent directory.
func (v *Handler) ValidateRequest(req schema.Request) error {
	if err := validatePaths(req); err != nil {
		return err
	}

	if err := v.validateSource(req.Source); err != nil {
		return err
	}

	return v.validateDestination(req.Destination)
}

func validatePaths(req schema.Request) error {
	if req.Source == "" {
		return fmt.Errorf("(validation) %w", ErrNoSource)
	}

	if req.Destination == "" {
		return fmt.Errorf("(validation) %w", ErrNoDestination)
	}

	if !filepath.IsAbs(req.Source) {
		return fmt.Errorf("(validation) %w: %s", ErrSourcePathRelative, req.Source)
	}

	if !filepath.IsAbs(req.Destination) {
		return fmt.Errorf("(validation) %w: %s", ErrDestPathRelative, req.Destination)
	}

	source := filepath.Clean(req.Source)
	dest := filepath.Clean(req.Destination)

	if source == filepath.Dir(source) {
		return fmt.Errorf("(validation) %w: %s", ErrSourceIsRoot, source)
	}

	if source == dest {
		return fmt.Errorf("(validation) %w: %s", ErrSamePath, source)
	}

	if strings.HasPrefix(dest, source+string(filepath.Separator)) {
		return fmt.Errorf("(validation) %w: %s in %s", ErrDestInsideSource, dest, source)
	}

	return nil
}

func (v *Handler) validateSource(source string) error {
	meta, err := v.fsHandler.GetMetadata(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("(validation) %w: %s", ErrSourceNotFound, source)
		}

		return fmt.Errorf("(validation) failed to get source metadata: %w", err)
	}

	if meta.IsSymlink {
		return fmt.Errorf("(validation) %w: %s -> %s", ErrSourceIsLink, source, meta.SymlinkTo)
	}

	if !meta.IsDir {
		return fmt.Errorf("(validation) %w: %s", ErrSourceNotDir, source)
	}

	return nil
}

func (v *Handler) validateDestination(dest string) error {
	meta, err := v.fsHandler.GetMetadata(dest)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v.validateDestinationParent(dest)
		}

		return fmt.Errorf("(validation) failed to get destination metadata: %w", err)
	}

	if !meta.IsDir {
		return fmt.Errorf("(validation) %w: %s", ErrDestNotDir, dest)
	}

	empty, err := v.fsHandler.IsEmptyFolder(dest)
	if err != nil {
		return fmt.Errorf("(validation) failed to check destination emptiness: %w", err)
	}

	if !empty {
		return fmt.Errorf("(validation) %w: %s", ErrDestinationNotEmpty, dest)
	}

	return nil
}

func (v *Handler) validateDestinationParent(dest string) error {
	parent := filepath.Dir(dest)

	meta, err := v.fsHandler.GetMetadata(parent)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("(validation) %w: %s", ErrDestParentNotFound, parent)
		}

		return fmt.Errorf("(validation) failed to get destination parent metadata: %w", err)
	}

	if !meta.IsDir {
		return fmt.Errorf("(validation) %w: %s", ErrDestParentNotFound, parent)
	}

	return nil
}

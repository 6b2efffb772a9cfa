package relocation

import (
	"context"
	"fmt"
	"path/filepath"
)

// pendingDir is a directory on the work stack of the tree replication.
type pendingDir struct {
	src   string
	dst   string
	depth int
}

// replicateTree copies the source tree into the destination, using an
// explicit work stack of directories still to be processed. Each created
// directory counts as one unit of work, each file as its size in bytes.
func (e *Handler) replicateTree(ctx context.Context, r *run) error {
	stack := []pendingDir{{src: r.req.Source, dst: r.req.Destination}}

	for len(stack) > 0 {
		if err := cancelled(ctx); err != nil {
			return err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := e.osHandler.ReadDir(dir.src)
		if err != nil {
			return fmt.Errorf("(relocation-copy) %w: failed to readdir %s: %w", ErrCopyFailure, dir.src, err)
		}

		for _, entry := range entries {
			src := filepath.Join(dir.src, entry.Name())
			dst := filepath.Join(dir.dst, entry.Name())

			sub, err := e.replicateElement(ctx, r, src, dst, dir.depth+1)
			if err != nil {
				if ctx.Err() != nil {
					return cancelled(ctx)
				}

				return fmt.Errorf("(relocation-copy) %w: %w", ErrCopyFailure, err)
			}

			if sub != nil {
				stack = append(stack, *sub)
			}

			if err := cancelled(ctx); err != nil {
				return err
			}
		}
	}

	e.ensureTimestamps(r)

	return nil
}

// replicateElement copies a single element of the source tree. For a
// directory, the created counterpart is returned for pushing onto the stack.
func (e *Handler) replicateElement(ctx context.Context, r *run, src string, dst string, depth int) (*pendingDir, error) {
	meta, err := e.fsHandler.GetMetadata(src)
	if err != nil {
		return nil, err
	}

	switch {
	case meta.IsDir:
		if err := e.unixHandler.Mkdir(dst, meta.Perms); err != nil {
			return nil, fmt.Errorf("failed to mkdir %s: %w", dst, err)
		}

		if err := e.unixHandler.Chmod(dst, meta.Perms); err != nil {
			return nil, fmt.Errorf("failed to chmod %s: %w", dst, err)
		}

		r.dirs = append(r.dirs, createdDir{path: dst, metadata: meta, depth: depth})
		r.tracker.advance(1)
		r.tracker.report("creating folder " + dst)

		return &pendingDir{src: src, dst: dst, depth: depth}, nil

	case meta.IsSymlink:
		r.tracker.report("copying to " + dst)

		if err := e.unixHandler.Symlink(meta.SymlinkTo, dst); err != nil {
			return nil, fmt.Errorf("failed to symlink %s: %w", dst, err)
		}
		e.ensureLinkTimestamp(dst, meta)

		return nil, nil

	case meta.IsRegular:
		r.tracker.report("copying to " + dst)

		if err := e.copyFile(ctx, r, src, dst, meta); err != nil {
			return nil, err
		}

		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, src)
	}
}

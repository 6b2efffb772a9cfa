package relocation

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/desertwitch/relocator/internal/schema"
)

//nolint:containedctx
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	select {
	case <-cr.ctx.Done():
		return 0, cr.ctx.Err()
	default:
		return cr.reader.Read(p)
	}
}

// progressReader advances a [tracker] with every read, reporting whenever the
// percentage changes.
type progressReader struct {
	reader  io.Reader
	tracker *tracker
	message string
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 && pr.tracker.advance(uint64(n)) {
		pr.tracker.report(pr.message)
	}

	return n, err //nolint:wrapcheck
}

// copyFile copies a regular file to a not yet existing destination path. A
// partially written destination file is removed on failure.
func (e *Handler) copyFile(ctx context.Context, r *run, src string, dst string, meta *schema.Metadata) error {
	var transferComplete bool

	srcFile, err := e.osHandler.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer srcFile.Close()

	dstFile, err := e.osHandler.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, os.FileMode(meta.Perms))
	if err != nil {
		return fmt.Errorf("failed to open destination file %s: %w", dst, err)
	}
	defer func() {
		dstFile.Close()

		if !transferComplete {
			e.osHandler.Remove(dst) //nolint:errcheck
		}
	}()

	reader := &progressReader{
		reader: &contextReader{
			ctx:    ctx,
			reader: srcFile,
		},
		tracker: r.tracker,
		message: "copying to " + dst,
	}

	written, err := io.Copy(dstFile, reader)
	if err != nil {
		return fmt.Errorf("failed to copy file %s: %w", dst, err)
	}

	if err := dstFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync destination file %s: %w", dst, err)
	}

	if err := e.unixHandler.Chmod(dst, meta.Perms); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", dst, err)
	}

	// Account for files that changed size after the inventory.
	if uint64(written) < meta.Size {
		r.tracker.advance(meta.Size - uint64(written))
	}

	transferComplete = true
	e.ensureTimestamp(dst, meta)

	return nil
}

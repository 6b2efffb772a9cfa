package filesystem

import (
	"context"
	"fmt"
	"path/filepath"
)

// Inventory holds the counts of a directory tree, excluding its root.
type Inventory struct {
	Dirs  uint64
	Files uint64
	Bytes uint64
}

// Units returns the amount of work units of the tree, where each directory
// and each byte of file content counts as one unit.
func (i Inventory) Units() uint64 {
	return i.Dirs + i.Bytes
}

// Inventory scans the directory tree below root with an explicit work stack.
// Symbolic links are counted as files of size zero and are never followed.
func (f *Handler) Inventory(ctx context.Context, root string) (Inventory, error) {
	var inv Inventory

	pending := []string{root}

	for len(pending) > 0 {
		if ctx.Err() != nil {
			return inv, fmt.Errorf("(fs-inventory) %w", ctx.Err())
		}

		dir := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		entries, err := f.osHandler.ReadDir(dir)
		if err != nil {
			return inv, fmt.Errorf("(fs-inventory) failed to readdir %s: %w", dir, err)
		}

		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				inv.Dirs++
				pending = append(pending, path)

				continue
			}

			inv.Files++

			if !entry.Type().IsRegular() {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				return inv, fmt.Errorf("(fs-inventory) failed to stat %s: %w", path, err)
			}
			inv.Bytes += handleSize(info.Size())
		}
	}

	return inv, nil
}

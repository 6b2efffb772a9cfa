package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// DiskStats holds disk usage information. It is meant to be passed by value.
type DiskStats struct {
	TotalSize uint64
	FreeSpace uint64
}

// GetDiskUsage gets the [DiskStats] of the filesystem housing path. A path
// which does not exist yet is resolved to its nearest existing ancestor.
func (f *Handler) GetDiskUsage(path string) (DiskStats, error) {
	existing, err := f.nearestExisting(path)
	if err != nil {
		return DiskStats{}, err
	}

	var stat unix.Statfs_t
	if err := f.unixHandler.Statfs(existing, &stat); err != nil {
		return DiskStats{}, fmt.Errorf("(fs-diskstats) failed to statfs: %w", err)
	}

	stats := DiskStats{
		TotalSize: stat.Blocks * handleSize(int64(stat.Bsize)),
		FreeSpace: stat.Bavail * handleSize(int64(stat.Bsize)),
	}

	return stats, nil
}

// HasEnoughFreeSpace is a helper method that allows checking if the
// filesystem housing path can take a certain amount of bytes.
func (f *Handler) HasEnoughFreeSpace(path string, size uint64) (bool, error) {
	stats, err := f.GetDiskUsage(path)
	if err != nil {
		return false, fmt.Errorf("(fs-enoughspace) failed to get usage: %w", err)
	}

	return stats.FreeSpace >= size, nil
}

func (f *Handler) nearestExisting(path string) (string, error) {
	current := filepath.Clean(path)

	for {
		if _, err := f.osHandler.Lstat(current); err == nil {
			return current, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("(fs-diskstats) failed to lstat %s: %w", current, err)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("(fs-diskstats) %w: %s", ErrNoExistingAncestor, path)
		}
		current = parent
	}
}

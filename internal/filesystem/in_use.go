package filesystem

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// InUseUnder queries the operating system (procfs) for all paths below root
// that are currently held open by any process. Since this is a time and
// resource intensive operation, it is meant to run once before a relocation.
func (f *Handler) InUseUnder(procRoot string, root string) ([]string, error) {
	procEntries, err := f.osHandler.ReadDir(procRoot)
	if err != nil {
		return nil, fmt.Errorf("(fs-inuse) failed to read %s: %w", procRoot, err)
	}

	prefix := filepath.Clean(root) + string(filepath.Separator)
	found := make(map[string]struct{})

	for _, procEntry := range procEntries {
		pid, err := strconv.Atoi(procEntry.Name())
		if err != nil {
			continue
		}

		fdPath := filepath.Join(procRoot, strconv.Itoa(pid), "fd")
		fdEntries, err := f.osHandler.ReadDir(fdPath)
		if err != nil {
			continue
		}

		for _, fdEntry := range fdEntries {
			linkTarget, err := f.osHandler.Readlink(filepath.Join(fdPath, fdEntry.Name()))
			if err != nil {
				continue
			}

			if linkTarget == filepath.Clean(root) || strings.HasPrefix(linkTarget, prefix) {
				found[linkTarget] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(found))
	for p := range found {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	return paths, nil
}

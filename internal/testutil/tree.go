// Package testutil provides helpers for building and comparing directory
// trees in tests.
package testutil

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

// Tree describes a directory tree by relative path. Paths ending with a slash
// are directories, values starting with "->" are symbolic link targets and
// all other values are file contents.
type Tree map[string]string

// Build creates the [Tree] below root.
func Build(t *testing.T, root string, tree Tree) {
	t.Helper()

	require.NoError(t, os.MkdirAll(root, 0o755))

	for rel, content := range tree {
		path := filepath.Join(root, rel)

		if strings.HasSuffix(rel, "/") {
			require.NoError(t, os.MkdirAll(path, 0o755))

			continue
		}

		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

		if target, ok := strings.CutPrefix(content, "->"); ok {
			require.NoError(t, os.Symlink(target, path))

			continue
		}

		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// Digest returns a blake3 digest over the relative paths, types, permissions,
// link targets and file contents of the tree below root. A symbolic link at
// root itself is resolved first.
func Digest(t *testing.T, root string) string {
	t.Helper()

	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	hasher := blake3.New()

	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(resolved, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		fmt.Fprintf(hasher, "%s|%s|", rel, info.Mode().String())

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(hasher, "%s|", target)

		case d.Type().IsRegular():
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			if _, err := io.Copy(hasher, f); err != nil {
				return err
			}
		}

		fmt.Fprint(hasher, "\n")

		return nil
	})
	require.NoError(t, err)

	return hex.EncodeToString(hasher.Sum(nil))
}

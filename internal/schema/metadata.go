package schema

import "golang.org/x/sys/unix"

// Metadata holds the (lstat) metadata of a filesystem element, as needed for
// replicating that element to another location.
type Metadata struct {
	Perms      uint32
	AccessedAt unix.Timespec
	ModifiedAt unix.Timespec
	Size       uint64
	IsDir      bool
	IsRegular  bool
	IsSymlink  bool
	SymlinkTo  string
}

package schema

import "path/filepath"

// Request describes a single relocation of a source directory tree to a
// destination directory. It is built once by the caller and never mutated.
type Request struct {
	Source      string
	Destination string
}

// NewRequest returns a new [Request] with lexically cleaned paths.
func NewRequest(source, destination string) Request {
	return Request{
		Source:      filepath.Clean(source),
		Destination: filepath.Clean(destination),
	}
}

// Name returns the base name of the source directory.
func (r Request) Name() string {
	return filepath.Base(r.Source)
}

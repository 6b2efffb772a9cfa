// Package link implements the providers creating the filesystem link that
// replaces a relocated directory at its original path.
package link

import (
	"context"
	"strings"
)

// Stream identifies the output stream a line of provider output came from.
type Stream int

const (
	// Stdout is the informational output stream.
	Stdout Stream = iota

	// Stderr is the error output stream.
	Stderr
)

// LineFunc receives provider output lines as they are produced. Calls are
// never concurrent.
type LineFunc func(stream Stream, line string)

// Provider creates a link at linkPath resolving to targetPath. An error is
// only returned when the provider could not be run at all, a provider which
// ran but failed reports so through its [Result].
type Provider interface {
	CreateLink(ctx context.Context, linkPath string, targetPath string, onLine LineFunc) (*Result, error)
}

// Result is the outcome of a single [Provider] run.
type Result struct {
	ExitCode int
	Stdout   []string
	Stderr   []string
}

// Failed returns whether the provider exited non-zero or produced any
// non-empty error output.
func (r *Result) Failed() bool {
	return r.ExitCode != 0 || r.ErrorText() != ""
}

// ErrorText returns all non-empty error output lines, joined verbatim.
func (r *Result) ErrorText() string {
	lines := make([]string, 0, len(r.Stderr))

	for _, l := range r.Stderr {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	return strings.Join(lines, "\n")
}

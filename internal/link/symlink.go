package link

import (
	"context"
	"fmt"
)

type unixProvider interface {
	Symlink(oldpath, newpath string) error
}

// SymlinkProvider is a [Provider] creating symbolic links using syscalls.
type SymlinkProvider struct {
	unixHandler unixProvider
}

// NewSymlinkProvider returns a pointer to a new [SymlinkProvider].
func NewSymlinkProvider(unixHandler unixProvider) *SymlinkProvider {
	return &SymlinkProvider{
		unixHandler: unixHandler,
	}
}

// CreateLink creates a symbolic link at linkPath pointing to targetPath. A
// failing syscall is reported as a failed [Result] carrying the error text.
func (p *SymlinkProvider) CreateLink(ctx context.Context, linkPath string, targetPath string, onLine LineFunc) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("(link-symlink) %w", err)
	}

	res := &Result{}

	if err := p.unixHandler.Symlink(targetPath, linkPath); err != nil {
		line := fmt.Sprintf("failed to symlink %s -> %s: %v", linkPath, targetPath, err)

		res.ExitCode = 1
		res.Stderr = append(res.Stderr, line)
		emit(onLine, Stderr, line)

		return res, nil
	}

	line := fmt.Sprintf("symbolic link created for %s <<===>> %s", linkPath, targetPath)
	res.Stdout = append(res.Stdout, line)
	emit(onLine, Stdout, line)

	return res, nil
}

func emit(onLine LineFunc, stream Stream, line string) {
	if onLine != nil {
		onLine(stream, line)
	}
}

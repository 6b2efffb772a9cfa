// Package relocation implements the relocation engine. It moves a directory
// tree to a new location and replaces the original directory with a link to
// it, reporting progress along the way. Whatever could not be completed is
// returned as a [schema.Outcome] of remedies for the caller to apply.
package relocation

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/desertwitch/relocator/internal/filesystem"
	"github.com/desertwitch/relocator/internal/link"
	"github.com/desertwitch/relocator/internal/schema"
	"golang.org/x/sys/unix"
)

// StagingSuffix is appended to the source directory name to form its staging
// name while it is being replaced.
const StagingSuffix = ".old"

type fsProvider interface {
	Exists(path string) (bool, error)
	GetMetadata(path string) (*schema.Metadata, error)
	HasEnoughFreeSpace(path string, size uint64) (bool, error)
	Inventory(ctx context.Context, root string) (filesystem.Inventory, error)
}

type osProvider interface {
	Open(name string) (*os.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	ReadDir(name string) ([]os.DirEntry, error)
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
	Stat(name string) (os.FileInfo, error)
	TempDir() string
}

type unixProvider interface {
	Chmod(path string, mode uint32) error
	Mkdir(path string, mode uint32) error
	Symlink(oldpath, newpath string) error
	UtimesNano(path string, times []unix.Timespec) error
	UtimesNanoAt(dirfd int, path string, times []unix.Timespec, flags int) error
}

type validationProvider interface {
	ValidateRequest(req schema.Request) error
}

// Recorder is notified with a copy of the [schema.Outcome] every time its
// remedies change during a relocation.
type Recorder interface {
	Checkpoint(outcome schema.Outcome)
}

// ExecuteOption configures a single [Handler.Execute] call.
type ExecuteOption func(r *run)

// WithRecorder sets a [Recorder] for the relocation.
func WithRecorder(rec Recorder) ExecuteOption {
	return func(r *run) {
		r.recorder = rec
	}
}

// Handler is the principal implementation of the relocation engine.
type Handler struct {
	fsHandler         fsProvider
	osHandler         osProvider
	unixHandler       unixProvider
	validationHandler validationProvider
	linkProvider      link.Provider
	stagingDir        string
}

// NewHandler returns a pointer to a new relocation [Handler]. The source
// directory is staged inside stagingDir, which is the temporary directory of
// the operating system when empty.
func NewHandler(fsHandler fsProvider, osHandler osProvider, unixHandler unixProvider,
	validationHandler validationProvider, linkProvider link.Provider, stagingDir string,
) *Handler {
	if stagingDir == "" {
		stagingDir = osHandler.TempDir()
	}

	return &Handler{
		fsHandler:         fsHandler,
		osHandler:         osHandler,
		unixHandler:       unixHandler,
		validationHandler: validationHandler,
		linkProvider:      linkProvider,
		stagingDir:        stagingDir,
	}
}

// StagingPath returns the path the source directory of a request is moved to
// while being replaced.
func (e *Handler) StagingPath(req schema.Request) string {
	return filepath.Join(e.stagingDir, req.Name()+StagingSuffix)
}

// Execute runs a relocation to its end, which is either success (an empty
// [schema.Outcome]), a failure or a cancellation through ctx. It blocks the
// calling goroutine. Progress is reported to sink one update at a time, see
// [schema.ProgressSink].
// The returned [schema.Outcome] is never nil and holds all remedies still owed,
// also when an error is returned.
func (e *Handler) Execute(ctx context.Context, req schema.Request, sink schema.ProgressSink, opts ...ExecuteOption) (outcome *schema.Outcome, err error) {
	r := newRun(req, sink)
	for _, opt := range opts {
		opt(r)
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Relocation failed unexpectedly",
				"source", req.Source,
				"destination", req.Destination,
				"panic", rec,
			)

			outcome = r.outcome
			err = fmt.Errorf("(relocation) %w: %v\n%s", ErrUnexpectedFault, rec, debug.Stack())
		}
	}()

	if err := e.validationHandler.ValidateRequest(req); err != nil {
		return r.outcome, fmt.Errorf("(relocation) %w", err)
	}

	r.outcome.StagingPath = e.StagingPath(req)

	slog.Info("Relocation started",
		"source", req.Source,
		"destination", req.Destination,
		"staging", r.outcome.StagingPath,
	)

	phases := []func(ctx context.Context, r *run) error{
		e.scanSource,
		e.prepareDestination,
		e.replicateTree,
		e.retireSource,
		e.createLink,
		e.removeStaged,
	}

	for _, phase := range phases {
		if err := phase(ctx, r); err != nil {
			slog.Warn("Relocation did not complete",
				"source", req.Source,
				"destination", req.Destination,
				"outcome", r.outcome.String(),
				"err", err,
			)

			return r.outcome, err
		}
	}

	r.tracker.finish(fmt.Sprintf("%s is relocated to %s", req.Source, req.Destination))

	slog.Info("Relocation finished",
		"source", req.Source,
		"destination", req.Destination,
	)

	return r.outcome, nil
}

// run holds the state of a single relocation.
type run struct {
	req      schema.Request
	outcome  *schema.Outcome
	tracker  *tracker
	recorder Recorder
	inv      filesystem.Inventory
	dirs     []createdDir
}

func newRun(req schema.Request, sink schema.ProgressSink) *run {
	return &run{
		req:     req,
		outcome: schema.NewOutcome(),
		tracker: newTracker(sink),
	}
}

// mark adds and removes remedies at once and notifies the [Recorder].
func (r *run) mark(add []schema.Remedy, remove []schema.Remedy) {
	r.outcome.Add(add...)
	r.outcome.Remove(remove...)

	if r.recorder != nil {
		r.recorder.Checkpoint(r.outcome.Clone())
	}
}

// cancelled returns a wrapped [ErrCancelled] if ctx is done, otherwise nil.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("(relocation) %w: %w", ErrCancelled, err)
	}

	return nil
}

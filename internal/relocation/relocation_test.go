package relocation

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertwitch/relocator/internal/filesystem"
	"github.com/desertwitch/relocator/internal/link"
	"github.com/desertwitch/relocator/internal/remediation"
	"github.com/desertwitch/relocator/internal/schema"
	"github.com/desertwitch/relocator/internal/testutil"
	"github.com/desertwitch/relocator/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

type mockLinkProvider struct {
	mock.Mock
}

func (m *mockLinkProvider) CreateLink(ctx context.Context, linkPath string, targetPath string, onLine link.LineFunc) (*link.Result, error) {
	args := m.Called(ctx, linkPath, targetPath, onLine)

	res, _ := args.Get(0).(*link.Result)

	return res, args.Error(1)
}

type failingRenameOS struct {
	schema.OS
	err error
}

func (f *failingRenameOS) Rename(string, string) error {
	return f.err
}

type crashingRenameOS struct {
	schema.OS
}

func (c *crashingRenameOS) Rename(oldpath, newpath string) error {
	if err := c.OS.Rename(oldpath, newpath); err != nil {
		return err
	}

	panic("process died after rename")
}

type fixedTempDirOS struct {
	schema.OS
	dir string
}

func (f *fixedTempDirOS) TempDir() string {
	return f.dir
}

type fullDiskFS struct {
	*filesystem.Handler
}

func (*fullDiskFS) HasEnoughFreeSpace(string, uint64) (bool, error) {
	return false, nil
}

type recordingRecorder struct {
	checkpoints []schema.Outcome
}

func (r *recordingRecorder) Checkpoint(o schema.Outcome) {
	r.checkpoints = append(r.checkpoints, o)
}

type fixture struct {
	req        schema.Request
	stagingDir string
	fsHandler  *filesystem.Handler
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	dir := t.TempDir()
	stagingDir := filepath.Join(dir, "tmp")

	require.NoError(t, os.MkdirAll(stagingDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "big"), 0o755))

	return fixture{
		req:        schema.NewRequest(filepath.Join(dir, "data", "games"), filepath.Join(dir, "big", "games")),
		stagingDir: stagingDir,
		fsHandler:  filesystem.NewHandler(&schema.OS{}, &schema.Unix{}),
	}
}

func (f fixture) engine(linker link.Provider) *Handler {
	return f.engineWith(f.fsHandler, &schema.OS{}, linker)
}

func (f fixture) engineWith(fsHandler fsProvider, osHandler osProvider, linker link.Provider) *Handler {
	if linker == nil {
		linker = link.NewSymlinkProvider(&schema.Unix{})
	}

	return NewHandler(fsHandler, osHandler, &schema.Unix{}, validation.NewHandler(f.fsHandler), linker, f.stagingDir)
}

func (f fixture) staging() string {
	return filepath.Join(f.stagingDir, "games"+StagingSuffix)
}

//nolint:gochecknoglobals
var sampleTree = testutil.Tree{
	"readme.txt":          "hello",
	"saves/slot1.dat":     strings.Repeat("a", 4096),
	"saves/slot2.dat":     strings.Repeat("b", 2048),
	"saves/empty/":        "",
	"mods/enabled/x.mod":  "x",
	"mods/current":        "->enabled",
	"mods/enabled/y.mod":  "",
	"config/settings.ini": "[main]\nfullscreen=1\n",
}

// TestExecute_Success tests a complete relocation: the source path becomes a
// link to an identical destination tree and nothing is left staged.
func TestExecute_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)
	before := testutil.Digest(t, f.req.Source)

	sink := &recordingSink{}
	rec := &recordingRecorder{}

	outcome, err := f.engine(nil).Execute(t.Context(), f.req, sink, WithRecorder(rec))
	require.NoError(t, err)

	assert.True(t, outcome.IsSuccess())
	assert.Empty(t, outcome.Leftovers)
	assert.Equal(t, f.staging(), outcome.StagingPath)

	target, err := os.Readlink(f.req.Source)
	require.NoError(t, err)
	assert.Equal(t, f.req.Destination, target)

	assert.Equal(t, before, testutil.Digest(t, f.req.Destination))
	assert.Equal(t, before, testutil.Digest(t, f.req.Source))
	assert.NoDirExists(t, f.staging())

	mods, err := os.Readlink(filepath.Join(f.req.Destination, "mods", "current"))
	require.NoError(t, err)
	assert.Equal(t, "enabled", mods)

	require.NotEmpty(t, rec.checkpoints)
	assert.True(t, rec.checkpoints[0].Has(schema.DeleteDestinationDir))
	last := rec.checkpoints[len(rec.checkpoints)-1]
	assert.True(t, last.IsSuccess())
}

// TestExecute_Progress_Monotonic tests that reported percentages never
// decrease, never exceed 100 and end at 100.
func TestExecute_Progress_Monotonic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)

	sink := &recordingSink{}

	_, err := f.engine(nil).Execute(t.Context(), f.req, sink)
	require.NoError(t, err)

	require.NotEmpty(t, sink.updates)

	last := 0
	for _, u := range sink.updates {
		assert.GreaterOrEqual(t, u.Percent, last, u.Message)
		assert.LessOrEqual(t, u.Percent, 100, u.Message)
		last = u.Percent
	}

	assert.Equal(t, 100, sink.updates[len(sink.updates)-1].Percent)
	assert.Equal(t, "calculating folder size", sink.updates[0].Message)
}

// TestExecute_EmptySource_Success tests relocating an empty directory.
func TestExecute_EmptySource_Success(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.req.Source, 0o755))

	outcome, err := f.engine(nil).Execute(t.Context(), f.req, nil)
	require.NoError(t, err)
	assert.True(t, outcome.IsSuccess())

	entries, err := os.ReadDir(f.req.Destination)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestExecute_DestinationNotEmpty_Fail tests that a non-empty destination is
// rejected before anything is changed.
func TestExecute_DestinationNotEmpty_Fail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)
	testutil.Build(t, f.req.Destination, testutil.Tree{"existing.txt": "keep"})
	before := testutil.Digest(t, f.req.Source)

	sink := &recordingSink{}

	outcome, err := f.engine(nil).Execute(t.Context(), f.req, sink)
	require.ErrorIs(t, err, validation.ErrDestinationNotEmpty)

	assert.True(t, outcome.IsSuccess())
	assert.Empty(t, sink.updates)
	assert.Equal(t, before, testutil.Digest(t, f.req.Source))
	assert.FileExists(t, filepath.Join(f.req.Destination, "existing.txt"))
}

// TestExecute_SourceNotFound_Fail tests that a missing source is rejected.
func TestExecute_SourceNotFound_Fail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	outcome, err := f.engine(nil).Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, validation.ErrSourceNotFound)
	assert.True(t, outcome.IsSuccess())
	assert.NoDirExists(t, f.req.Destination)
}

// TestExecute_Cancelled_AfterFirstFile tests a cancellation after the first
// of three files was copied into an existing, empty destination.
func TestExecute_Cancelled_AfterFirstFile(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, testutil.Tree{
		"1.bin": strings.Repeat("1", 1024),
		"2.bin": strings.Repeat("2", 1024),
		"3.bin": strings.Repeat("3", 1024),
	})
	require.NoError(t, os.MkdirAll(f.req.Destination, 0o755))
	before := testutil.Digest(t, f.req.Source)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	copying := make(map[string]struct{})
	sink := schema.ProgressFunc(func(u schema.ProgressUpdate) {
		if strings.HasPrefix(u.Message, "copying to ") {
			copying[u.Message] = struct{}{}
			if len(copying) == 2 {
				cancel()
			}
		}
	})

	outcome, err := f.engine(nil).Execute(ctx, f.req, sink)
	require.ErrorIs(t, err, ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []schema.Remedy{schema.CleanDestination}, outcome.Remedies())

	entries, err := os.ReadDir(f.req.Destination)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Equal(t, before, testutil.Digest(t, f.req.Source))

	require.NoError(t, remediation.NewHandler(&schema.OS{}).Remediate(f.req, outcome))

	entries, err = os.ReadDir(f.req.Destination)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// TestExecute_LinkFailure_Remediated tests a failing link provider after the
// source was staged: the link is to be deleted, the source reverted and the
// destination directory created by the relocation removed.
func TestExecute_LinkFailure_Remediated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)
	before := testutil.Digest(t, f.req.Source)

	linker := &mockLinkProvider{}
	linker.On("CreateLink", mock.Anything, f.req.Source, f.req.Destination, mock.Anything).
		Return(&link.Result{ExitCode: 1, Stderr: []string{"Access is denied."}}, nil).
		Once()

	outcome, err := f.engine(linker).Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, ErrLinkFailure)
	assert.Contains(t, err.Error(), "Access is denied.")
	linker.AssertExpectations(t)

	assert.True(t, outcome.Has(schema.DeleteLink))
	assert.True(t, outcome.Has(schema.RevertSource))
	assert.False(t, outcome.Has(schema.CleanDestination))
	assert.True(t, outcome.Has(schema.DeleteDestinationDir))

	assert.NoDirExists(t, f.req.Source)
	assert.DirExists(t, f.staging())
	assert.Equal(t, before, testutil.Digest(t, f.req.Destination))

	require.NoError(t, remediation.NewHandler(&schema.OS{}).Remediate(f.req, outcome))

	assert.Equal(t, before, testutil.Digest(t, f.req.Source))
	assert.NoDirExists(t, f.req.Destination)
	assert.NoDirExists(t, f.staging())
}

// TestExecute_LinkFailure_ExistingDestination_Kept tests that a destination
// which existed before the relocation keeps its complete copy after a failing
// link provider, as it is neither cleaned nor deleted.
func TestExecute_LinkFailure_ExistingDestination_Kept(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)
	require.NoError(t, os.MkdirAll(f.req.Destination, 0o755))
	before := testutil.Digest(t, f.req.Source)

	linker := &mockLinkProvider{}
	linker.On("CreateLink", mock.Anything, f.req.Source, f.req.Destination, mock.Anything).
		Return(&link.Result{ExitCode: 1}, nil).
		Once()

	outcome, err := f.engine(linker).Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, ErrLinkFailure)

	assert.Equal(t, []schema.Remedy{schema.DeleteLink, schema.RevertSource}, outcome.Remedies())

	require.NoError(t, remediation.NewHandler(&schema.OS{}).Remediate(f.req, outcome))

	assert.Equal(t, before, testutil.Digest(t, f.req.Source))
	assert.Equal(t, before, testutil.Digest(t, f.req.Destination))
	assert.NoDirExists(t, f.staging())
}

// TestExecute_Cancelled_CreatingLink_Remediated tests a cancellation once the
// link phase is reported: remediation removes the created destination and
// restores the source.
func TestExecute_Cancelled_CreatingLink_Remediated(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)
	before := testutil.Digest(t, f.req.Source)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	sink := schema.ProgressFunc(func(u schema.ProgressUpdate) {
		if strings.HasPrefix(u.Message, "creating symbolic link ") {
			cancel()
		}
	})

	outcome, err := f.engine(nil).Execute(ctx, f.req, sink)
	require.ErrorIs(t, err, ErrCancelled)

	assert.True(t, outcome.Has(schema.DeleteLink))
	assert.True(t, outcome.Has(schema.RevertSource))
	assert.True(t, outcome.Has(schema.DeleteDestinationDir))
	assert.False(t, outcome.Has(schema.CleanDestination))

	require.NoError(t, remediation.NewHandler(&schema.OS{}).Remediate(f.req, outcome))

	info, err := os.Lstat(f.req.Source)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, before, testutil.Digest(t, f.req.Source))
	assert.NoDirExists(t, f.req.Destination)
	assert.NoDirExists(t, f.staging())
}

// TestExecute_CrashAfterRename_Recoverable tests that the last checkpoint
// recorded before the process dies right after the rename is enough to
// restore the source and remove the destination.
func TestExecute_CrashAfterRename_Recoverable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)
	before := testutil.Digest(t, f.req.Source)

	rec := &recordingRecorder{}
	engine := f.engineWith(f.fsHandler, &crashingRenameOS{}, nil)

	_, err := engine.Execute(t.Context(), f.req, nil, WithRecorder(rec))
	require.ErrorIs(t, err, ErrUnexpectedFault)

	assert.NoDirExists(t, f.req.Source)
	assert.DirExists(t, f.staging())

	require.NotEmpty(t, rec.checkpoints)
	last := rec.checkpoints[len(rec.checkpoints)-1]
	assert.Equal(t, []schema.Remedy{schema.RevertSource, schema.CleanDestination, schema.DeleteDestinationDir}, last.Remedies())

	require.NoError(t, remediation.NewHandler(&schema.OS{}).Remediate(f.req, &last))

	assert.Equal(t, before, testutil.Digest(t, f.req.Source))
	assert.NoDirExists(t, f.req.Destination)
	assert.NoDirExists(t, f.staging())
}

// TestExecute_LinkProviderError_Fail tests a link provider that cannot run.
func TestExecute_LinkProviderError_Fail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)

	linker := &mockLinkProvider{}
	linker.On("CreateLink", mock.Anything, f.req.Source, f.req.Destination, mock.Anything).
		Return(nil, os.ErrPermission).
		Once()

	outcome, err := f.engine(linker).Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, ErrLinkFailure)
	require.ErrorIs(t, err, os.ErrPermission)

	assert.Equal(t, []schema.Remedy{schema.DeleteLink, schema.RevertSource, schema.DeleteDestinationDir}, outcome.Remedies())
}

// TestExecute_LinkStdout_Forwarded tests that informational provider output
// is forwarded as a milestone progress update.
func TestExecute_LinkStdout_Forwarded(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)

	symlinker := link.NewSymlinkProvider(&schema.Unix{})

	linker := &mockLinkProvider{}
	linker.On("CreateLink", mock.Anything, f.req.Source, f.req.Destination, mock.Anything).
		Run(func(args mock.Arguments) {
			onLine, _ := args.Get(3).(link.LineFunc)
			_, _ = symlinker.CreateLink(t.Context(), f.req.Source, f.req.Destination, nil)
			onLine(link.Stdout, "Junction created")
		}).
		Return(&link.Result{Stdout: []string{"Junction created"}}, nil).
		Once()

	sink := &recordingSink{}

	outcome, err := f.engine(linker).Execute(t.Context(), f.req, sink)
	require.NoError(t, err)
	assert.True(t, outcome.IsSuccess())

	var found bool
	for _, u := range sink.updates {
		if u.Message == "Junction created" {
			found = true
			assert.True(t, u.Milestone)
		}
	}
	assert.True(t, found)
}

// TestExecute_RenameFailure_Aborts tests that a failing rename aborts before
// any link is attempted, leaving the source untouched.
func TestExecute_RenameFailure_Aborts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)
	before := testutil.Digest(t, f.req.Source)

	linker := &mockLinkProvider{}

	engine := f.engineWith(f.fsHandler, &failingRenameOS{err: unix.EXDEV}, linker)

	outcome, err := engine.Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, ErrRenameFailure)
	require.ErrorIs(t, err, unix.EXDEV)
	linker.AssertNotCalled(t, "CreateLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	assert.Equal(t, []schema.Remedy{schema.RevertSource, schema.CleanDestination, schema.DeleteDestinationDir}, outcome.Remedies())

	require.NoError(t, remediation.NewHandler(&schema.OS{}).Remediate(f.req, outcome))

	assert.Equal(t, before, testutil.Digest(t, f.req.Source))
	assert.NoDirExists(t, f.req.Destination)
}

// TestExecute_StagingExists_Fail tests that an occupied staging path is
// detected before anything is copied.
func TestExecute_StagingExists_Fail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)
	testutil.Build(t, f.staging(), testutil.Tree{"foreign.txt": "x"})

	outcome, err := f.engine(nil).Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, ErrRenameFailure)
	require.ErrorIs(t, err, ErrStagingExists)

	assert.True(t, outcome.IsSuccess())
	assert.NoDirExists(t, f.req.Destination)
}

// TestExecute_NotEnoughSpace_Fail tests that the free space check happens
// before anything is changed.
func TestExecute_NotEnoughSpace_Fail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)

	engine := f.engineWith(&fullDiskFS{f.fsHandler}, &schema.OS{}, nil)

	outcome, err := engine.Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, filesystem.ErrNotEnoughSpace)

	assert.True(t, outcome.IsSuccess())
	assert.NoDirExists(t, f.req.Destination)
}

// TestExecute_UnsupportedFile_Fail tests that special files fail the copy.
func TestExecute_UnsupportedFile_Fail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, testutil.Tree{"a.txt": "a"})
	require.NoError(t, unix.Mkfifo(filepath.Join(f.req.Source, "pipe"), 0o644))

	outcome, err := f.engine(nil).Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, ErrCopyFailure)
	require.ErrorIs(t, err, ErrUnsupportedFileType)

	assert.Equal(t, []schema.Remedy{schema.CleanDestination, schema.DeleteDestinationDir}, outcome.Remedies())
	assert.DirExists(t, f.req.Source)
}

// TestExecute_Panic_UnexpectedFault tests that a panic is recovered and the
// remedies accumulated before it are kept.
func TestExecute_Panic_UnexpectedFault(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	testutil.Build(t, f.req.Source, sampleTree)

	linker := &mockLinkProvider{}
	linker.On("CreateLink", mock.Anything, f.req.Source, f.req.Destination, mock.Anything).
		Run(func(mock.Arguments) {
			panic("provider exploded")
		}).
		Return(nil, nil)

	outcome, err := f.engine(linker).Execute(t.Context(), f.req, nil)
	require.ErrorIs(t, err, ErrUnexpectedFault)
	assert.Contains(t, err.Error(), "provider exploded")

	assert.Equal(t, []schema.Remedy{schema.RevertSource, schema.DeleteDestinationDir}, outcome.Remedies())

	require.NoError(t, remediation.NewHandler(&schema.OS{}).Remediate(f.req, outcome))
	assert.DirExists(t, f.req.Source)
	assert.NoDirExists(t, f.req.Destination)
}

// TestExecute_Cancelled_AnyCheckpoint tests that a cancellation at any point
// of a relocation leaves a state that remediation fully restores.
func TestExecute_Cancelled_AnyCheckpoint(t *testing.T) {
	t.Parallel()

	baseline := newFixture(t)
	testutil.Build(t, baseline.req.Source, sampleTree)

	counter := &recordingSink{}
	_, err := baseline.engine(nil).Execute(t.Context(), baseline.req, counter)
	require.NoError(t, err)

	for n := 1; n <= len(counter.updates); n++ {
		f := newFixture(t)
		testutil.Build(t, f.req.Source, sampleTree)
		before := testutil.Digest(t, f.req.Source)

		ctx, cancel := context.WithCancel(t.Context())

		reports := 0
		sink := schema.ProgressFunc(func(schema.ProgressUpdate) {
			reports++
			if reports == n {
				cancel()
			}
		})

		outcome, err := f.engine(nil).Execute(ctx, f.req, sink)
		cancel()

		if err != nil {
			require.ErrorIs(t, err, ErrCancelled, "cancelled at report %d", n)
		}

		require.NoError(t, remediation.NewHandler(&schema.OS{}).Remediate(f.req, outcome), "cancelled at report %d", n)

		assert.Equal(t, before, testutil.Digest(t, f.req.Source), "cancelled at report %d", n)
		assert.NoDirExists(t, f.staging(), "cancelled at report %d", n)

		if err != nil {
			assert.NoDirExists(t, f.req.Destination, "cancelled at report %d", n)
		}
	}
}

// TestNewHandler_StagingDir tests the staging path with and without an
// explicit staging directory.
func TestNewHandler_StagingDir(t *testing.T) {
	t.Parallel()

	req := schema.NewRequest("/data/games", "/big/games")

	tests := []struct {
		name       string
		stagingDir string
		want       string
	}{
		{"explicit", "/mnt/stage", "/mnt/stage/games" + StagingSuffix},
		{"temporary directory", "", "/var/tmp/relocator/games" + StagingSuffix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			osHandler := &fixedTempDirOS{dir: "/var/tmp/relocator"}
			h := NewHandler(nil, osHandler, &schema.Unix{}, nil, nil, tt.stagingDir)

			assert.Equal(t, tt.want, h.StagingPath(req))
		})
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"text/tabwriter"

	"github.com/desertwitch/relocator/internal/configuration"
	"github.com/desertwitch/relocator/internal/filesystem"
	"github.com/desertwitch/relocator/internal/journal"
	"github.com/desertwitch/relocator/internal/relocation"
	"github.com/desertwitch/relocator/internal/remediation"
	"github.com/desertwitch/relocator/internal/schema"
	"github.com/desertwitch/relocator/internal/validation"
	"github.com/dustin/go-humanize"
)

const procRoot = "/proc"

// App wires the handlers needed for running, recovering and listing
// relocations.
type App struct {
	fsHandler          *filesystem.Handler
	validationHandler  *validation.Handler
	relocationHandler  *relocation.Handler
	remediationHandler *remediation.Handler
	journal            *journal.Store
	settings           *configuration.Store
	procRoot           string
}

// NewApp returns a pointer to a new [App]. The journal is optional.
func NewApp(fsHandler *filesystem.Handler,
	validationHandler *validation.Handler,
	relocationHandler *relocation.Handler,
	remediationHandler *remediation.Handler,
	journalStore *journal.Store,
	settings *configuration.Store,
) *App {
	return &App{
		fsHandler:          fsHandler,
		validationHandler:  validationHandler,
		relocationHandler:  relocationHandler,
		remediationHandler: remediationHandler,
		journal:            journalStore,
		settings:           settings,
		procRoot:           procRoot,
	}
}

// Report is the result of a relocation including its remediation.
type Report struct {
	RunID          string
	Request        schema.Request
	Outcome        *schema.Outcome
	Err            error
	RemediationErr error
}

// ExitCode returns the process exit code for the [Report].
func (r *Report) ExitCode() int {
	return exitCodeFor(r.Err, r.RemediationErr)
}

// Summary returns a one-line description of the [Report].
func (r *Report) Summary() string {
	switch r.ExitCode() {
	case exitSuccess:
		return fmt.Sprintf("%s was relocated to %s", r.Request.Source, r.Request.Destination)
	case exitCancelled:
		return "relocation was cancelled and rolled back"
	case exitInvalid:
		return "relocation was not started"
	case exitRemediationFailed:
		return fmt.Sprintf("relocation failed and could not be rolled back (remaining: %s)", r.Outcome.String())
	default:
		return "relocation failed and was rolled back"
	}
}

// ResolveRequest builds the [schema.Request] from the given paths, falling
// back to the saved settings for any path not given. Relative paths are made
// absolute.
func (app *App) ResolveRequest(source string, destination string) (schema.Request, error) {
	saved := app.settings.Load()

	if source == "" {
		source = saved.Source
	}

	if destination == "" && saved.DestinationParent != "" && source != "" {
		destination = filepath.Join(saved.DestinationParent, filepath.Base(filepath.Clean(source)))
	}

	if source == "" || destination == "" {
		return schema.Request{}, fmt.Errorf("%w: both a source and a destination are needed", ErrInvalidRequest)
	}

	absSource, err := filepath.Abs(source)
	if err != nil {
		return schema.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	absDest, err := filepath.Abs(destination)
	if err != nil {
		return schema.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	return schema.NewRequest(absSource, absDest), nil
}

// Relocate validates and runs the relocation of req, reporting progress to
// sink. Whatever remedies are owed afterwards are applied right away.
func (app *App) Relocate(ctx context.Context, req schema.Request, sink schema.ProgressSink) *Report {
	report := &Report{
		Request: req,
		Outcome: schema.NewOutcome(),
	}

	if err := app.validationHandler.ValidateRequest(req); err != nil {
		report.Err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)

		return report
	}

	app.warnInUse(req.Source)

	var opts []relocation.ExecuteOption

	if app.journal != nil {
		entry, err := app.journal.Begin(context.WithoutCancel(ctx), req, app.relocationHandler.StagingPath(req))
		if err != nil {
			slog.Warn("Failure journaling the relocation (skipped)",
				"err", err,
			)
		} else {
			report.RunID = entry.ID
			opts = append(opts, relocation.WithRecorder(app.journal.Recorder(entry.ID)))
		}
	}

	report.Outcome, report.Err = app.relocationHandler.Execute(ctx, req, sink, opts...)
	app.saveSettings(req)

	if report.Err == nil {
		app.finishRun(report.RunID, report.Outcome, journal.StateSucceeded, nil)

		for _, leftover := range report.Outcome.Leftovers {
			slog.Warn("Leftover needs to be removed manually",
				"path", leftover,
			)
		}

		return report
	}

	state := journal.StateFailed
	if errors.Is(report.Err, relocation.ErrCancelled) {
		state = journal.StateCancelled
	}
	app.finishRun(report.RunID, report.Outcome, state, report.Err)

	if report.Outcome.IsSuccess() {
		return report
	}

	slog.Info("Rolling back the relocation",
		"remedies", report.Outcome.String(),
	)

	report.RemediationErr = app.remediate(report.RunID, req, report.Outcome)

	return report
}

// Recover applies the remedies still owed by the journaled run with the given
// id, or by all pending runs if id is empty. It returns the number of runs
// remediated.
func (app *App) Recover(ctx context.Context, id string) (int, error) {
	if app.journal == nil {
		return 0, ErrNoJournal
	}

	var entries []*journal.Entry

	if id != "" {
		entry, err := app.journal.Get(ctx, id)
		if err != nil {
			return 0, fmt.Errorf("(app-recover) %w", err)
		}
		entries = append(entries, entry)
	} else {
		pending, err := app.journal.Pending(ctx)
		if err != nil {
			return 0, fmt.Errorf("(app-recover) %w", err)
		}
		entries = pending
	}

	var errs []error
	remediated := 0

	for _, entry := range entries {
		outcome := entry.Outcome()
		if outcome.IsSuccess() {
			slog.Info("Run owes no remedies (skipped)",
				"run", entry.ID,
			)

			continue
		}

		slog.Info("Recovering run",
			"run", entry.ID,
			"source", entry.Source,
			"destination", entry.Destination,
			"remedies", outcome.String(),
		)

		if err := app.remediate(entry.ID, entry.Request(), outcome); err != nil {
			errs = append(errs, err)

			continue
		}

		remediated++
	}

	if len(errs) > 0 {
		return remediated, errors.Join(errs...)
	}

	return remediated, nil
}

// History writes the most recent journaled runs as a table to w.
func (app *App) History(ctx context.Context, w io.Writer, limit int) error {
	if app.journal == nil {
		return ErrNoJournal
	}

	entries, err := app.journal.List(ctx, limit)
	if err != nil {
		return fmt.Errorf("(app-history) %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0) //nolint:mnd
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATE\tREMEDIES\tSOURCE\tDESTINATION")

	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID,
			humanize.Time(e.StartedAt),
			e.State,
			remediesText(e.Outcome()),
			e.Source,
			e.Destination,
		)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("(app-history) %w", err)
	}

	return nil
}

func remediesText(o *schema.Outcome) string {
	if o.IsSuccess() {
		return "-"
	}

	return o.String()
}

// remediate applies the outcome's remedies and journals the result.
func (app *App) remediate(id string, req schema.Request, outcome *schema.Outcome) error {
	if err := app.remediationHandler.Remediate(req, outcome); err != nil {
		app.setRunState(id, journal.StateRemediationFailed)

		return fmt.Errorf("%w: %w", ErrRemediationFailed, err)
	}

	app.setRunState(id, journal.StateRemediated)

	return nil
}

func (app *App) finishRun(id string, outcome *schema.Outcome, state journal.State, runErr error) {
	if app.journal == nil || id == "" {
		return
	}

	if err := app.journal.Finish(context.Background(), id, outcome, state, runErr); err != nil {
		slog.Warn("Failure journaling the result (skipped)",
			"run", id,
			"err", err,
		)
	}
}

func (app *App) setRunState(id string, state journal.State) {
	if app.journal == nil || id == "" {
		return
	}

	if err := app.journal.SetState(context.Background(), id, state); err != nil {
		slog.Warn("Failure journaling the run state (skipped)",
			"run", id,
			"err", err,
		)
	}
}

func (app *App) saveSettings(req schema.Request) {
	s := configuration.Settings{
		Source:            req.Source,
		DestinationParent: filepath.Dir(req.Destination),
	}

	if err := app.settings.Save(s); err != nil {
		slog.Warn("Failure saving settings (skipped)",
			"path", app.settings.Path(),
			"err", err,
		)
	}
}

// warnInUse logs the files below source which are held open by a process,
// as these may not end up consistent at the destination.
func (app *App) warnInUse(source string) {
	paths, err := app.fsHandler.InUseUnder(app.procRoot, source)
	if err != nil {
		slog.Debug("Failure checking for files in use (skipped)",
			"path", source,
			"err", err,
		)

		return
	}

	for _, p := range paths {
		slog.Warn("File is in use by another process",
			"path", p,
		)
	}
}

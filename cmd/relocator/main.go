package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/desertwitch/relocator/internal/configuration"
	"github.com/desertwitch/relocator/internal/filesystem"
	"github.com/desertwitch/relocator/internal/journal"
	"github.com/desertwitch/relocator/internal/link"
	"github.com/desertwitch/relocator/internal/progress"
	"github.com/desertwitch/relocator/internal/relocation"
	"github.com/desertwitch/relocator/internal/remediation"
	"github.com/desertwitch/relocator/internal/schema"
	"github.com/desertwitch/relocator/internal/ui"
	"github.com/desertwitch/relocator/internal/validation"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

const (
	stackTraceBufMax    = 1 << 24
	defaultHistoryLimit = 20
)

type options struct {
	source       string
	destination  string
	stagingDir   string
	linkCommand  string
	journalPath  string
	settingsPath string
	noJournal    bool
	ui           bool
	limit        int
}

//nolint:gochecknoglobals
var (
	ExitCode = 0
	Version  string

	verbosity  int
	opts       options
	logManager *SlogManager

	rootCmd = &cobra.Command{
		Use:   "relocator",
		Short: "Move a directory elsewhere and leave a link in its place",
		Long: `relocator moves a directory tree to a new location, for example onto a
bigger disk, and replaces the original directory with a link to the new one.

If the relocation fails or is cancelled, everything done so far is rolled back.
Runs are journaled, so a crashed relocation can be rolled back later on with
"relocator recover".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			logManager = setupLogging(logLevel(verbosity))
		},
		RunE: runRelocate,
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "List the most recent relocations",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	recoverCmd = &cobra.Command{
		Use:   "recover [run-id]",
		Short: "Roll back relocations that failed, were cancelled or crashed",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRecover,
	}
)

//nolint:gochecknoinits
func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase verbosity")
	rootCmd.PersistentFlags().StringVar(&opts.journalPath, "journal", configuration.DefaultJournalPath(), "path of the run journal")
	rootCmd.PersistentFlags().BoolVar(&opts.noJournal, "no-journal", false, "do not journal runs")
	rootCmd.PersistentFlags().StringVar(&opts.settingsPath, "settings", configuration.DefaultSettingsPath(), "path of the settings file")

	rootCmd.Flags().StringVarP(&opts.source, "source", "s", "", "directory to relocate (default: last used)")
	rootCmd.Flags().StringVarP(&opts.destination, "destination", "d", "", "new location of the directory (default: last used parent)")
	rootCmd.Flags().StringVar(&opts.stagingDir, "staging-dir", "", "where the source is kept until the link exists (default: temporary directory)")
	rootCmd.Flags().StringVar(&opts.linkCommand, "link-command", "", "command creating the link, with {link} and {target} placeholders (default: symbolic link)")
	rootCmd.Flags().BoolVar(&opts.ui, "ui", true, "show the terminal user interface when possible")

	historyCmd.Flags().IntVarP(&opts.limit, "limit", "n", defaultHistoryLimit, "number of runs to list")

	rootCmd.AddCommand(historyCmd, recoverCmd)
}

func setupSignalHandlers(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		<-sigChan
		slog.Warn("Received signal, cancelling the relocation...")
		cancel()
	}()

	sigChan2 := make(chan os.Signal, 1)
	signal.Notify(sigChan2, syscall.SIGUSR1)
	go func() {
		for range sigChan2 {
			buf := make([]byte, stackTraceBufMax)
			stacklen := runtime.Stack(buf, true)
			os.Stderr.Write(buf[:stacklen])
		}
	}()
}

func newLinkProvider(linkCommand string, unixProvider *schema.Unix) (link.Provider, error) { //nolint:ireturn
	if linkCommand == "" {
		return link.NewSymlinkProvider(unixProvider), nil
	}

	provider, err := link.NewCommandProvider(linkCommand)
	if err != nil {
		return nil, fmt.Errorf("(main) %w", err)
	}

	return provider, nil
}

func openJournal(path string) (*journal.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return nil, fmt.Errorf("(main) failed to create journal directory: %w", err)
	}

	store, err := journal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("(main) %w", err)
	}

	return store, nil
}

// buildApp wires all handlers into an [App]. The returned function releases
// the resources held by the [App]. With requireJournal unset, a journal that
// cannot be opened is skipped.
func buildApp(o options, requireJournal bool) (*App, func(), error) {
	osProvider := &schema.OS{}
	unixProvider := &schema.Unix{}

	linkProvider, err := newLinkProvider(o.linkCommand, unixProvider)
	if err != nil {
		return nil, nil, err
	}

	fsHandler := filesystem.NewHandler(osProvider, unixProvider)
	validationHandler := validation.NewHandler(fsHandler)
	relocationHandler := relocation.NewHandler(fsHandler, osProvider, unixProvider, validationHandler, linkProvider, o.stagingDir)
	remediationHandler := remediation.NewHandler(osProvider)
	settings := configuration.NewStore(o.settingsPath, &configuration.GodotenvProvider{})

	var store *journal.Store
	closer := func() {}

	if !o.noJournal {
		store, err = openJournal(o.journalPath)
		if err != nil {
			if requireJournal {
				return nil, nil, err
			}

			slog.Warn("Failure opening the run journal (skipped)",
				"path", o.journalPath,
				"err", err,
			)
		} else {
			closer = func() { store.Close() }
		}
	}

	app := NewApp(fsHandler, validationHandler, relocationHandler, remediationHandler, store, settings)

	return app, closer, nil
}

func runRelocate(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	setupSignalHandlers(cancel)

	app, closer, err := buildApp(opts, false)
	if err != nil {
		ExitCode = exitInvalid

		return err
	}
	defer closer()

	req, err := app.ResolveRequest(opts.source, opts.destination)
	if err != nil {
		ExitCode = exitInvalid

		return err
	}

	var report *Report

	if opts.ui && isatty.IsTerminal(os.Stdout.Fd()) {
		report = runWithUI(ctx, cancel, app, req)
	} else {
		report = app.Relocate(ctx, req, progress.NewTextSink(os.Stdout, 0))
	}

	ExitCode = report.ExitCode()

	if ExitCode == exitSuccess {
		slog.Info(report.Summary(),
			"run", report.RunID,
		)

		return nil
	}

	slog.Error(report.Summary(),
		"run", report.RunID,
		"err", report.Err,
		"remediation", report.RemediationErr,
	)

	return nil
}

// runWithUI runs the relocation while showing the user interface. The logs
// are moved into the user interface for as long as it runs.
func runWithUI(ctx context.Context, cancel context.CancelFunc, app *App, req schema.Request) *Report {
	level := logLevel(verbosity)
	handler := ui.NewHandler(ctx, cancel, fmt.Sprintf("%s -> %s", req.Source, req.Destination))

	var wg sync.WaitGroup
	var report *Report

	wg.Add(1)
	go func() {
		defer wg.Done()

		logManager.AddHandler(logUI, newLogHandler(handler.LogWriter, level))
		logManager.RemoveHandler(logTerminal)

		err := handler.Launch()

		logManager.AddHandler(logTerminal, newLogHandler(os.Stderr, level))
		logManager.RemoveHandler(logUI)

		if err != nil {
			slog.Error("UI failure: falling back to terminal.", "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		waitForUI(ctx, handler)

		report = app.Relocate(ctx, req, handler)
		handler.Finish(report.Summary(), report.Err)
	}()

	wg.Wait()

	return report
}

func waitForUI(ctx context.Context, handler *ui.Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond): //nolint:mnd
		}

		if handler.Ready.Load() || handler.Failed.Load() {
			return
		}
	}
}

func runHistory(cmd *cobra.Command, _ []string) error {
	app, closer, err := buildApp(opts, true)
	if err != nil {
		ExitCode = exitFailed

		return err
	}
	defer closer()

	if err := app.History(cmd.Context(), cmd.OutOrStdout(), opts.limit); err != nil {
		ExitCode = exitFailed

		return err
	}

	return nil
}

func runRecover(cmd *cobra.Command, args []string) error {
	app, closer, err := buildApp(opts, true)
	if err != nil {
		ExitCode = exitFailed

		return err
	}
	defer closer()

	var id string
	if len(args) > 0 {
		id = args[0]
	}

	n, err := app.Recover(cmd.Context(), id)
	if err != nil {
		ExitCode = exitCodeFor(err, nil)

		return err
	}

	slog.Info("Recovery finished",
		"runs", n,
	)

	return nil
}

func main() {
	defer func() {
		os.Exit(ExitCode)
	}()

	rootCmd.Version = Version

	if err := rootCmd.Execute(); err != nil {
		if logManager == nil {
			logManager = setupLogging(logLevel(verbosity))
		}

		slog.Error("Failed to run.",
			"err", err,
		)

		if ExitCode == exitSuccess {
			ExitCode = exitInvalid
		}
	}
}

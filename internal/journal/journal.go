// Package journal implements a SQLite-backed journal of relocation runs. The
// remedies of a running relocation are checkpointed as they change, so that
// the cleanup owed by a crashed, failed or cancelled run can still be applied
// later on.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/desertwitch/relocator/internal/schema"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed sql/schema.sql
var schemaSQL string

// State is the lifecycle state of a journaled run.
type State string

const (
	// StateRunning is a run in progress, or one that crashed.
	StateRunning State = "running"

	// StateSucceeded is a run that completed successfully.
	StateSucceeded State = "succeeded"

	// StateFailed is a run that ended with an error.
	StateFailed State = "failed"

	// StateCancelled is a run that was cancelled.
	StateCancelled State = "cancelled"

	// StateRemediated is a run whose remedies were all applied.
	StateRemediated State = "remediated"

	// StateRemediationFailed is a run whose remedies could not all be applied.
	StateRemediationFailed State = "remediation_failed"
)

// Entry is a single journaled run.
type Entry struct {
	ID          string
	Source      string
	Destination string
	StagingPath string
	Remedies    uint8
	State       State
	Error       string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// Request returns the [schema.Request] of the run.
func (e *Entry) Request() schema.Request {
	return schema.NewRequest(e.Source, e.Destination)
}

// Outcome returns the last checkpointed [schema.Outcome] of the run.
func (e *Entry) Outcome() *schema.Outcome {
	return schema.RestoreOutcome(e.Remedies, e.StagingPath)
}

// Store is the principal implementation of the run journal.
type Store struct {
	db *sql.DB
}

// Open opens (and creates, if needed) the journal database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("(journal) failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, fmt.Errorf("(journal) failed to ping database: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()

		return nil, fmt.Errorf("(journal) failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the journal database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("(journal) failed to close database: %w", err)
	}

	return nil
}

// Begin journals a new run of the request and returns its [Entry].
func (s *Store) Begin(ctx context.Context, req schema.Request, stagingPath string) (*Entry, error) {
	now := time.Now().UTC()

	entry := &Entry{
		ID:          uuid.New().String(),
		Source:      req.Source,
		Destination: req.Destination,
		StagingPath: stagingPath,
		State:       StateRunning,
		StartedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO runs (id, source, destination, staging_path, remedies, state, error, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.Source, entry.Destination, entry.StagingPath,
		entry.Remedies, string(entry.State), entry.Error, entry.StartedAt, entry.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("(journal-begin) failed to insert run: %w", err)
	}

	return entry, nil
}

// Checkpoint stores the current remedies of a run.
func (s *Store) Checkpoint(ctx context.Context, id string, outcome *schema.Outcome) error {
	query := `
		UPDATE runs SET remedies = ?, staging_path = ?, updated_at = ? WHERE id = ?
	`

	return s.update(ctx, "journal-checkpoint", query, outcome.Bits(), outcome.StagingPath, time.Now().UTC(), id)
}

// Finish stores the final remedies, state and error of a run.
func (s *Store) Finish(ctx context.Context, id string, outcome *schema.Outcome, state State, runErr error) error {
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}

	query := `
		UPDATE runs SET remedies = ?, state = ?, error = ?, updated_at = ? WHERE id = ?
	`

	return s.update(ctx, "journal-finish", query, outcome.Bits(), string(state), errText, time.Now().UTC(), id)
}

// SetState changes the state of a run, for example after remediation. The
// remedies of a remediated run are cleared.
func (s *Store) SetState(ctx context.Context, id string, state State) error {
	query := `
		UPDATE runs SET state = ?, remedies = CASE WHEN ? THEN 0 ELSE remedies END, updated_at = ? WHERE id = ?
	`

	return s.update(ctx, "journal-state", query, string(state), state == StateRemediated, time.Now().UTC(), id)
}

func (s *Store) update(ctx context.Context, op string, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("(%s) failed to update run: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("(%s) failed to get affected rows: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("(%s) %w", op, ErrRunNotFound)
	}

	return nil
}

const selectColumns = `
	SELECT id, source, destination, staging_path, remedies, state, error, started_at, updated_at
	FROM runs
`

// Get returns the [Entry] of a run.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("(journal-get) %w: %s", ErrRunNotFound, id)
	} else if err != nil {
		return nil, fmt.Errorf("(journal-get) failed to query run: %w", err)
	}

	return entry, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Entry, error) {
	return s.query(ctx, "journal-list", selectColumns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
}

// Pending returns all runs which still owe remedies, oldest first. Runs which
// are still in [StateRunning] are included, as they may have crashed.
func (s *Store) Pending(ctx context.Context) ([]*Entry, error) {
	query := selectColumns + `
		WHERE remedies != 0 AND state NOT IN (?, ?)
		ORDER BY started_at ASC, rowid ASC
	`

	return s.query(ctx, "journal-pending", query, string(StateSucceeded), string(StateRemediated))
}

func (s *Store) query(ctx context.Context, op string, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("(%s) failed to query runs: %w", op, err)
	}
	defer rows.Close()

	var entries []*Entry

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("(%s) failed to scan run: %w", op, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("(%s) failed to iterate runs: %w", op, err)
	}

	return entries, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry    Entry
		remedies int64
		state    string
	)

	if err := row.Scan(
		&entry.ID, &entry.Source, &entry.Destination, &entry.StagingPath,
		&remedies, &state, &entry.Error, &entry.StartedAt, &entry.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}

	entry.Remedies = uint8(remedies) //nolint:gosec
	entry.State = State(state)

	return &entry, nil
}

// RunRecorder checkpoints the remedies of a single run into a [Store]. It
// satisfies the recorder of the relocation engine.
type RunRecorder struct {
	store *Store
	id    string
}

// Recorder returns a [RunRecorder] for the run with the given id.
func (s *Store) Recorder(id string) *RunRecorder {
	return &RunRecorder{store: s, id: id}
}

// Checkpoint stores the outcome. Failures are logged, as a relocation is not
// to be interrupted by its journal.
func (r *RunRecorder) Checkpoint(outcome schema.Outcome) {
	if err := r.store.Checkpoint(context.Background(), r.id, &outcome); err != nil {
		slog.Warn("Failure checkpointing a run (skipped)",
			"run", r.id,
			"err", err,
		)
	}
}

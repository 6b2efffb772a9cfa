// Package ui implements a command-line user interface using [tea].
package ui

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertwitch/relocator/internal/progress"
	"github.com/desertwitch/relocator/internal/schema"
)

// Result is the terminal state of a relocation, as shown by the user interface.
type Result struct {
	Summary string
	Err     error
}

// Handler is the principal implementation of a user interface [Handler]. It
// is also the [schema.ProgressSink] of the relocation shown.
type Handler struct {
	sync.Mutex
	program *tea.Program
	state   *progress.State
	result  *Result

	LogWriter *TeaLogWriter

	Ready  atomic.Bool
	Failed atomic.Bool
}

// NewHandler returns a pointer to a new user interface [Handler] for the
// relocation described by title. Pressing ctrl+c inside the user interface
// calls cancel.
func NewHandler(ctx context.Context, cancel context.CancelFunc, title string) *Handler {
	handler := &Handler{
		state: progress.NewState(),
	}

	model := NewTeaModel(handler, title, cancel)
	handler.program = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	handler.LogWriter = NewTeaLogWriter(handler.program)

	return handler
}

// Report receives a [schema.ProgressUpdate] for display.
func (uiHandler *Handler) Report(update schema.ProgressUpdate) {
	uiHandler.state.Report(update)
}

// Finish sets the terminal state of the relocation for display.
func (uiHandler *Handler) Finish(summary string, err error) {
	uiHandler.Lock()
	defer uiHandler.Unlock()

	uiHandler.result = &Result{Summary: summary, Err: err}
}

// Status returns the latest progress and the terminal state, which is nil
// while the relocation is still running.
func (uiHandler *Handler) Status() (progress.Snapshot, *Result) {
	uiHandler.Lock()
	defer uiHandler.Unlock()

	return uiHandler.state.Snapshot(), uiHandler.result
}

// Launch starts the command-line user interface (the [tea.Program]).
func (uiHandler *Handler) Launch() error {
	defer uiHandler.LogWriter.Stop()

	if _, err := uiHandler.program.Run(); err != nil {
		uiHandler.Failed.Store(true)

		return fmt.Errorf("(ui) %w", err)
	}

	return nil
}

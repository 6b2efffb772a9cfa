package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	relprogress "github.com/desertwitch/relocator/internal/progress"
	"github.com/dustin/go-humanize"
)

const (
	maxLogLines    = 100
	statusInterval = 100 * time.Millisecond
)

//nolint:gochecknoglobals
var (
	// titleStyle defines the style for a panel's title.
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	// borderStyle defines the style for a panel's borders.
	borderStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4"))

	// infoStyle defines the style for a panel's text.
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	// failStyle defines the style for a failed result.
	failStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5F87"))

	// helpStyle defines the style for the help panel's text.
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1)
)

// StatusMsg is a [tea.Msg] containing the polled status of the relocation.
type StatusMsg struct {
	t        time.Time
	snapshot relprogress.Snapshot
	result   *Result
}

// TeaModel is the principal [tea.Model] for the command-line user interface.
type TeaModel struct {
	width  int
	height int

	title  string
	cancel context.CancelFunc

	uiHandler *Handler

	fullWidthWithBorders int

	snapshot relprogress.Snapshot
	result   *Result

	progressBar  progress.Model
	logsViewport viewport.Model
	logs         []string

	ready bool
}

// NewTeaModel returns an initial new [TeaModel].
//
//nolint:mnd
func NewTeaModel(uiHandler *Handler, title string, cancel context.CancelFunc) TeaModel {
	progressBar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(80),
	)

	logsViewport := viewport.New(80, 20)

	return TeaModel{
		uiHandler:    uiHandler,
		title:        title,
		progressBar:  progressBar,
		logsViewport: logsViewport,
		logs:         make([]string, 0, maxLogLines),
		cancel:       cancel,
		ready:        false,
	}
}

// Init initializes the model within a [tea.Program].
func (m TeaModel) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		updateStatus(m.uiHandler),
	)
}

// updateStatus produces a [tea.Cmd] for later scheduling in a [tea.Program].
// When executed, a [StatusMsg] with the [Handler]'s status is returned.
func updateStatus(h *Handler) tea.Cmd {
	return tea.Tick(statusInterval, func(t time.Time) tea.Msg {
		snapshot, result := h.Status()

		return StatusMsg{
			t:        t,
			snapshot: snapshot,
			result:   result,
		}
	})
}

// Update is the principal message handling method of the model.
// It sets the internal state of the model, for later rendering.
//
//nolint:mnd,ireturn
func (m TeaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()

			return m, tea.Quit
		case "q":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.fullWidthWithBorders = m.width - 2
		m.progressBar.Width = m.fullWidthWithBorders

		// Progress panel: borders, title, bar, details and spacing.
		m.logsViewport.Width = m.fullWidthWithBorders
		m.logsViewport.Height = max(1, m.height-14)

		m.refreshLogs()

		if !m.ready {
			m.ready = true
			m.uiHandler.Ready.Store(true)
		}

	case StatusMsg:
		m.snapshot = msg.snapshot
		m.result = msg.result

		cmds = append(cmds, m.progressBar.SetPercent(float64(m.snapshot.Percent)/100))

		if m.result == nil {
			cmds = append(cmds, updateStatus(m.uiHandler))
		}

	case LogMsg:
		if len(m.logs) >= maxLogLines {
			m.logs = m.logs[1:]
		}

		m.logs = append(m.logs, string(msg))
		m.refreshLogs()

	case progress.FrameMsg:
		updated, cmd := m.progressBar.Update(msg)
		if progressModel, ok := updated.(progress.Model); ok {
			m.progressBar = progressModel
		}
		cmds = append(cmds, cmd)
	}

	// Handle viewport updates.
	m.logsViewport, cmd = m.logsViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// refreshLogs renders the stored logs into the viewport.
func (m *TeaModel) refreshLogs() {
	if len(m.logs) == 0 {
		return
	}

	logs := lipgloss.NewStyle().
		Width(m.logsViewport.Width).
		Render(strings.TrimSuffix(strings.Join(m.logs, ""), "\n"))

	m.logsViewport.SetContent(logs)
	m.logsViewport.GotoBottom()
}

// View is the principal rendering function of the model.
func (m TeaModel) View() string {
	if !m.ready {
		return "Loading the GUI..."
	}

	var s strings.Builder

	progressSection := borderStyle.
		Width(m.fullWidthWithBorders).
		Render(m.formatProgressView())

	logsSection := borderStyle.
		Width(m.fullWidthWithBorders).
		Render(
			lipgloss.JoinVertical(
				lipgloss.Left,
				titleStyle.Width(m.fullWidthWithBorders).Render("Process Information"),
				lipgloss.NewStyle().Width(m.fullWidthWithBorders).Render(m.logsViewport.View()),
			),
		)

	help := "q: quit gui • ctrl+c: cancel relocation"
	if m.result != nil {
		help = "q: exit"
	}

	helpSection := helpStyle.
		Width(m.fullWidthWithBorders).
		Render(help)

	s.WriteString(lipgloss.JoinVertical(
		lipgloss.Left,
		progressSection,
		logsSection,
		helpSection,
	))

	return s.String()
}

// formatProgressView is a helper function for rendering the progress panel.
func (m TeaModel) formatProgressView() string {
	snap := m.snapshot

	var details string

	switch {
	case m.result != nil && m.result.Err != nil:
		details = fmt.Sprintf(
			"Progress: %d%%\n"+
				"Result: %s\n"+
				"Error: %s\n",
			snap.Percent,
			m.result.Summary,
			failStyle.Render(m.result.Err.Error()),
		)

	case m.result != nil:
		details = fmt.Sprintf(
			"Progress: %d%%\n"+
				"Result: %s\n"+
				"Time: Started=%v, Took=%v\n",
			snap.Percent,
			m.result.Summary,
			formatClock(snap.StartedAt),
			snap.Elapsed().Round(time.Second),
		)

	default:
		eta := "unknown"
		if t := snap.ETA(); !t.IsZero() {
			eta = fmt.Sprintf("%s (%s)", formatClock(t), humanize.Time(t))
		}

		details = fmt.Sprintf(
			"Progress: %d%%\n"+
				"Current: %s\n"+
				"Time: Started=%v, ETA=%s\n",
			snap.Percent,
			snap.Message,
			formatClock(snap.StartedAt),
			eta,
		)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Width(m.fullWidthWithBorders).Render(m.title),
		"", // Empty line for spacing.
		m.progressBar.View(),
		"", // Empty line for spacing.
		infoStyle.Width(m.fullWidthWithBorders).Render(details),
	)
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Format("15:04:05")
}

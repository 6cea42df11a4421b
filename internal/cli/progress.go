package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/raphaelgruber/hearth-go/internal/service"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// progressMsg carries one sync step.
type progressMsg service.Progress

// syncDoneMsg signals the sync goroutine finished.
type syncDoneMsg struct{ err error }

// syncModel is the bubbletea model for a running catalog sync.
type syncModel struct {
	updates  <-chan tea.Msg
	progress progress.Model
	theme    Theme
	current  service.Progress
	done     bool
	quitting bool
	err      error
}

func newSyncModel(updates <-chan tea.Msg) syncModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)
	return syncModel{
		updates:  updates,
		progress: prog,
		theme:    defaultTheme,
	}
}

// waitForUpdate blocks on the sync goroutine's channel.
func (m syncModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m syncModel) Init() tea.Cmd {
	return tea.Batch(
		m.waitForUpdate(),
		m.progress.Init(),
	)
}

func (m syncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case progressMsg:
		m.current = service.Progress(msg)
		return m, m.waitForUpdate()

	case syncDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m syncModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m syncModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	if m.current.Stage == "" {
		return "Connecting to the hub...\n"
	}

	var pct float64
	if m.current.Total > 0 {
		pct = float64(m.current.Done) / float64(m.current.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.current.Stage))
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d", m.current.Done, m.current.Total)
	detail := m.theme.hintStyle().Render(m.current.Detail)

	return fmt.Sprintf("%s %s %s %s\n", status, bar, counts, detail)
}

func (m syncModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nSync aborted. The cache is partial; rerun 'hearth sync'.\n")
	}
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Sync failed: %s\n", m.err))
	}
	return m.theme.completedStyle().Render("✓ Catalog synced\n")
}

// RunSyncProgress runs a catalog sync behind an interactive progress UI.
func RunSyncProgress(ctx context.Context, syncer *service.Syncer) error {
	updates := make(chan tea.Msg)

	go func() {
		err := syncer.Sync(ctx, func(p service.Progress) {
			updates <- progressMsg(p)
		})
		updates <- syncDoneMsg{err: err}
	}()

	model := newSyncModel(updates)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(syncModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	progressLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	progressPathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// indexProgressMsg carries one indexer.ProgressFunc call into the
// bubbletea update loop.
type indexProgressMsg struct {
	current, total int
	path           string
}

// indexDoneMsg signals the indexing goroutine has finished.
type indexDoneMsg struct {
	err error
}

// progressModel drives a spinner while a background indexing pass runs,
// relaying progress over a channel the caller writes to.
type progressModel struct {
	spinner spinner.Model
	updates <-chan tea.Msg
	current int
	total   int
	path    string
	done    bool
	err     error
}

func newProgressModel(updates <-chan tea.Msg) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = progressLabelStyle
	return progressModel{spinner: s, updates: updates}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForUpdate(m.updates))
}

func waitForUpdate(updates <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-updates
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case indexProgressMsg:
		m.current = msg.current
		m.total = msg.total
		m.path = msg.path
		return m, waitForUpdate(m.updates)
	case indexDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	if m.total == 0 {
		return fmt.Sprintf("%s scanning...", m.spinner.View())
	}
	return fmt.Sprintf("%s %d/%d %s\n", m.spinner.View(), m.current, m.total, progressPathStyle.Render(m.path))
}

// runWithSpinner drives a bubbletea program that shows a spinner and
// per-file progress while work runs in the background, then returns any
// error reported via indexDoneMsg.
func runWithSpinner(work func(updates chan<- tea.Msg)) error {
	updates := make(chan tea.Msg, 64)
	go work(updates)

	p := tea.NewProgram(newProgressModel(updates))
	final, err := p.Run()
	if err != nil {
		return err
	}

	pm, ok := final.(progressModel)
	if !ok {
		return fmt.Errorf("unexpected program result type")
	}
	return pm.err
}

func fmtDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/taskflow-cli/internal/querycache"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// cachedFetch resolves one read through the query cache, reporting the
// entry's progress to observe. observe may be nil.
type cachedFetch func(ctx context.Context, observe querycache.Listener) error

type fetchDoneMsg struct {
	err error
}

// fetchProgressModel follows the cache entry behind a one-shot read. It
// tells a first load apart from a refetch behind cached data.
type fetchProgressModel struct {
	subject string
	spinner spinner.Model
	queue   *snapshotQueue
	fetch   tea.Cmd

	entry    querycache.Snapshot
	observed bool
	err      error
	done     bool
}

func newFetchProgressModel(subject string, queue *snapshotQueue, fetch tea.Cmd) fetchProgressModel {
	return fetchProgressModel{
		subject: subject,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		queue: queue,
		fetch: fetch,
	}
}

func (m fetchProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch, m.queue.next)
}

func (m fetchProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotsMsg:
		for _, snapshot := range msg {
			if !m.observed || newer(m.entry, snapshot) {
				m.entry = snapshot
				m.observed = true
			}
		}
		return m, m.queue.next
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case fetchDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m fetchProgressModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), m.label())
}

func (m fetchProgressModel) label() string {
	if m.observed && m.entry.HasData() && m.entry.Status == querycache.StatusLoading {
		return fmt.Sprintf("Refreshing %s...", m.subject)
	}
	return fmt.Sprintf("Loading %s...", m.subject)
}

// runFetch resolves fetch and, unless the output is JSON, shows its progress
// on stderr.
func runFetch(cmd *cobra.Command, asJSON bool, subject string, fetch cachedFetch) error {
	ctx := cmd.Context()
	if asJSON {
		return fetch(ctx, nil)
	}

	queue := newSnapshotQueue()
	defer queue.close()
	fetchCmd := func() tea.Msg {
		return fetchDoneMsg{err: fetch(ctx, queue.push)}
	}

	program := tea.NewProgram(
		newFetchProgressModel(subject, queue, fetchCmd),
		tea.WithInput(nil),
		tea.WithOutput(cmd.ErrOrStderr()),
		tea.WithContext(ctx),
	)
	final, err := program.Run()
	if err != nil {
		return err
	}

	result, ok := final.(fetchProgressModel)
	if !ok {
		return fmt.Errorf("unexpected final progress model type %T", final)
	}
	return result.err
}

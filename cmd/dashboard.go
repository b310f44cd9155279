package cmd

import (
	"fmt"
	"strings"
	"time"

	taskrender "github.com/bnema/taskflow-cli/internal/adapters/render/tasks"
	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/gateway"
	"github.com/bnema/taskflow-cli/internal/querycache"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

const dashboardHelp = "←/→ page · s status · p priority · / search · r refresh · q quit"

var (
	statusCycle   = []domain.TaskStatus{"", domain.TaskStatusTodo, domain.TaskStatusInProgress, domain.TaskStatusDone}
	priorityCycle = []domain.TaskPriority{"", domain.TaskPriorityLow, domain.TaskPriorityMedium, domain.TaskPriorityHigh}
)

// dashboardSource is the live-read surface the dashboard needs.
type dashboardSource interface {
	WatchList(filters domain.TaskFilters, listener querycache.Listener) (querycache.Snapshot, *querycache.Subscription)
	WatchAnalytics(listener querycache.Listener) (querycache.Snapshot, *querycache.Subscription)
	Refresh()
}

type dashboardModel struct {
	source  dashboardSource
	queue   *snapshotQueue
	now     func() time.Time
	filters domain.TaskFilters

	list         querycache.Snapshot
	analytics    querycache.Snapshot
	listSub      *querycache.Subscription
	analyticsSub *querycache.Subscription

	spinner   spinner.Model
	search    textinput.Model
	searching bool
	quitting  bool
}

func newDashboardModel(source dashboardSource, now func() time.Time) *dashboardModel {
	search := textinput.New()
	search.Placeholder = "search title or description"
	search.Prompt = "/ "
	search.CharLimit = 100

	return &dashboardModel{
		source:  source,
		queue:   newSnapshotQueue(),
		now:     now,
		filters: domain.TaskFilters{Page: 1, PageSize: domain.DefaultPageSize},
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
		),
		search: search,
	}
}

// subscribe attaches both live subscriptions. Notifications wait in the
// queue until the program drains them.
func (m *dashboardModel) subscribe() {
	m.analytics, m.analyticsSub = m.source.WatchAnalytics(m.queue.push)
	m.watchList()
}

func (m *dashboardModel) watchList() {
	previous := m.listSub
	m.list, m.listSub = m.source.WatchList(m.filters, m.queue.push)
	// Release after resubscribing so an unchanged key keeps its entry.
	previous.Release()
}

func (m *dashboardModel) release() {
	m.listSub.Release()
	m.analyticsSub.Release()
	m.queue.close()
}

func (m *dashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.queue.next)
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotsMsg:
		for _, snapshot := range msg {
			m.applySnapshot(snapshot)
		}
		return m, m.queue.next
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		return m.updateKeys(msg)
	default:
		return m, nil
	}
}

func (m *dashboardModel) applySnapshot(snapshot querycache.Snapshot) {
	switch {
	case m.listSub != nil && snapshot.Key == m.listSub.Key():
		if newer(m.list, snapshot) {
			m.list = snapshot
		}
	case m.analyticsSub != nil && snapshot.Key == m.analyticsSub.Key():
		if newer(m.analytics, snapshot) {
			m.analytics = snapshot
		}
	}
}

func (m *dashboardModel) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "left", "h":
		if m.filters.Page > 1 {
			m.filters = m.filters.WithPage(m.filters.Page - 1)
			m.watchList()
		}
	case "right", "l":
		if page, ok := m.list.Data.(domain.TaskPage); ok && m.filters.Page < page.TotalPages {
			m.filters = m.filters.WithPage(m.filters.Page + 1)
			m.watchList()
		}
	case "s":
		m.filters = m.filters.WithCriteria(nextStatus(m.filters.Status), m.filters.Priority, m.filters.Search)
		m.watchList()
	case "p":
		m.filters = m.filters.WithCriteria(m.filters.Status, nextPriority(m.filters.Priority), m.filters.Search)
		m.watchList()
	case "r":
		m.source.Refresh()
	case "/":
		m.searching = true
		m.search.SetValue(m.filters.Search)
		return m, m.search.Focus()
	}
	return m, nil
}

func (m *dashboardModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.filters = m.filters.WithCriteria(m.filters.Status, m.filters.Priority, m.search.Value())
		m.watchList()
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m *dashboardModel) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		lipgloss.NewStyle().Bold(true).Render("taskflow dashboard"),
		filterLine(m.filters),
		m.listView(),
		m.analyticsView(),
	}
	if m.searching {
		sections = append(sections, m.search.View())
	}
	sections = append(sections, lipgloss.NewStyle().Faint(true).Render(dashboardHelp))

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m *dashboardModel) listView() string {
	page, hasPage := m.list.Data.(domain.TaskPage)
	if !hasPage {
		return m.statusLine(m.list, "Loading tasks...")
	}

	body := taskrender.TaskTable(page, taskrender.RenderOptions{Now: m.now()})
	if line := m.statusLine(m.list, "Refreshing..."); line != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, line)
	}
	return body
}

func (m *dashboardModel) analyticsView() string {
	summary, ok := m.analytics.Data.(domain.AnalyticsSummary)
	if !ok {
		return m.statusLine(m.analytics, "Loading analytics...")
	}

	body := taskrender.AnalyticsPanel(summary)
	if line := m.statusLine(m.analytics, "Refreshing..."); line != "" {
		body = lipgloss.JoinVertical(lipgloss.Left, body, line)
	}
	return lipgloss.NewStyle().MarginTop(1).Render(body)
}

func (m *dashboardModel) statusLine(snapshot querycache.Snapshot, loading string) string {
	switch snapshot.Status {
	case querycache.StatusLoading, querycache.StatusEmpty:
		return fmt.Sprintf("%s %s", m.spinner.View(), loading)
	case querycache.StatusError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render("error: " + describeError(snapshot.Err))
	default:
		return ""
	}
}

func filterLine(filters domain.TaskFilters) string {
	parts := []string{"status: " + orAll(string(filters.Status)), "priority: " + orAll(string(filters.Priority))}
	if search := strings.TrimSpace(filters.Search); search != "" {
		parts = append(parts, fmt.Sprintf("search: %q", sanitizeForTerminal(search)))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(strings.Join(parts, " · "))
}

func orAll(value string) string {
	if value == "" {
		return "all"
	}
	return value
}

func nextStatus(current domain.TaskStatus) domain.TaskStatus {
	for i, status := range statusCycle {
		if status == current {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return ""
}

func nextPriority(current domain.TaskPriority) domain.TaskPriority {
	for i, priority := range priorityCycle {
		if priority == current {
			return priorityCycle[(i+1)%len(priorityCycle)]
		}
	}
	return ""
}

func describeError(err error) string {
	if err == nil {
		return "unknown error"
	}
	return userError(err).Error()
}

func newDashboardCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Interactive task list and analytics that refresh live",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !app.session.IsAuthenticated() {
				return fmt.Errorf("%w: %w", errSessionExpired, gateway.ErrUnauthenticated)
			}
			app.ensureSession(cmd.Context(), cmd.ErrOrStderr())

			model := newDashboardModel(app.queries, app.now)
			model.subscribe()
			defer model.release()

			program := tea.NewProgram(
				model,
				tea.WithContext(cmd.Context()),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
			_, err := program.Run()
			return err
		},
	}
}

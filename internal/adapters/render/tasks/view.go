package tasks

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/pagination"
	"github.com/charmbracelet/lipgloss"
)

const (
	idWidth       = 6
	titleWidth    = 40
	statusWidth   = 12
	priorityWidth = 9
	barWidth      = 24
)

type RenderOptions struct {
	Now time.Time
}

func renderPage(page domain.TaskPage, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Tasks"),
		s.header.Render(fmt.Sprintf("total: %d", page.Total)),
	}

	if len(page.Items) == 0 {
		lines = append(lines, s.empty.Render("No tasks match."))
	} else {
		lines = append(lines, s.section.Render(renderTable(page.Items, opts, s)))
	}

	if pager := renderPager(page.Page, page.TotalPages, s); pager != "" {
		lines = append(lines, s.section.Render(pager))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderTable(items []domain.Task, opts RenderOptions, s styles) string {
	rows := make([]string, 0, len(items)+1)
	rows = append(rows, s.column.Render(row("ID", "TITLE", "STATUS", "PRIORITY", "DUE")))

	for _, task := range items {
		line := row(
			strconv.FormatInt(int64(task.ID), 10),
			truncate(task.Title, titleWidth),
			task.Status.Label(),
			string(task.Priority),
			dueLabel(task, opts.Now),
		)
		switch {
		case task.Status == domain.TaskStatusDone:
			line = s.done.Render(line)
		case isOverdue(task, opts.Now):
			line = s.warning.Render(line)
		case task.Priority == domain.TaskPriorityHigh:
			line = s.high.Render(line)
		default:
			line = s.detail.Render(line)
		}
		rows = append(rows, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func row(id, title, status, priority, due string) string {
	return fmt.Sprintf("%-*s %-*s %-*s %-*s %s", idWidth, id, titleWidth, title, statusWidth, status, priorityWidth, priority, due)
}

// renderPager draws the compact page window with previous/next arrows.
// Disabled arrows are dimmed.
func renderPager(current int, total int, s styles) string {
	if total <= 1 {
		return ""
	}
	current = pagination.Clamp(current, total)

	parts := make([]string, 0, total+2)
	parts = append(parts, arrow("‹ prev", pagination.HasPrevious(current), s))
	for _, token := range pagination.Window(current, total) {
		switch {
		case token.IsEllipsis():
			parts = append(parts, s.pageOff.Render(token.String()))
		case token.Page == current:
			parts = append(parts, s.pageCurrent.Render("["+token.String()+"]"))
		default:
			parts = append(parts, s.pageOther.Render(token.String()))
		}
	}
	parts = append(parts, arrow("next ›", pagination.HasNext(current, total), s))

	return strings.Join(parts, " ")
}

func arrow(label string, enabled bool, s styles) string {
	if enabled {
		return s.pageOther.Render(label)
	}
	return s.pageOff.Render(label)
}

func renderTask(task domain.Task, opts RenderOptions, s styles) string {
	description := "n/a"
	if task.Description != nil && strings.TrimSpace(*task.Description) != "" {
		description = *task.Description
	}

	lines := []string{
		s.title.Render(fmt.Sprintf("#%d %s", task.ID, task.Title)),
		s.detail.Render("status: " + task.Status.Label()),
		s.detail.Render("priority: " + string(task.Priority)),
		s.detail.Render("due: " + dueLabel(task, opts.Now)),
		s.detail.Render("description: " + description),
		s.header.Render("created: " + formatTime(task.CreatedAt.Time)),
		s.header.Render("updated: " + formatTime(task.UpdatedAt.Time)),
	}
	if isOverdue(task, opts.Now) {
		lines = append(lines, s.warning.Render("[overdue]"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderAnalytics(summary domain.AnalyticsSummary, s styles) string {
	stat := func(key string, value int) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, s.statKey.Render(key+":"), " ", s.detail.Render(strconv.Itoa(value)))
	}

	rate := lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.statKey.Render("completion:"),
		" ",
		renderProgressBar(summary.CompletionRate, barWidth, s),
		" ",
		lipgloss.NewStyle().Foreground(interpolateColor(summary.CompletionRate, 0, 100)).Render(fmt.Sprintf("%.1f%%", summary.CompletionRate)),
	)

	lines := []string{
		s.title.Render("Analytics"),
		stat("total", summary.TotalTasks),
		stat("completed", summary.CompletedTasks),
		stat("in progress", summary.InProgressTasks),
		stat("pending", summary.PendingTasks),
		stat("completed this week", summary.CompletedThisWeek),
		stat("high priority pending", summary.HighPriorityPending),
	}
	overdue := stat("overdue", summary.OverdueTasks)
	if summary.OverdueTasks > 0 {
		overdue += " " + s.warning.Render("[attention]")
	}
	lines = append(lines, overdue, rate)

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func isOverdue(task domain.Task, now time.Time) bool {
	if now.IsZero() || task.DueDate == nil || task.Status == domain.TaskStatusDone {
		return false
	}
	return task.DueDate.Before(now)
}

func dueLabel(task domain.Task, now time.Time) string {
	if task.DueDate == nil {
		return "-"
	}
	due := task.DueDate.Time
	if now.IsZero() {
		return formatTime(due)
	}
	if due.Before(now) {
		if task.Status == domain.TaskStatusDone {
			return formatTime(due)
		}
		return "overdue (" + formatTime(due) + ")"
	}

	remaining := due.Sub(now)
	if remaining < 24*time.Hour {
		hours := int(math.Ceil(remaining.Hours()))
		if hours < 1 {
			hours = 1
		}
		return fmt.Sprintf("in %d %s", hours, plural(hours, "hour"))
	}

	days := int(math.Ceil(remaining.Hours() / 24))
	return fmt.Sprintf("in %d %s (%s)", days, plural(days, "day"), due.Format("02 Jan"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	return lipgloss.Color(strconv.Itoa(int(240 + 15*normalized)))
}

// TaskTable renders a page of tasks with its pager line.
func TaskTable(page domain.TaskPage, opts RenderOptions) string {
	return renderPage(page, opts, newStyles())
}

// AnalyticsPanel renders the summary block.
func AnalyticsPanel(summary domain.AnalyticsSummary) string {
	return renderAnalytics(summary, newStyles())
}

// Pager renders only the page window line; empty when there is one page.
func Pager(current int, total int) string {
	return renderPager(current, total, newStyles())
}

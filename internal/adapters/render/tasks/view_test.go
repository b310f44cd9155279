package tasks

import (
	"testing"
	"time"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(t time.Time) *domain.Timestamp {
	stamp := domain.NewTimestamp(t)
	return &stamp
}

func TestRenderPageShowsRowsAndPager(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output, err := RenderPage(domain.TaskPage{
		Items: []domain.Task{
			{ID: 12, Title: "Write report", Status: domain.TaskStatusInProgress, Priority: domain.TaskPriorityHigh, DueDate: ts(now.Add(3 * 24 * time.Hour))},
			{ID: 7, Title: "Pay invoice", Status: domain.TaskStatusTodo, Priority: domain.TaskPriorityLow, DueDate: ts(now.Add(-time.Hour))},
		},
		Total:      95,
		Page:       5,
		PageSize:   10,
		TotalPages: 10,
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "total: 95")
	assert.Contains(t, output, "Write report")
	assert.Contains(t, output, "In Progress")
	assert.Contains(t, output, "in 3 days (17 Feb)")
	assert.Contains(t, output, "overdue (2026-02-14 10:00)")
	assert.Contains(t, output, "1 … 4 [5] 6 … 10")
	assert.Contains(t, output, "‹ prev")
	assert.Contains(t, output, "next ›")
}

func TestRenderPageWithoutResults(t *testing.T) {
	output, err := RenderPage(domain.TaskPage{Page: 1, PageSize: 10}, RenderOptions{})

	require.NoError(t, err)
	assert.Contains(t, output, "No tasks match.")
	assert.NotContains(t, output, "prev")
}

func TestPagerClampsOutOfRangePage(t *testing.T) {
	assert.Equal(t, Pager(5, 5), Pager(9, 5))
	assert.Empty(t, Pager(1, 1))
	assert.Contains(t, Pager(1, 3), "[1] 2 3")
}

func TestRenderTaskDetail(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)
	description := "Quarterly numbers"

	output, err := RenderTask(domain.Task{
		ID:          3,
		Title:       "Write report",
		Description: &description,
		Status:      domain.TaskStatusTodo,
		Priority:    domain.TaskPriorityMedium,
		DueDate:     ts(now.Add(2 * time.Hour)),
		CreatedAt:   domain.NewTimestamp(now.Add(-time.Hour)),
	}, RenderOptions{Now: now})

	require.NoError(t, err)
	assert.Contains(t, output, "#3 Write report")
	assert.Contains(t, output, "status: To Do")
	assert.Contains(t, output, "due: in 2 hours")
	assert.Contains(t, output, "description: Quarterly numbers")
	assert.NotContains(t, output, "[overdue]")
}

func TestRenderAnalytics(t *testing.T) {
	output, err := RenderAnalytics(domain.AnalyticsSummary{
		TotalTasks:     4,
		CompletedTasks: 1,
		OverdueTasks:   2,
		CompletionRate: 25,
	})

	require.NoError(t, err)
	assert.Contains(t, output, "total: 4")
	assert.Contains(t, output, "overdue: 2")
	assert.Contains(t, output, "[attention]")
	assert.Contains(t, output, "25.0%")
	assert.Contains(t, output, "[======------------------]")
}

func TestTruncateLongTitles(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

package domain

type AnalyticsSummary struct {
	TotalTasks          int     `json:"total_tasks"`
	CompletedTasks      int     `json:"completed_tasks"`
	PendingTasks        int     `json:"pending_tasks"`
	InProgressTasks     int     `json:"in_progress_tasks"`
	OverdueTasks        int     `json:"overdue_tasks"`
	CompletedThisWeek   int     `json:"completed_this_week"`
	HighPriorityPending int     `json:"high_priority_pending"`
	CompletionRate      float64 `json:"completion_rate"`
}

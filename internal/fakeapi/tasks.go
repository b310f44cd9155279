package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/gin-gonic/gin"
)

type taskResponse struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Status      string  `json:"status"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
	OwnerID     int64   `json:"owner_id"`
}

type taskListResponse struct {
	Items      []taskResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

func (s *Server) listTasks(c *gin.Context) {
	var problems []fieldError
	status := domain.TaskStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		problems = append(problems, enumProblem("query", "status", "'todo', 'in_progress', 'done'"))
	}
	priority := domain.TaskPriority(c.Query("priority"))
	if priority != "" && !priority.Valid() {
		problems = append(problems, enumProblem("query", "priority", "'low', 'medium', 'high'"))
	}
	page, problem := intQuery(c, "page", 1, 1, 0)
	if problem != nil {
		problems = append(problems, *problem)
	}
	pageSize, problem := intQuery(c, "page_size", domain.DefaultPageSize, 1, domain.MaxPageSize)
	if problem != nil {
		problems = append(problems, *problem)
	}
	if len(problems) > 0 {
		abortFields(c, problems...)
		return
	}
	search := strings.ToLower(c.Query("search"))
	ownerID := currentUserID(c)

	s.mu.Lock()
	matched := make([]domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		if status != "" && task.Status != status {
			continue
		}
		if priority != "" && task.Priority != priority {
			continue
		}
		if search != "" && !matchesSearch(*task, search) {
			continue
		}
		matched = append(matched, *task)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt.Time) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt.Time)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	items := make([]taskResponse, 0, end-start)
	for _, task := range matched[start:end] {
		items = append(items, toTaskResponse(task))
	}

	c.JSON(http.StatusOK, taskListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	})
}

func (s *Server) getTask(c *gin.Context) {
	task, ok := s.ownedTask(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toTaskResponse(task))
}

func (s *Server) createTask(c *gin.Context) {
	var fields map[string]json.RawMessage
	if err := c.ShouldBindJSON(&fields); err != nil {
		abortFields(c, fieldError{loc: []any{"body"}, msg: "invalid JSON", kind: "value_error.jsondecode"})
		return
	}
	if _, ok := fields["title"]; !ok {
		abortFields(c, fieldError{loc: []any{"body", "title"}, msg: "field required", kind: "value_error.missing"})
		return
	}

	var create domain.TaskCreate
	patch, problems := decodeTaskFields(fields)
	if len(problems) > 0 {
		abortFields(c, problems...)
		return
	}
	create.Title = *patch.Title
	if patch.Description != nil {
		create.Description = *patch.Description
	}
	if patch.Status != nil {
		create.Status = *patch.Status
	}
	if patch.Priority != nil {
		create.Priority = *patch.Priority
	}
	create.DueDate = patch.DueDate

	s.mu.Lock()
	created := s.createTaskLocked(currentUserID(c), create)
	s.mu.Unlock()

	c.JSON(http.StatusCreated, toTaskResponse(created))
}

func (s *Server) updateTask(c *gin.Context) {
	var fields map[string]json.RawMessage
	if err := c.ShouldBindJSON(&fields); err != nil {
		abortFields(c, fieldError{loc: []any{"body"}, msg: "invalid JSON", kind: "value_error.jsondecode"})
		return
	}
	patch, problems := decodeTaskFields(fields)
	if len(problems) > 0 {
		abortFields(c, problems...)
		return
	}

	if _, ok := s.ownedTask(c); !ok {
		return
	}
	id, _ := strconv.ParseInt(c.Param("id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[domain.TaskID(id)]
	if !ok {
		abortDetail(c, http.StatusNotFound, "Task not found")
		return
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		description := *patch.Description
		task.Description = &description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.ClearDueDate {
		task.DueDate = nil
	} else if patch.DueDate != nil {
		due := *patch.DueDate
		task.DueDate = &due
	}
	task.UpdatedAt = domain.NewTimestamp(s.now())

	c.JSON(http.StatusOK, toTaskResponse(*task))
}

func (s *Server) deleteTask(c *gin.Context) {
	task, ok := s.ownedTask(c)
	if !ok {
		return
	}

	s.mu.Lock()
	delete(s.tasks, task.ID)
	s.mu.Unlock()

	c.Status(http.StatusNoContent)
}

func (s *Server) analyticsSummary(c *gin.Context) {
	ownerID := currentUserID(c)
	now := s.now()
	weekAgo := now.Add(-7 * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	var summary domain.AnalyticsSummary
	for _, task := range s.tasks {
		if task.OwnerID != ownerID {
			continue
		}
		summary.TotalTasks++
		switch task.Status {
		case domain.TaskStatusDone:
			summary.CompletedTasks++
			if !task.UpdatedAt.Before(weekAgo) {
				summary.CompletedThisWeek++
			}
		case domain.TaskStatusTodo:
			summary.PendingTasks++
		case domain.TaskStatusInProgress:
			summary.InProgressTasks++
		}
		if task.Status != domain.TaskStatusDone {
			if task.DueDate != nil && task.DueDate.Before(now) {
				summary.OverdueTasks++
			}
			if task.Priority == domain.TaskPriorityHigh {
				summary.HighPriorityPending++
			}
		}
	}
	if summary.TotalTasks > 0 {
		rate := float64(summary.CompletedTasks) / float64(summary.TotalTasks) * 100
		summary.CompletionRate = float64(int(rate*10+0.5)) / 10
	}

	c.JSON(http.StatusOK, summary)
}

// ownedTask loads the task named by the :id parameter and aborts with the
// service's 404/403 responses when it is missing or foreign.
func (s *Server) ownedTask(c *gin.Context) (domain.Task, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortFields(c, fieldError{loc: []any{"path", "task_id"}, msg: "value is not a valid integer", kind: "type_error.integer"})
		return domain.Task{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[domain.TaskID(id)]
	if !ok {
		abortDetail(c, http.StatusNotFound, "Task not found")
		return domain.Task{}, false
	}
	if task.OwnerID != currentUserID(c) {
		abortDetail(c, http.StatusForbidden, "You don't have access to this task")
		return domain.Task{}, false
	}
	return *task, true
}

func (s *Server) createTaskLocked(ownerID int64, create domain.TaskCreate) domain.Task {
	now := domain.NewTimestamp(s.now())
	s.nextTaskID++

	task := &domain.Task{
		ID:        s.nextTaskID,
		Title:     create.Title,
		Status:    create.Status,
		Priority:  create.Priority,
		DueDate:   create.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
		OwnerID:   ownerID,
	}
	if create.Description != "" {
		description := create.Description
		task.Description = &description
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}
	s.tasks[task.ID] = task
	return *task
}

func decodeTaskFields(fields map[string]json.RawMessage) (domain.TaskUpdate, []fieldError) {
	var patch domain.TaskUpdate
	var problems []fieldError

	if raw, ok := fields["title"]; ok {
		var title string
		if err := json.Unmarshal(raw, &title); err != nil {
			problems = append(problems, fieldError{loc: []any{"body", "title"}, msg: "str type expected", kind: "type_error.str"})
		} else if utf8.RuneCountInString(title) < 1 {
			problems = append(problems, fieldError{loc: []any{"body", "title"}, msg: "ensure this value has at least 1 characters", kind: "value_error.any_str.min_length"})
		} else if utf8.RuneCountInString(title) > domain.MaxTaskTitleLength {
			problems = append(problems, fieldError{loc: []any{"body", "title"}, msg: fmt.Sprintf("ensure this value has at most %d characters", domain.MaxTaskTitleLength), kind: "value_error.any_str.max_length"})
		} else {
			patch.Title = &title
		}
	}
	if raw, ok := fields["description"]; ok && string(raw) != "null" {
		var description string
		if err := json.Unmarshal(raw, &description); err != nil {
			problems = append(problems, fieldError{loc: []any{"body", "description"}, msg: "str type expected", kind: "type_error.str"})
		} else {
			patch.Description = &description
		}
	}
	if raw, ok := fields["status"]; ok {
		var status domain.TaskStatus
		if err := json.Unmarshal(raw, &status); err != nil || !status.Valid() {
			problems = append(problems, enumProblem("body", "status", "'todo', 'in_progress', 'done'"))
		} else {
			patch.Status = &status
		}
	}
	if raw, ok := fields["priority"]; ok {
		var priority domain.TaskPriority
		if err := json.Unmarshal(raw, &priority); err != nil || !priority.Valid() {
			problems = append(problems, enumProblem("body", "priority", "'low', 'medium', 'high'"))
		} else {
			patch.Priority = &priority
		}
	}
	if raw, ok := fields["due_date"]; ok {
		if string(raw) == "null" {
			patch.ClearDueDate = true
		} else {
			var due domain.Timestamp
			if err := json.Unmarshal(raw, &due); err != nil {
				problems = append(problems, fieldError{loc: []any{"body", "due_date"}, msg: "invalid datetime format", kind: "value_error.datetime"})
			} else {
				patch.DueDate = &due
			}
		}
	}

	return patch, problems
}

func enumProblem(location string, field string, permitted string) fieldError {
	return fieldError{
		loc:  []any{location, field},
		msg:  "value is not a valid enumeration member; permitted: " + permitted,
		kind: "type_error.enum",
	}
}

func intQuery(c *gin.Context, name string, fallback int, minimum int, maximum int) (int, *fieldError) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &fieldError{loc: []any{"query", name}, msg: "value is not a valid integer", kind: "type_error.integer"}
	}
	if value < minimum {
		return 0, &fieldError{loc: []any{"query", name}, msg: fmt.Sprintf("ensure this value is greater than or equal to %d", minimum), kind: "value_error.number.not_ge"}
	}
	if maximum > 0 && value > maximum {
		return 0, &fieldError{loc: []any{"query", name}, msg: fmt.Sprintf("ensure this value is less than or equal to %d", maximum), kind: "value_error.number.not_le"}
	}
	return value, nil
}

func matchesSearch(task domain.Task, search string) bool {
	if strings.Contains(strings.ToLower(task.Title), search) {
		return true
	}
	return task.Description != nil && strings.Contains(strings.ToLower(*task.Description), search)
}

func toTaskResponse(task domain.Task) taskResponse {
	response := taskResponse{
		ID:          int64(task.ID),
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Priority:    string(task.Priority),
		CreatedAt:   task.CreatedAt.UTC().Format(naiveTimestampForm),
		UpdatedAt:   task.UpdatedAt.UTC().Format(naiveTimestampForm),
		OwnerID:     task.OwnerID,
	}
	if task.DueDate != nil {
		due := task.DueDate.UTC().Format(naiveTimestampForm)
		response.DueDate = &due
	}
	return response
}

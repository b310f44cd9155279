package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

const MaxTaskTitleLength = 255

type TaskID int64

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	default:
		return false
	}
}

func (s TaskStatus) Label() string {
	switch s {
	case TaskStatusTodo:
		return "To Do"
	case TaskStatusInProgress:
		return "In Progress"
	case TaskStatusDone:
		return "Done"
	default:
		return string(s)
	}
}

func ParseTaskStatus(raw string) (TaskStatus, error) {
	status := TaskStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("%w: unsupported status %q (todo|in_progress|done)", ErrInvalidTask, raw)
	}
	return status, nil
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

func ParseTaskPriority(raw string) (TaskPriority, error) {
	priority := TaskPriority(strings.ToLower(strings.TrimSpace(raw)))
	if !priority.Valid() {
		return "", fmt.Errorf("%w: unsupported priority %q (low|medium|high)", ErrInvalidTask, raw)
	}
	return priority, nil
}

type Task struct {
	ID          TaskID       `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *Timestamp   `json:"due_date"`
	CreatedAt   Timestamp    `json:"created_at"`
	UpdatedAt   Timestamp    `json:"updated_at"`
	OwnerID     int64        `json:"owner_id"`
}

// TaskPage is one page of the task collection as returned by the service.
type TaskPage struct {
	Items      []Task `json:"items"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

type TaskCreate struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
	DueDate     *Timestamp   `json:"due_date,omitempty"`
}

func (c TaskCreate) Validate() error {
	if err := validateTitle(c.Title); err != nil {
		return err
	}
	if c.Status != "" && !c.Status.Valid() {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidTask, c.Status)
	}
	if c.Priority != "" && !c.Priority.Valid() {
		return fmt.Errorf("%w: unsupported priority %q", ErrInvalidTask, c.Priority)
	}

	return nil
}

// TaskUpdate carries only the fields to change. ClearDueDate sends an
// explicit null for due_date.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Status       *TaskStatus
	Priority     *TaskPriority
	DueDate      *Timestamp
	ClearDueDate bool
}

func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.Priority == nil && u.DueDate == nil && !u.ClearDueDate
}

func (u TaskUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidTask)
	}
	if u.Title != nil {
		if err := validateTitle(*u.Title); err != nil {
			return err
		}
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: unsupported status %q", ErrInvalidTask, *u.Status)
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return fmt.Errorf("%w: unsupported priority %q", ErrInvalidTask, *u.Priority)
	}
	if u.DueDate != nil && u.ClearDueDate {
		return fmt.Errorf("%w: due date cannot be both set and cleared", ErrInvalidTask)
	}

	return nil
}

func (u TaskUpdate) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, 5)
	if u.Title != nil {
		payload["title"] = *u.Title
	}
	if u.Description != nil {
		payload["description"] = *u.Description
	}
	if u.Status != nil {
		payload["status"] = *u.Status
	}
	if u.Priority != nil {
		payload["priority"] = *u.Priority
	}
	switch {
	case u.ClearDueDate:
		payload["due_date"] = nil
	case u.DueDate != nil:
		payload["due_date"] = *u.DueDate
	}

	return json.Marshal(payload)
}

func validateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidTask)
	}
	if utf8.RuneCountInString(title) > MaxTaskTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidTask, MaxTaskTitleLength)
	}
	return nil
}

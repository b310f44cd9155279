// Package mutation performs task writes and reconciles the query cache once
// the service has accepted them.
package mutation

import (
	"context"
	"log/slog"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/querycache"
)

type TaskWriter interface {
	CreateTask(ctx context.Context, create domain.TaskCreate) (domain.Task, error)
	UpdateTask(ctx context.Context, id domain.TaskID, update domain.TaskUpdate) (domain.Task, error)
	DeleteTask(ctx context.Context, id domain.TaskID) error
}

type Invalidator interface {
	Invalidate(groups ...querycache.Group)
}

// affectedGroups is invalidated after every accepted write. Analytics is
// always included since any task change can move the aggregates.
var affectedGroups = []querycache.Group{querycache.GroupTasks, querycache.GroupAnalytics}

type Coordinator struct {
	writer TaskWriter
	cache  Invalidator
	logger *slog.Logger
}

func NewCoordinator(writer TaskWriter, cache Invalidator, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Coordinator{writer: writer, cache: cache, logger: logger}
}

func (c *Coordinator) Create(ctx context.Context, create domain.TaskCreate) (domain.Task, error) {
	if err := create.Validate(); err != nil {
		return domain.Task{}, err
	}

	task, err := c.writer.CreateTask(ctx, create)
	if err != nil {
		c.logger.WarnContext(ctx, "create task failed", "error", err)
		return domain.Task{}, err
	}

	c.settle(ctx, "create task", task.ID)
	return task, nil
}

func (c *Coordinator) Update(ctx context.Context, id domain.TaskID, update domain.TaskUpdate) (domain.Task, error) {
	if err := update.Validate(); err != nil {
		return domain.Task{}, err
	}

	task, err := c.writer.UpdateTask(ctx, id, update)
	if err != nil {
		c.logger.WarnContext(ctx, "update task failed", "task_id", id, "error", err)
		return domain.Task{}, err
	}

	c.settle(ctx, "update task", id)
	return task, nil
}

func (c *Coordinator) Remove(ctx context.Context, id domain.TaskID) error {
	if err := c.writer.DeleteTask(ctx, id); err != nil {
		c.logger.WarnContext(ctx, "delete task failed", "task_id", id, "error", err)
		return err
	}

	c.settle(ctx, "delete task", id)
	return nil
}

func (c *Coordinator) settle(ctx context.Context, operation string, id domain.TaskID) {
	if c.cache != nil {
		c.cache.Invalidate(affectedGroups...)
	}
	c.logger.InfoContext(ctx, operation, "task_id", id)
}

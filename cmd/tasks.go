package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	taskrender "github.com/bnema/taskflow-cli/internal/adapters/render/tasks"
	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/querycache"
	"github.com/spf13/cobra"
)

func newTasksCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List and edit tasks",
	}

	cmd.AddCommand(
		newTasksListCmd(app),
		newTasksShowCmd(app),
		newTasksCreateCmd(app),
		newTasksUpdateCmd(app),
		newTasksDeleteCmd(app),
	)

	return cmd
}

func newTasksListCmd(app *app) *cobra.Command {
	var status string
	var priority string
	var search string
	var page int
	var pageSize int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks with optional filters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters := domain.TaskFilters{Search: search, Page: page, PageSize: pageSize}
			if status != "" {
				parsed, err := domain.ParseTaskStatus(status)
				if err != nil {
					return err
				}
				filters.Status = parsed
			}
			if priority != "" {
				parsed, err := domain.ParseTaskPriority(priority)
				if err != nil {
					return err
				}
				filters.Priority = parsed
			}
			if err := filters.Validate(); err != nil {
				return err
			}

			app.ensureSession(cmd.Context(), cmd.ErrOrStderr())

			var result domain.TaskPage
			fetch := func(ctx context.Context, observe querycache.Listener) error {
				var err error
				result, err = app.queries.List(ctx, filters, observe)
				return err
			}
			if err := runFetch(cmd, asJSON, "tasks", fetch); err != nil {
				return userError(err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			rendered, err := taskrender.RenderPage(result, taskrender.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render tasks: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (todo|in_progress|done)")
	cmd.Flags().StringVar(&priority, "priority", "", "Filter by priority (low|medium|high)")
	cmd.Flags().StringVar(&search, "search", "", "Case-insensitive match on title or description")
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", domain.DefaultPageSize, fmt.Sprintf("Tasks per page (1-%d)", domain.MaxPageSize))
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newTasksShowCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			app.ensureSession(cmd.Context(), cmd.ErrOrStderr())

			var task domain.Task
			fetch := func(ctx context.Context, observe querycache.Listener) error {
				var err error
				task, err = app.queries.Get(ctx, id, observe)
				return err
			}
			if err := runFetch(cmd, asJSON, "task", fetch); err != nil {
				return userError(err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), task)
			}
			rendered, err := taskrender.RenderTask(task, taskrender.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render task: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newTasksCreateCmd(app *app) *cobra.Command {
	var title string
	var description string
	var status string
	var priority string
	var due string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			create := domain.TaskCreate{Title: title, Description: description}
			if status != "" {
				parsed, err := domain.ParseTaskStatus(status)
				if err != nil {
					return err
				}
				create.Status = parsed
			}
			if priority != "" {
				parsed, err := domain.ParseTaskPriority(priority)
				if err != nil {
					return err
				}
				create.Priority = parsed
			}
			if due != "" {
				parsed, err := domain.ParseTimestamp(due)
				if err != nil {
					return fmt.Errorf("%w: due date: %w", domain.ErrInvalidTask, err)
				}
				create.DueDate = &parsed
			}

			app.ensureSession(cmd.Context(), cmd.ErrOrStderr())

			task, err := app.mutations.Create(cmd.Context(), create)
			if err != nil {
				return userError(err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created task %d: %s\n", task.ID, sanitizeForTerminal(task.Title))
			return err
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().StringVar(&description, "description", "", "Task description")
	cmd.Flags().StringVar(&status, "status", "", "Initial status (todo|in_progress|done)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (low|medium|high)")
	cmd.Flags().StringVar(&due, "due", "", "Due date (RFC 3339 or YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("title")

	return cmd
}

func newTasksUpdateCmd(app *app) *cobra.Command {
	var title string
	var description string
	var status string
	var priority string
	var due string
	var clearDue bool

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			var update domain.TaskUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				update.Title = &title
			}
			if flags.Changed("description") {
				update.Description = &description
			}
			if flags.Changed("status") {
				parsed, err := domain.ParseTaskStatus(status)
				if err != nil {
					return err
				}
				update.Status = &parsed
			}
			if flags.Changed("priority") {
				parsed, err := domain.ParseTaskPriority(priority)
				if err != nil {
					return err
				}
				update.Priority = &parsed
			}
			if flags.Changed("due") {
				parsed, err := domain.ParseTimestamp(due)
				if err != nil {
					return fmt.Errorf("%w: due date: %w", domain.ErrInvalidTask, err)
				}
				update.DueDate = &parsed
			}
			update.ClearDueDate = clearDue

			app.ensureSession(cmd.Context(), cmd.ErrOrStderr())

			task, err := app.mutations.Update(cmd.Context(), id, update)
			if err != nil {
				return userError(err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Updated task %d: %s (%s)\n", task.ID, sanitizeForTerminal(task.Title), task.Status.Label())
			return err
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&status, "status", "", "New status (todo|in_progress|done)")
	cmd.Flags().StringVar(&priority, "priority", "", "New priority (low|medium|high)")
	cmd.Flags().StringVar(&due, "due", "", "New due date (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "Remove the due date")
	cmd.MarkFlagsMutuallyExclusive("due", "clear-due")

	return cmd
}

func newTasksDeleteCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}

			app.ensureSession(cmd.Context(), cmd.ErrOrStderr())

			if err := app.mutations.Remove(cmd.Context(), id); err != nil {
				return userError(err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %d\n", id)
			return err
		},
	}
}

func parseTaskID(raw string) (domain.TaskID, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: task id must be a positive integer, got %q", domain.ErrInvalidTask, raw)
	}
	return domain.TaskID(id), nil
}

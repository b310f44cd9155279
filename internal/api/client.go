// Package api is the typed client for the task service endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/gateway"
)

// Doer sends one request through the HTTP gateway.
type Doer interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

// Client maps service operations onto gateway requests. Gateway errors are
// returned unchanged so callers can classify them with errors.Is.
type Client struct {
	doer Doer
}

func NewClient(doer Doer) *Client {
	return &Client{doer: doer}
}

func (c *Client) Login(ctx context.Context, req domain.LoginRequest) (domain.Tokens, error) {
	var tokens domain.Tokens
	err := c.doer.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		Body:      req,
		Anonymous: true,
	}, &tokens)
	if err != nil {
		return domain.Tokens{}, err
	}
	if tokens.AccessToken == "" {
		return domain.Tokens{}, &gateway.Error{Kind: gateway.ErrServer, StatusCode: http.StatusOK, Detail: "login response has no access token"}
	}
	return tokens, nil
}

func (c *Client) Register(ctx context.Context, req domain.Registration) (domain.User, error) {
	var user domain.User
	err := c.doer.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/auth/register",
		Body:      req,
		Anonymous: true,
	}, &user)
	return user, err
}

func (c *Client) ListTasks(ctx context.Context, filters domain.TaskFilters) (domain.TaskPage, error) {
	var page domain.TaskPage
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/tasks",
		Query:  filters.Query(),
	}, &page)
	return page, err
}

func (c *Client) GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error) {
	if err := checkTaskID(id); err != nil {
		return domain.Task{}, err
	}
	var task domain.Task
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   taskPath(id),
	}, &task)
	return task, err
}

func (c *Client) CreateTask(ctx context.Context, create domain.TaskCreate) (domain.Task, error) {
	var task domain.Task
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/tasks",
		Body:   create,
	}, &task)
	return task, err
}

func (c *Client) UpdateTask(ctx context.Context, id domain.TaskID, update domain.TaskUpdate) (domain.Task, error) {
	if err := checkTaskID(id); err != nil {
		return domain.Task{}, err
	}
	var task domain.Task
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodPut,
		Path:   taskPath(id),
		Body:   update,
	}, &task)
	return task, err
}

func (c *Client) DeleteTask(ctx context.Context, id domain.TaskID) error {
	if err := checkTaskID(id); err != nil {
		return err
	}
	return c.doer.Do(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   taskPath(id),
	}, nil)
}

func (c *Client) AnalyticsSummary(ctx context.Context) (domain.AnalyticsSummary, error) {
	var summary domain.AnalyticsSummary
	err := c.doer.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/analytics/summary",
	}, &summary)
	return summary, err
}

func taskPath(id domain.TaskID) string {
	return "/tasks/" + strconv.FormatInt(int64(id), 10)
}

func checkTaskID(id domain.TaskID) error {
	if id <= 0 {
		return fmt.Errorf("%w: task id must be positive, got %d", domain.ErrInvalidTask, id)
	}
	return nil
}

package application

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bnema/taskflow-cli/internal/domain"
	"github.com/bnema/taskflow-cli/internal/querycache"
)

type TaskReader interface {
	ListTasks(ctx context.Context, filters domain.TaskFilters) (domain.TaskPage, error)
	GetTask(ctx context.Context, id domain.TaskID) (domain.Task, error)
	AnalyticsSummary(ctx context.Context) (domain.AnalyticsSummary, error)
}

// TaskQueries builds cache keys and fetchers for task reads and resolves
// one-shot reads through the cache.
type TaskQueries struct {
	reader TaskReader
	cache  *querycache.Cache
}

func NewTaskQueries(reader TaskReader, cache *querycache.Cache) *TaskQueries {
	return &TaskQueries{reader: reader, cache: cache}
}

func TasksKey(filters domain.TaskFilters) querycache.Key {
	return querycache.Key{Kind: querycache.KindTasks, Params: filters.Resolved().Canonical()}
}

func TaskKey(id domain.TaskID) querycache.Key {
	return querycache.Key{Kind: querycache.KindTask, Params: strconv.FormatInt(int64(id), 10)}
}

func AnalyticsKey() querycache.Key {
	return querycache.Key{Kind: querycache.KindAnalytics}
}

func (q *TaskQueries) ListFetcher(filters domain.TaskFilters) querycache.Fetcher {
	resolved := filters.Resolved()
	return func(ctx context.Context) (any, error) {
		return q.reader.ListTasks(ctx, resolved)
	}
}

func (q *TaskQueries) TaskFetcher(id domain.TaskID) querycache.Fetcher {
	return func(ctx context.Context) (any, error) {
		return q.reader.GetTask(ctx, id)
	}
}

func (q *TaskQueries) AnalyticsFetcher() querycache.Fetcher {
	return func(ctx context.Context) (any, error) {
		return q.reader.AnalyticsSummary(ctx)
	}
}

// List resolves one page through the cache. Observers see the entry's
// progress while the read is pending.
func (q *TaskQueries) List(ctx context.Context, filters domain.TaskFilters, observers ...querycache.Listener) (domain.TaskPage, error) {
	if err := filters.Validate(); err != nil {
		return domain.TaskPage{}, err
	}

	snapshot, err := querycache.Await(ctx, q.cache, TasksKey(filters), q.ListFetcher(filters), observers...)
	if err != nil {
		return domain.TaskPage{}, err
	}
	return dataAs[domain.TaskPage](snapshot)
}

func (q *TaskQueries) Get(ctx context.Context, id domain.TaskID, observers ...querycache.Listener) (domain.Task, error) {
	snapshot, err := querycache.Await(ctx, q.cache, TaskKey(id), q.TaskFetcher(id), observers...)
	if err != nil {
		return domain.Task{}, err
	}
	return dataAs[domain.Task](snapshot)
}

func (q *TaskQueries) Analytics(ctx context.Context, observers ...querycache.Listener) (domain.AnalyticsSummary, error) {
	snapshot, err := querycache.Await(ctx, q.cache, AnalyticsKey(), q.AnalyticsFetcher(), observers...)
	if err != nil {
		return domain.AnalyticsSummary{}, err
	}
	return dataAs[domain.AnalyticsSummary](snapshot)
}

// WatchList keeps a live subscription on one page of the collection.
func (q *TaskQueries) WatchList(filters domain.TaskFilters, listener querycache.Listener) (querycache.Snapshot, *querycache.Subscription) {
	return q.cache.Subscribe(TasksKey(filters), q.ListFetcher(filters), listener)
}

func (q *TaskQueries) WatchAnalytics(listener querycache.Listener) (querycache.Snapshot, *querycache.Subscription) {
	return q.cache.Subscribe(AnalyticsKey(), q.AnalyticsFetcher(), listener)
}

// Refresh forces a refetch of every subscribed task and analytics entry.
func (q *TaskQueries) Refresh() {
	q.cache.Invalidate(querycache.GroupTasks, querycache.GroupAnalytics)
}

func dataAs[T any](snapshot querycache.Snapshot) (T, error) {
	value, ok := snapshot.Data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("cached %s holds %T", snapshot.Key, snapshot.Data)
	}
	return value, nil
}

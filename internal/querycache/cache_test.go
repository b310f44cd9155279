package querycache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

type fetchResult struct {
	data any
	err  error
}

// gatedFetcher blocks every fetch until the test resolves it.
type gatedFetcher struct {
	calls   atomic.Int32
	started chan struct{}
	results chan fetchResult
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{started: make(chan struct{}, 64), results: make(chan fetchResult)}
}

func (f *gatedFetcher) Fetch(ctx context.Context) (any, error) {
	f.calls.Add(1)
	f.started <- struct{}{}
	select {
	case result := <-f.results:
		return result.data, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *gatedFetcher) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(waitTimeout):
		t.Fatal("fetch did not start")
	}
}

func (f *gatedFetcher) resolve(t *testing.T, data any) {
	t.Helper()
	select {
	case f.results <- fetchResult{data: data}:
	case <-time.After(waitTimeout):
		t.Fatal("no fetch in flight to resolve")
	}
}

func (f *gatedFetcher) fail(t *testing.T, err error) {
	t.Helper()
	select {
	case f.results <- fetchResult{err: err}:
	case <-time.After(waitTimeout):
		t.Fatal("no fetch in flight to fail")
	}
}

type countingFetcher struct {
	calls atomic.Int32
	value any
}

func (f *countingFetcher) Fetch(context.Context) (any, error) {
	f.calls.Add(1)
	return f.value, nil
}

type recorder struct {
	mu        sync.Mutex
	snapshots []Snapshot
	updates   chan Snapshot
}

func newRecorder() *recorder {
	return &recorder{updates: make(chan Snapshot, 64)}
}

func (r *recorder) Listen(snapshot Snapshot) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, snapshot)
	r.mu.Unlock()
	r.updates <- snapshot
}

func (r *recorder) waitFor(t *testing.T, match func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case snapshot := <-r.updates:
			if match(snapshot) {
				return snapshot
			}
		case <-deadline:
			t.Fatal("expected snapshot was not delivered")
			return Snapshot{}
		}
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func settled(s Snapshot) bool {
	return s.Settled()
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	if opts.StaleTimes == nil {
		opts.StaleTimes = map[Kind]time.Duration{KindTasks: time.Minute, KindTask: time.Minute, KindAnalytics: time.Minute}
	}
	if opts.EvictionGrace == 0 {
		opts.EvictionGrace = time.Hour
	}
	cache, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	return cache
}

var (
	listKey      = Key{Kind: KindTasks, Params: "page=1"}
	otherListKey = Key{Kind: KindTasks, Params: "page=2"}
	itemKey      = Key{Kind: KindTask, Params: "7"}
	analyticsKey = Key{Kind: KindAnalytics}
)

func TestSubscribeDeduplicatesConcurrentFetches(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := newGatedFetcher()

	const subscribers = 20
	recorders := make([]*recorder, subscribers)
	subs := make([]*Subscription, subscribers)
	var wg sync.WaitGroup
	for i := 0; i < subscribers; i++ {
		recorders[i] = newRecorder()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, subs[i] = cache.Subscribe(listKey, fetcher.Fetch, recorders[i].Listen)
		}(i)
	}
	wg.Wait()

	fetcher.waitStarted(t)
	fetcher.resolve(t, "page-1")

	for _, rec := range recorders {
		snapshot := rec.waitFor(t, settled)
		assert.Equal(t, StatusFresh, snapshot.Status)
		assert.Equal(t, "page-1", snapshot.Data)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Equal(t, float64(1), testutil.ToFloat64(cache.metrics.fetches))
	assert.Equal(t, float64(1), testutil.ToFloat64(cache.metrics.misses))
	assert.Equal(t, float64(subscribers-1), testutil.ToFloat64(cache.metrics.hits))

	for _, sub := range subs {
		sub.Release()
	}
}

func TestSubscribeFirstSnapshotIsLoadingWithRequestID(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := newGatedFetcher()

	snapshot, sub := cache.Subscribe(listKey, fetcher.Fetch, nil)
	defer sub.Release()

	assert.Equal(t, StatusLoading, snapshot.Status)
	assert.NotEmpty(t, snapshot.InFlightRequestID)
	assert.False(t, snapshot.HasData())
	assert.Equal(t, listKey, sub.Key())

	fetcher.waitStarted(t)
	fetcher.resolve(t, "data")
}

func TestSubscribeFreshEntryDoesNotFetch(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := &countingFetcher{value: "summary"}

	rec := newRecorder()
	_, first := cache.Subscribe(analyticsKey, fetcher.Fetch, rec.Listen)
	defer first.Release()
	rec.waitFor(t, settled)

	snapshot, second := cache.Subscribe(analyticsKey, fetcher.Fetch, nil)
	defer second.Release()

	assert.Equal(t, StatusFresh, snapshot.Status)
	assert.Equal(t, "summary", snapshot.Data)
	assert.False(t, snapshot.FetchedAt.After(snapshot.StaleAt))
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestEntryBecomesStaleWithTimeAndRevalidatesOnSubscribe(t *testing.T) {
	t.Parallel()

	clock := newManualClock()
	cache := newTestCache(t, Options{Clock: clock})
	fetcher := newGatedFetcher()

	rec := newRecorder()
	_, first := cache.Subscribe(analyticsKey, fetcher.Fetch, rec.Listen)
	defer first.Release()
	fetcher.waitStarted(t)
	fetcher.resolve(t, "v1")
	rec.waitFor(t, settled)

	read, ok := cache.Read(analyticsKey)
	require.True(t, ok)
	assert.Equal(t, StatusFresh, read.Status)

	clock.Advance(time.Minute)

	read, ok = cache.Read(analyticsKey)
	require.True(t, ok)
	assert.Equal(t, StatusStale, read.Status)
	assert.Equal(t, "v1", read.Data)

	snapshot, second := cache.Subscribe(analyticsKey, fetcher.Fetch, nil)
	defer second.Release()
	assert.Equal(t, StatusLoading, snapshot.Status)
	assert.Equal(t, "v1", snapshot.Data)

	// the first subscriber hears about the revalidation too
	loading := rec.waitFor(t, func(s Snapshot) bool { return s.Status == StatusLoading })
	assert.Equal(t, "v1", loading.Data)

	fetcher.waitStarted(t)
	fetcher.resolve(t, "v2")
	fresh := rec.waitFor(t, settled)
	assert.Equal(t, "v2", fresh.Data)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestZeroStaleTimeIsImmediatelyStale(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{StaleTimes: map[Kind]time.Duration{KindTasks: 0}})
	fetcher := &countingFetcher{value: "page"}

	rec := newRecorder()
	_, sub := cache.Subscribe(listKey, fetcher.Fetch, rec.Listen)
	defer sub.Release()

	snapshot := rec.waitFor(t, settled)
	assert.Equal(t, StatusStale, snapshot.Status)
	assert.Equal(t, "page", snapshot.Data)
	assert.Equal(t, snapshot.FetchedAt, snapshot.StaleAt)
}

func TestInvalidateRefetchesSubscribedMembersOnce(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	list := &countingFetcher{value: "list"}
	item := &countingFetcher{value: "item"}
	otherList := &countingFetcher{value: "other"}
	summary := &countingFetcher{value: "summary"}

	listRec, itemRec, otherRec, summaryRec := newRecorder(), newRecorder(), newRecorder(), newRecorder()
	_, listSub := cache.Subscribe(listKey, list.Fetch, listRec.Listen)
	defer listSub.Release()
	_, itemSub := cache.Subscribe(itemKey, item.Fetch, itemRec.Listen)
	defer itemSub.Release()
	_, otherSub := cache.Subscribe(otherListKey, otherList.Fetch, otherRec.Listen)
	_, summarySub := cache.Subscribe(analyticsKey, summary.Fetch, summaryRec.Listen)
	defer summarySub.Release()

	for _, rec := range []*recorder{listRec, itemRec, otherRec, summaryRec} {
		rec.waitFor(t, settled)
	}
	otherSub.Release()

	cache.Invalidate(GroupTasks)

	listRec.waitFor(t, func(s Snapshot) bool { return s.Status == StatusFresh })
	itemRec.waitFor(t, func(s Snapshot) bool { return s.Status == StatusFresh })
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(2), list.calls.Load())
	assert.Equal(t, int32(2), item.calls.Load())
	assert.Equal(t, int32(1), otherList.calls.Load())
	assert.Equal(t, int32(1), summary.calls.Load())

	other, ok := cache.Read(otherListKey)
	require.True(t, ok)
	assert.Equal(t, StatusStale, other.Status)
	assert.Equal(t, "other", other.Data)

	analytics, ok := cache.Read(analyticsKey)
	require.True(t, ok)
	assert.Equal(t, StatusFresh, analytics.Status)

	assert.Equal(t, float64(3), testutil.ToFloat64(cache.metrics.invalidations))

	// the unsubscribed member refetches lazily
	_, again := cache.Subscribe(otherListKey, otherList.Fetch, otherRec.Listen)
	defer again.Release()
	otherRec.waitFor(t, settled)
	assert.Equal(t, int32(2), otherList.calls.Load())
}

func TestInvalidateDuringFetchStoresStaleAndFollowsUp(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := newGatedFetcher()
	rec := newRecorder()

	_, sub := cache.Subscribe(listKey, fetcher.Fetch, rec.Listen)
	defer sub.Release()
	fetcher.waitStarted(t)

	cache.Invalidate(GroupTasks)
	cache.Invalidate(GroupTasks)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	fetcher.resolve(t, "before-mutation")
	interim := rec.waitFor(t, func(s Snapshot) bool { return s.Data == "before-mutation" })
	assert.Equal(t, StatusLoading, interim.Status)
	assert.NotEqual(t, StatusFresh, interim.Status)

	fetcher.waitStarted(t)
	assert.Equal(t, int32(2), fetcher.calls.Load())

	fetcher.resolve(t, "after-mutation")
	final := rec.waitFor(t, settled)
	assert.Equal(t, StatusFresh, final.Status)
	assert.Equal(t, "after-mutation", final.Data)
	assert.Greater(t, final.Version, interim.Version)
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestFailedRevalidationServesStaleData(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := newGatedFetcher()
	rec := newRecorder()

	_, sub := cache.Subscribe(listKey, fetcher.Fetch, rec.Listen)
	defer sub.Release()
	fetcher.waitStarted(t)
	fetcher.resolve(t, "D")
	good := rec.waitFor(t, settled)
	require.Equal(t, StatusFresh, good.Status)

	require.True(t, cache.Refetch(listKey))
	fetcher.waitStarted(t)
	boom := errors.New("service unavailable")
	fetcher.fail(t, boom)

	failed := rec.waitFor(t, settled)
	assert.Equal(t, StatusError, failed.Status)
	assert.Equal(t, "D", failed.Data)
	assert.ErrorIs(t, failed.Err, boom)
	assert.Equal(t, good.FetchedAt, failed.FetchedAt)
	assert.Equal(t, float64(1), testutil.ToFloat64(cache.metrics.fetchErrors))
}

func TestFailedInitialFetchLeavesDataUnset(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := newGatedFetcher()
	rec := newRecorder()

	_, sub := cache.Subscribe(itemKey, fetcher.Fetch, rec.Listen)
	defer sub.Release()
	fetcher.waitStarted(t)
	fetcher.fail(t, errors.New("not found"))

	failed := rec.waitFor(t, settled)
	assert.Equal(t, StatusError, failed.Status)
	assert.False(t, failed.HasData())
	assert.Nil(t, failed.Data)

	// subscribing to a failed entry retries
	snapshot, retry := cache.Subscribe(itemKey, fetcher.Fetch, nil)
	defer retry.Release()
	assert.Equal(t, StatusLoading, snapshot.Status)
	fetcher.waitStarted(t)
	fetcher.resolve(t, "task")
}

func TestRefetchIsNoopWhileLoadingOrUnsubscribed(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := newGatedFetcher()

	assert.False(t, cache.Refetch(listKey))

	_, sub := cache.Subscribe(listKey, fetcher.Fetch, nil)
	fetcher.waitStarted(t)
	assert.False(t, cache.Refetch(listKey))

	fetcher.resolve(t, "data")
	require.Eventually(t, func() bool {
		snapshot, _ := cache.Read(listKey)
		return snapshot.Settled()
	}, waitTimeout, 5*time.Millisecond)

	sub.Release()
	assert.False(t, cache.Refetch(listKey))
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestReleasingEveryoneDoesNotCancelFetch(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := newGatedFetcher()
	rec := newRecorder()

	_, sub := cache.Subscribe(listKey, fetcher.Fetch, rec.Listen)
	fetcher.waitStarted(t)
	sub.Release()

	fetcher.resolve(t, "late")
	require.Eventually(t, func() bool {
		snapshot, ok := cache.Read(listKey)
		return ok && snapshot.Status == StatusFresh && snapshot.Data == "late"
	}, waitTimeout, 5*time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{EvictionGrace: 10 * time.Millisecond})
	fetcher := &countingFetcher{value: "v"}
	rec := newRecorder()

	_, first := cache.Subscribe(listKey, fetcher.Fetch, rec.Listen)
	rec.waitFor(t, settled)
	_, second := cache.Subscribe(listKey, fetcher.Fetch, nil)
	defer second.Release()

	first.Release()
	first.Release()
	time.Sleep(40 * time.Millisecond)

	_, ok := cache.Read(listKey)
	assert.True(t, ok, "entry with a live subscription must not be evicted")

	var nilSub *Subscription
	assert.NotPanics(t, nilSub.Release)
}

func TestEvictionAfterGracePeriod(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{EvictionGrace: 30 * time.Millisecond})
	fetcher := &countingFetcher{value: "v"}
	rec := newRecorder()

	_, sub := cache.Subscribe(listKey, fetcher.Fetch, rec.Listen)
	rec.waitFor(t, settled)
	sub.Release()

	// resubscribing inside the grace period keeps the entry
	snapshot, again := cache.Subscribe(listKey, fetcher.Fetch, nil)
	assert.Equal(t, StatusFresh, snapshot.Status)
	time.Sleep(60 * time.Millisecond)
	_, ok := cache.Read(listKey)
	require.True(t, ok)
	assert.Equal(t, int32(1), fetcher.calls.Load())

	again.Release()
	require.Eventually(t, func() bool {
		_, ok := cache.Read(listKey)
		return !ok
	}, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(cache.metrics.evictions))
	assert.Equal(t, float64(0), testutil.ToFloat64(cache.metrics.entries))
}

func TestEvictionWaitsForInFlightFetch(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{EvictionGrace: 10 * time.Millisecond})
	fetcher := newGatedFetcher()

	_, sub := cache.Subscribe(listKey, fetcher.Fetch, nil)
	fetcher.waitStarted(t)
	sub.Release()

	time.Sleep(40 * time.Millisecond)
	snapshot, ok := cache.Read(listKey)
	require.True(t, ok, "loading entries are never evicted")
	assert.Equal(t, StatusLoading, snapshot.Status)

	fetcher.resolve(t, "done")
	require.Eventually(t, func() bool {
		_, ok := cache.Read(listKey)
		return !ok
	}, waitTimeout, 5*time.Millisecond)
}

func TestListenersRunInSubscriptionOrderWithIncreasingVersions(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := newGatedFetcher()

	var mu sync.Mutex
	var order []string
	var versions []uint64
	listener := func(name string) Listener {
		return func(s Snapshot) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			if name == "first" {
				versions = append(versions, s.Version)
			}
		}
	}

	_, first := cache.Subscribe(listKey, fetcher.Fetch, listener("first"))
	defer first.Release()
	_, second := cache.Subscribe(listKey, fetcher.Fetch, listener("second"))
	defer second.Release()
	_, third := cache.Subscribe(listKey, fetcher.Fetch, listener("third"))
	defer third.Release()

	fetcher.waitStarted(t)
	fetcher.resolve(t, "v1")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, waitTimeout, 5*time.Millisecond)

	cache.Invalidate(GroupTasks)
	fetcher.waitStarted(t)
	fetcher.resolve(t, "v2")
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 9
	}, waitTimeout, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third", "first", "second", "third", "first", "second", "third"}, order)
	require.Len(t, versions, 3)
	assert.Less(t, versions[0], versions[1])
	assert.Less(t, versions[1], versions[2])
}

func TestListenerMayCallBackIntoCache(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	fetcher := &countingFetcher{value: "v"}
	done := make(chan Snapshot, 1)

	_, sub := cache.Subscribe(listKey, fetcher.Fetch, func(s Snapshot) {
		if !s.Settled() {
			return
		}
		read, _ := cache.Read(listKey)
		done <- read
	})
	defer sub.Release()

	select {
	case read := <-done:
		assert.Equal(t, "v", read.Data)
	case <-time.After(waitTimeout):
		t.Fatal("listener did not run")
	}
}

func TestClearDropsUnsubscribedAndStalesTheRest(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})
	list := &countingFetcher{value: "list"}
	summary := &countingFetcher{value: "summary"}

	listRec, summaryRec := newRecorder(), newRecorder()
	_, listSub := cache.Subscribe(listKey, list.Fetch, listRec.Listen)
	defer listSub.Release()
	_, summarySub := cache.Subscribe(analyticsKey, summary.Fetch, summaryRec.Listen)
	listRec.waitFor(t, settled)
	summaryRec.waitFor(t, settled)
	summarySub.Release()

	cache.Clear()

	_, ok := cache.Read(analyticsKey)
	assert.False(t, ok)

	stale := listRec.waitFor(t, settled)
	assert.Equal(t, StatusStale, stale.Status)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), list.calls.Load())
}

func TestCloseCancelsFetchesAndRejectsSubscriptions(t *testing.T) {
	t.Parallel()

	cache, err := New(Options{})
	require.NoError(t, err)

	canceled := make(chan error, 1)
	_, sub := cache.Subscribe(listKey, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		canceled <- ctx.Err()
		return nil, ctx.Err()
	}, nil)

	cache.Close()
	cache.Close()

	select {
	case err := <-canceled:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitTimeout):
		t.Fatal("fetch context was not canceled")
	}
	sub.Release()

	snapshot, closedSub := cache.Subscribe(listKey, (&countingFetcher{}).Fetch, nil)
	assert.ErrorIs(t, snapshot.Err, ErrClosed)
	assert.NotPanics(t, closedSub.Release)

	_, ok := cache.Read(listKey)
	assert.False(t, ok)
}

func TestSubscribeWithoutFetcherReportsError(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t, Options{})

	snapshot, sub := cache.Subscribe(listKey, nil, nil)
	defer sub.Release()

	assert.Equal(t, StatusError, snapshot.Status)
	assert.ErrorIs(t, snapshot.Err, ErrNoFetcher)
}

func TestNewRegistersMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	cache, err := New(Options{Registerer: registry})
	require.NoError(t, err)
	defer cache.Close()

	count, err := testutil.GatherAndCount(registry, "taskflow_querycache_entries")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = New(Options{Registerer: registry})
	assert.Error(t, err, "registering the same collectors twice must fail")
}

func TestKindGroups(t *testing.T) {
	assert.Equal(t, GroupTasks, KindTasks.Group())
	assert.Equal(t, GroupTasks, KindTask.Group())
	assert.Equal(t, GroupAnalytics, KindAnalytics.Group())
	assert.Equal(t, "tasks?page=1", listKey.String())
	assert.Equal(t, "analytics", analyticsKey.String())
}

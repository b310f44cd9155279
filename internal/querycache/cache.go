// Package querycache keeps remote read results keyed by resource and
// parameters, deduplicates concurrent fetches and refetches invalidated
// entries that still have subscribers.
package querycache

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bnema/taskflow-cli/internal/ports"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultEvictionGrace     = 5 * time.Second
	DefaultAnalyticsStaleFor = 2 * time.Minute
)

var (
	ErrClosed    = errors.New("query cache closed")
	ErrNoFetcher = errors.New("no fetcher registered for key")
)

type Fetcher func(ctx context.Context) (any, error)

// Listener receives every state change of the entry it subscribed to. It is
// called without the cache lock held and may call back into the cache.
type Listener func(Snapshot)

type Options struct {
	// StaleTimes overrides the freshness window per kind. Kinds not listed
	// are stale as soon as they are fetched.
	StaleTimes    map[Kind]time.Duration
	EvictionGrace time.Duration
	Clock         ports.Clock
	Logger        *slog.Logger
	Registerer    prometheus.Registerer
}

func DefaultStaleTimes() map[Kind]time.Duration {
	return map[Kind]time.Duration{
		KindTasks:     0,
		KindTask:      0,
		KindAnalytics: DefaultAnalyticsStaleFor,
	}
}

type Cache struct {
	mu         sync.Mutex
	entries    map[Key]*entry
	closed     bool
	nextSubID  uint64
	staleTimes map[Kind]time.Duration
	grace      time.Duration
	clock      ports.Clock
	logger     *slog.Logger
	metrics    *cacheMetrics
	ctx        context.Context
	cancel     context.CancelFunc
}

type entry struct {
	key       Key
	status    Status
	data      any
	err       error
	fetchedAt time.Time
	staleAt   time.Time
	requestID string
	version   uint64
	fetcher   Fetcher
	subs      []*Subscription
	// invalidated marks a loading entry whose in-flight result predates an
	// invalidation.
	invalidated bool

	evictTimer    *time.Timer
	evictGen      uint64
	evictOnSettle bool
}

type notification struct {
	listeners []Listener
	snapshot  Snapshot
}

func New(opts Options) (*Cache, error) {
	metrics, err := newCacheMetrics(opts.Registerer, "cli")
	if err != nil {
		return nil, err
	}

	staleTimes := DefaultStaleTimes()
	for kind, ttl := range opts.StaleTimes {
		staleTimes[kind] = ttl
	}

	c := &Cache{
		entries:    make(map[Key]*entry),
		staleTimes: staleTimes,
		grace:      opts.EvictionGrace,
		clock:      opts.Clock,
		logger:     opts.Logger,
		metrics:    metrics,
	}
	if c.grace <= 0 {
		c.grace = DefaultEvictionGrace
	}
	if c.clock == nil {
		c.clock = ports.SystemClock{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	return c, nil
}

// Subscribe registers listener on key and returns the entry's current state.
// The first subscription to an unknown key, or to a stale or failed entry
// with no fetch in flight, starts exactly one fetch.
func (c *Cache) Subscribe(key Key, fetcher Fetcher, listener Listener) (Snapshot, *Subscription) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{Key: key, Status: StatusError, Err: ErrClosed}, &Subscription{}
	}

	now := c.clock.Now()
	e, ok := c.entries[key]
	if !ok {
		e = &entry{key: key}
		c.entries[key] = e
		c.metrics.updateEntries(len(c.entries))
	}
	c.cancelEvictionLocked(e)
	if fetcher != nil {
		e.fetcher = fetcher
	}

	existing := e.listeners()
	c.nextSubID++
	sub := &Subscription{cache: c, entry: e, id: c.nextSubID, listener: listener}
	e.subs = append(e.subs, sub)

	var notes []notification
	switch c.effectiveStatus(e, now) {
	case StatusLoading, StatusFresh:
		c.metrics.hits.Inc()
	default:
		c.metrics.misses.Inc()
		c.startFetchLocked(e)
		if len(existing) > 0 {
			notes = append(notes, notification{listeners: existing, snapshot: c.snapshotLocked(e, now)})
		}
	}

	snapshot := c.snapshotLocked(e, now)
	c.mu.Unlock()

	deliver(notes)
	return snapshot, sub
}

// Read peeks at an entry without subscribing or fetching.
func (c *Cache) Read(key Key) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Snapshot{Key: key, Status: StatusEmpty}, false
	}
	return c.snapshotLocked(e, c.clock.Now()), true
}

// Invalidate marks every entry of the given groups stale and refetches the
// ones that have subscribers. A loading entry is flagged instead so its
// result is stored stale and followed by one more fetch.
func (c *Cache) Invalidate(groups ...Group) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	var notes []notification
	for _, e := range c.entries {
		if !slices.Contains(groups, e.key.Kind.Group()) {
			continue
		}
		c.metrics.invalidations.Inc()

		if e.status == StatusLoading {
			e.invalidated = true
			continue
		}
		c.markStaleLocked(e, now)
		if len(e.subs) == 0 {
			continue
		}
		c.startFetchLocked(e)
		notes = append(notes, notification{listeners: e.listeners(), snapshot: c.snapshotLocked(e, now)})
	}
	c.mu.Unlock()

	c.logger.Debug("query cache invalidated", "groups", groups)
	deliver(notes)
}

// Refetch forces a fetch of a subscribed entry. It reports whether a fetch
// was started.
func (c *Cache) Refetch(key Key) bool {
	c.mu.Lock()
	e, ok := c.entries[key]
	if c.closed || !ok || len(e.subs) == 0 || e.status == StatusLoading {
		c.mu.Unlock()
		return false
	}

	now := c.clock.Now()
	c.startFetchLocked(e)
	notes := []notification{{listeners: e.listeners(), snapshot: c.snapshotLocked(e, now)}}
	c.mu.Unlock()

	deliver(notes)
	return true
}

// Clear drops unsubscribed entries and marks the rest stale without
// refetching them.
func (c *Cache) Clear() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	now := c.clock.Now()
	var notes []notification
	for key, e := range c.entries {
		if len(e.subs) == 0 {
			c.cancelEvictionLocked(e)
			delete(c.entries, key)
			continue
		}
		if e.status == StatusLoading {
			e.invalidated = true
			continue
		}
		if c.markStaleLocked(e, now) {
			notes = append(notes, notification{listeners: e.listeners(), snapshot: c.snapshotLocked(e, now)})
		}
	}
	c.metrics.updateEntries(len(c.entries))
	c.mu.Unlock()

	deliver(notes)
}

// Close cancels in-flight fetches and stops eviction timers. Results that
// arrive afterwards are discarded.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	for _, e := range c.entries {
		c.cancelEvictionLocked(e)
	}
	c.entries = make(map[Key]*entry)
	c.metrics.updateEntries(0)
}

func (c *Cache) startFetchLocked(e *entry) {
	if e.fetcher == nil {
		e.status = StatusError
		e.err = ErrNoFetcher
		e.version++
		return
	}

	e.requestID = uuid.NewString()
	e.status = StatusLoading
	e.version++
	c.metrics.fetches.Inc()

	requestID := e.requestID
	fetch := e.fetcher
	c.logger.Debug("query cache fetch", "key", e.key.String(), "request_id", requestID)

	go func() {
		data, err := fetch(c.ctx)
		c.complete(e, requestID, data, err)
	}()
}

func (c *Cache) complete(e *entry, requestID string, data any, err error) {
	c.mu.Lock()
	if c.closed || c.entries[e.key] != e || e.requestID != requestID {
		c.mu.Unlock()
		c.logger.Debug("query cache discarded result", "key", e.key.String(), "request_id", requestID)
		return
	}

	now := c.clock.Now()
	e.requestID = ""
	e.version++
	if err != nil {
		e.status = StatusError
		e.err = err
		c.metrics.fetchErrors.Inc()
		c.logger.Debug("query cache fetch failed", "key", e.key.String(), "request_id", requestID, "error", err)
	} else {
		e.status = StatusFresh
		e.data = data
		e.err = nil
		e.fetchedAt = now
		e.staleAt = now.Add(c.staleTimes[e.key.Kind])
	}

	if e.invalidated {
		e.invalidated = false
		c.markStaleLocked(e, now)
		if len(e.subs) > 0 {
			c.startFetchLocked(e)
		}
	}

	var notes []notification
	if len(e.subs) > 0 {
		notes = append(notes, notification{listeners: e.listeners(), snapshot: c.snapshotLocked(e, now)})
	} else if e.evictOnSettle {
		e.evictOnSettle = false
		c.scheduleEvictionLocked(e)
	}
	c.mu.Unlock()

	deliver(notes)
}

// markStaleLocked downgrades a fresh entry. It reports whether the status
// changed.
func (c *Cache) markStaleLocked(e *entry, now time.Time) bool {
	if e.status != StatusFresh {
		return false
	}
	e.status = StatusStale
	e.version++
	if e.staleAt.After(now) {
		e.staleAt = now
	}
	if e.staleAt.Before(e.fetchedAt) {
		e.staleAt = e.fetchedAt
	}
	return true
}

func (c *Cache) effectiveStatus(e *entry, now time.Time) Status {
	if e.status == StatusFresh && !now.Before(e.staleAt) {
		return StatusStale
	}
	return e.status
}

func (c *Cache) snapshotLocked(e *entry, now time.Time) Snapshot {
	return Snapshot{
		Key:               e.key,
		Status:            c.effectiveStatus(e, now),
		Data:              e.data,
		Err:               e.err,
		FetchedAt:         e.fetchedAt,
		StaleAt:           e.staleAt,
		InFlightRequestID: e.requestID,
		Version:           e.version,
	}
}

func (c *Cache) scheduleEvictionLocked(e *entry) {
	c.cancelEvictionLocked(e)

	gen := e.evictGen
	e.evictTimer = time.AfterFunc(c.grace, func() {
		c.evict(e, gen)
	})
}

func (c *Cache) cancelEvictionLocked(e *entry) {
	if e.evictTimer != nil {
		e.evictTimer.Stop()
		e.evictTimer = nil
	}
	e.evictGen++
	e.evictOnSettle = false
}

func (c *Cache) evict(e *entry, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.entries[e.key] != e || e.evictGen != gen || len(e.subs) > 0 {
		return
	}
	e.evictTimer = nil
	if e.status == StatusLoading {
		e.evictOnSettle = true
		return
	}

	delete(c.entries, e.key)
	c.metrics.evictions.Inc()
	c.metrics.updateEntries(len(c.entries))
	c.logger.Debug("query cache evicted", "key", e.key.String())
}

func (e *entry) listeners() []Listener {
	listeners := make([]Listener, 0, len(e.subs))
	for _, sub := range e.subs {
		if sub.listener != nil {
			listeners = append(listeners, sub.listener)
		}
	}
	return listeners
}

func deliver(notes []notification) {
	for _, note := range notes {
		for _, listener := range note.listeners {
			listener(note.snapshot)
		}
	}
}

// Subscription is a reference to a cache entry. Release it when the
// consumer no longer needs updates.
type Subscription struct {
	cache    *Cache
	entry    *entry
	id       uint64
	listener Listener
	released bool
}

func (s *Subscription) Key() Key {
	if s == nil || s.entry == nil {
		return Key{}
	}
	return s.entry.key
}

// Release is idempotent. When the last subscription of an entry is released
// the entry is evicted after the grace period unless resubscribed.
func (s *Subscription) Release() {
	if s == nil || s.cache == nil {
		return
	}

	c := s.cache
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.released {
		return
	}
	s.released = true

	e := s.entry
	e.subs = slices.DeleteFunc(e.subs, func(other *Subscription) bool { return other == s })
	if len(e.subs) == 0 && !c.closed && c.entries[e.key] == e {
		c.scheduleEvictionLocked(e)
	}
}

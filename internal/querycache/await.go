package querycache

import (
	"context"
	"errors"
)

// Await subscribes to key, waits for the first settled state and releases
// the subscription. The returned error is the fetch error when the entry
// settled in StatusError.
//
// Each observer sees the initial snapshot and every later state change until
// Await returns. Observers run on the cache's notifying goroutine and must
// not block.
func Await(ctx context.Context, cache *Cache, key Key, fetcher Fetcher, observers ...Listener) (Snapshot, error) {
	updates := make(chan Snapshot, 1)
	snapshot, sub := cache.Subscribe(key, fetcher, func(next Snapshot) {
		notify(observers, next)
		if !next.Settled() {
			return
		}
		select {
		case updates <- next:
		default:
		}
	})
	defer sub.Release()

	notify(observers, snapshot)
	if errors.Is(snapshot.Err, ErrClosed) {
		return snapshot, ErrClosed
	}
	if snapshot.Settled() {
		return snapshot, settledErr(snapshot)
	}

	select {
	case next := <-updates:
		return next, settledErr(next)
	case <-ctx.Done():
		return snapshot, ctx.Err()
	}
}

func notify(observers []Listener, snapshot Snapshot) {
	for _, observe := range observers {
		if observe != nil {
			observe(snapshot)
		}
	}
}

func settledErr(snapshot Snapshot) error {
	if snapshot.Status == StatusError {
		return snapshot.Err
	}
	return nil
}

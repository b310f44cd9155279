package cmd

import (
	"sync"

	"github.com/bnema/taskflow-cli/internal/querycache"
	tea "github.com/charmbracelet/bubbletea"
)

type snapshotsMsg []querycache.Snapshot

// snapshotQueue carries cache notifications into a bubbletea program. push
// never blocks, so it can be handed to the cache as a listener even when the
// cache notifies from inside Update.
type snapshotQueue struct {
	mu      sync.Mutex
	pending []querycache.Snapshot

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSnapshotQueue() *snapshotQueue {
	return &snapshotQueue{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (q *snapshotQueue) push(snapshot querycache.Snapshot) {
	q.mu.Lock()
	q.pending = append(q.pending, snapshot)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// drain returns everything queued since the last drain, oldest first.
func (q *snapshotQueue) drain() snapshotsMsg {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := q.pending
	q.pending = nil
	return snapshotsMsg(batch)
}

// next is a tea.Cmd. It waits for queued snapshots and yields nil once the
// queue is closed. Models re-issue it after every snapshotsMsg.
func (q *snapshotQueue) next() tea.Msg {
	select {
	case <-q.ready:
		return q.drain()
	case <-q.done:
		return nil
	}
}

func (q *snapshotQueue) close() {
	q.closeOnce.Do(func() { close(q.done) })
}

// newer reports whether next should replace current. Notifications from
// different fetch goroutines can arrive out of order.
func newer(current querycache.Snapshot, next querycache.Snapshot) bool {
	return next.Version >= current.Version
}

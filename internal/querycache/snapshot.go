package querycache

import "time"

type Status int

const (
	StatusEmpty Status = iota
	StatusLoading
	StatusFresh
	StatusStale
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusLoading:
		return "loading"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable view of one entry. Data keeps the last good
// value while loading or after a failed revalidation.
type Snapshot struct {
	Key               Key
	Status            Status
	Data              any
	Err               error
	FetchedAt         time.Time
	StaleAt           time.Time
	InFlightRequestID string
	Version           uint64
}

func (s Snapshot) HasData() bool {
	return !s.FetchedAt.IsZero()
}

// Settled is true once no fetch is pending for the entry.
func (s Snapshot) Settled() bool {
	return s.Status == StatusFresh || s.Status == StatusStale || s.Status == StatusError
}

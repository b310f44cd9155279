package querycache

import "github.com/prometheus/client_golang/prometheus"

type cacheMetrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	fetches       prometheus.Counter
	fetchErrors   prometheus.Counter
	invalidations prometheus.Counter
	evictions     prometheus.Counter

	entries prometheus.Gauge
}

func newCacheMetrics(registerer prometheus.Registerer, component string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"component": component}
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskflow",
			Subsystem:   "querycache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Subscriptions served from a fresh or in-flight entry",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskflow",
			Subsystem:   "querycache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Subscriptions that had to start a fetch",
		}),
		fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskflow",
			Subsystem:   "querycache",
			Name:        "fetches_total",
			ConstLabels: labels,
			Help:        "Fetches started",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskflow",
			Subsystem:   "querycache",
			Name:        "fetch_errors_total",
			ConstLabels: labels,
			Help:        "Fetches that completed with an error",
		}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskflow",
			Subsystem:   "querycache",
			Name:        "invalidations_total",
			ConstLabels: labels,
			Help:        "Entries marked stale by group invalidation",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "taskflow",
			Subsystem:   "querycache",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Entries evicted after their grace period",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "taskflow",
			Subsystem:   "querycache",
			Name:        "entries",
			ConstLabels: labels,
			Help:        "Current number of cache entries",
		}),
	}

	if registerer == nil {
		return m, nil
	}

	for _, collector := range []prometheus.Collector{m.hits, m.misses, m.fetches, m.fetchErrors, m.invalidations, m.evictions, m.entries} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *cacheMetrics) updateEntries(size int) {
	m.entries.Set(float64(size))
}

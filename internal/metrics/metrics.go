package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	FanoutEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "fanout_events_total",
		Help:      "Fan-out events handled by the consumer, by outcome (acked, dropped, retry)",
	}, []string{"result"})

	EntriesWritten = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "entries_written_total",
		Help:      "Timeline entries upserted by the push path",
	}, []string{"strategy"})

	Reads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "reads_total",
		Help:      "Timeline reads, by strategy and outcome (ok, degraded, error)",
	}, []string{"strategy", "result"})

	PostsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "posts_published_total",
		Help:      "Posts accepted by the publisher, by fan-out mode (queued, skipped)",
	}, []string{"mode"})

	FetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "timeline",
		Name:      "fetch_author_duration_seconds",
		Help:      "Duration of one per-author post query in the fetch engine",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	FetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "timeline",
		Name:      "fetch_author_failures_total",
		Help:      "Per-author post queries that failed",
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		FanoutEvents,
		EntriesWritten,
		Reads,
		PostsPublished,
		FetchDuration,
		FetchFailures,
	}
}

// Register adds every timeline collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

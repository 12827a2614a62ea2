package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/steveyegge/taskql/internal/query"
)

var (
	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "taskql",
		Subsystem: "engine",
		Name:      "execution_seconds",
		Help:      "Time spent filtering, sorting, limiting, and grouping.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"grouped"})

	tasksMatched = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "taskql",
		Subsystem: "engine",
		Name:      "tasks_matched",
		Help:      "Tasks that passed the filters, before the limit.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "taskql",
		Subsystem: "engine",
		Name:      "cached_runs_total",
		Help:      "CachedRunner runs by outcome.",
	}, []string{"outcome"})
)

func observeExecution(ast *query.AST, r *Result) {
	grouped := "false"
	if ast.Group != nil {
		grouped = "true"
	}
	queryDuration.WithLabelValues(grouped).Observe(r.ExecutionTime.Seconds())
	tasksMatched.Observe(float64(r.TotalCount))
}

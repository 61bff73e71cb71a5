package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crickql_questions_total",
			Help: "Total number of questions accepted into the pipeline.",
		},
	)
	questionsAnsweredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crickql_questions_answered_total",
			Help: "Total number of questions that reached a final answer.",
		},
	)
	stageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crickql_stage_failures_total",
			Help: "Pipeline stage failures by stage and failure kind.",
		},
		[]string{"stage", "kind"},
	)
	guardRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crickql_guard_rejections_total",
			Help: "Queries rejected by the read-only execution guard.",
		},
	)
	modelCallSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crickql_model_call_seconds",
			Help:    "Language model call latency by stage and model.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"stage", "model"},
	)
	queryExecutionSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crickql_query_execution_seconds",
			Help:    "Store query execution latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
		},
	)
	schemaRefreshTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crickql_schema_refresh_total",
			Help: "Explicit schema descriptor cache invalidations.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		questionsAnsweredTotal,
		stageFailuresTotal,
		guardRejectionsTotal,
		modelCallSeconds,
		queryExecutionSeconds,
		schemaRefreshTotal,
	)
}

func ObserveQuestion() {
	questionsTotal.Inc()
}

func ObserveAnswered() {
	questionsAnsweredTotal.Inc()
}

func ObserveStageFailure(stage, kind string) {
	stageFailuresTotal.WithLabelValues(stage, kind).Inc()
}

func ObserveGuardRejection() {
	guardRejectionsTotal.Inc()
}

func ObserveModelCall(stage, model string, elapsed time.Duration) {
	modelCallSeconds.WithLabelValues(stage, model).Observe(elapsed.Seconds())
}

func ObserveQueryExecution(elapsed time.Duration) {
	queryExecutionSeconds.Observe(elapsed.Seconds())
}

func ObserveSchemaRefresh() {
	schemaRefreshTotal.Inc()
}

package risk

import "github.com/prometheus/client_golang/prometheus"

var (
	pipelineRuns     *prometheus.CounterVec
	pipelineDuration prometheus.Histogram
	sessionStudents  prometheus.Gauge
	explanations     *prometheus.CounterVec
)

func init() {
	pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "risk",
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs",
		},
		[]string{"result"}, // result: success, failure
	)
	prometheus.MustRegister(pipelineRuns)

	pipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Subsystem: "risk",
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of successful pipeline runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
	prometheus.MustRegister(pipelineDuration)

	sessionStudents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Subsystem: "risk",
			Name:      "session_students",
			Help:      "Number of students in the current session",
		},
	)
	prometheus.MustRegister(sessionStudents)

	explanations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "risk",
			Name:      "explanations_total",
			Help:      "Total number of student explanations requested",
		},
		[]string{"result"}, // result: success, not_processed, not_found
	)
	prometheus.MustRegister(explanations)
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

// Task queue Prometheus metrics.
var (
	QueueTasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "queue_tasks_total",
			Help:      "Queue tasks by action and outcome",
		},
		[]string{"action", "status"}, // status: "enqueued" / "ok" / "error" / "invalid"
	)

	QueueTaskDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "queue_task_duration_seconds",
			Help:      "Queue task execution time in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"action"},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "queue_depth",
			Help:      "Tasks waiting in the queue after the last drain",
		},
	)

	DrainBusyTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "drain_busy_total",
			Help:      "Drain calls dropped because the lease was held",
		},
	)
)

var queueMetricsRegistered bool

// RegisterQueueMetrics registers task queue metrics. Must be called once from main.
func RegisterQueueMetrics() {
	if queueMetricsRegistered {
		return
	}
	prometheus.MustRegister(QueueTasksTotal)
	prometheus.MustRegister(QueueTaskDuration)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(DrainBusyTotal)
	queueMetricsRegistered = true
}

package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Регистрируются в глобальном реестре Prometheus;
// сервисы отдают их через promhttp на /metrics.
var (
	// runsTotal — количество завершённых flow runs по статусу.
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "flow_runs_total",
		Help:      "Number of finished flow runs by terminal status.",
	}, []string{"status"})

	// runDuration — длительность flow runs.
	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conductor",
		Name:      "flow_run_duration_seconds",
		Help:      "Wall-clock duration of finished flow runs.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	// tasksTotal — количество задач, достигших терминального статуса.
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conductor",
		Name:      "task_runs_total",
		Help:      "Number of task runs by terminal status.",
	}, []string{"status"})

	// taskDuration — длительность выполнения задач.
	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conductor",
		Name:      "task_run_duration_seconds",
		Help:      "Wall-clock duration of executed tasks.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
	})
)

// ObserveRun учитывает завершённый flow run.
func ObserveRun(status string, duration time.Duration) {
	runsTotal.WithLabelValues(status).Inc()
	runDuration.Observe(duration.Seconds())
}

// ObserveTask учитывает задачу, достигшую терминального статуса.
// Для SKIPPED длительность не наблюдается.
func ObserveTask(status string, duration time.Duration) {
	tasksTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		taskDuration.Observe(duration.Seconds())
	}
}

package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "iprisk"

var (
	registry = prometheus.NewRegistry()

	stageStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_started_total",
		Help:      "Total pipeline stage executions started",
	}, []string{"stage"})

	stageCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_completed_total",
		Help:      "Total pipeline stage executions completed successfully",
	}, []string{"stage"})

	stageFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_failed_total",
		Help:      "Total pipeline stage executions that failed",
	}, []string{"stage"})

	stageSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duplicate_total",
		Help:      "Duplicate stage deliveries skipped by the idempotency guard",
	}, []string{"stage"})

	stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "pipeline",
		Name:      "stage_duration_ms",
		Help:      "Pipeline stage duration in milliseconds",
		Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000},
	}, []string{"stage"})

	externalRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "external",
		Name:      "retries_total",
		Help:      "Retried external calls by provider",
	}, []string{"provider"})

	providerFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "external",
		Name:      "provider_fallbacks_total",
		Help:      "Generation calls that fell back from a failed provider",
	}, []string{"from"})

	notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "delivery",
		Name:      "notifications_total",
		Help:      "Notification attempts by result (sent, skipped, failed)",
	}, []string{"result"})

	tasksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "tasks_received_total",
		Help:      "Stage tasks received from the queue",
	}, []string{"stage"})

	tasksDeletedUnrecoverable = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "worker",
		Name:      "tasks_deleted_unrecoverable_total",
		Help:      "Queue messages deleted because they could not be parsed",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		stageStarted,
		stageCompleted,
		stageFailed,
		stageSkipped,
		stageDuration,
		externalRetries,
		providerFallbacks,
		notifications,
		tasksReceived,
		tasksDeletedUnrecoverable,
	)
}

// IncStageStarted increments the started counter for stage.
func IncStageStarted(stage string) {
	stageStarted.WithLabelValues(stage).Inc()
}

// IncStageCompleted increments the completed counter for stage.
func IncStageCompleted(stage string) {
	stageCompleted.WithLabelValues(stage).Inc()
}

// IncStageFailed increments the failed counter for stage.
func IncStageFailed(stage string) {
	stageFailed.WithLabelValues(stage).Inc()
}

// IncStageDuplicate counts a duplicate delivery skipped for stage.
func IncStageDuplicate(stage string) {
	stageSkipped.WithLabelValues(stage).Inc()
}

// ObserveStageDurationMs records a stage duration in milliseconds.
func ObserveStageDurationMs(stage string, value float64) {
	if value < 0 {
		value = 0
	}
	stageDuration.WithLabelValues(stage).Observe(value)
}

// IncExternalRetry counts one retry of an external call.
func IncExternalRetry(provider string) {
	externalRetries.WithLabelValues(provider).Inc()
}

// IncProviderFallback counts a fallback away from provider.
func IncProviderFallback(from string) {
	providerFallbacks.WithLabelValues(from).Inc()
}

// IncNotification counts a notification outcome.
func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// IncTasksReceived counts a task pulled from a stage queue.
func IncTasksReceived(stage string) {
	tasksReceived.WithLabelValues(stage).Inc()
}

// IncTasksDeletedUnrecoverable counts a poison message dropped by the worker.
func IncTasksDeletedUnrecoverable() {
	tasksDeletedUnrecoverable.Inc()
}

// Registry exposes the metrics registry, mainly for tests.
func Registry() *prometheus.Registry {
	return registry
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

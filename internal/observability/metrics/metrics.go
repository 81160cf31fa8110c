// Package metrics registers and exposes Prometheus metrics for the
// real-time telemetry pipeline.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "solaris_"

	// ResultSuccess labels a successful pipeline step.
	ResultSuccess = "success"
	// ResultError labels a failed pipeline step.
	ResultError = "error"
)

var (
	registerOnce sync.Once

	ingestMessages *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	appendLatency  *prometheus.HistogramVec

	broadcastEvents   *prometheus.CounterVec
	observersGauge    prometheus.Gauge
	observersDropped  prometheus.Counter
	alertsTotal       *prometheus.CounterVec
	alertsSuppressed  *prometheus.CounterVec
	scorerFailures    prometheus.Counter
	deviceConnections *prometheus.CounterVec
)

// Init registers all pipeline metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		ingestMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_messages_total",
				Help: "Total device messages by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		appendLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "store_append_latency_seconds",
				Help:    "Telemetry store append latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		broadcastEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_events_total",
				Help: "Total broadcast events by type",
			},
			[]string{"type"},
		)
		observersGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "observers",
				Help: "Currently connected observer sessions",
			},
		)
		observersDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "observers_dropped_total",
				Help: "Observer sessions dropped for falling behind",
			},
		)

		alertsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_total",
				Help: "Admitted alerts by kind and severity",
			},
			[]string{"kind", "severity"},
		)
		alertsSuppressed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alerts_suppressed_total",
				Help: "Alert candidates suppressed by cooldown, by kind",
			},
			[]string{"kind"},
		)
		scorerFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "scorer_failures_total",
				Help: "Scorer invocations that returned an error",
			},
		)

		deviceConnections = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "device_connections_total",
				Help: "Device connection lifecycle events",
			},
			[]string{"event"},
		)

		prometheus.MustRegister(
			ingestMessages,
			ingestErrors,
			appendLatency,
			broadcastEvents,
			observersGauge,
			observersDropped,
			alertsTotal,
			alertsSuppressed,
			scorerFailures,
			deviceConnections,
		)
	})
}

// IncIngestMessage counts one processed device message by result.
func IncIngestMessage(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if ingestMessages != nil {
		ingestMessages.WithLabelValues(result).Inc()
	}
}

// IncIngestError counts one ingest error by reason.
func IncIngestError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if ingestErrors != nil {
		ingestErrors.WithLabelValues(reason).Inc()
	}
}

// ObserveAppend records store append latency and result.
func ObserveAppend(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if appendLatency != nil {
		appendLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncBroadcastEvent counts one published event by type.
func IncBroadcastEvent(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if broadcastEvents != nil {
		broadcastEvents.WithLabelValues(eventType).Inc()
	}
}

// SetObservers sets the connected observer gauge.
func SetObservers(count int) {
	if observersGauge != nil {
		observersGauge.Set(float64(count))
	}
}

// IncObserverDropped counts an observer dropped for being slow or dead.
func IncObserverDropped() {
	if observersDropped != nil {
		observersDropped.Inc()
	}
}

// IncAlert counts one admitted alert.
func IncAlert(kind, severity string) {
	if alertsTotal != nil {
		alertsTotal.WithLabelValues(kind, severity).Inc()
	}
}

// IncAlertSuppressed counts one candidate suppressed by cooldown.
func IncAlertSuppressed(kind string) {
	if alertsSuppressed != nil {
		alertsSuppressed.WithLabelValues(kind).Inc()
	}
}

// IncScorerFailure counts one failed scorer invocation.
func IncScorerFailure() {
	if scorerFailures != nil {
		scorerFailures.Inc()
	}
}

// IncDeviceConnection counts a device connect/close event.
func IncDeviceConnection(event string) {
	if event == "" {
		event = "unknown"
	}
	if deviceConnections != nil {
		deviceConnections.WithLabelValues(event).Inc()
	}
}

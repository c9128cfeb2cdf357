package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector application metrics on a private registry
type MetricsCollector struct {
	registry *prometheus.Registry

	// HTTP
	httpRequestTotal    *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// catalog sync
	syncOperationTotal *prometheus.CounterVec
	syncDuration       *prometheus.HistogramVec
	syncReportTotal    *prometheus.CounterVec

	// sharing and engagement
	shareTotal      *prometheus.CounterVec
	clickTotal      *prometheus.CounterVec
	engagementTotal *prometheus.CounterVec
	webhookTotal    *prometheus.CounterVec

	// queue and resilience
	queueMessageTotal *prometheus.CounterVec
	queuePending      *prometheus.GaugeVec
	breakerState      *prometheus.GaugeVec
}

// NewMetricsCollector creates a collector with Go runtime and process collectors registered
func NewMetricsCollector(namespace string) *MetricsCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mc := &MetricsCollector{registry: reg}
	mc.initMetrics(promauto.With(reg), namespace)
	return mc
}

func (mc *MetricsCollector) initMetrics(f promauto.Factory, ns string) {
	mc.httpRequestTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	mc.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	mc.syncOperationTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sync_operations_total",
			Help:      "Per-platform catalog sync outcomes",
		},
		[]string{"operation", "platform", "outcome"},
	)

	mc.syncDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "sync_duration_seconds",
			Help:      "Duration of per-platform catalog sync calls",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation", "platform"},
	)

	mc.syncReportTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sync_reports_total",
			Help:      "Fan-out sync reports by summary status",
		},
		[]string{"operation", "status"},
	)

	mc.shareTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "shares_total",
			Help:      "Share attempts by platform and outcome",
		},
		[]string{"platform", "outcome"},
	)

	mc.clickTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "share_clicks_total",
			Help:      "Share link clicks by outcome",
		},
		[]string{"outcome"},
	)

	mc.engagementTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "engagement_events_total",
			Help:      "Engagement events by metric type and outcome",
		},
		[]string{"metric_type", "outcome"},
	)

	mc.webhookTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "webhook_events_total",
			Help:      "Inbound webhook deliveries",
		},
		[]string{"platform", "object", "outcome"},
	)

	mc.queueMessageTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "queue_messages_total",
			Help:      "Queue messages by topic and status",
		},
		[]string{"topic", "status"},
	)

	mc.queuePending = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "queue_pending_messages",
			Help:      "Messages buffered but not yet delivered",
		},
		[]string{"topic"},
	)

	mc.breakerState = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
}

// RecordHTTPRequest records one served request
func (mc *MetricsCollector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	mc.httpRequestTotal.WithLabelValues(method, path, status).Inc()
	mc.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSync records one per-platform sync attempt
func (mc *MetricsCollector) RecordSync(operation, platform, outcome string, duration time.Duration) {
	mc.syncOperationTotal.WithLabelValues(operation, platform, outcome).Inc()
	mc.syncDuration.WithLabelValues(operation, platform).Observe(duration.Seconds())
}

// RecordSyncReport records the summary status of a fan-out
func (mc *MetricsCollector) RecordSyncReport(operation, status string) {
	mc.syncReportTotal.WithLabelValues(operation, status).Inc()
}

// RecordShare records a share attempt
func (mc *MetricsCollector) RecordShare(platform, outcome string) {
	mc.shareTotal.WithLabelValues(platform, outcome).Inc()
}

// RecordClick records a tracked, duplicate or dropped click
func (mc *MetricsCollector) RecordClick(outcome string) {
	mc.clickTotal.WithLabelValues(outcome).Inc()
}

// RecordEngagement records an engagement event write
func (mc *MetricsCollector) RecordEngagement(metricType, outcome string) {
	mc.engagementTotal.WithLabelValues(metricType, outcome).Inc()
}

// RecordWebhook records an inbound webhook delivery
func (mc *MetricsCollector) RecordWebhook(platform, object, outcome string) {
	mc.webhookTotal.WithLabelValues(platform, object, outcome).Inc()
}

// RecordQueueMessage records a queue publish or delivery
func (mc *MetricsCollector) RecordQueueMessage(topic, status string) {
	mc.queueMessageTotal.WithLabelValues(topic, status).Inc()
}

// UpdateQueuePending sets the pending gauge of a topic
func (mc *MetricsCollector) UpdateQueuePending(topic string, pending int) {
	mc.queuePending.WithLabelValues(topic).Set(float64(pending))
}

// UpdateBreakerState sets the state gauge of a breaker
func (mc *MetricsCollector) UpdateBreakerState(name string, state int) {
	mc.breakerState.WithLabelValues(name).Set(float64(state))
}

// StartCollection runs probes every interval until ctx is done
func (mc *MetricsCollector) StartCollection(ctx context.Context, interval time.Duration, probes ...func(*MetricsCollector)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, probe := range probes {
				probe(mc)
			}
		}
	}
}

// Registry returns the registry metrics are registered on
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

// Handler serves the registry in the Prometheus exposition format
func (mc *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}

package itemapprove

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the orchestrator's request
// lifecycle. All Record methods are safe on a nil receiver.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	debouncedTotal  *prometheus.CounterVec
	supersededTotal *prometheus.CounterVec
	evictedTotal    prometheus.Counter
	trackedKeys     prometheus.Gauge

	errorsTotal        *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	sessionExpired     prometheus.Counter

	buildInfo *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	mc := &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itemapprove_requests_total",
				Help: "Total number of HTTP requests dispatched",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "itemapprove_request_duration_seconds",
				Help:    "Duration of dispatched HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "itemapprove_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		debouncedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itemapprove_debounced_total",
				Help: "Calls coalesced into a later call while waiting for the debounce delay",
			},
			[]string{"method", "endpoint"},
		),
		supersededTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itemapprove_superseded_total",
				Help: "Requests cancelled by a newer call with the same key",
			},
			[]string{"method", "endpoint", "state"},
		),
		evictedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "itemapprove_evicted_total",
				Help: "Requests cancelled by background eviction",
			},
		),
		trackedKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "itemapprove_tracked_keys",
				Help: "Number of request keys currently debouncing or in flight",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itemapprove_errors_total",
				Help: "Total number of classified failures",
			},
			[]string{"type", "method", "endpoint"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "itemapprove_notifications_total",
				Help: "User-visible failure notifications emitted",
			},
			[]string{"type"},
		),
		sessionExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "itemapprove_session_expired_total",
				Help: "Login redirects scheduled after HTTP 401",
			},
		),
		buildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "itemapprove_build_info",
				Help: "Build metadata of the running orchestrator",
			},
			[]string{"version", "commit", "build_date", "go_version"},
		),
	}
	mc.buildInfo.With(GetVersionInfo()).Set(1)
	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordSuperseded counts a request replaced by a newer call with its key.
// Replacements during the debounce wait also count as debounced.
func (mc *MetricsCollector) RecordSuperseded(method, endpoint string, state RequestState) {
	if mc == nil {
		return
	}

	mc.supersededTotal.WithLabelValues(method, endpoint, state.String()).Inc()
	if state == StateDebouncing {
		mc.debouncedTotal.WithLabelValues(method, endpoint).Inc()
	}
}

// RecordEvicted adds n evictions.
func (mc *MetricsCollector) RecordEvicted(n int) {
	if mc == nil {
		return
	}

	mc.evictedTotal.Add(float64(n))
}

// RecordTrackedKeys sets the tracked key gauge.
func (mc *MetricsCollector) RecordTrackedKeys(n int) {
	if mc == nil {
		return
	}

	mc.trackedKeys.Set(float64(n))
}

// RecordError increments error counter by type.
func (mc *MetricsCollector) RecordError(errorType, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(errorType, method, endpoint).Inc()
}

// RecordNotification increments the notification counter.
func (mc *MetricsCollector) RecordNotification(errorType string) {
	if mc == nil {
		return
	}

	mc.notificationsTotal.WithLabelValues(errorType).Inc()
}

// RecordSessionExpired counts a scheduled login redirect.
func (mc *MetricsCollector) RecordSessionExpired() {
	if mc == nil {
		return
	}

	mc.sessionExpired.Inc()
}

// GetRegistry exposes the underlying prometheus registry. It is nil when the
// collector was built on a Registerer that is not a *prometheus.Registry.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	if mc == nil {
		return nil
	}
	return mc.registry
}

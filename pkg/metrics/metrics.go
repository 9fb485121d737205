package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = true

	// Ingestion metrics
	UsageEventsIngested *prometheus.CounterVec
	UsageEventsRejected *prometheus.CounterVec

	// Analysis metrics
	AnalysesTotal       *prometheus.CounterVec
	AnalysisDuration    *prometheus.HistogramVec
	RiskAssessments     *prometheus.CounterVec
	InsightFallbacks    prometheus.Counter
	AnomaliesDetected   *prometheus.CounterVec

	// Real-time metrics
	LiveSessionsActive prometheus.Gauge
	PatternsDetected   *prometheus.CounterVec
	AlertsRaised       *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionErrors  prometheus.Counter
	AMQPConnectionStatus  prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		UsageEventsIngested = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellbeing_usage_events_ingested_total",
				Help: "Total number of usage events accepted for storage",
			},
			[]string{"source"},
		)

		UsageEventsRejected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellbeing_usage_events_rejected_total",
				Help: "Total number of usage events rejected at validation",
			},
			[]string{"reason"},
		)

		AnalysesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellbeing_analyses_total",
				Help: "Total number of user analyses run",
			},
			[]string{"status"},
		)

		AnalysisDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wellbeing_analysis_duration_seconds",
				Help:    "Time taken to run a full user analysis",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"stage"},
		)

		RiskAssessments = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellbeing_risk_assessments_total",
				Help: "Total number of risk assessments by resulting label",
			},
			[]string{"label"},
		)

		InsightFallbacks = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wellbeing_insight_fallbacks_total",
				Help: "Total number of times the local insight fallback was used",
			},
		)

		AnomaliesDetected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellbeing_anomalies_detected_total",
				Help: "Total number of behavioral anomalies detected",
			},
			[]string{"type"},
		)

		LiveSessionsActive = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wellbeing_live_sessions_active",
				Help: "Number of live usage sessions currently tracked",
			},
		)

		PatternsDetected = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellbeing_patterns_detected_total",
				Help: "Total number of real-time usage patterns detected",
			},
			[]string{"type"},
		)

		AlertsRaised = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellbeing_alerts_raised_total",
				Help: "Total number of real-time alerts raised",
			},
			[]string{"type", "priority"},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wellbeing_amqp_published_messages_total",
				Help: "Total number of messages published to AMQP",
			},
			[]string{"exchange"},
		)

		AMQPConnectionErrors = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "wellbeing_amqp_connection_errors_total",
				Help: "Total number of AMQP connection errors",
			},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "wellbeing_amqp_connection_status",
				Help: "AMQP connection status (1 connected, 0 disconnected)",
			},
		)

		registry.MustRegister(
			// Ingestion metrics
			UsageEventsIngested,
			UsageEventsRejected,

			// Analysis metrics
			AnalysesTotal,
			AnalysisDuration,
			RiskAssessments,
			InsightFallbacks,
			AnomaliesDetected,

			// Real-time metrics
			LiveSessionsActive,
			PatternsDetected,
			AlertsRaised,

			// AMQP metrics
			AMQPPublishedMessages,
			AMQPConnectionErrors,
			AMQPConnectionStatus,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the prometheus registry
func GetRegistry() *prometheus.Registry {
	return registry
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IsMetricsEnabled returns whether metrics are enabled
func IsMetricsEnabled() bool {
	return metricsEnabled
}

// RegisterHandler registers the metrics HTTP handler
func RegisterHandler(mux *http.ServeMux) {
	if metricsEnabled && registry != nil {
		handler := promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
				Registry:          registry,
			},
		)
		mux.Handle(defaultMetricsPath, handler)
	}
}

// StartMetrics initializes the metrics service
func StartMetrics(logger *logrus.Logger, enabled bool) {
	if !enabled {
		EnableMetrics(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	EnableMetrics(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

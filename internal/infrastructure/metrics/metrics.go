// Package metrics exposes Prometheus instrumentation for the pipeline, the
// HTTP API, the prose client, the result cache and the event bus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alem-hub/academic-risk-hub/internal/domain/risk"
)

const namespace = "academic_risk"

// Metrics owns a private registry so that several instances (tests, binaries)
// never collide on the global default registry.
type Metrics struct {
	registry *prometheus.Registry

	// Pipeline
	runsTotal        *prometheus.CounterVec
	runDuration      prometheus.Histogram
	runStudents      *prometheus.GaugeVec
	trainingSamples  prometheus.Gauge
	trainingAccuracy prometheus.Gauge
	modelTrained     prometheus.Gauge
	patternsFound    prometheus.Gauge
	estimatesTotal   *prometheus.CounterVec
	generatedTotal   *prometheus.CounterVec

	// HTTP
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// Prose API
	proseCalls    *prometheus.CounterVec
	proseDuration prometheus.Histogram

	// Cache
	cacheLookups *prometheus.CounterVec

	// Scheduler
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	// Event bus
	eventsPublished *prometheus.CounterVec
	eventsHandled   *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,

		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Completed pipeline runs by status",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Wall time of a full pipeline run",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		runStudents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_last_run_students",
			Help:      "Students handled by the last run, by outcome",
		}, []string{"outcome"}),
		trainingSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "estimator_training_samples",
			Help:      "Labelled records used by the last training attempt",
		}),
		trainingAccuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "estimator_holdout_accuracy",
			Help:      "Hold-out accuracy of the last trained forest",
		}),
		modelTrained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "estimator_model_trained",
			Help:      "1 when a trained forest is in use",
		}),
		patternsFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "patterns_rules_found",
			Help:      "Association rules mined by the last run",
		}),
		estimatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_estimates_total",
			Help:      "Risk estimates by level and strategy",
		}, []string{"level", "strategy"}),
		generatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_generated_total",
			Help:      "Stored recommendation results by source and level",
		}, []string{"source", "level"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		proseCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prose_calls_total",
			Help:      "Prose API calls by outcome",
		}, []string{"outcome"}),
		proseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prose_call_duration_seconds",
			Help:      "Prose API call latency including retries",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_lookups_total",
			Help:      "Latest-result cache lookups by outcome",
		}, []string{"outcome"}),

		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduled job executions by job and outcome",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_duration_seconds",
			Help:      "Scheduled job latency",
			Buckets:   []float64{1, 5, 15, 60, 300, 900},
		}, []string{"job"}),

		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events published on the bus by type",
		}, []string{"type"}),
		eventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_runs_total",
			Help:      "Event handler executions by type and outcome",
		}, []string{"type", "outcome"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler latency",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 2},
		}, []string{"type"}),
	}

	reg.MustRegister(
		m.runsTotal, m.runDuration, m.runStudents,
		m.trainingSamples, m.trainingAccuracy, m.modelTrained,
		m.patternsFound, m.estimatesTotal, m.generatedTotal,
		m.httpRequests, m.httpDuration,
		m.proseCalls, m.proseDuration,
		m.cacheLookups,
		m.jobRuns, m.jobDuration,
		m.eventsPublished, m.eventsHandled, m.handlerDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ══════════════════════════════════════════════════════════════════════════════
// PIPELINE
// ══════════════════════════════════════════════════════════════════════════════

// RecordRun records the outcome of a full run.
func (m *Metrics) RecordRun(status string, total, generated, failed int, d time.Duration) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(d.Seconds())
	m.runStudents.WithLabelValues("total").Set(float64(total))
	m.runStudents.WithLabelValues("generated").Set(float64(generated))
	m.runStudents.WithLabelValues("failed").Set(float64(failed))
}

// RecordTraining records a training attempt. Accuracy is only meaningful
// when trained is true.
func (m *Metrics) RecordTraining(samples int, accuracy float64, trained bool) {
	m.trainingSamples.Set(float64(samples))
	if trained {
		m.modelTrained.Set(1)
		m.trainingAccuracy.Set(accuracy)
		return
	}
	m.modelTrained.Set(0)
}

// RecordPatterns records the number of mined rules.
func (m *Metrics) RecordPatterns(rules int) {
	m.patternsFound.Set(float64(rules))
}

// RecordEstimate counts one risk estimate.
func (m *Metrics) RecordEstimate(level risk.Level, strategy risk.Strategy) {
	m.estimatesTotal.WithLabelValues(level.String(), string(strategy)).Inc()
}

// RecordGenerated counts one stored result.
func (m *Metrics) RecordGenerated(source, level string) {
	m.generatedTotal.WithLabelValues(source, level).Inc()
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP / PROSE / CACHE / JOBS
// ══════════════════════════════════════════════════════════════════════════════

// RecordHTTPRequest records one served request. route is the chi route
// pattern, not the raw path, to keep cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordProseCall records one prose API call. outcome is "success",
// "error" or "circuit_open".
func (m *Metrics) RecordProseCall(outcome string, d time.Duration) {
	m.proseCalls.WithLabelValues(outcome).Inc()
	m.proseDuration.Observe(d.Seconds())
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(outcome).Inc()
}

// RecordJobRun records one scheduled job execution.
func (m *Metrics) RecordJobRun(job string, success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

// RecordEventPublished counts one event accepted by the bus.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventHandled records one handler execution.
func (m *Metrics) RecordEventHandled(eventType string, success bool, d time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.eventsHandled.WithLabelValues(eventType, outcome).Inc()
	m.handlerDuration.WithLabelValues(eventType).Observe(d.Seconds())
}

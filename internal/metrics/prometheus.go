// Package metrics exposes the cache and coordinator instrumentation as
// Prometheus collectors.
package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rxtech-lab/tradermind/internal/coordinator"
	"github.com/rxtech-lab/tradermind/internal/dataset"
	"github.com/rxtech-lab/tradermind/internal/types"
)

const namespace = "tradermind"

var (
	_ dataset.Recorder     = (*Recorder)(nil)
	_ coordinator.Recorder = (*Recorder)(nil)
)

// Recorder implements dataset.Recorder and coordinator.Recorder on top of
// a Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry

	cacheLoads      *prometheus.CounterVec
	cacheLatency    *prometheus.HistogramVec
	fetchFailures   prometheus.Counter
	runsStarted     prometheus.Counter
	runsFinished    *prometheus.CounterVec
	runDuration     prometheus.Histogram
	activeRuns      prometheus.Gauge
	symbols         *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpReqDuration *prometheus.HistogramVec
}

// New registers the collectors on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	factory := promauto.With(registry)

	return &Recorder{
		registry: registry,
		cacheLoads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dataset_loads_total",
				Help:      "Total number of dataset loads by outcome",
			},
			[]string{"outcome"},
		),
		cacheLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dataset_load_duration_seconds",
				Help:      "Duration of dataset loads in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"outcome"},
		),
		fetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "symbol_fetch_failures_total",
			Help:      "Total number of symbols dropped from a refresh",
		}),
		runsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Total number of started runs",
		}),
		runsFinished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_finished_total",
				Help:      "Total number of finished runs by terminal status",
			},
			[]string{"status"},
		),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_runs",
			Help:      "Number of runs currently running or stopping",
		}),
		symbols: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "run_symbols_total",
				Help:      "Total number of symbols walked by runs",
			},
			[]string{"result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpReqDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}
}

// Registry returns the registry the collectors are registered on.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}) //nolint:exhaustruct
}

func (r *Recorder) ObserveLoad(outcome dataset.Outcome, duration time.Duration) {
	r.cacheLoads.WithLabelValues(string(outcome)).Inc()
	r.cacheLatency.WithLabelValues(string(outcome)).Observe(duration.Seconds())
}

func (r *Recorder) ObserveFetchFailures(count int) {
	r.fetchFailures.Add(float64(count))
}

func (r *Recorder) RunStarted() {
	r.runsStarted.Inc()
	r.activeRuns.Inc()
}

func (r *Recorder) RunFinished(status types.JobStatus, duration time.Duration) {
	r.runsFinished.WithLabelValues(string(status)).Inc()
	r.runDuration.Observe(duration.Seconds())
	r.activeRuns.Dec()
}

func (r *Recorder) SymbolProcessed() {
	r.symbols.WithLabelValues("processed").Inc()
}

func (r *Recorder) SymbolFailed() {
	r.symbols.WithLabelValues("failed").Inc()
}

// Middleware records request counts and latency labelled by the mux route
// template, keeping label cardinality low.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, req)

		route := routeLabel(req)
		r.httpRequests.WithLabelValues(route, req.Method, strconv.Itoa(rw.status)).Inc()
		r.httpReqDuration.WithLabelValues(route, req.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}

	return hijacker.Hijack()
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}

	return "unmatched"
}

// Package metrics holds the Prometheus collectors for the query path.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Page outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeValidation      = "validation_error"
	OutcomeInvalidCursor   = "invalid_cursor"
	OutcomeUpstreamFailed  = "upstream_failed"
	OutcomeUpstreamInvalid = "upstream_invalid"
	OutcomeInternal        = "internal_error"
)

// Drop reasons.
const (
	DropUnparseableTime = "unparseable_time"
	DropNonObject       = "non_object"
)

// Recorder wraps the collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	pages       *prometheus.CounterVec
	pageRows    prometheus.Histogram
	fetchDur    *prometheus.HistogramVec
	droppedRows *prometheus.CounterVec
	refetches   prometheus.Counter
	reloads     *prometheus.CounterVec
}

// NewRecorder registers the collectors on a private registry together with
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{registry: reg}

	r.pages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vicviewer",
		Name:      "log_pages_total",
		Help:      "Log page requests by outcome",
	}, []string{"outcome"})
	r.pageRows = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vicviewer",
		Name:      "log_page_rows",
		Help:      "Rows returned per log page",
		Buckets:   []float64{0, 1, 10, 50, 100, 200, 500},
	})
	r.fetchDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vicviewer",
		Name:      "record_source_fetch_duration_seconds",
		Help:      "Time spent fetching raw records from the record source",
		Buckets:   prometheus.DefBuckets,
	}, []string{"direction", "outcome"})
	r.droppedRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vicviewer",
		Name:      "dropped_records_total",
		Help:      "Raw records dropped during normalization",
	}, []string{"reason"})
	r.refetches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vicviewer",
		Name:      "anchor_refetches_total",
		Help:      "Extra fetches issued because anchor filtering left a short page",
	})
	r.reloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vicviewer",
		Name:      "profile_reloads_total",
		Help:      "Log profile reload attempts by result",
	}, []string{"result"})

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.pages, r.pageRows, r.fetchDur, r.droppedRows, r.refetches, r.reloads,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

func (r *Recorder) ObservePage(outcome string, rows int) {
	if r == nil {
		return
	}
	r.pages.WithLabelValues(outcome).Inc()
	if outcome == OutcomeOK {
		r.pageRows.Observe(float64(rows))
	}
}

func (r *Recorder) ObserveFetch(direction string, d time.Duration, err error) {
	if r == nil {
		return
	}
	if direction == "" {
		direction = "none"
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = "error"
	}
	r.fetchDur.WithLabelValues(direction, outcome).Observe(d.Seconds())
}

func (r *Recorder) AddDropped(reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.droppedRows.WithLabelValues(reason).Add(float64(n))
}

func (r *Recorder) IncRefetch() {
	if r == nil {
		return
	}
	r.refetches.Inc()
}

func (r *Recorder) ObserveReload(err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.reloads.WithLabelValues(result).Inc()
}

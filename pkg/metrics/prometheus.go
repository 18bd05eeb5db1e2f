package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var schedulerStates = []string{"idle", "planning", "dispatching", "waiting", "stopped"}

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	captures     *prometheus.CounterVec
	fetchErrors  *prometheus.CounterVec
	storeErrors  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	cycleSeconds *prometheus.HistogramVec
	cycleBatches *prometheus.CounterVec
	state        *prometheus.GaugeVec
	mergeEntries *prometheus.GaugeVec
	malformed    *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		captures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincapture_captures_total",
				Help: "Total number of captures forwarded to the capture store",
			},
			[]string{"category"},
		),
		fetchErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincapture_fetch_errors_total",
				Help: "Failed batch fetches, skipped until the next cycle",
			},
			[]string{"category"},
		),
		storeErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincapture_store_errors_total",
				Help: "Capture or archive persistence failures",
			},
			[]string{"op"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincapture_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		cycleSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincapture_cycle_duration_seconds",
				Help:    "Planning plus dispatching time per scheduler cycle",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"category"},
		),
		cycleBatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincapture_batches_total",
				Help: "Dispatched batches by outcome",
			},
			[]string{"category", "outcome"},
		),
		state: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincapture_scheduler_state",
				Help: "1 for the current state of each category loop",
			},
			[]string{"category", "state"},
		),
		mergeEntries: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fincapture_archive_entries",
				Help: "Entries written by the last merge run per category",
			},
			[]string{"category"},
		),
		malformed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fincapture_malformed_captures_total",
				Help: "Captures skipped by the merger for lacking an observation key",
			},
			[]string{"category"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fincapture_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCaptures counts captures handed to the sink.
func (r *Recorder) RecordCaptures(category string, n int) {
	r.captures.WithLabelValues(category).Add(float64(n))
}

// RecordFetchError counts a skipped batch.
func (r *Recorder) RecordFetchError(category string) {
	r.fetchErrors.WithLabelValues(category).Inc()
}

// RecordStoreError counts a persistence failure.
func (r *Recorder) RecordStoreError(op string) {
	r.storeErrors.WithLabelValues(op).Inc()
}

// RecordCycle observes one completed cycle.
func (r *Recorder) RecordCycle(category string, seconds float64, batches, failed int) {
	r.cycleSeconds.WithLabelValues(category).Observe(seconds)
	r.cycleBatches.WithLabelValues(category, "ok").Add(float64(batches - failed))
	r.cycleBatches.WithLabelValues(category, "failed").Add(float64(failed))
}

// RecordSchedulerState flips the state gauge for a category.
func (r *Recorder) RecordSchedulerState(category, state string) {
	for _, s := range schedulerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.state.WithLabelValues(category, s).Set(v)
	}
}

// RecordMerge observes a merge run.
func (r *Recorder) RecordMerge(category string, entries, malformed int, seconds float64) {
	r.mergeEntries.WithLabelValues(category).Set(float64(entries))
	r.malformed.WithLabelValues(category).Add(float64(malformed))
	r.latency.WithLabelValues("merge").Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

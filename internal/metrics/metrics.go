package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ThreatScanner/internal/domain"
)

// Cycle outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Recorder owns the scanner's Prometheus collectors. A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	cycles         *prometheus.CounterVec
	cycleDuration  prometheus.Histogram
	itemsCollected *prometheus.CounterVec
	sourceFailures *prometheus.CounterVec
	selected       prometheus.Gauge
	forwards       *prometheus.CounterVec
	chaosGlobal    prometheus.Gauge
}

// New registers every collector on a dedicated registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ts_cycles_total",
			Help: "Collection cycles by outcome",
		}, []string{"outcome"}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ts_cycle_duration_seconds",
			Help:    "Wall time of completed collection cycles",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		itemsCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ts_items_collected_total",
			Help: "Raw items produced per collector kind",
		}, []string{"kind"}),
		sourceFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ts_source_failures_total",
			Help: "Source fetches that produced an error",
		}, []string{"kind", "source"}),
		selected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ts_selected_threats",
			Help: "Records published by the last successful cycle",
		}),
		forwards: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ts_forwards_total",
			Help: "Forwarding attempts by result",
		}, []string{"result"}),
		chaosGlobal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ts_chaos_global_index",
			Help: "Global chaos index over the published slots",
		}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// CycleFinished counts a cycle by outcome and observes its duration unless it was skipped.
func (r *Recorder) CycleFinished(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		r.cycleDuration.Observe(elapsed.Seconds())
	}
}

// ItemsCollected counts raw items per collector kind.
func (r *Recorder) ItemsCollected(items []domain.RawItem) {
	if r == nil {
		return
	}
	for _, item := range items {
		r.itemsCollected.WithLabelValues(string(item.Kind)).Inc()
	}
}

// SourceFailed counts a failed fetch of one source.
func (r *Recorder) SourceFailed(kind domain.SourceKind, source string) {
	if r == nil {
		return
	}
	r.sourceFailures.WithLabelValues(string(kind), source).Inc()
}

// Selected sets the number of records published by the last cycle.
func (r *Recorder) Selected(n int) {
	if r == nil {
		return
	}
	r.selected.Set(float64(n))
}

// Forwarded counts forwarding outcomes as delivered or failed.
func (r *Recorder) Forwarded(outcomes []domain.ForwardOutcome) {
	if r == nil {
		return
	}
	for _, o := range outcomes {
		result := "delivered"
		if !o.Delivered {
			result = "failed"
		}
		r.forwards.WithLabelValues(result).Inc()
	}
}

// ChaosGlobal sets the global chaos index of the published slots.
func (r *Recorder) ChaosGlobal(index int) {
	if r == nil {
		return
	}
	r.chaosGlobal.Set(float64(index))
}

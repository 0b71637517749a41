package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the plant's Prometheus collectors. A nil *Registry is valid and records nothing.
type Registry struct {
	reg *prometheus.Registry

	LotsCreated      prometheus.Counter
	BatchesRecorded  prometheus.Counter
	PackagesCreated  *prometheus.CounterVec
	YieldPercentage  prometheus.Histogram
	OfflineEnqueued  *prometheus.CounterVec
	OfflineReplayed  *prometheus.CounterVec
	OfflineQueueSize prometheus.Gauge
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		LotsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clamflow",
			Name:      "lots_created_total",
			Help:      "Lots aggregated from raw-material receipts.",
		}),
		BatchesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clamflow",
			Name:      "processing_batches_total",
			Help:      "Processing batches recorded.",
		}),
		PackagesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clamflow",
			Name:      "packages_created_total",
			Help:      "Packages labelled, by product type.",
		}, []string{"type"}),
		YieldPercentage: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clamflow",
			Name:      "processing_yield_percentage",
			Help:      "Yield of recorded processing batches.",
			Buckets:   []float64{20, 30, 40, 50, 60, 70, 80, 90, 100, 120},
		}),
		OfflineEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clamflow",
			Name:      "offline_enqueued_total",
			Help:      "Submissions parked in the offline queue, by upload type.",
		}, []string{"type"}),
		OfflineReplayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clamflow",
			Name:      "offline_replayed_total",
			Help:      "Offline queue replays, by upload type and outcome.",
		}, []string{"type", "outcome"}),
		OfflineQueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clamflow",
			Name:      "offline_queue_depth",
			Help:      "Entries currently waiting in the offline queue.",
		}),
	}
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.LotsCreated,
		r.BatchesRecorded,
		r.PackagesCreated,
		r.YieldPercentage,
		r.OfflineEnqueued,
		r.OfflineReplayed,
		r.OfflineQueueSize,
	)
	return r
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func (r *Registry) LotCreated() {
	if r != nil {
		r.LotsCreated.Inc()
	}
}

func (r *Registry) BatchRecorded(yield float64) {
	if r != nil {
		r.BatchesRecorded.Inc()
		r.YieldPercentage.Observe(yield)
	}
}

func (r *Registry) PackageCreated(productType string) {
	if r != nil {
		r.PackagesCreated.WithLabelValues(productType).Inc()
	}
}

func (r *Registry) Enqueued(uploadType string) {
	if r != nil {
		r.OfflineEnqueued.WithLabelValues(uploadType).Inc()
	}
}

func (r *Registry) Replayed(uploadType, outcome string) {
	if r != nil {
		r.OfflineReplayed.WithLabelValues(uploadType, outcome).Inc()
	}
}

func (r *Registry) QueueDepth(n int) {
	if r != nil {
		r.OfflineQueueSize.Set(float64(n))
	}
}

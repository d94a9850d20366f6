package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Router metrics
	NotificationsRouted *prometheus.CounterVec
	RoutingSkipped      prometheus.Counter
	RoutingErrors       prometheus.Counter

	// Delivery metrics
	DeliveriesSent   *prometheus.CounterVec
	DeliveryFailures *prometheus.CounterVec
	DigestSize       prometheus.Histogram

	// Batch processor metrics
	BatchRunDuration *prometheus.HistogramVec
	BatchRunErrors   *prometheus.CounterVec
}

// New creates the application metrics. Metrics are not registered here so
// tests can construct them freely; call Register once per process.
func New(namespace string) *Metrics {
	return &Metrics{
		NotificationsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_routed_total",
			Help:      "Total number of deliveries created by the dispatch router",
		}, []string{"delivery_type"}),
		RoutingSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_skipped_total",
			Help:      "Total number of notifications skipped because the user disabled notifications",
		}),
		RoutingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_errors_total",
			Help:      "Total number of notification routing failures",
		}),
		DeliveriesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_sent_total",
			Help:      "Total number of successfully sent deliveries",
		}, []string{"delivery_type"}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Total number of failed delivery attempts",
		}, []string{"delivery_type"}),
		DigestSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "digest_size_notifications",
			Help:      "Number of notifications aggregated into one digest",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100},
		}),
		BatchRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_run_duration_seconds",
			Help:      "Duration of one batch processor run",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"processor"}),
		BatchRunErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_run_errors_total",
			Help:      "Total number of batch processor run failures",
		}, []string{"processor"}),
	}
}

// Register registers all metrics with the given registerer.
func (m *Metrics) Register(r prometheus.Registerer) {
	r.MustRegister(
		m.NotificationsRouted,
		m.RoutingSkipped,
		m.RoutingErrors,
		m.DeliveriesSent,
		m.DeliveryFailures,
		m.DigestSize,
		m.BatchRunDuration,
		m.BatchRunErrors,
	)
}

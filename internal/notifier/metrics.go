package notifier

import "github.com/prometheus/client_golang/prometheus"

// Notice statuses counted by errnotify_notices_total.
const (
	statusSent       = "sent"
	statusFiltered   = "filtered"
	statusFailed     = "failed"
	statusDropped    = "dropped"
	statusBacklogged = "backlogged"
)

type metrics struct {
	registry     *prometheus.Registry
	notices      *prometheus.CounterVec
	routeMetrics prometheus.Counter
	backlogSize  prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		notices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "errnotify",
			Name:      "notices_total",
			Help:      "Number of processed notices by status.",
		}, []string{"status"}),
		routeMetrics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "errnotify",
			Name:      "route_metrics_total",
			Help:      "Number of aggregated route metrics.",
		}),
		backlogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "errnotify",
			Name:      "backlog_size",
			Help:      "Number of notices waiting in backlog.",
		}),
	}
	m.registry.MustRegister(m.notices, m.routeMetrics, m.backlogSize)

	return m
}

func (m *metrics) notice(status string) {
	m.notices.WithLabelValues(status).Inc()
}

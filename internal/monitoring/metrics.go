package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil
// *Metrics is valid and records nothing, which keeps wiring optional
// in tests.
type Metrics struct {
	CrawlsTotal   *prometheus.CounterVec
	ErrorsTotal   *prometheus.CounterVec
	CrawlDuration prometheus.Histogram
	ActiveTasks   prometheus.Gauge
	QueueDepth    prometheus.Gauge
}

// New registers the metric set with reg. Pass a fresh registry in
// tests to avoid duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CrawlsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_tasks_finished_total",
			Help: "The total number of tasks reaching a terminal state, by outcome",
		}, []string{"outcome"}), // 'completed', 'error', 'cancelled'
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "The total number of internal errors encountered",
		}, []string{"type"}), // e.g. 'db_save_failed', 'db_delete_failed'
		CrawlDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crawler_crawl_duration_seconds",
			Help:    "Wall-clock duration of individual page crawls",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ActiveTasks: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_active_tasks",
			Help: "Tasks currently in the processing state",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "crawler_queue_depth",
			Help: "Tasks currently waiting in the queue",
		}),
	}
}

func (m *Metrics) IncCrawls(outcome string) {
	if m == nil {
		return
	}
	m.CrawlsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncErrors(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) ObserveCrawlDuration(seconds float64) {
	if m == nil {
		return
	}
	m.CrawlDuration.Observe(seconds)
}

func (m *Metrics) SetActiveTasks(n int) {
	if m == nil {
		return
	}
	m.ActiveTasks.Set(float64(n))
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}

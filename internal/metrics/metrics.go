package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the collector set for one process. A nil *Metrics is valid
// and records nothing, so components can take it optionally.
type Metrics struct {
	registry *prometheus.Registry

	progressWrites  *prometheus.CounterVec
	progressSkipped prometheus.Counter
	transitions     *prometheus.CounterVec
	xpGranted       prometheus.Counter
	achievements    *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	activeSessions  prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		progressWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnpath_progress_writes_total",
			Help: "Progress writes issued by the persistence sink, by result.",
		}, []string{"result"}),
		progressSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnpath_progress_writes_skipped_total",
			Help: "Progress writes suppressed because the position was already saved.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnpath_navigation_transitions_total",
			Help: "Navigation transitions, by kind.",
		}, []string{"kind"}),
		xpGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnpath_xp_granted_total",
			Help: "Experience points appended to the ledger.",
		}),
		achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnpath_achievements_awarded_total",
			Help: "Achievements awarded, by code.",
		}, []string{"code"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnpath_notifications_total",
			Help: "Completion notifications dispatched, by channel and result.",
		}, []string{"channel", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnpath_http_requests_total",
			Help: "HTTP requests, by route and status.",
		}, []string{"route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnpath_http_request_duration_seconds",
			Help:    "HTTP request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnpath_active_sessions",
			Help: "Live traversal sessions.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.progressWrites, m.progressSkipped, m.transitions, m.xpGranted,
		m.achievements, m.notifications, m.httpRequests, m.httpLatency,
		m.activeSessions,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ProgressWrite(ok bool) {
	if m == nil {
		return
	}
	m.progressWrites.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) ProgressSkipped() {
	if m == nil {
		return
	}
	m.progressSkipped.Inc()
}

func (m *Metrics) Transition(kind string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) XPGranted(amount int) {
	if m == nil || amount <= 0 {
		return
	}
	m.xpGranted.Add(float64(amount))
}

func (m *Metrics) AchievementAwarded(code string) {
	if m == nil {
		return
	}
	m.achievements.WithLabelValues(code).Inc()
}

func (m *Metrics) Notification(channel string, ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, result(ok)).Inc()
}

func (m *Metrics) HTTPRequest(route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, status).Inc()
	m.httpLatency.WithLabelValues(route).Observe(seconds)
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

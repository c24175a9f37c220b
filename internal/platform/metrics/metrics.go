package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the live tracking core. One
// instance is created at startup and threaded into the components that emit.
// All recording methods tolerate a nil receiver so unit tests can pass nil
// without registering collectors.
type Metrics struct {
	ConnectionsTotal  prometheus.Counter
	SessionsActive    prometheus.Gauge
	EventsBroadcast   *prometheus.CounterVec
	RateLimitedTotal  prometheus.Counter
	AuthzDeniedTotal  prometheus.Counter
	PersistenceErrors prometheus.Counter
	FeedPublishErrors prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_connections_total",
			Help: "Total websocket connections accepted after authentication",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "caretrack_sessions_active",
			Help: "Currently connected sessions",
		}),
		EventsBroadcast: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caretrack_events_broadcast_total",
			Help: "Accepted events fanned out to rooms, by kind",
		}, []string{"kind"}),
		RateLimitedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_rate_limited_total",
			Help: "Messages dropped because the sender exceeded its rate budget",
		}),
		AuthzDeniedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_authz_denied_total",
			Help: "Join or authoring attempts denied by the access resolver",
		}),
		PersistenceErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_persistence_errors_total",
			Help: "Operations abandoned because the persistence collaborator failed",
		}),
		FeedPublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caretrack_feed_publish_errors_total",
			Help: "Accepted events that failed to publish to the downstream feed",
		}),
	}
}

func (m *Metrics) IncConnections() {
	if m != nil {
		m.ConnectionsTotal.Inc()
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.SessionsActive.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.SessionsActive.Dec()
	}
}

func (m *Metrics) IncBroadcast(kind string) {
	if m != nil {
		m.EventsBroadcast.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncRateLimited() {
	if m != nil {
		m.RateLimitedTotal.Inc()
	}
}

func (m *Metrics) IncAuthzDenied() {
	if m != nil {
		m.AuthzDeniedTotal.Inc()
	}
}

func (m *Metrics) IncPersistenceError() {
	if m != nil {
		m.PersistenceErrors.Inc()
	}
}

func (m *Metrics) IncFeedPublishError() {
	if m != nil {
		m.FeedPublishErrors.Inc()
	}
}

// Package metrics exposes prometheus instrumentation for the sync core, with a
// no-op provider used when metrics are disabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Provider interface {
	IncSyncFailures(collection string)
	ObserveSyncDuration(duration time.Duration)
	IncNotificationsDelivered()
	IncNotificationsSkipped()
	IncCacheWriteFailures(namespace string)
	IncMirrorHits()
	IncMirrorMisses()
	SetOnline(online bool)
	Handler() http.Handler
}

type PrometheusProvider struct {
	registry               *prometheus.Registry
	syncFailures           *prometheus.CounterVec
	syncDuration           prometheus.Histogram
	notificationsDelivered prometheus.Counter
	notificationsSkipped   prometheus.Counter
	cacheWriteFailures     *prometheus.CounterVec
	mirrorHits             prometheus.Counter
	mirrorMisses           prometheus.Counter
	online                 prometheus.Gauge
}

// New returns a prometheus-backed provider when enabled and a no-op one
// otherwise. Every provider owns its registry.
func New(enabled bool) Provider {
	if !enabled {
		return Noop()
	}

	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &PrometheusProvider{
		registry: reg,
		syncFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxtrack_sync_failures_total",
			Help: "Collections that failed to refresh during sync",
		}, []string{"collection"}),

		syncDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vaxtrack_sync_duration_seconds",
			Help:    "Duration of a full sync in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		notificationsDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "vaxtrack_notifications_delivered_total",
			Help: "Notifications handed to the push channel",
		}),

		notificationsSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "vaxtrack_notifications_skipped_total",
			Help: "Notifications suppressed because they were already delivered",
		}),

		cacheWriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vaxtrack_cache_write_failures_total",
			Help: "Failed cache namespace writes",
		}, []string{"namespace"}),

		mirrorHits: f.NewCounter(prometheus.CounterOpts{
			Name: "vaxtrack_cache_mirror_hits_total",
			Help: "Cache reads served from the in-memory mirror",
		}),

		mirrorMisses: f.NewCounter(prometheus.CounterOpts{
			Name: "vaxtrack_cache_mirror_misses_total",
			Help: "Cache reads that fell through to durable storage",
		}),

		online: f.NewGauge(prometheus.GaugeOpts{
			Name: "vaxtrack_online",
			Help: "1 when the remote store is reachable",
		}),
	}
}

func (m *PrometheusProvider) IncSyncFailures(collection string) {
	m.syncFailures.WithLabelValues(collection).Inc()
}

func (m *PrometheusProvider) ObserveSyncDuration(duration time.Duration) {
	m.syncDuration.Observe(duration.Seconds())
}

func (m *PrometheusProvider) IncNotificationsDelivered() { m.notificationsDelivered.Inc() }
func (m *PrometheusProvider) IncNotificationsSkipped()   { m.notificationsSkipped.Inc() }

func (m *PrometheusProvider) IncCacheWriteFailures(namespace string) {
	m.cacheWriteFailures.WithLabelValues(namespace).Inc()
}

func (m *PrometheusProvider) IncMirrorHits()   { m.mirrorHits.Inc() }
func (m *PrometheusProvider) IncMirrorMisses() { m.mirrorMisses.Inc() }

func (m *PrometheusProvider) SetOnline(online bool) {
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}

func (m *PrometheusProvider) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Noop returns a provider that records nothing.
func Noop() Provider { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) IncSyncFailures(_ string)            {}
func (noopMetrics) ObserveSyncDuration(_ time.Duration) {}
func (noopMetrics) IncNotificationsDelivered()          {}
func (noopMetrics) IncNotificationsSkipped()            {}
func (noopMetrics) IncCacheWriteFailures(_ string)      {}
func (noopMetrics) IncMirrorHits()                      {}
func (noopMetrics) IncMirrorMisses()                    {}
func (noopMetrics) SetOnline(_ bool)                    {}
func (noopMetrics) Handler() http.Handler               { return http.NotFoundHandler() }

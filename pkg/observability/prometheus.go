package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "elk"

// PrometheusHooks implements every hook interface by updating Prometheus
// collectors registered on a caller-supplied registry.
//
// Metrics (all prefixed "elk_"):
//   - layouts_total{status, cached}: completed layout requests
//   - layout_duration_seconds{cached}: layout latency
//   - layouts_inflight: layouts currently being computed
//   - server_starts_total, server_exits_total{status}: ELK process lifecycle
//   - server_stderr_lines_total: stderr lines written by server processes
//   - cache_events_total{key_type, event}: cache hits, misses and writes
//   - cache_bytes_written_total{key_type}
//   - http_requests_total{method, host, code}, http_request_duration_seconds{method, host}
//   - download_bytes_total{artifact}
//
// Safe for concurrent use.
type PrometheusHooks struct {
	layouts        *prometheus.CounterVec
	layoutDuration *prometheus.HistogramVec
	inflight       prometheus.Gauge

	serverStarts *prometheus.CounterVec
	serverExits  *prometheus.CounterVec
	stderrLines  prometheus.Counter

	cacheEvents *prometheus.CounterVec
	cacheBytes  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	downloaded   *prometheus.CounterVec
}

// NewPrometheusHooks creates the collectors and registers them on reg.
// Registering twice on the same registry panics, as with promauto.
func NewPrometheusHooks(reg prometheus.Registerer) *PrometheusHooks {
	f := promauto.With(reg)
	return &PrometheusHooks{
		layouts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layouts_total",
			Help:      "Completed layout requests.",
		}, []string{"status", "cached"}),
		layoutDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_duration_seconds",
			Help:      "Layout request latency.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"cached"}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layouts_inflight",
			Help:      "Layouts currently being computed.",
		}),
		serverStarts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_starts_total",
			Help:      "ELK server processes started.",
		}, nil),
		serverExits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_exits_total",
			Help:      "ELK server processes that exited.",
		}, []string{"status"}),
		stderrLines: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_stderr_lines_total",
			Help:      "Lines written to stderr by ELK server processes.",
		}),
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Cache hits, misses and writes.",
		}, []string{"key_type", "event"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_bytes_written_total",
			Help:      "Bytes written to the cache.",
		}, []string{"key_type"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Outgoing HTTP requests by response code.",
		}, []string{"method", "host", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Outgoing HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "host"}),
		downloaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "download_bytes_total",
			Help:      "Bytes downloaded per artifact.",
		}, []string{"artifact"}),
	}
}

func (p *PrometheusHooks) OnLayoutStart(context.Context, string, int) {
	p.inflight.Inc()
}

func (p *PrometheusHooks) OnLayoutComplete(_ context.Context, _ string, d time.Duration, cached bool, err error) {
	p.inflight.Dec()
	c := boolLabel(cached)
	p.layouts.WithLabelValues(statusLabel(err), c).Inc()
	p.layoutDuration.WithLabelValues(c).Observe(d.Seconds())
}

func (p *PrometheusHooks) OnServerStart(context.Context, int) {
	p.serverStarts.WithLabelValues().Inc()
}

func (p *PrometheusHooks) OnServerExit(_ context.Context, _ int, err error) {
	p.serverExits.WithLabelValues(statusLabel(err)).Inc()
}

func (p *PrometheusHooks) OnServerStderr(context.Context, string) {
	p.stderrLines.Inc()
}

func (p *PrometheusHooks) OnCacheHit(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "hit").Inc()
}

func (p *PrometheusHooks) OnCacheMiss(_ context.Context, keyType string) {
	p.cacheEvents.WithLabelValues(keyType, "miss").Inc()
}

func (p *PrometheusHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	p.cacheEvents.WithLabelValues(keyType, "set").Inc()
	p.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (p *PrometheusHooks) OnRequest(context.Context, string, string, string) {}

func (p *PrometheusHooks) OnResponse(_ context.Context, method, host, _ string, code int, d time.Duration) {
	p.httpRequests.WithLabelValues(method, host, codeLabel(code)).Inc()
	p.httpDuration.WithLabelValues(method, host).Observe(d.Seconds())
}

func (p *PrometheusHooks) OnError(_ context.Context, method, host, _ string, _ error) {
	p.httpRequests.WithLabelValues(method, host, "error").Inc()
}

func (p *PrometheusHooks) OnDownload(_ context.Context, name string, n int64) {
	p.downloaded.WithLabelValues(name).Add(float64(n))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func codeLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

var _ AllHooks = (*PrometheusHooks)(nil)

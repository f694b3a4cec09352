package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "talok"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests."},
		[]string{"route", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
	ExternalRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "external_requests_total", Help: "Outbound requests."},
		[]string{"service", "endpoint", "status"},
	)
	ExternalLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace, Name: "external_request_duration_seconds",
			Help:    "Outbound request duration seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "cache_events_total", Help: "Cache hits/misses/sets/dels."},
		[]string{"cache", "event"}, // event: hit|miss|set|del
	)
	Autosaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "wizard_autosaves_total", Help: "Wizard draft saves."},
		[]string{"result"}, // ok|error
	)
	ColumnFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "column_fallbacks_total", Help: "Writes retried without a missing column."},
		[]string{"table", "column"},
	)
	PreviewRenders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "edl_preview_renders_total", Help: "Inspection preview requests."},
		[]string{"result"}, // rendered|unchanged
	)
	InvoicesGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "invoices_generated_total", Help: "Monthly invoices by outcome."},
		[]string{"result"}, // created|existing|error
	)
)

// Serve exposes reg on addr in the background. An empty addr disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))

	go func() {
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(HTTPRequests, HTTPLatency, ExternalRequests, ExternalLatency, CacheEvents,
		Autosaves, ColumnFallbacks, PreviewRenders, InvoicesGenerated)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	ExternalRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	ExternalLatency.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveAutosave(err error) {
	Autosaves.WithLabelValues(result(err)).Inc()
}

// ObserveFallback matches the sqlstore fallback observer signature.
func ObserveFallback(table, column string) {
	ColumnFallbacks.WithLabelValues(table, column).Inc()
}

// ObservePreview matches the edl previewer observer signature.
func ObservePreview(outcome string) {
	PreviewRenders.WithLabelValues(outcome).Inc()
}

func ObserveInvoice(outcome string) {
	InvoicesGenerated.WithLabelValues(outcome).Inc()
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/auralabs/aura/pkg/hitl"
)

var (
	operationsQueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "hitl",
		Name:      "operations_queued_total",
		Help:      "Operations submitted for approval.",
	})

	operationsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aura",
		Subsystem: "hitl",
		Name:      "operations_pending",
		Help:      "Operations currently awaiting a decision.",
	})

	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aura",
		Subsystem: "hitl",
		Name:      "decisions_total",
		Help:      "Terminal status transitions by outcome.",
	}, []string{"status"})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "aura",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected WebSocket clients.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aura",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})
)

// metricsMiddleware records request latency under the chi route pattern
// so path parameters do not explode the label space.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		requestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}

// MetricsListener mirrors the approval lifecycle into Prometheus. It is
// registered on the store alongside the notification hub and audit log.
type MetricsListener struct{}

// NewMetricsListener returns the listener; the metrics themselves are
// process-global.
func NewMetricsListener() *MetricsListener {
	return &MetricsListener{}
}

// OperationAdded implements hitl.Listener.
func (m *MetricsListener) OperationAdded(op *hitl.Operation) {
	operationsQueued.Inc()
	operationsPending.Inc()
}

// StatusChanged implements hitl.Listener.
func (m *MetricsListener) StatusChanged(op *hitl.Operation) {
	switch op.Status {
	case hitl.StatusApproved, hitl.StatusRejected, hitl.StatusExpired:
		operationsPending.Dec()
		decisionsTotal.WithLabelValues(string(op.Status)).Inc()
	case hitl.StatusCompleted, hitl.StatusFailed:
		decisionsTotal.WithLabelValues(string(op.Status)).Inc()
	}
}

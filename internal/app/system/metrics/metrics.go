// Package metrics exposes Prometheus counters for the membership engine,
// reconciliation, provisioning and the HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OutcomeOK is the outcome label for a successful operation.
const OutcomeOK = "ok"

var (
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "projecthub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projecthub_group_operations_total",
			Help: "Membership engine operations by operation and outcome",
		},
		[]string{"op", "outcome"},
	)
	repairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projecthub_group_repairs_total",
			Help: "Reconciliation fixes applied, by kind",
		},
		[]string{"kind"},
	)
	repairFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projecthub_group_repair_failures_total",
			Help: "Reconciliation writes that failed and left a group inconsistent",
		},
	)
	transportRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projecthub_backend_retries_total",
			Help: "Backend calls retried after a transport failure",
		},
		[]string{"op"},
	)
	placements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projecthub_allocation_placements_total",
			Help: "Students handled by auto-allocation, by result",
		},
		[]string{"result"},
	)
	provisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "projecthub_groups_provisioned_total",
			Help: "Empty groups created by provisioning",
		},
	)
)

// Middleware records request duration keyed by the matched chi route
// pattern, so path parameters do not explode label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOperation counts one engine operation. outcome is OutcomeOK or
// the domain error kind.
func RecordOperation(op, outcome string) {
	operations.WithLabelValues(op, outcome).Inc()
}

// RecordRepair counts one applied reconciliation fix.
func RecordRepair(kind string) {
	repairs.WithLabelValues(kind).Inc()
}

// RecordRepairFailure counts a reconciliation whose writes failed.
func RecordRepairFailure() {
	repairFailures.Inc()
}

// RecordRetry counts a retried backend call.
func RecordRetry(op string) {
	transportRetries.WithLabelValues(op).Inc()
}

// RecordPlacement counts one allocation result ("assigned" or "failed").
func RecordPlacement(result string) {
	placements.WithLabelValues(result).Inc()
}

// RecordProvisioned adds n created groups.
func RecordProvisioned(n int) {
	if n > 0 {
		provisioned.Add(float64(n))
	}
}

// Package telemetry provides application-level observability for the resource hub.
//
// All metrics are registered against the default Prometheus registry and are
// served by the side-channel HTTP server started by cmd/server:
//
//	GET http://<host>:<RH_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// HTTP metrics use c.FullPath() (the route template such as /api/admin/resources/:id)
// rather than the raw request URL so resource ids do not explode label cardinality.
package telemetry

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics, labelled by method, route template, and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Proposal outcomes.
const (
	ProposalCreated       = "created"
	ProposalQuotaExceeded = "quota_exceeded"
	ProposalInvalid       = "invalid"
	ProposalError         = "error"
)

// ResourceProposalsTotal counts anonymous submissions by outcome. A rising
// quota_exceeded share usually means a single address is hammering the form.
//
//	sum by (outcome) (rate(resource_proposals_total[1h]))
var ResourceProposalsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "resource_proposals_total",
		Help: "Total number of resource proposals, by outcome.",
	},
	[]string{"outcome"},
)

// Admin login outcomes.
const (
	LoginSuccess   = "success"
	LoginFailure   = "failure"
	LoginThrottled = "throttled"
)

// AdminLoginsTotal counts admin login attempts by outcome (success, failure, throttled).
var AdminLoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_logins_total",
		Help: "Total number of admin login attempts, by outcome.",
	},
	[]string{"outcome"},
)

// StoreOperationsTotal counts table client calls by table, operation, and
// status (ok, not_found, error).
//
//	sum by (table, op) (rate(store_operations_total{status="error"}[5m]))
var StoreOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "store_operations_total",
		Help: "Total number of table store operations, by table, operation, and status.",
	},
	[]string{"table", "op", "status"},
)

// Resource states for ResourcesGauge.
const (
	StateActive  = "active"
	StatePending = "pending"
)

// ResourcesGauge holds the number of resources per state, sampled by the
// resource stats job.
//
//	resources{state="pending"}
var ResourcesGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "resources",
		Help: "Current number of resources, by state (active, pending).",
	},
	[]string{"state"},
)

// DBOpenConnections tracks open connections held by the sql.DB pool when the
// postgres backend is in use. Sampled by StartDBStatsCollector.
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector samples pool statistics every 30 seconds until ctx is
// cancelled or the database stops answering pings.
func StartDBStatsCollector(ctx context.Context, db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := db.PingContext(ctx); err != nil {
					slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
					return
				}
				DBOpenConnections.Set(float64(db.Stats().OpenConnections))
			}
		}
	}()
}

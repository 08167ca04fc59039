// Package httpapi exposes the bridge's operational HTTP surface:
// liveness/readiness checks and read-only swap status queries. It
// carries no write paths — every state transition happens inside the
// signer/leader poll loops, never in response to an HTTP request.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/certen-labs/fedbridge/pkg/chaina"
	"github.com/certen-labs/fedbridge/pkg/chainb"
	"github.com/certen-labs/fedbridge/pkg/metrics"
	"github.com/certen-labs/fedbridge/pkg/store"
)

// chainHealth is the narrow surface a chain adapter needs to expose for
// the readiness endpoint to report it separately from the others.
type chainHealth interface {
	Health(ctx context.Context) error
}

// dbHealth is the narrow database surface the readiness endpoint needs.
type dbHealth interface {
	Ping(ctx context.Context) error
}

// HealthHandlers reports process liveness and the reachability of every
// dependency the bridge relies on.
type HealthHandlers struct {
	db        dbHealth
	chainA    chainHealth
	chainB    chainHealth
	metrics   *metrics.Registry
	startedAt time.Time
	timeout   time.Duration
}

// NewHealthHandlers returns HealthHandlers checking db, chainA, and
// chainB on every readiness request.
func NewHealthHandlers(db dbHealth, chainA, chainB chainHealth, reg *metrics.Registry) *HealthHandlers {
	return &HealthHandlers{db: db, chainA: chainA, chainB: chainB, metrics: reg, startedAt: time.Now(), timeout: 5 * time.Second}
}

// livez always reports ok once the process is serving HTTP at all; it
// never touches a dependency, so a dependency outage can't make the
// orchestrator kill and restart an otherwise-fine process.
func (h *HealthHandlers) HandleLivez(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// readinessReport is the JSON body HandleReadyz returns.
type readinessReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HandleReadyz checks every dependency and reports degraded (503) if
// any of them fails, so a load balancer or orchestrator can pull the
// instance out of rotation without killing it.
func (h *HealthHandlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	} else {
		checks["database"] = "ok"
	}
	if err := h.chainA.Health(ctx); err != nil {
		checks["chain_a"] = err.Error()
		healthy = false
		h.metrics.ChainHealth.WithLabelValues("chain_a").Set(0)
	} else {
		checks["chain_a"] = "ok"
		h.metrics.ChainHealth.WithLabelValues("chain_a").Set(1)
	}
	if err := h.chainB.Health(ctx); err != nil {
		checks["chain_b"] = err.Error()
		healthy = false
		h.metrics.ChainHealth.WithLabelValues("chain_b").Set(0)
	} else {
		checks["chain_b"] = "ok"
		h.metrics.ChainHealth.WithLabelValues("chain_b").Set(1)
	}

	report := readinessReport{Checks: checks}
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		report.Status = "ok"
		w.WriteHeader(http.StatusOK)
	} else {
		report.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

var (
	_ dbHealth    = (*store.DB)(nil)
	_ chainHealth = (*chaina.Client)(nil)
	_ chainHealth = (*chainb.CLI)(nil)
)

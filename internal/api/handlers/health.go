package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthCheck represents the health status of the server
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

// CheckResult represents the result of a single health check
type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// Check statuses. "skip" marks an optional backend that is not configured.
const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "fail"
	checkSkip = "skip"
)

// HealthChecker reports on the database, when one is configured, and on
// which relay backends are wired.
type HealthChecker struct {
	pool       *pgxpool.Pool
	version    string
	gitCommit  string
	components map[string]bool
}

// NewHealthChecker builds a checker. pool may be nil when the server runs
// without a database. components maps a backend name to whether it is
// configured.
func NewHealthChecker(pool *pgxpool.Pool, version, gitCommit string, components map[string]bool) *HealthChecker {
	return &HealthChecker{
		pool:       pool,
		version:    version,
		gitCommit:  gitCommit,
		components: components,
	}
}

// Health returns a comprehensive health check handler
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "shutting_down"})
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":   h.checkDatabase(ctx),
			"migrations": h.checkMigrations(ctx),
		}
		for name, configured := range h.components {
			checks[name] = componentCheck(configured)
		}

		status, code := overall(checks)
		writeJSON(w, code, HealthCheck{
			Status:    status,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// overall folds individual checks into healthy, degraded or unhealthy.
func overall(checks map[string]CheckResult) (string, int) {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	for _, name := range names {
		switch checks[name].Status {
		case checkFail:
			return "unhealthy", http.StatusServiceUnavailable
		case checkWarn:
			status = "degraded"
		}
	}
	return status, http.StatusOK
}

func componentCheck(configured bool) CheckResult {
	if configured {
		return CheckResult{Status: checkPass, Message: "Configured"}
	}
	return CheckResult{Status: checkWarn, Message: "Not configured, step will be skipped"}
}

// checkDatabase verifies PostgreSQL connection and query execution
func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.pool == nil {
		return CheckResult{
			Status:  checkSkip,
			Message: "Database not configured, serving the legacy roster",
		}
	}

	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	err := h.pool.QueryRow(dbCtx, "SELECT 1").Scan(&result)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Database query failed"
		details := map[string]any{"error": err.Error()}
		switch {
		case errors.Is(err, context.DeadlineExceeded) || dbCtx.Err() == context.DeadlineExceeded:
			message = "Database query timed out after 2 seconds"
			details["remediation"] = "Check PostgreSQL performance or network latency"
		case strings.Contains(err.Error(), "connection refused"):
			message = "Database connection refused"
			details["remediation"] = "Verify PostgreSQL is running and DATABASE_URL host/port are correct"
		case strings.Contains(err.Error(), "authentication failed"):
			message = "Database authentication failed"
			details["remediation"] = "Verify DATABASE_URL username and password are correct"
		default:
			details["remediation"] = "Check DATABASE_URL and PostgreSQL service status"
		}
		return CheckResult{Status: checkFail, Message: message, LatencyMs: latency, Details: details}
	}

	stats := h.pool.Stat()
	return CheckResult{
		Status:    checkPass,
		Message:   "PostgreSQL connection successful",
		LatencyMs: latency,
		Details: map[string]any{
			"max_connections":      stats.MaxConns(),
			"total_connections":    stats.TotalConns(),
			"idle_connections":     stats.IdleConns(),
			"acquired_connections": stats.AcquiredConns(),
		},
	}
}

// checkMigrations reports the applied schema version and fails on a dirty
// state.
func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.pool == nil {
		return CheckResult{Status: checkSkip, Message: "Database not configured"}
	}

	start := time.Now()
	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var (
		version int64
		dirty   bool
	)
	err := h.pool.QueryRow(migCtx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Failed to query migration version"
		remediation := "Verify migrations have been applied"
		if strings.Contains(err.Error(), "does not exist") {
			message = "Migrations table not found"
			remediation = "Run: server migrate up"
		}
		return CheckResult{
			Status:    checkFail,
			Message:   message,
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error(), "remediation": remediation},
		}
	}

	if dirty {
		return CheckResult{
			Status:    checkFail,
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details: map[string]any{
				"version": version,
				"dirty":   true,
				"action":  "Do NOT run new migrations until this is resolved",
			},
		}
	}

	return CheckResult{
		Status:    checkPass,
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]any{"version": version, "dirty": false},
	}
}

// Readyz answers 200 once the database, if configured, accepts queries.
func (h *HealthChecker) Readyz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h == nil || h.pool == nil {
			writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.pool.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "not_ready"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ready"})
	})
}

// Healthz returns a lightweight liveness response
func Healthz() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
	})
}

type healthResponse struct {
	Status string `json:"status"`
}

package apihttp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"receivables-cloud/internal/audit"
	"receivables-cloud/internal/auth"
	ledger "receivables-cloud/internal/ledger/domain"
	"receivables-cloud/internal/observability/metrics"
	reconcileapp "receivables-cloud/internal/reconcile/application"
	reconcile "receivables-cloud/internal/reconcile/domain"
	statsapp "receivables-cloud/internal/stats/application"
)

// RunReader reads persisted bulk reconciliation runs.
type RunReader interface {
	ListRuns(ctx context.Context, limit int) ([]reconcile.Report, error)
	LatestRun(ctx context.Context) (reconcile.Report, error)
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	kind, status := classifyError(err)
	writeJSON(w, status, errorEnvelope{Error: errorBody{Kind: kind, Message: err.Error()}})
}

func classifyError(err error) (string, int) {
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return "not_found", http.StatusNotFound
	case errors.Is(err, statsapp.ErrInvalidScope):
		return "invalid_scope", http.StatusBadRequest
	case errors.Is(err, ledger.ErrWriteConflict):
		return "conflict", http.StatusConflict
	case errors.Is(err, ledger.ErrUnavailable):
		return "ledger_unavailable", http.StatusServiceUnavailable
	default:
		return "internal", http.StatusInternalServerError
	}
}

// SummaryHandler serves the cached global receivables summary.
type SummaryHandler struct {
	stats *statsapp.Service
}

// NewSummaryHandler constructs a SummaryHandler.
func NewSummaryHandler(stats *statsapp.Service) *SummaryHandler {
	return &SummaryHandler{stats: stats}
}

// ServeHTTP handles GET /api/v1/summary.
func (h *SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.stats == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	start := time.Now()
	summary, meta, err := h.stats.GlobalSummary(r.Context())
	if err != nil {
		metrics.ObserveSummary(metrics.ResultError, time.Since(start))
		writeError(w, err)
		return
	}
	metrics.ObserveSummary(metrics.ResultSuccess, time.Since(start))
	metrics.IncCacheRequest("global", meta.Source)

	writeJSON(w, http.StatusOK, struct {
		Summary any          `json:"summary"`
		Meta    statsapp.Meta `json:"meta"`
	}{Summary: summary, Meta: meta})
}

// AccountsHandler serves per-account snapshot reads and single-account
// reconciliation under /api/v1/accounts/.
type AccountsHandler struct {
	stats     *statsapp.Service
	corrector *reconcileapp.Corrector
	auditor   audit.Logger
}

// NewAccountsHandler constructs an AccountsHandler. auditor is optional.
func NewAccountsHandler(stats *statsapp.Service, corrector *reconcileapp.Corrector, auditor audit.Logger) *AccountsHandler {
	return &AccountsHandler{stats: stats, corrector: corrector, auditor: auditor}
}

// ServeHTTP routes GET /api/v1/accounts/{id}/snapshot and
// POST /api/v1/accounts/{id}/reconcile.
func (h *AccountsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.stats == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/accounts/")
	accountID, action, ok := strings.Cut(rest, "/")
	if !ok || accountID == "" {
		http.Error(w, "account id is required", http.StatusBadRequest)
		return
	}

	switch action {
	case "snapshot":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.serveSnapshot(w, r, accountID)
	case "reconcile":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.serveReconcile(w, r, accountID)
	default:
		http.NotFound(w, r)
	}
}

func (h *AccountsHandler) serveSnapshot(w http.ResponseWriter, r *http.Request, accountID string) {
	start := time.Now()
	snap, meta, err := h.stats.AccountSnapshot(r.Context(), accountID)
	if err != nil {
		metrics.ObserveSnapshot(metrics.ResultError, time.Since(start))
		writeError(w, err)
		return
	}
	metrics.ObserveSnapshot(metrics.ResultSuccess, time.Since(start))
	metrics.IncCacheRequest("representative", meta.Source)

	writeJSON(w, http.StatusOK, struct {
		Snapshot any          `json:"snapshot"`
		Meta     statsapp.Meta `json:"meta"`
	}{Snapshot: snap, Meta: meta})
}

func (h *AccountsHandler) serveReconcile(w http.ResponseWriter, r *http.Request, accountID string) {
	if h.corrector == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	record, err := h.corrector.Reconcile(r.Context(), accountID)
	metrics.IncCorrection(string(record.Status))
	h.logAudit(r, audit.ActionReconcileAccount, "account", accountID, record)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *AccountsHandler) logAudit(r *http.Request, action, resourceType, resourceID string, detail any) {
	if h.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(detail)
	_ = h.auditor.Log(r.Context(), audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

// ReconcileAllHandler triggers a full bulk reconciliation run.
type ReconcileAllHandler struct {
	bulk    *reconcileapp.Bulk
	auditor audit.Logger
	timeout time.Duration
}

// NewReconcileAllHandler constructs a ReconcileAllHandler. auditor is
// optional; timeout bounds the run when positive.
func NewReconcileAllHandler(bulk *reconcileapp.Bulk, auditor audit.Logger, timeout time.Duration) *ReconcileAllHandler {
	return &ReconcileAllHandler{bulk: bulk, auditor: auditor, timeout: timeout}
}

// ServeHTTP handles POST /api/v1/reconciliation/run.
func (h *ReconcileAllHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.bulk == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	report, err := h.bulk.ReconcileAll(ctx)
	if err != nil {
		metrics.ObserveBulkRun(metrics.ResultError, 0, time.Since(start))
		writeError(w, err)
		return
	}
	result := metrics.ResultSuccess
	if report.Canceled {
		result = "canceled"
	}
	metrics.ObserveBulkRun(result, report.Total, time.Since(start))

	if h.auditor != nil {
		summary := report
		summary.Corrections = nil
		metadata, _ := json.Marshal(summary)
		_ = h.auditor.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       audit.ActionReconcileAll,
			ResourceType: "reconciliation_run",
			ResourceID:   report.RunID,
			Metadata:     metadata,
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
	writeJSON(w, http.StatusOK, report)
}

// RunsHandler lists recent reconciliation runs without correction detail.
type RunsHandler struct {
	runs RunReader
}

// NewRunsHandler constructs a RunsHandler.
func NewRunsHandler(runs RunReader) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// ServeHTTP handles GET /api/v1/reconciliation/runs.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.runs == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	reports, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if reports == nil {
		reports = []reconcile.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// InvalidateHandler drops statistics cache scopes on demand.
type InvalidateHandler struct {
	stats   *statsapp.Service
	auditor audit.Logger
}

// NewInvalidateHandler constructs an InvalidateHandler. auditor is optional.
func NewInvalidateHandler(stats *statsapp.Service, auditor audit.Logger) *InvalidateHandler {
	return &InvalidateHandler{stats: stats, auditor: auditor}
}

// ServeHTTP handles POST /api/v1/cache/invalidate.
func (h *InvalidateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.stats == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Scope string `json:"scope"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	scope, err := h.stats.Invalidate(body.Scope)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncCacheInvalidation(scopeKind(scope))

	if h.auditor != nil {
		metadata, _ := json.Marshal(body)
		_ = h.auditor.Log(r.Context(), audit.Entry{
			Actor:        auth.SubjectFromContext(r.Context()),
			Role:         string(auth.RoleFromContext(r.Context())),
			Action:       audit.ActionCacheInvalidate,
			ResourceType: "cache_scope",
			ResourceID:   string(scope),
			Metadata:     metadata,
			IP:           audit.ClientIP(r),
			UserAgent:    r.UserAgent(),
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Invalidated string `json:"invalidated"`
	}{Invalidated: string(scope)})
}

func scopeKind(scope statsapp.Scope) string {
	if scope.AccountID() != "" {
		return "representative"
	}
	return string(scope)
}

// ActivitiesHandler serves the cached recent-activity feed.
type ActivitiesHandler struct {
	stats *statsapp.Service
}

// NewActivitiesHandler constructs an ActivitiesHandler.
func NewActivitiesHandler(stats *statsapp.Service) *ActivitiesHandler {
	return &ActivitiesHandler{stats: stats}
}

// ServeHTTP handles GET /api/v1/activities.
func (h *ActivitiesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.stats == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	records, meta, err := h.stats.RecentActivities(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.IncCacheRequest("recent-activities", meta.Source)
	writeJSON(w, http.StatusOK, struct {
		Activities any          `json:"activities"`
		Meta       statsapp.Meta `json:"meta"`
	}{Activities: records, Meta: meta})
}

// HealthHandler reports process and database health.
type HealthHandler struct {
	db *sql.DB
}

// NewHealthHandler constructs a HealthHandler. db is optional.
func NewHealthHandler(db *sql.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// ServeHTTP handles GET /healthz. The probe exercises a cheap database
// round trip and reports its latency alongside the status.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status := "ok"
	code := http.StatusOK
	start := time.Now()
	if h != nil && h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, struct {
		Status    string `json:"status"`
		LatencyMs int64  `json:"latency_ms"`
	}{Status: status, LatencyMs: time.Since(start).Milliseconds()})
}

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/kestrel/internal/batch"
	"github.com/opensource-finance/kestrel/internal/delta"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/history"
	"github.com/opensource-finance/kestrel/internal/metro2"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// auditCacheTTL bounds how long an identical record skips re-evaluation.
const auditCacheTTL = 5 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	evaluator    *rules.Evaluator
	customEngine *rules.CustomEngine
	processor    *risk.Processor
	detector     *batch.Detector
	history      *history.Service
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		repo:         deps.Repo,
		cache:        deps.Cache,
		bus:          deps.Bus,
		evaluator:    deps.Evaluator,
		customEngine: deps.CustomEngine,
		processor:    deps.Processor,
		detector:     deps.Detector,
		history:      deps.History,
		version:      deps.Version,
	}
}

// AuditRequest is the request body for POST /audit.
type AuditRequest struct {
	AccountID    string                 `json:"accountId"`
	Record       domain.AccountRecord   `json:"record"`
	Jurisdiction string                 `json:"jurisdiction,omitempty"`
	CrossBureau  []domain.AccountRecord `json:"crossBureau,omitempty"`
}

// Audit handles POST /audit requests: evaluates one account record
// through the full pipeline and returns the persisted audit.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req AuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Record) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "record is required",
		})
		return
	}

	accountID := req.AccountID
	if accountID == "" {
		accountID = req.Record[domain.FieldAccountID]
	}

	// Identical records within the TTL are served from cache.
	fingerprint := req.Record.Fingerprint()
	if h.cache != nil {
		cached, err := h.cache.GetAudit(ctx, tenantID, fingerprint)
		if err != nil {
			slog.Error("audit cache lookup failed", "error", err)
		} else if cached != nil {
			cached.Metadata.CacheHit = true
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	// Prior snapshots feed the contextual rule pass.
	var snapshots []*domain.Snapshot
	if h.history != nil && accountID != "" {
		snaps, err := h.history.GetHistory(ctx, tenantID, accountID)
		if err != nil {
			slog.Error("failed to load snapshot history",
				"account_id", accountID,
				"error", err,
			)
		} else {
			snapshots = snaps
		}
	}

	rulesStart := time.Now()
	flags, diags := h.evaluator.EvaluateWithContext(ctx, tenantID, req.Record, &rules.Context{
		Jurisdiction: req.Jurisdiction,
		History:      snapshots,
		CrossBureau:  req.CrossBureau,
	})
	rulesMs := time.Since(rulesStart).Milliseconds()

	audit := h.processor.Process(ctx, &risk.AuditInput{
		TenantID:    tenantID,
		AccountID:   accountID,
		TraceID:     traceID,
		Flags:       flags,
		Diagnostics: diags,
		RulesMs:     rulesMs,
		StartTime:   start,
	})

	if h.repo != nil {
		snap := &domain.Snapshot{
			AccountID:  accountID,
			TenantID:   tenantID,
			Record:     req.Record,
			CapturedAt: time.Now().UTC(),
		}
		if err := h.repo.SaveSnapshot(ctx, tenantID, snap); err != nil {
			slog.Error("failed to save snapshot", "account_id", accountID, "error", err)
		}
		if err := h.repo.SaveAudit(ctx, tenantID, audit); err != nil {
			slog.Error("failed to save audit", "audit_id", audit.ID, "error", err)
		}
	}

	if h.cache != nil {
		if err := h.cache.SetAudit(ctx, tenantID, fingerprint, audit, auditCacheTTL); err != nil {
			slog.Error("failed to cache audit", "audit_id", audit.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(audit)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAuditCompleted, payload); err != nil {
			slog.Error("failed to publish audit result", "audit_id", audit.ID, "error", err)
		}
		if audit.ShouldAlert() {
			if err := h.bus.Publish(ctx, tenantID, domain.TopicAuditAlert, payload); err != nil {
				slog.Error("failed to publish alert", "audit_id", audit.ID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, audit)
}

// BatchRequest is the request body for POST /audit/batch.
type BatchRequest struct {
	Records []domain.AccountRecord `json:"records"`
}

// AuditBatch handles POST /audit/batch: evaluates every record and
// correlates near-duplicate tradelines across the batch.
func (h *Handler) AuditBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "records is required",
		})
		return
	}

	result := h.detector.EvaluateBatch(ctx, req.Records)
	writeJSON(w, http.StatusOK, result)
}

// DeltaRequest is the request body for POST /audit/delta.
type DeltaRequest struct {
	Older domain.AccountRecord `json:"older"`
	Newer domain.AccountRecord `json:"newer"`
}

// AuditDelta handles POST /audit/delta: reports material changes between
// two snapshots of the same tradeline.
func (h *Handler) AuditDelta(w http.ResponseWriter, r *http.Request) {
	var req DeltaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Older) == 0 || len(req.Newer) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "older and newer records are required",
		})
		return
	}

	deltas := delta.CompareSnapshots(req.Older, req.Newer)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"deltas": deltas,
		"count":  len(deltas),
	})
}

// SeriesRequest is the request body for POST /audit/series. History may
// be supplied inline or loaded from the account's stored snapshots.
type SeriesRequest struct {
	AccountID string               `json:"accountId"`
	History   []*domain.Snapshot   `json:"history,omitempty"`
	Current   domain.AccountRecord `json:"current"`
}

// AuditSeries handles POST /audit/series: longitudinal analysis across
// at least two historical snapshots plus the current record.
func (h *Handler) AuditSeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req SeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Current) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "current record is required",
		})
		return
	}

	snapshots := req.History
	if len(snapshots) == 0 && req.AccountID != "" && h.history != nil {
		stored, err := h.history.GetHistory(ctx, tenantID, req.AccountID)
		if err != nil {
			slog.Error("failed to load snapshot history",
				"account_id", req.AccountID,
				"error", err,
			)
		} else {
			snapshots = stored
		}
	}

	if len(snapshots) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "series analysis requires at least two historical snapshots",
		})
		return
	}

	insights := delta.CompareSeries(snapshots, req.Current)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"insights":  insights,
		"count":     len(insights),
		"spanPulls": len(snapshots) + 1,
	})
}

// ValidateMetro2 handles POST /metro2/validate: structural validation of
// one record against the reporting format rules.
func (h *Handler) ValidateMetro2(w http.ResponseWriter, r *http.Request) {
	var record domain.AccountRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(record) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "record is required",
		})
		return
	}

	report := metro2.Validate(record)
	writeJSON(w, http.StatusOK, report)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetAudit retrieves a persisted audit by ID.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	auditID := chi.URLParam(r, "id")

	if auditID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "audit id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	audit, err := h.repo.GetAudit(ctx, tenantID, auditID)
	if err != nil {
		slog.Error("failed to get audit", "id", auditID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "audit not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, audit)
}

// GetAccountHistory retrieves the capture-ordered snapshot history for
// an account.
func (h *Handler) GetAccountHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	accountID := chi.URLParam(r, "id")

	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "account id is required",
		})
		return
	}

	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history service not available",
		})
		return
	}

	snapshots, err := h.history.GetHistory(ctx, tenantID, accountID)
	if err != nil {
		slog.Error("failed to get history", "account_id", accountID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load history",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accountId": accountID,
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// ListRules returns the tenant's stored custom rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	configs, err := h.repo.ListCustomRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list custom rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": configs,
		"count": len(configs),
	})
}

// GetRule retrieves a custom rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	cfg, err := h.repo.GetCustomRule(ctx, tenantID, ruleID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, cfg)
}

// CreateRuleRequest is the request body for creating a custom rule.
type CreateRuleRequest struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Expression  string          `json:"expression"`
	Severity    domain.Severity `json:"severity"`
	Explanation string          `json:"explanation,omitempty"`
	Citations   []string        `json:"citations,omitempty"`
	Enabled     bool            `json:"enabled"`
}

// CreateRule validates, persists, and hot-loads a tenant custom rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	cfg := &domain.CustomRuleConfig{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Severity:    req.Severity,
		Explanation: req.Explanation,
		Citations:   req.Citations,
		Enabled:     req.Enabled,
	}

	// Validate the CEL expression before anything is persisted.
	if h.customEngine != nil {
		if err := h.customEngine.ValidateRule(cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid rule expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveCustomRule(ctx, tenantID, cfg); err != nil {
			slog.Error("failed to save custom rule", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	if h.customEngine != nil && cfg.Enabled {
		if err := h.customEngine.LoadRule(cfg); err != nil {
			slog.Error("failed to load custom rule", "id", cfg.ID, "error", err)
		}
	}

	slog.Info("custom rule created", "id", cfg.ID, "name", cfg.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    cfg,
		"message": "Rule created and loaded.",
	})
}

// ReloadRules reloads all enabled custom rules from the database into
// the engine. This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if h.customEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "custom rule engine not available",
		})
		return
	}

	configs, err := h.repo.ListEnabledCustomRules(ctx)
	if err != nil {
		slog.Error("failed to list custom rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.customEngine.ReloadRules(configs); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("custom rules reloaded from database", "count", len(configs))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(configs),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Package worker provides async audit processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/rules"
)

// Worker processes audit requests asynchronously from the EventBus.
type Worker struct {
	bus       domain.EventBus
	repo      domain.Repository
	evaluator *rules.Evaluator
	processor *risk.Processor

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, evaluator *rules.Evaluator, processor *risk.Processor) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       bus,
		repo:      repo,
		evaluator: evaluator,
		processor: processor,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAuditRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAuditRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processAudit(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAuditRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processAudit(ctx, msg.TenantID, msg)
}

// AuditRequestMessage is the message payload for async audit processing.
type AuditRequestMessage struct {
	AccountID    string                 `json:"accountId"`
	TenantID     string                 `json:"tenantId"`
	TraceID      string                 `json:"traceId"`
	Record       domain.AccountRecord   `json:"record"`
	Jurisdiction string                 `json:"jurisdiction,omitempty"`
	CrossBureau  []domain.AccountRecord `json:"crossBureau,omitempty"`
}

// processAudit evaluates an account record through the pipeline.
func (w *Worker) processAudit(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var req AuditRequestMessage
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse audit request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if req.TenantID != "" {
		tenantID = req.TenantID
	}

	if req.AccountID == "" {
		req.AccountID = req.Record["accountId"]
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	slog.Debug("processing audit request",
		"account_id", req.AccountID,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Load the account's snapshot history for the contextual rules.
	var history []*domain.Snapshot
	if w.repo != nil && req.AccountID != "" {
		snaps, err := w.repo.ListSnapshots(ctx, tenantID, req.AccountID)
		if err != nil {
			slog.Error("failed to load snapshot history",
				"account_id", req.AccountID,
				"error", err,
			)
		} else {
			history = snaps
		}
	}

	// 2. Evaluate the rule catalog plus contextual and custom rules.
	rulesStart := time.Now()
	flags, diags := w.evaluator.EvaluateWithContext(ctx, tenantID, req.Record, &rules.Context{
		Jurisdiction: req.Jurisdiction,
		History:      history,
		CrossBureau:  req.CrossBureau,
	})
	rulesMs := time.Since(rulesStart).Milliseconds()

	// 3. Aggregate into the final audit.
	audit := w.processor.Process(ctx, &risk.AuditInput{
		TenantID:    tenantID,
		AccountID:   req.AccountID,
		TraceID:     traceID,
		Flags:       flags,
		Diagnostics: diags,
		RulesMs:     rulesMs,
		StartTime:   start,
	})

	// 4. Persist the snapshot and the audit.
	if w.repo != nil {
		snap := &domain.Snapshot{
			AccountID:  req.AccountID,
			TenantID:   tenantID,
			Record:     req.Record,
			CapturedAt: time.Now().UTC(),
		}
		if err := w.repo.SaveSnapshot(ctx, tenantID, snap); err != nil {
			slog.Error("failed to save snapshot",
				"account_id", req.AccountID,
				"error", err,
			)
		}
		if err := w.repo.SaveAudit(ctx, tenantID, audit); err != nil {
			slog.Error("failed to save audit",
				"account_id", req.AccountID,
				"error", err,
			)
		}
	}

	// 5. Publish the completed audit.
	resultPayload, _ := json.Marshal(audit)
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAuditCompleted, resultPayload); err != nil {
		slog.Error("failed to publish audit result",
			"account_id", req.AccountID,
			"error", err,
		)
	}

	// 6. If the audit warrants attention, publish to the alert topic.
	if audit.ShouldAlert() {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicAuditAlert, resultPayload); err != nil {
			slog.Error("failed to publish alert",
				"account_id", req.AccountID,
				"error", err,
			)
		}
	}

	slog.Info("audit processed",
		"account_id", req.AccountID,
		"tenant_id", tenantID,
		"risk_level", audit.Risk.RiskLevel,
		"score", audit.Risk.OverallScore,
		"flag_count", len(flags),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

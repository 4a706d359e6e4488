// Package worker generates reports asynchronously from the EventBus.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/opensource-finance/agencysim/internal/bus"
	"github.com/opensource-finance/agencysim/internal/domain"
	"github.com/opensource-finance/agencysim/internal/pipeline"
)

// Worker consumes report requests and runs them through the pipeline.
type Worker struct {
	bus       domain.EventBus
	processor *pipeline.Processor
	logger    *slog.Logger

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all tenants)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(eventBus domain.EventBus, processor *pipeline.Processor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:       eventBus,
		processor: processor,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins processing report requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		if err := w.subscribe(domain.AllTenants); err != nil {
			return err
		}
		w.logger.Info("worker started for all tenants", "topic", domain.TopicReportRequested)
		return nil
	}

	started := 0
	for _, tenantID := range cfg.TenantIDs {
		if err := w.subscribe(tenantID); err != nil {
			w.logger.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
		started++
	}
	if started == 0 {
		return fmt.Errorf("no tenant subscriptions could be started")
	}

	w.logger.Info("workers started",
		"tenant_count", started,
	)
	return nil
}

func (w *Worker) subscribe(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicReportRequested, w.handleRequest)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.subscriptions = append(w.subscriptions, sub)
	w.mu.Unlock()
	return nil
}

// handleRequest decodes a report request and processes it for the tenant
// the message was published under.
func (w *Worker) handleRequest(ctx context.Context, msg *domain.Message) error {
	var req pipeline.ReportRequest
	if err := bus.Decode(msg, &req); err != nil {
		w.logger.Error("failed to parse report request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if req.TraceID == "" {
		req.TraceID = msg.ID
	}

	w.logger.Debug("processing report request",
		"tenant_id", msg.TenantID,
		"report_id", req.ReportID,
		"trace_id", req.TraceID,
	)

	if _, _, err := w.processor.Process(ctx, msg.TenantID, &req); err != nil {
		w.logger.Error("report request failed",
			"tenant_id", msg.TenantID,
			"report_id", req.ReportID,
			"error", err,
		)
		return err
	}
	return nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	w.logger.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}

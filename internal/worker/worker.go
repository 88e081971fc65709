// Package worker consumes bus events outside the request path.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Pris83/retirement-calculator/internal/domain"
	"github.com/Pris83/retirement-calculator/internal/metrics"
)

// HistoryWriter stores calculation records.
type HistoryWriter interface {
	SaveCalculation(ctx context.Context, record *domain.CalculationRecord) error
}

// Worker stores every plan.calculated event as history and logs cache refreshes.
type Worker struct {
	bus     domain.EventBus
	history HistoryWriter

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new audit worker.
func NewWorker(bus domain.EventBus, history HistoryWriter) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		history: history,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to the calculation and cache topics.
func (w *Worker) Start() error {
	handlers := map[string]domain.MessageHandler{
		domain.TopicPlanCalculated: w.handlePlanCalculated,
		domain.TopicCacheRefreshed: w.handleCacheRefreshed,
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for topic, handler := range handlers {
		sub, err := w.bus.Subscribe(w.ctx, topic, handler)
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("audit worker started", "topics", len(w.subscriptions))
	return nil
}

func (w *Worker) handlePlanCalculated(ctx context.Context, msg *domain.Message) (err error) {
	defer func() { metrics.AuditRecordsTotal.WithLabelValues(metrics.Outcome(err)).Inc() }()

	record, err := decodePlanEvent(msg)
	if err != nil {
		slog.Error("failed to parse plan event", "message_id", msg.ID, "error", err)
		return err
	}

	if err := w.history.SaveCalculation(ctx, record); err != nil {
		slog.Error("failed to save calculation", "id", record.ID, "error", err)
		return err
	}

	slog.Debug("calculation recorded",
		"id", record.ID,
		"lifestyle_type", record.LifestyleType,
		"future_value", record.FutureValue.StringFixed(2),
	)
	return nil
}

func (w *Worker) handleCacheRefreshed(ctx context.Context, msg *domain.Message) error {
	var event domain.CacheRefreshedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		slog.Error("failed to parse cache event", "message_id", msg.ID, "error", err)
		return err
	}
	slog.Info("cache refresh observed", "all", event.All, "loaded", event.Loaded, "keys", event.Keys)
	return nil
}

func decodePlanEvent(msg *domain.Message) (*domain.CalculationRecord, error) {
	var event domain.PlanCalculatedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, err
	}

	id := event.ID
	if id == "" {
		id = msg.ID
	}

	record := &domain.CalculationRecord{
		ID:            id,
		CurrentAge:    event.CurrentAge,
		RetirementAge: event.RetirementAge,
		LifestyleType: event.LifestyleType,
		CreatedAt:     time.UnixMilli(event.CalculatedAt).UTC(),
	}
	if event.CalculatedAt == 0 {
		record.CreatedAt = time.Unix(0, msg.Timestamp).UTC()
	}

	fields := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"interestRate", event.InterestRate, &record.InterestRate},
		{"monthlyDeposit", event.MonthlyDeposit, &record.MonthlyDeposit},
		{"futureValue", event.FutureValue, &record.FutureValue},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", f.name, f.value, err)
		}
		*f.dst = d
	}
	return record, nil
}

// Stop unsubscribes and cancels in-flight handlers.
func (w *Worker) Stop() error {
	w.cancel()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe", "topic", sub.Topic(), "error", err)
		}
	}
	w.subscriptions = nil

	slog.Info("audit worker stopped")
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

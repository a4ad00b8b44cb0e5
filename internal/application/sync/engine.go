// Package sync orchestrates the pipeline: fetch orders from the merchant
// back office, match amounts to products, and push the result to the
// remote store exactly once per order.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/eshaffer321/tonglian-sync-backend/internal/adapters/backoffice"
	"github.com/eshaffer321/tonglian-sync-backend/internal/domain/matcher"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/storage"
)

const sourceName = "通联支付"

// Engine pushes matched orders to the remote store with three layers of
// idempotency: an in-process seen set, the local ledger, and an existence
// check against the remote lookup bucket.
type Engine struct {
	remote  RemoteStore
	repo    storage.Repository
	matcher *matcher.Matcher
	logger  *slog.Logger

	mu   gosync.Mutex
	seen map[string]bool
}

// NewEngine creates a sync engine. The repository may be nil, in which case
// no local ledger records are written.
func NewEngine(remote RemoteStore, repo storage.Repository, m *matcher.Matcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		remote:  remote,
		repo:    repo,
		matcher: m,
		logger:  logger,
		seen:    make(map[string]bool),
	}
}

// SyncOne pushes a single order. Every terminal outcome is appended to the
// remote sync log; successful and failed pushes also land in the ledger.
func (e *Engine) SyncOne(ctx context.Context, order backoffice.RawOrderRecord, strategy backoffice.ParseStrategy, opts Options) (Outcome, error) {
	orderID := order.ExternalID

	if !opts.Force {
		if e.alreadySeen(orderID) {
			e.logger.Debug("Skipping order seen this process", "order_id", orderID)
			_ = e.remote.AppendSyncLog(ctx, orderID, "skipped", nil)
			return OutcomeSkipped, nil
		}
		if e.repo != nil && e.repo.IsSynced(orderID) {
			e.logger.Debug("Skipping order found in local ledger", "order_id", orderID)
			e.markSeen(orderID)
			_ = e.remote.AppendSyncLog(ctx, orderID, "skipped", nil)
			return OutcomeSkipped, nil
		}
	}

	exists, err := e.remote.OrderExists(ctx, orderID)
	if err != nil {
		e.recordFailure(order, strategy, fmt.Sprintf("existence check failed: %v", err))
		return OutcomeFailed, fmt.Errorf("existence check for %s failed: %w", orderID, err)
	}
	if exists && !opts.Force {
		e.logger.Info("Order already in remote store, skipping", "order_id", orderID)
		e.markSeen(orderID)
		e.recordSkip(order, strategy)
		_ = e.remote.AppendSyncLog(ctx, orderID, "skipped", nil)
		return OutcomeSkipped, nil
	}

	products := e.matcher.Match(order.Amount)
	syncedAt := time.Now()
	key := remoteKey(syncedAt)
	payload := e.buildPayload(order, products, syncedAt)

	if err := e.remote.WriteAutoOrder(ctx, key, payload); err != nil {
		e.recordFailure(order, strategy, err.Error())
		_ = e.remote.AppendSyncLog(ctx, orderID, "error", map[string]any{"error": err.Error()})
		return OutcomeFailed, fmt.Errorf("remote write for %s failed: %w", orderID, err)
	}

	if err := e.remote.AppendSyncLog(ctx, orderID, "success", map[string]any{"key": key}); err != nil {
		// The order is already written; a log failure is not worth failing the sync
		e.logger.Warn("Sync log append failed", "order_id", orderID, "error", err)
	}

	e.markSeen(orderID)
	e.recordSuccess(order, products, strategy, key, syncedAt)

	e.logger.Info("Order synchronized",
		"order_id", orderID,
		"amount", order.Amount,
		"products", len(products),
		"match_type", primaryMatchType(products),
		"key", key,
	)
	return OutcomeSynced, nil
}

// SyncMany pushes a batch. Individual failures are collected, never fatal.
func (e *Engine) SyncMany(ctx context.Context, fetched backoffice.FetchResult, opts Options) *Result {
	result := &Result{
		OrdersFound: len(fetched.Orders),
		Strategy:    fetched.Strategy,
		Degraded:    fetched.Degraded,
		Errors:      make([]error, 0),
	}

	orders := fetched.Orders
	if opts.MaxOrders > 0 && len(orders) > opts.MaxOrders {
		orders = orders[:opts.MaxOrders]
	}

	for _, order := range orders {
		outcome, err := e.SyncOne(ctx, order, fetched.Strategy, opts)
		switch outcome {
		case OutcomeSynced:
			result.SyncedCount++
		case OutcomeSkipped:
			result.SkippedCount++
		case OutcomeFailed:
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Errorf("order %s (%.2f): %w", order.ExternalID, order.Amount, err))
		}
	}

	return result
}

func (e *Engine) buildPayload(order backoffice.RawOrderRecord, products []matcher.MatchedProduct, syncedAt time.Time) map[string]any {
	names := make([]string, 0, len(products))
	details := make([]map[string]any, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
		details = append(details, map[string]any{
			"name":       p.Name,
			"category":   p.Category,
			"amount":     p.Amount,
			"match_type": string(p.MatchType),
			"confidence": p.Confidence,
		})
	}

	payload := map[string]any{
		"order_id":  order.ExternalID,
		"amount":    order.Amount,
		"products":  names,
		"details":   details,
		"source":    sourceName,
		"createdAt": order.CreateTime,
		"sync_time": syncedAt.Format(time.RFC3339),
	}
	if order.PayTime != "" {
		payload["pay_time"] = order.PayTime
	}
	if order.Status != "" {
		payload["status"] = order.Status
	}
	if order.PaymentMethod != "" {
		payload["payment_method"] = order.PaymentMethod
	}
	if order.Synthetic {
		payload["synthetic"] = true
	}
	return payload
}

func (e *Engine) recordSuccess(order backoffice.RawOrderRecord, products []matcher.MatchedProduct, strategy backoffice.ParseStrategy, key string, syncedAt time.Time) {
	if e.repo == nil {
		return
	}
	details := make([]storage.ProductDetail, 0, len(products))
	for _, p := range products {
		details = append(details, storage.ProductDetail{
			Name:       p.Name,
			Category:   p.Category,
			Amount:     p.Amount,
			MatchType:  string(p.MatchType),
			Confidence: p.Confidence,
		})
	}
	record := &storage.SyncRecord{
		OrderID:    order.ExternalID,
		Amount:     order.Amount,
		Status:     storage.StatusSuccess,
		MatchType:  string(primaryMatchType(products)),
		Confidence: primaryConfidence(products),
		Strategy:   string(strategy),
		RemoteKey:  key,
		SyncedAt:   syncedAt,
		Products:   details,
	}
	if err := e.repo.SaveRecord(record); err != nil {
		e.logger.Warn("Failed to write ledger record", "order_id", order.ExternalID, "error", err)
	}
}

func (e *Engine) recordFailure(order backoffice.RawOrderRecord, strategy backoffice.ParseStrategy, message string) {
	if e.repo == nil {
		return
	}
	record := &storage.SyncRecord{
		OrderID:      order.ExternalID,
		Amount:       order.Amount,
		Status:       storage.StatusError,
		Strategy:     string(strategy),
		ErrorMessage: message,
		SyncedAt:     time.Now(),
	}
	if err := e.repo.SaveRecord(record); err != nil {
		e.logger.Warn("Failed to write ledger record", "order_id", order.ExternalID, "error", err)
	}
}

func (e *Engine) recordSkip(order backoffice.RawOrderRecord, strategy backoffice.ParseStrategy) {
	if e.repo == nil {
		return
	}
	record := &storage.SyncRecord{
		OrderID:  order.ExternalID,
		Amount:   order.Amount,
		Status:   storage.StatusSkipped,
		Strategy: string(strategy),
		SyncedAt: time.Now(),
	}
	if err := e.repo.SaveRecord(record); err != nil {
		e.logger.Warn("Failed to write ledger record", "order_id", order.ExternalID, "error", err)
	}
}

func (e *Engine) alreadySeen(orderID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seen[orderID]
}

func (e *Engine) markSeen(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seen[orderID] = true
}

// remoteKey buckets a write under a millisecond-resolution timestamp so
// repeated runs never collide or overwrite.
func remoteKey(t time.Time) string {
	return fmt.Sprintf("%s_%03d", t.Format("20060102_150405"), t.Nanosecond()/1e6)
}

func primaryMatchType(products []matcher.MatchedProduct) matcher.MatchType {
	if len(products) == 0 {
		return matcher.MatchDefault
	}
	return products[0].MatchType
}

func primaryConfidence(products []matcher.MatchedProduct) float64 {
	if len(products) == 0 {
		return 0
	}
	return products[0].Confidence
}

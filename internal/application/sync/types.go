package sync

import (
	"context"

	"github.com/eshaffer321/tonglian-sync-backend/internal/adapters/backoffice"
)

// Options holds sync configuration
type Options struct {
	LookbackDays int
	MaxOrders    int
	Force        bool // re-sync orders even if the ledger already has them
}

// Result holds the outcome of one sync pass
type Result struct {
	OrdersFound  int
	SyncedCount  int
	SkippedCount int
	ErrorCount   int
	Strategy     backoffice.ParseStrategy
	Degraded     bool
	Errors       []error
}

// Outcome classifies what happened to a single order
type Outcome string

const (
	OutcomeSynced  Outcome = "synced"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RemoteStore is the slice of the remote database the engine needs.
// Satisfied by the firebase client.
type RemoteStore interface {
	OrderExists(ctx context.Context, orderID string) (bool, error)
	WriteAutoOrder(ctx context.Context, key string, payload any) error
	AppendSyncLog(ctx context.Context, orderID, status string, data any) error
}

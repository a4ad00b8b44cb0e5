package storage

import "time"

// Record statuses
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// SyncRecord is the local ledger entry for one synchronized order
type SyncRecord struct {
	ID           int64     `json:"id"`
	OrderID      string    `json:"order_id"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
	MatchType    string    `json:"match_type,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	Strategy     string    `json:"strategy,omitempty"`
	RemoteKey    string    `json:"remote_key,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	SyncedAt     time.Time `json:"synced_at"`

	// Matched products stored as JSON
	Products     []ProductDetail `json:"products,omitempty"`
	ProductsJSON string          `json:"-"`
}

// ProductDetail is one matched product captured on the record
type ProductDetail struct {
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Amount     float64 `json:"amount"`
	MatchType  string  `json:"match_type"`
	Confidence float64 `json:"confidence"`
}

// SyncRun tracks one poll cycle
type SyncRun struct {
	ID            int64  `json:"id"`
	StartedAt     string `json:"started_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
	OrdersFound   int    `json:"orders_found"`
	OrdersSynced  int    `json:"orders_synced"`
	OrdersSkipped int    `json:"orders_skipped"`
	OrdersErrored int    `json:"orders_errored"`
	Status        string `json:"status"`
}

// Stats aggregates the ledger
type Stats struct {
	TotalOrders  int     `json:"total_orders"`
	SuccessCount int     `json:"success_count"`
	ErrorCount   int     `json:"error_count"`
	SkippedCount int     `json:"skipped_count"`
	TotalAmount  float64 `json:"total_amount"`
	TodaySynced  int     `json:"today_synced"`
	LastSyncedAt string  `json:"last_synced_at,omitempty"`
}

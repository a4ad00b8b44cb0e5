package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response with the current time.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// OrderResponse represents a ledger record in API responses.
type OrderResponse struct {
	OrderID      string            `json:"order_id"`
	Amount       float64           `json:"amount"`
	Status       string            `json:"status"`
	MatchType    string            `json:"match_type,omitempty"`
	Confidence   float64           `json:"confidence,omitempty"`
	Strategy     string            `json:"strategy,omitempty"`
	RemoteKey    string            `json:"remote_key,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	SyncedAt     string            `json:"synced_at"`
	Products     []ProductResponse `json:"products,omitempty"`
}

// ProductResponse represents a matched product within an order.
type ProductResponse struct {
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	Amount     float64 `json:"amount"`
	MatchType  string  `json:"match_type"`
	Confidence float64 `json:"confidence"`
}

// OrderListResponse is returned when listing ledger records.
type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Count  int             `json:"count"`
}

// SyncRunResponse represents one poll cycle.
type SyncRunResponse struct {
	ID            int64  `json:"id"`
	StartedAt     string `json:"started_at"`
	CompletedAt   string `json:"completed_at,omitempty"`
	OrdersFound   int    `json:"orders_found"`
	OrdersSynced  int    `json:"orders_synced"`
	OrdersSkipped int    `json:"orders_skipped"`
	OrdersErrored int    `json:"orders_errored"`
	Status        string `json:"status"`
}

// SyncRunListResponse is returned when listing sync runs.
type SyncRunListResponse struct {
	Runs  []SyncRunResponse `json:"runs"`
	Count int               `json:"count"`
}

// StatsResponse holds aggregate ledger statistics.
type StatsResponse struct {
	TotalOrders  int     `json:"total_orders"`
	SuccessCount int     `json:"success_count"`
	ErrorCount   int     `json:"error_count"`
	SkippedCount int     `json:"skipped_count"`
	TotalAmount  float64 `json:"total_amount"`
	TodaySynced  int     `json:"today_synced"`
	LastSyncedAt string  `json:"last_synced_at,omitempty"`
}

// MappingResponse represents a product mapping.
type MappingResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	ExactAmount  *float64  `json:"exact_amount,omitempty"`
	AmountRange  []float64 `json:"amount_range,omitempty"`
	DefaultPrice *float64  `json:"default_price,omitempty"`
}

// MappingListResponse is returned when listing product mappings.
type MappingListResponse struct {
	Mappings []MappingResponse `json:"mappings"`
	Count    int               `json:"count"`
}

// SyncResultResponse reports the outcome of a manually triggered sync.
type SyncResultResponse struct {
	OrdersFound  int      `json:"orders_found"`
	SyncedCount  int      `json:"synced_count"`
	SkippedCount int      `json:"skipped_count"`
	ErrorCount   int      `json:"error_count"`
	Strategy     string   `json:"strategy"`
	Degraded     bool     `json:"degraded"`
	Errors       []string `json:"errors,omitempty"`
}

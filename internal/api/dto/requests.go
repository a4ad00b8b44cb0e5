package dto

// AddMappingRequest creates a new product mapping.
type AddMappingRequest struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category,omitempty"`
	ExactAmount  *float64  `json:"exact_amount,omitempty"`
	AmountRange  []float64 `json:"amount_range,omitempty"`
	DefaultPrice *float64  `json:"default_price,omitempty"`
}

// TriggerSyncRequest starts a manual sync pass.
type TriggerSyncRequest struct {
	LookbackDays int  `json:"lookback_days,omitempty"`
	MaxOrders    int  `json:"max_orders,omitempty"`
	Force        bool `json:"force,omitempty"`
}

package matcher

// MatchType describes which strategy produced a match
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchRange   MatchType = "range"
	MatchCombo   MatchType = "combo"
	MatchDefault MatchType = "default"
)

// Mapping associates a monetary amount with a product identity.
// Exactly one of ExactAmount / AmountRange is expected; DefaultPrice is an
// optional representative price used by combination matching.
type Mapping struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Category     string            `json:"category,omitempty"`
	ExactAmount  *float64          `json:"exact_amount,omitempty"`
	AmountRange  []float64         `json:"amount_range,omitempty"` // [min, max]
	DefaultPrice *float64          `json:"default_price,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// HasRange reports whether the mapping declares a usable [min, max] range
func (m Mapping) HasRange() bool {
	return len(m.AmountRange) >= 2
}

// DefaultProduct is the catch-all product used when no mapping applies
type DefaultProduct struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// MappingSet is the full matching configuration, persisted as one document
type MappingSet struct {
	Mappings       []Mapping      `json:"mappings"`
	DefaultProduct DefaultProduct `json:"default_product"`
}

// MatchedProduct is one product identity resolved from an order amount
type MatchedProduct struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category"`
	Amount      float64           `json:"amount"`
	MatchType   MatchType         `json:"match_type"`
	Confidence  float64           `json:"confidence"`
	MappingID   string            `json:"mapping_id"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// Stats summarizes the configured mappings
type Stats struct {
	TotalMappings int            `json:"total_mappings"`
	ExactMappings int            `json:"exact_mappings"`
	RangeMappings int            `json:"range_mappings"`
	Categories    map[string]int `json:"categories"`
}

// Store persists the mapping configuration. Implementations rewrite the
// whole document on every save.
type Store interface {
	Save(set MappingSet) error
}

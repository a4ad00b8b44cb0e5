// Package matcher resolves order amounts into product identities.
//
// Matching strategies are tried in priority order, first non-empty result
// wins:
//  1. Exact amount match (confidence 1.0)
//  2. Range match — every range containing the amount (confidence 0.5-1.0,
//     highest at the range midpoint)
//  3. Combination match — the pair of mappings (including singletons) whose
//     summed representative price is closest to the amount within a 5%
//     tolerance (confidence 0.7, amount split evenly)
//  4. Configured default product (confidence 0.1)
//
// Confidence is advisory only; it never gates whether a match is reported.
package matcher

import (
	"fmt"
	"log/slog"
	"math"
)

// comboTolerance is the maximum relative difference accepted by
// combination matching.
const comboTolerance = 0.05

// Matcher resolves amounts against a mapping configuration
type Matcher struct {
	set    MappingSet
	store  Store
	logger *slog.Logger
}

// NewMatcher creates a matcher over the given mapping set.
// store may be nil when mutation persistence is not needed (e.g. tests).
func NewMatcher(set MappingSet, store Store, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		set:    set,
		store:  store,
		logger: logger,
	}
}

// Set returns a copy of the current mapping configuration
func (m *Matcher) Set() MappingSet {
	set := m.set
	set.Mappings = append([]Mapping(nil), m.set.Mappings...)
	return set
}

// Match resolves an order amount into one or more matched products.
// Non-positive amounts yield an empty result.
func (m *Matcher) Match(amount float64) []MatchedProduct {
	if amount <= 0 {
		m.logger.Warn("Rejecting non-positive amount", "amount", amount)
		return nil
	}

	if exact := m.findExact(amount); exact != nil {
		m.logger.Debug("Exact match", "amount", amount, "product", exact.Name)
		return []MatchedProduct{*exact}
	}

	if ranges := m.findRanges(amount); len(ranges) > 0 {
		m.logger.Debug("Range match", "amount", amount, "count", len(ranges))
		return ranges
	}

	if combo := m.findCombo(amount); len(combo) > 0 {
		m.logger.Debug("Combination match", "amount", amount, "count", len(combo))
		return combo
	}

	m.logger.Debug("Falling back to default product", "amount", amount)
	return []MatchedProduct{m.defaultProduct(amount)}
}

// findExact returns the first mapping declaring exactly this amount
func (m *Matcher) findExact(amount float64) *MatchedProduct {
	for _, mapping := range m.set.Mappings {
		if mapping.ExactAmount != nil && *mapping.ExactAmount == amount {
			p := newMatchedProduct(mapping, amount, MatchExact, 1.0)
			return &p
		}
	}
	return nil
}

// findRanges returns every mapping whose [min, max] contains the amount
func (m *Matcher) findRanges(amount float64) []MatchedProduct {
	var matches []MatchedProduct
	for _, mapping := range m.set.Mappings {
		if !mapping.HasRange() {
			continue
		}
		min, max := mapping.AmountRange[0], mapping.AmountRange[1]
		if amount < min || amount > max {
			continue
		}
		matches = append(matches, newMatchedProduct(mapping, amount, MatchRange, rangeConfidence(amount, min, max)))
	}
	return matches
}

// rangeConfidence scores distance from the range midpoint: 1.0 at the
// midpoint falling linearly to 0.5 at the edges.
func rangeConfidence(amount, min, max float64) float64 {
	size := max - min
	if size <= 0 {
		return 1.0
	}
	confidence := 1.0 - math.Abs(amount-(min+max)/2)/(size/2)
	return clamp(confidence, 0.5, 1.0)
}

// findCombo searches unordered mapping pairs (i <= j, i == j meaning a
// singleton) for the combined representative price closest to the amount.
// Strictly-smaller comparison keeps the first candidate in index order on
// ties, which makes the result deterministic.
func (m *Matcher) findCombo(amount float64) []MatchedProduct {
	mappings := m.set.Mappings
	tolerance := amount * comboTolerance

	var best []Mapping
	bestDiff := math.Inf(1)

	for i := 0; i < len(mappings); i++ {
		for j := i; j < len(mappings); j++ {
			combo := []Mapping{mappings[i]}
			total := representativePrice(mappings[i])
			if i != j {
				combo = append(combo, mappings[j])
				total += representativePrice(mappings[j])
			}

			diff := math.Abs(amount - total)
			if diff <= tolerance && diff < bestDiff {
				bestDiff = diff
				best = combo
			}
		}
	}

	if best == nil {
		return nil
	}

	share := amount / float64(len(best))
	matches := make([]MatchedProduct, 0, len(best))
	for _, mapping := range best {
		matches = append(matches, newMatchedProduct(mapping, share, MatchCombo, 0.7))
	}
	return matches
}

// representativePrice is the single price used for a mapping in combination
// candidates: exact amount, else range midpoint, else declared default price.
func representativePrice(mapping Mapping) float64 {
	switch {
	case mapping.ExactAmount != nil:
		return *mapping.ExactAmount
	case mapping.HasRange():
		return (mapping.AmountRange[0] + mapping.AmountRange[1]) / 2
	case mapping.DefaultPrice != nil:
		return *mapping.DefaultPrice
	}
	return 0
}

func (m *Matcher) defaultProduct(amount float64) MatchedProduct {
	d := m.set.DefaultProduct
	name := d.Name
	if name == "" {
		name = "其他商品"
	}
	category := d.Category
	if category == "" {
		category = "其他"
	}
	return MatchedProduct{
		Name:        name,
		Description: d.Description,
		Category:    category,
		Amount:      amount,
		MatchType:   MatchDefault,
		Confidence:  0.1,
		MappingID:   "default",
	}
}

// AddMapping appends a mapping and persists the configuration
func (m *Matcher) AddMapping(mapping Mapping) error {
	if mapping.ID == "" {
		return fmt.Errorf("mapping id is required")
	}
	for _, existing := range m.set.Mappings {
		if existing.ID == mapping.ID {
			return fmt.Errorf("mapping %q already exists", mapping.ID)
		}
	}

	m.set.Mappings = append(m.set.Mappings, mapping)
	if err := m.persist(); err != nil {
		return err
	}

	m.logger.Info("Added product mapping", "mapping_id", mapping.ID, "name", mapping.Name)
	return nil
}

// RemoveMapping removes the mapping with the given id and persists the
// configuration. Returns false (without error) when the id is unknown.
func (m *Matcher) RemoveMapping(id string) (bool, error) {
	kept := m.set.Mappings[:0:0]
	for _, mapping := range m.set.Mappings {
		if mapping.ID != id {
			kept = append(kept, mapping)
		}
	}

	if len(kept) == len(m.set.Mappings) {
		m.logger.Warn("Mapping to remove not found", "mapping_id", id)
		return false, nil
	}

	m.set.Mappings = kept
	if err := m.persist(); err != nil {
		return false, err
	}

	m.logger.Info("Removed product mapping", "mapping_id", id)
	return true, nil
}

// Stats returns aggregate information about the configured mappings
func (m *Matcher) Stats() Stats {
	stats := Stats{
		TotalMappings: len(m.set.Mappings),
		Categories:    make(map[string]int),
	}
	for _, mapping := range m.set.Mappings {
		switch {
		case mapping.ExactAmount != nil:
			stats.ExactMappings++
		case mapping.HasRange():
			stats.RangeMappings++
		}
		category := mapping.Category
		if category == "" {
			category = "其他"
		}
		stats.Categories[category]++
	}
	return stats
}

func (m *Matcher) persist() error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(m.Set()); err != nil {
		return fmt.Errorf("failed to persist mapping config: %w", err)
	}
	return nil
}

func newMatchedProduct(mapping Mapping, amount float64, matchType MatchType, confidence float64) MatchedProduct {
	return MatchedProduct{
		Name:        mapping.Name,
		Description: mapping.Description,
		Category:    categoryOrDefault(mapping.Category),
		Amount:      amount,
		MatchType:   matchType,
		Confidence:  confidence,
		MappingID:   mapping.ID,
		Attributes:  mapping.Attributes,
	}
}

func categoryOrDefault(category string) string {
	if category == "" {
		return "其他"
	}
	return category
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/eshaffer321/tonglian-sync-backend/internal/domain/matcher"
)

// ProductStore persists the product mapping configuration as a single JSON
// document. Mutations rewrite the whole file.
type ProductStore struct {
	path string
}

// Compile-time check that ProductStore satisfies the matcher's Store interface
var _ matcher.Store = (*ProductStore)(nil)

// NewProductStore creates a store backed by the JSON file at path
func NewProductStore(path string) *ProductStore {
	return &ProductStore{path: path}
}

// Load reads the mapping configuration. A missing file yields an empty set
// with a usable default product rather than an error.
func (s *ProductStore) Load() (matcher.MappingSet, error) {
	set := matcher.MappingSet{
		DefaultProduct: matcher.DefaultProduct{
			Name:        "其他商品",
			Description: "未分类商品",
			Category:    "其他",
		},
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return set, fmt.Errorf("failed to read product config: %w", err)
	}

	if err := json.Unmarshal(data, &set); err != nil {
		return set, fmt.Errorf("failed to parse product config: %w", err)
	}
	return set, nil
}

// Save rewrites the mapping configuration file
func (s *ProductStore) Save(set matcher.MappingSet) error {
	data, err := json.MarshalIndent(set, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode product config: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write product config: %w", err)
	}
	return nil
}

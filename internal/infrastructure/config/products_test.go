package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/tonglian-sync-backend/internal/domain/matcher"
)

func TestProductStore_LoadMissingFile(t *testing.T) {
	store := NewProductStore(filepath.Join(t.TempDir(), "products.json"))

	set, err := store.Load()

	require.NoError(t, err)
	assert.Empty(t, set.Mappings)
	assert.Equal(t, "其他商品", set.DefaultProduct.Name)
}

func TestProductStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	store := NewProductStore(path)

	exact := 48.0
	set := matcher.MappingSet{
		Mappings: []matcher.Mapping{
			{ID: "m1", Name: "苏贵", Category: "白酒", ExactAmount: &exact},
			{ID: "m2", Name: "套餐", AmountRange: []float64{100, 200}},
		},
		DefaultProduct: matcher.DefaultProduct{Name: "其他商品", Category: "其他"},
	}

	require.NoError(t, store.Save(set))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Mappings, 2)
	assert.Equal(t, "苏贵", loaded.Mappings[0].Name)
	require.NotNil(t, loaded.Mappings[0].ExactAmount)
	assert.Equal(t, 48.0, *loaded.Mappings[0].ExactAmount)
	assert.Equal(t, []float64{100, 200}, loaded.Mappings[1].AmountRange)
	assert.Equal(t, "其他商品", loaded.DefaultProduct.Name)
}

func TestProductStore_LoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewProductStore(path).Load()

	assert.Error(t, err)
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/heraklist/evochia-ops/internal/config"
)

const fixtureNow = "2025-06-30T12:00:00Z"

const offersJSON = `[
  {"offer_id": "o1", "product_id": "P1", "supplier": "A", "supplier_sku": "A-1", "category": "produce",
   "pack_size": 5, "pack_unit": "kg", "price_per_base_unit": 2.00, "captured_at": "2025-06-28T09:00:00Z"},
  {"offer_id": "o2", "product_id": "P1", "supplier": "B", "supplier_sku": "B-1", "category": "produce",
   "pack_size": 5, "pack_unit": "kg", "price_per_base_unit": 2.10, "captured_at": "2025-06-28T09:00:00Z"},
  {"offer_id": "o3", "product_id": "P2", "supplier": "A", "supplier_sku": "A-2", "category": "oil",
   "pack_size": 1, "pack_unit": "lt", "price_per_base_unit": 8.00, "captured_at": "2025-06-10T09:00:00Z"}
]`

const policiesJSON = `{"policies": [
  {"id": "pref-b-produce", "rule": "PREFER", "scope": "category", "match": "produce", "supplier": "B", "max_premium_pct": 10}
]}`

const recipeJSON = `{
  "recipe_id": "R1",
  "portions": 10,
  "prep_minutes": 30,
  "ingredients": [{"line_id": "L1", "product_id": "P1", "gross_qty": 1.5, "unit": "kg"}]
}`

// useTestConfig installs a config whose store and runs directory live in a
// temp dir.
func useTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	c := &config.Config{}
	c.Validity.MaxAgeDays = 14
	c.Validity.BlockAfterDays = 28
	c.Costing.HourlyRate = 16
	c.Costing.Currency = "EUR"
	c.Sourcing.ServiceTag = "CAT"
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(dir, "history.db")
	c.Server.Port = 8080
	c.Server.AllowedOrigins = []string{"*"}
	c.Batch.MaxConcurrentRecipes = 2
	c.Runs.Dir = filepath.Join(dir, "runs")
	c.Log.Level = "info"
	c.Log.Format = "json"

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

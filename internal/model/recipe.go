package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RecipeLine is one ingredient line of a recipe.
type RecipeLine struct {
	LineID    string   `json:"line_id,omitempty"`
	ProductID string   `json:"product_id,omitempty"` // empty is a hard block
	GrossQty  *float64 `json:"gross_qty,omitempty"`
	Unit      string   `json:"unit,omitempty"`
	YieldPct  *float64 `json:"yield_pct,omitempty"`
	WastePct  *float64 `json:"waste_pct,omitempty"`
}

// ID returns the line id, defaulting to L<n> for the 1-based position.
func (l RecipeLine) ID(position int) string {
	if l.LineID != "" {
		return l.LineID
	}
	return fmt.Sprintf("L%d", position)
}

// Yield returns yield_pct, defaulting to 100 when absent or zero.
func (l RecipeLine) Yield() float64 {
	if l.YieldPct == nil || *l.YieldPct == 0 {
		return 100
	}
	return *l.YieldPct
}

// Waste returns waste_pct, defaulting to 0.
func (l RecipeLine) Waste() float64 {
	if l.WastePct == nil {
		return 0
	}
	return *l.WastePct
}

// PackagingItem is a per-unit packaging cost line.
type PackagingItem struct {
	Name     string          `json:"name,omitempty"`
	Qty      float64         `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

// PackagingEventItem is a flat per-event packaging cost.
type PackagingEventItem struct {
	Name     string          `json:"name,omitempty"`
	FlatCost decimal.Decimal `json:"flat_cost"`
}

// Recipe is a costable menu item.
type Recipe struct {
	RecipeID                string               `json:"recipe_id,omitempty"`
	Name                    string               `json:"name,omitempty"`
	Portions                float64              `json:"portions"`
	Ingredients             []RecipeLine         `json:"ingredients"`
	PackagingItems          []PackagingItem      `json:"packaging_items,omitempty"`
	PackagingEventItems     []PackagingEventItem `json:"packaging_event_items,omitempty"`
	ConsumableRatePerPerson decimal.Decimal      `json:"consumable_rate_per_person"`
	PrepMinutes             float64              `json:"prep_minutes,omitempty"`
}

// ID returns the recipe id, defaulting to UNKNOWN.
func (r Recipe) ID() string {
	if r.RecipeID != "" {
		return r.RecipeID
	}
	return "UNKNOWN"
}

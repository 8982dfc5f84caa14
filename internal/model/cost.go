package model

import "github.com/shopspring/decimal"

// Status is the overall outcome of a costing or batch run.
type Status string

const (
	StatusOK      Status = "OK"
	StatusPass    Status = "PASS"
	StatusBlocked Status = "BLOCKED"
)

// Line flags.
const (
	FlagLeftoverOverHalfPack = "LEFTOVER_GT_50_PCT_PACK"
	FlagAnomalyPrefix        = "ANOMALY:"
)

// CostLine is the costed detail of one recipe line.
type CostLine struct {
	LineID           string          `json:"line_id"`
	ProductID        string          `json:"product_id"`
	ChosenOfferID    string          `json:"chosen_offer_id"`
	Supplier         string          `json:"supplier"`
	SupplierSKU      string          `json:"supplier_sku,omitempty"`
	BaseUnit         string          `json:"base_unit"`
	GrossQtyInput    float64         `json:"gross_qty_input"`
	InputUnit        string          `json:"input_unit"`
	GrossQtyBase     float64         `json:"gross_qty_base"`
	YieldPct         float64         `json:"yield_pct"`
	WastePct         float64         `json:"waste_pct"`
	ActualNeededBase float64         `json:"actual_needed_base"`
	PricePerBaseUnit decimal.Decimal `json:"price_per_base_unit"`
	LineCost         decimal.Decimal `json:"line_cost"`
	PacksToBuy       int             `json:"packs_to_buy"`
	PackSize         float64         `json:"pack_size"`
	PackUnit         string          `json:"pack_unit"`
	LeftoverQtyBase  float64         `json:"leftover_qty_base"`
	PriceAgeDays     float64         `json:"price_age_days"`
	Currency         string          `json:"currency,omitempty"`
	Flags            []string        `json:"flags"`
}

// CostBreakdown is the costed result of one recipe.
type CostBreakdown struct {
	RecipeID           string          `json:"recipe_id"`
	Portions           float64         `json:"portions"`
	Currency           string          `json:"currency,omitempty"`
	FoodCostTotal      decimal.Decimal `json:"food_cost_total"`
	PackagingCostTotal decimal.Decimal `json:"packaging_cost_total"`
	LaborCostTotal     decimal.Decimal `json:"labor_cost_total"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	PerPortion         decimal.Decimal `json:"per_portion"`
	Lines              []CostLine      `json:"lines"`
	Status             Status          `json:"status"`
}

// Blocked reports whether the breakdown is blocked.
func (b CostBreakdown) Blocked() bool {
	return b.Status == StatusBlocked
}

// Package costing turns recipes and sourcing decisions into purchasable
// quantities and monetary totals.
package costing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/validity"
)

// DefaultHourlyRate is the labor rate used when none is configured.
const DefaultHourlyRate = 16.0

// Issue codes emitted by the calculator.
const (
	CodeMissingPortions     = "COST-MISSING-PORTIONS"
	CodeNoIngredients       = "COST-NO-INGREDIENTS"
	CodeUnmappedProduct     = "COST-UNMAPPED-PRODUCT"
	CodeMissingGrossQty     = "COST-MISSING-GROSS-QTY"
	CodeUnsupportedUnit     = "COST-UNSUPPORTED-UNIT"
	CodeNoSourcingDecision  = "COST-NO-SOURCING-DECISION"
	CodeChosenOfferNotFound = "COST-CHOSEN-OFFER-NOT-FOUND"
	CodeUnsupportedBaseUnit = "COST-UNSUPPORTED-BASE-UNIT"
	CodeConversionMismatch  = "COST-CONVERSION-MISMATCH"
	CodeMissingCapturedAt   = "COST-MISSING-CAPTURED-AT"
	CodePriceTooOld         = "COST-PRICE-TOO-OLD"
	CodePriceStale          = "COST-PRICE-STALE"
	CodeStaleNotConfirmed   = "COST-STALE-NOT-CONFIRMED"
	CodeConversionFailed    = "COST-CONVERSION-FAILED"
	CodeInvalidWaste        = "COST-INVALID-WASTE"
	CodeMissingPricePerUnit = "COST-MISSING-PRICE-PER-UNIT"
	CodeMissingPackSize     = "COST-MISSING-PACK-SIZE"
	CodeAnomalyFlag         = "COST-ANOMALY-FLAG"
)

// Output precision.
const (
	moneyPlaces      = 4
	perPortionPlaces = 6
	qtyPlaces        = 6
	agePlaces        = 2
)

// DecisionLookup resolves the chosen offer for a product.
type DecisionLookup interface {
	ChosenOffer(productID string) (string, bool)
}

// Calculator costs recipes against a fixed decision set.
type Calculator struct {
	gate       validity.Gate
	hourlyRate decimal.Decimal
	currency   string
}

// NewCalculator creates a Calculator. A non-positive hourly rate falls back
// to DefaultHourlyRate.
func NewCalculator(gate validity.Gate, hourlyRate float64, currency string) *Calculator {
	if hourlyRate <= 0 {
		hourlyRate = DefaultHourlyRate
	}
	return &Calculator{
		gate:       gate,
		hourlyRate: decimal.NewFromFloat(hourlyRate),
		currency:   currency,
	}
}

// Request bundles the inputs shared by every recipe in a run.
type Request struct {
	Decisions    DecisionLookup
	Offers       map[string]model.Offer
	ConfirmStale bool
	Now          time.Time
}

// Cost computes the breakdown for one recipe. Every expected failure is an
// issue; a blocked line is skipped and the rest of the recipe is still
// costed. Sums keep full precision and only reported figures are rounded.
func (c *Calculator) Cost(recipe model.Recipe, req Request) (model.CostBreakdown, model.Issues) {
	rid := recipe.ID()
	out := model.CostBreakdown{
		RecipeID:           rid,
		Portions:           recipe.Portions,
		Currency:           c.currency,
		FoodCostTotal:      decimal.Zero,
		PackagingCostTotal: decimal.Zero,
		LaborCostTotal:     decimal.Zero,
		TotalCost:          decimal.Zero,
		PerPortion:         decimal.Zero,
		Lines:              []model.CostLine{},
		Status:             model.StatusOK,
	}
	var issues model.Issues

	if recipe.Portions <= 0 {
		issues.Add(model.Block(CodeMissingPortions, "Recipe is missing valid portions").WithRecipe(rid))
	}
	if len(recipe.Ingredients) == 0 {
		issues.Add(model.Block(CodeNoIngredients, "Recipe has no ingredients").WithRecipe(rid))
	}
	if issues.HasBlock() {
		out.Status = model.StatusBlocked
		return out, issues
	}

	food := decimal.Zero
	for i, ing := range recipe.Ingredients {
		line, cost, lineIssues := c.costLine(rid, i+1, ing, req)
		issues = append(issues, lineIssues...)
		if line == nil {
			continue
		}
		food = food.Add(cost)
		out.Lines = append(out.Lines, *line)
	}

	portions := decimal.NewFromFloat(recipe.Portions)
	packaging := decimal.Zero
	for _, item := range recipe.PackagingItems {
		packaging = packaging.Add(decimal.NewFromFloat(item.Qty).Mul(item.UnitCost))
	}
	for _, item := range recipe.PackagingEventItems {
		packaging = packaging.Add(item.FlatCost)
	}
	packaging = packaging.Add(portions.Mul(recipe.ConsumableRatePerPerson))

	labor := decimal.NewFromFloat(recipe.PrepMinutes).Div(decimal.NewFromInt(60)).Mul(c.hourlyRate)
	total := food.Add(packaging).Add(labor)

	out.FoodCostTotal = food.Round(moneyPlaces)
	out.PackagingCostTotal = packaging.Round(moneyPlaces)
	out.LaborCostTotal = labor.Round(moneyPlaces)
	out.TotalCost = total.Round(moneyPlaces)
	out.PerPortion = total.Div(portions).Round(perPortionPlaces)
	if issues.HasBlock() {
		out.Status = model.StatusBlocked
	}

	zap.L().Debug("costing: recipe costed",
		zap.String("recipe_id", rid),
		zap.Int("lines", len(out.Lines)),
		zap.Int("issues", len(issues)),
		zap.String("status", string(out.Status)),
	)
	return out, issues
}

// costLine costs one ingredient line. A nil line means the line was blocked.
// The returned cost is unrounded.
func (c *Calculator) costLine(rid string, position int, ing model.RecipeLine, req Request) (*model.CostLine, decimal.Decimal, model.Issues) {
	var issues model.Issues
	lineID := ing.ID(position)
	block := func(code, msg string) (*model.CostLine, decimal.Decimal, model.Issues) {
		issues.Add(model.Block(code, msg).WithRecipe(rid).WithLine(lineID).WithProduct(ing.ProductID))
		return nil, decimal.Zero, issues
	}

	if ing.ProductID == "" {
		return block(CodeUnmappedProduct, "Ingredient product_id is null/unmapped")
	}
	if ing.GrossQty == nil || *ing.GrossQty <= 0 {
		return block(CodeMissingGrossQty, "Ingredient gross_qty missing/zero")
	}
	unit, ok := ParseUnit(ing.Unit)
	if !ok {
		return block(CodeUnsupportedUnit, fmt.Sprintf("Unsupported ingredient unit %q", ing.Unit))
	}

	offerID, ok := req.Decisions.ChosenOffer(ing.ProductID)
	if !ok || offerID == "" {
		return block(CodeNoSourcingDecision, "No chosen_offer for product_id")
	}
	offer, ok := req.Offers[offerID]
	blockOffer := func(code, msg string) (*model.CostLine, decimal.Decimal, model.Issues) {
		issues.Add(model.Block(code, msg).WithRecipe(rid).WithLine(lineID).WithProduct(ing.ProductID).WithChosenOffer(offerID))
		return nil, decimal.Zero, issues
	}
	if !ok {
		return blockOffer(CodeChosenOfferNotFound, "chosen_offer_id not found in offers")
	}

	base, ok := ParseUnit(offer.PackUnit)
	if !ok || !base.IsBase() {
		return blockOffer(CodeUnsupportedBaseUnit, fmt.Sprintf("Offer pack/base unit %q unsupported", offer.PackUnit))
	}
	if unit.Family() != base.Family() {
		return blockOffer(CodeConversionMismatch, fmt.Sprintf("Unsupported unit family conversion %s -> %s", unit, base))
	}

	verdict := c.gate.Check(offer.CapturedAt, offer.ValidUntil, req.Now)
	switch verdict.Reason {
	case validity.ReasonNoCapturedAt:
		return blockOffer(CodeMissingCapturedAt, "Offer missing/invalid captured_at")
	case validity.ReasonTooOld:
		issues.Add(model.Block(CodePriceTooOld, fmt.Sprintf("Chosen price age > %d days", c.gate.BlockAfterDays)).
			WithRecipe(rid).WithLine(lineID).WithProduct(ing.ProductID).WithChosenOffer(offerID).WithAge(verdict.AgeDays))
		return nil, decimal.Zero, issues
	case validity.ReasonPastMaxAge:
		issues.Add(model.Warning(CodePriceStale,
			fmt.Sprintf("Chosen price age is %d-%d days; explicit confirmation required", c.gate.MaxAgeDays+1, c.gate.BlockAfterDays)).
			WithRecipe(rid).WithLine(lineID).WithProduct(ing.ProductID).WithChosenOffer(offerID).WithAge(verdict.AgeDays))
		if !verdict.Usable(req.ConfirmStale) {
			return blockOffer(CodeStaleNotConfirmed, "Stale price used without explicit confirm")
		}
	}

	grossBase, err := ToBase(*ing.GrossQty, unit, base)
	if err != nil {
		return blockOffer(CodeConversionFailed, err.Error())
	}

	waste := ing.Waste()
	if waste >= 100 {
		return blockOffer(CodeInvalidWaste, "waste_pct must be < 100")
	}
	yield := ing.Yield()
	net := grossBase * (yield / 100)
	actual := net / (1 - waste/100)

	if !offer.PricePerBaseUnit.Valid {
		return blockOffer(CodeMissingPricePerUnit, "Offer missing price_per_base_unit")
	}
	ppu := offer.PricePerBaseUnit.Decimal
	cost := decimal.NewFromFloat(actual).Mul(ppu)

	if offer.PackSize == nil || *offer.PackSize <= 0 {
		return blockOffer(CodeMissingPackSize, "Offer missing pack_size")
	}
	packBase := *offer.PackSize
	need := decimal.NewFromFloat(actual).Round(qtyPlaces)
	pack := decimal.NewFromFloat(packBase)
	packCount := need.Div(pack).Ceil()
	packs := int(packCount.IntPart())
	leftover := decimal.Max(decimal.Zero, packCount.Mul(pack).Sub(need))

	flags := []string{}
	if leftover.GreaterThan(pack.Div(decimal.NewFromInt(2))) {
		flags = append(flags, model.FlagLeftoverOverHalfPack)
	}
	if len(offer.AnomalyFlags) > 0 {
		issues.Add(model.Warning(CodeAnomalyFlag, "Offer has anomaly flags").
			WithRecipe(rid).WithLine(lineID).WithProduct(ing.ProductID).WithChosenOffer(offerID).
			WithDetail("anomaly_flags", offer.AnomalyFlags))
		for _, f := range offer.AnomalyFlags {
			flags = append(flags, model.FlagAnomalyPrefix+f)
		}
	}

	currency := offer.Currency
	if currency == "" {
		currency = c.currency
	}

	return &model.CostLine{
		LineID:           lineID,
		ProductID:        ing.ProductID,
		ChosenOfferID:    offerID,
		Supplier:         offer.Supplier,
		SupplierSKU:      offer.SupplierSKU,
		BaseUnit:         string(base),
		GrossQtyInput:    *ing.GrossQty,
		InputUnit:        string(unit),
		GrossQtyBase:     model.Round(grossBase, qtyPlaces),
		YieldPct:         yield,
		WastePct:         waste,
		ActualNeededBase: model.Round(actual, qtyPlaces),
		PricePerBaseUnit: ppu,
		LineCost:         cost.Round(moneyPlaces),
		PacksToBuy:       packs,
		PackSize:         packBase,
		PackUnit:         string(base),
		LeftoverQtyBase:  leftover.Round(qtyPlaces).InexactFloat64(),
		PriceAgeDays:     model.Round(verdict.AgeDays, agePlaces),
		Currency:         currency,
		Flags:            flags,
	}, cost, issues
}

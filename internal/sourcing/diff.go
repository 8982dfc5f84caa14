package sourcing

import (
	"github.com/rotisserie/eris"

	"github.com/heraklist/evochia-ops/internal/model"
)

// DiffRow compares one product's decision with the policy engine on and off.
type DiffRow struct {
	ProductID   string            `json:"product_id"`
	Category    string            `json:"category"`
	OnSupplier  string            `json:"on_supplier"`
	OffSupplier string            `json:"off_supplier"`
	OnRule      model.RuleApplied `json:"on_rule"`
	OffRule     model.RuleApplied `json:"off_rule"`
	Changed     bool              `json:"changed"`
}

// DiffReport is the policy on/off comparison.
type DiffReport struct {
	Total   int       `json:"total"`
	Changed int       `json:"changed"`
	Rows    []DiffRow `json:"rows"`
}

// Diff compares decisions product by product. Products missing from either
// side are skipped. Categories are looked up from offers (first offer per
// product wins).
func Diff(on, off []model.Decision, offers []model.Offer) DiffReport {
	category := make(map[string]string)
	for _, o := range offers {
		if _, ok := category[o.ProductID]; !ok && o.ProductID != "" {
			category[o.ProductID] = model.NormalizeCategory(o.Category)
		}
	}
	offByProduct := make(map[string]model.Decision, len(off))
	for _, d := range off {
		offByProduct[d.ProductID] = d
	}

	report := DiffReport{Rows: []DiffRow{}}
	for _, d := range on {
		o, ok := offByProduct[d.ProductID]
		if !ok {
			continue
		}
		row := DiffRow{
			ProductID:   d.ProductID,
			Category:    category[d.ProductID],
			OnSupplier:  d.SelectedSupplier,
			OffSupplier: o.SelectedSupplier,
			OnRule:      d.RuleApplied,
			OffRule:     o.RuleApplied,
		}
		row.Changed = row.OnSupplier != row.OffSupplier || row.OnRule != row.OffRule
		if row.Changed {
			report.Changed++
		}
		report.Rows = append(report.Rows, row)
	}
	report.Total = len(report.Rows)
	return report
}

// ValidateDecisions checks decisions produced with the policy engine off:
// only LOWEST and LOCK may appear.
func ValidateDecisions(decisions []model.Decision, engineEnabled bool) error {
	for _, d := range decisions {
		if d.RuleApplied == "" {
			return eris.Errorf("sourcing: decision %s missing rule_applied", d.ProductID)
		}
		if engineEnabled {
			continue
		}
		if d.RuleApplied != model.AppliedLowest && d.RuleApplied != model.AppliedLock {
			return eris.Errorf("sourcing: policies off expected LOWEST/LOCK, got %s for %s", d.RuleApplied, d.ProductID)
		}
	}
	return nil
}

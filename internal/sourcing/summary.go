package sourcing

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/heraklist/evochia-ops/internal/model"
)

// Summary is the operator-facing digest of an optimizer run.
type Summary struct {
	Decisions           int             `json:"decisions"`
	Issues              int             `json:"issues"`
	Blocks              int             `json:"blocks"`
	FlagsStale          int             `json:"flags_stale"`
	FlagsAnomaly        int             `json:"flags_anomaly"`
	LocksUsed           int             `json:"locks_used"`
	PrefersApplied      int             `json:"prefers_applied"`
	SupplierSplit       map[string]int  `json:"supplier_split"`
	OverlapItems        int             `json:"overlap_items_count"`
	SavingsVsLowest     decimal.Decimal `json:"savings_vs_lowest_global"`
	PolicyEngineEnabled bool            `json:"policy_engine_enabled"`
}

// Summarize computes the run digest. Overlap items are products with at
// least two candidates.
func Summarize(res Result) Summary {
	fold := cases.Fold()
	s := Summary{
		Decisions:           len(res.Decisions),
		Issues:              len(res.Issues),
		FlagsStale:          res.Issues.CountCode("STALE"),
		FlagsAnomaly:        res.Issues.CountCode("ANOMALY"),
		SupplierSplit:       make(map[string]int),
		SavingsVsLowest:     decimal.Zero,
		PolicyEngineEnabled: res.Mode.PolicyEngineEnabled,
	}
	for _, i := range res.Issues {
		if i.IsBlock() {
			s.Blocks++
		}
	}
	for _, d := range res.Decisions {
		switch d.RuleApplied {
		case model.AppliedLock:
			s.LocksUsed++
		case model.AppliedPrefer:
			s.PrefersApplied++
		}
		s.SupplierSplit[fold.String(d.SelectedSupplier)]++
		if len(d.Candidates) >= 2 {
			s.OverlapItems++
		}
		s.SavingsVsLowest = s.SavingsVsLowest.Add(d.SavingsVsLowest)
	}
	s.SavingsVsLowest = s.SavingsVsLowest.Round(6)
	return s
}

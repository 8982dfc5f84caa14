package sourcing

import (
	"time"

	"go.uber.org/zap"

	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/validity"
)

// Options configures one optimizer run.
type Options struct {
	Gate       validity.Gate
	Mode       PolicyMode
	ServiceTag string
}

// Result is the output of one optimizer run.
type Result struct {
	Decisions []model.Decision `json:"decisions"`
	Issues    model.Issues     `json:"issues"`
	Mode      PolicyMode       `json:"mode"`
}

// Optimize screens offers, groups them by product and resolves one decision
// per product. Screening issues come first; product issues follow in
// first-seen product order. It is a pure function of its inputs and now.
func Optimize(offers []model.Offer, rules []model.PolicyRule, opts Options, now time.Time) Result {
	screened, issues := Screen(offers, opts.Gate, now)
	order, byProduct := partition(screened)

	resolver := NewResolver(rules, opts.Mode, opts.ServiceTag, now)
	decisions := make([]model.Decision, 0, len(order))
	for _, pid := range order {
		g, iss := inStockGroup(pid, byProduct[pid])
		if iss != nil {
			issues.Add(*iss)
			continue
		}
		d, iss := resolver.Resolve(g)
		if iss != nil {
			issues.Add(*iss)
			continue
		}
		decisions = append(decisions, d)
	}

	if issues == nil {
		issues = model.Issues{}
	}

	zap.L().Debug("sourcing: optimize complete",
		zap.Int("offers", len(offers)),
		zap.Int("products", len(order)),
		zap.Int("decisions", len(decisions)),
		zap.Int("issues", len(issues)),
		zap.Bool("policy_engine", opts.Mode.PolicyEngineEnabled),
	)

	return Result{Decisions: decisions, Issues: issues, Mode: opts.Mode}
}

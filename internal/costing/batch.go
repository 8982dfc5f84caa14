package costing

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/heraklist/evochia-ops/internal/model"
)

// DefaultBatchConcurrency bounds concurrent recipe costing in a batch.
const DefaultBatchConcurrency = 4

// BatchSummary reports a batch outcome.
type BatchSummary struct {
	Status  model.Status `json:"status"`
	Recipes int          `json:"recipes"`
	Costed  int          `json:"costed"`
	Blocked int          `json:"blocked"`
	Issues  int          `json:"issues"`
}

// BatchResult holds every breakdown in input order plus the merged issues.
type BatchResult struct {
	Costs   []model.CostBreakdown `json:"costs"`
	Issues  model.Issues          `json:"issues"`
	Summary BatchSummary          `json:"summary"`
}

// CostBatch costs recipes against one decision set. Recipes are independent
// and run concurrently; results keep input order. The batch is PASS only
// when no recipe recorded a hard block.
func (c *Calculator) CostBatch(ctx context.Context, recipes []model.Recipe, req Request, concurrency int) (*BatchResult, error) {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	costs := make([]model.CostBreakdown, len(recipes))
	perRecipe := make([]model.Issues, len(recipes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, r := range recipes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "costing: batch cancelled")
			}
			costs[i], perRecipe[i] = c.Cost(r, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BatchResult{Costs: costs, Issues: model.Issues{}}
	for i, cb := range costs {
		res.Issues = append(res.Issues, perRecipe[i]...)
		if cb.Blocked() {
			res.Summary.Blocked++
		}
	}
	res.Summary.Recipes = len(recipes)
	res.Summary.Costed = len(costs)
	res.Summary.Issues = len(res.Issues)
	res.Summary.Status = model.StatusPass
	if res.Issues.HasBlock() {
		res.Summary.Status = model.StatusBlocked
	}

	zap.L().Info("costing: batch complete",
		zap.Int("recipes", res.Summary.Recipes),
		zap.Int("blocked", res.Summary.Blocked),
		zap.String("status", string(res.Summary.Status)),
	)
	return res, nil
}

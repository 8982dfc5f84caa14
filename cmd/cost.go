package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heraklist/evochia-ops/internal/loader"
	"github.com/heraklist/evochia-ops/internal/model"
	"github.com/heraklist/evochia-ops/internal/output"
)

var (
	costFlags        runFlags
	costRecipePath   string
	costDecisionPath string
	costBatch        bool
	costConfirmStale bool
	costHourlyRate   float64
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Cost a recipe against sourcing decisions",
	Long:  "Costs each ingredient line with the offer chosen for its product, adding packaging and labor. Writes cost_breakdown.json (or costs.json with --batch), issues.json and summary.json.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		o, err := costFlags.resolve(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("hourly-rate") {
			o.HourlyRate = &costHourlyRate
		}
		o.ConfirmStale = costConfirmStale

		calc, err := newCalculator(cfg, o)
		if err != nil {
			return err
		}
		now, err := runClock(o.Now)
		if err != nil {
			return err
		}

		offers, err := loader.LoadOffers(ctx, costFlags.offers)
		if err != nil {
			return err
		}
		decisions, err := loader.LoadDecisions(costDecisionPath)
		if err != nil {
			return err
		}
		recipes, err := loader.LoadRecipes(costRecipePath)
		if err != nil {
			return err
		}
		if !costBatch && len(recipes) != 1 {
			return eris.Errorf("cost: %s holds %d recipes, use --batch", costRecipePath, len(recipes))
		}

		dir, err := costFlags.runDir(model.RunKindCost)
		if err != nil {
			return err
		}

		st := openHistory(ctx)
		if st != nil {
			defer st.Close() //nolint:errcheck
		}
		rec := startRun(ctx, st, model.RunKindCost, dir)

		req := costRequest(offers, decisions, o.ConfirmStale, now)

		if costBatch {
			res, err := calc.CostBatch(ctx, recipes, req, cfg.Batch.MaxConcurrentRecipes)
			if err != nil {
				rec.fail(ctx, err)
				return err
			}
			if err := writeArtifacts(dir,
				artifact{output.BatchCostsFile, res.Costs},
				artifact{output.IssuesFile, res.Issues},
				artifact{output.SummaryFile, res.Summary},
			); err != nil {
				rec.fail(ctx, err)
				return err
			}
			rec.complete(ctx, runStatusFor(res.Summary.Status == model.StatusBlocked), res.Summary)
			return printJSON(os.Stdout, res.Summary)
		}

		cb, issues := calc.Cost(recipes[0], req)
		issues = nonNilIssues(issues)
		summary := summarizeCost(cb, issues)
		if err := writeArtifacts(dir,
			artifact{output.CostBreakdownFile, cb},
			artifact{output.IssuesFile, issues},
			artifact{output.SummaryFile, summary},
		); err != nil {
			rec.fail(ctx, err)
			return err
		}
		rec.complete(ctx, runStatusFor(cb.Blocked()), summary)

		zap.L().Info("recipe costed",
			zap.String("run_id", rec.ID()),
			zap.String("recipe_id", cb.RecipeID),
			zap.String("status", string(cb.Status)),
			zap.String("dir", dir),
		)
		return printJSON(os.Stdout, map[string]any{
			"status":  cb.Status,
			"lines":   len(cb.Lines),
			"issues":  len(issues),
			"out_dir": dir,
		})
	},
}

func init() {
	costFlags.register(costCmd, false)
	costCmd.Flags().StringVar(&costRecipePath, "recipe", "", "recipe document (a list with --batch)")
	costCmd.Flags().StringVar(&costDecisionPath, "decisions", "", "decisions.json from an optimize run")
	costCmd.Flags().BoolVar(&costBatch, "batch", false, "cost every recipe in the document")
	costCmd.Flags().BoolVar(&costConfirmStale, "confirm-stale", false, "accept stale prices instead of blocking")
	costCmd.Flags().Float64Var(&costHourlyRate, "hourly-rate", 0, "labor rate per hour (default from config)")
	_ = costCmd.MarkFlagRequired("recipe")
	_ = costCmd.MarkFlagRequired("decisions")
	rootCmd.AddCommand(costCmd)
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/heraklist/evochia-ops/internal/loader"
	"github.com/heraklist/evochia-ops/internal/output"
	"github.com/heraklist/evochia-ops/internal/validity"
)

var refreshFlags runFlags

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Report which supplier price lists need refreshing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		o, err := refreshFlags.resolve(cmd)
		if err != nil {
			return err
		}
		gate, err := gateFor(cfg, o)
		if err != nil {
			return err
		}
		now, err := runClock(o.Now)
		if err != nil {
			return err
		}

		offers, err := loader.LoadOffers(ctx, refreshFlags.offers)
		if err != nil {
			return err
		}

		rows := gate.SupplierReport(offers, now)
		summary := validity.Summarize(rows)

		if refreshFlags.outDir != "" {
			if err := output.EnsureDir(refreshFlags.outDir); err != nil {
				return err
			}
			if err := writeArtifacts(refreshFlags.outDir, artifact{output.RefreshFile, map[string]any{
				"suppliers": rows,
				"summary":   summary,
			}}); err != nil {
				return err
			}
		}
		return printJSON(os.Stdout, map[string]any{
			"suppliers": rows,
			"summary":   summary,
		})
	},
}

func init() {
	refreshFlags.register(refreshCmd, false)
	rootCmd.AddCommand(refreshCmd)
}

package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/heraklist/evochia-ops/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "evochia",
	Short: "Supplier sourcing decisions and recipe costing",
	Long:  "Picks one supplier offer per product from price-list offers and sourcing policies, then costs recipes against those decisions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

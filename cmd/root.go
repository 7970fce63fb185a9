package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vetref/electrolyte-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "electrolyte-cli",
	Short: "Veterinary electrolyte and fluid dosage calculator",
	Long: "Computes albumin, potassium, sodium, calcium, magnesium, phosphorus, bicarbonate and glucose " +
		"corrections for dogs and cats, adjusted by a consensus ruleset of physiological-state and comorbidity modifiers.",
	SilenceUsage: true,
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
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contract-extract/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "contract-extract",
	Short: "Structured field extraction from scanned installment contracts",
	Long: `contract-extract resolves structured fields from OCR output of scanned
retail installment contracts. Deterministic keyword resolution runs first;
low-confidence documents are escalated to a language model for enhancement
and validation-driven correction.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
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

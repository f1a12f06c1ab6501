package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/labelkit/zeroshot/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "zeroshot",
	Short: "Zero-shot multi-label text classification pipeline",
	Long:  "Classifies texts against a caller-supplied label set using NLI or LLM scoring backends, writes per-label percentage reports, and evaluates predictions against hand annotations.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "coinwatch",
	Short: "Cryptocurrency market snapshot pipeline",
	Long:  "Collects ranked coin listings from the market site, enriches them with social and repository activity, keeps prices fresh, and syncs snapshots to remote storage.",
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

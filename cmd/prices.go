package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/config"
	"github.com/harborview/coinwatch/internal/pricefeed"
	"github.com/harborview/coinwatch/pkg/coingecko"
)

var pricesOnce bool

var pricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Keep the latest snapshot's prices fresh",
	Long:  "Polls the price API on an interval and reconciles price, market cap, 24h change and volume into the latest snapshot file in place.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("prices"); err != nil {
			return err
		}
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}

		store, err := openSnapshots()
		if err != nil {
			return err
		}

		api := coingecko.NewClient(
			coingecko.WithBaseURL(cfg.Prices.BaseURL),
			coingecko.WithAPIKey(cfg.Prices.APIKey),
		)

		loop := pricefeed.NewLoop(store, api,
			time.Duration(cfg.Prices.IntervalMins)*time.Minute,
			time.Duration(cfg.Prices.CooldownSecs)*time.Second,
		)

		rl, err := openRunlog(ctx)
		if err != nil {
			return err
		}
		defer rl.Close()

		run, err := rl.StartRun(ctx, "prices")
		if err != nil {
			return err
		}

		if pricesOnce {
			runErr := loop.RunCycle(ctx)
			if err := rl.FinishRun(ctx, run.ID, 0, runErr); err != nil {
				zap.L().Warn("runlog: finish run", zap.Error(err))
			}
			return runErr
		}

		zap.L().Info("price loop starting",
			zap.Int("interval_mins", cfg.Prices.IntervalMins))
		runErr := loop.Run(ctx)
		if ctx.Err() != nil {
			// Operator shutdown, not a failure.
			runErr = nil
		}
		// The signal context is already cancelled by now.
		if err := rl.FinishRun(context.Background(), run.ID, 0, runErr); err != nil {
			zap.L().Warn("runlog: finish run", zap.Error(err))
		}
		return runErr
	},
}

func init() {
	pricesCmd.Flags().BoolVar(&pricesOnce, "once", false, "run a single reconciliation cycle and exit")
	rootCmd.AddCommand(pricesCmd)
}

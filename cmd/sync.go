package main

import (
	"context"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harborview/coinwatch/internal/config"
	"github.com/harborview/coinwatch/internal/runlog"
	"github.com/harborview/coinwatch/internal/snapshot"
	"github.com/harborview/coinwatch/pkg/supabase"
)

var syncConcurrency int

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload snapshots and logos to the remote store",
	Long:  "Upserts every dated snapshot into the remote crypto_data table, uploads downloaded logos to the storage bucket, and writes the public logo URLs back onto the remote rows.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("sync"); err != nil {
			return err
		}
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}

		pool, err := supabase.Connect(ctx, cfg.Supabase.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		client := supabase.New(pool, cfg.Supabase.ProjectURL, cfg.Supabase.ServiceKey, cfg.Supabase.LogoBucket)
		if err := client.Migrate(ctx); err != nil {
			return err
		}

		store, err := openSnapshots()
		if err != nil {
			return err
		}

		rl, err := openRunlog(ctx)
		if err != nil {
			return err
		}
		defer rl.Close()

		run, err := rl.StartRun(ctx, "sync")
		if err != nil {
			return err
		}

		records, runErr := runSync(ctx, rl, run.ID, client, store)
		if err := rl.FinishRun(ctx, run.ID, records, runErr); err != nil {
			zap.L().Warn("runlog: finish run", zap.Error(err))
		}
		return runErr
	},
}

func runSync(ctx context.Context, rl *runlog.Store, runID string, client *supabase.Client, store *snapshot.Store) (int, error) {
	total := 0
	err := phase(ctx, rl, runID, "upsert-snapshots", func() error {
		files, err := store.Files()
		if err != nil {
			return err
		}
		for _, path := range files {
			snap, err := store.Load(path)
			if err != nil {
				zap.L().Warn("sync: snapshot unreadable, skipping",
					zap.String("path", path), zap.Error(err))
				continue
			}
			n, err := client.UpsertSnapshot(ctx, snap)
			if err != nil {
				return err
			}
			total += n
			zap.L().Info("sync: snapshot upserted",
				zap.String("date", snap.Date), zap.Int("rows", n))
		}
		return nil
	})
	if err != nil {
		return total, err
	}

	err = phase(ctx, rl, runID, "upload-logos", func() error {
		return syncLogos(ctx, client)
	})
	return total, err
}

// syncLogos uploads every downloaded logo concurrently and writes the
// public URL back onto the remote rows.
func syncLogos(ctx context.Context, client *supabase.Client) error {
	logos, err := filepath.Glob(filepath.Join(cfg.Data.LogoDir, "*"))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)

	for _, local := range logos {
		g.Go(func() error {
			publicURL, err := client.UploadLogo(ctx, local)
			if err != nil {
				zap.L().Warn("sync: logo upload failed",
					zap.String("file", local), zap.Error(err))
				return nil
			}

			externalID := strings.TrimSuffix(filepath.Base(local), filepath.Ext(local))
			if err := client.SetLogoURL(ctx, externalID, publicURL); err != nil {
				zap.L().Warn("sync: logo url writeback failed",
					zap.String("coin", externalID), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func init() {
	syncCmd.Flags().IntVar(&syncConcurrency, "concurrency", 4, "parallel logo uploads")
	rootCmd.AddCommand(syncCmd)
}

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/assets"
	"github.com/harborview/coinwatch/internal/browser"
	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/config"
	"github.com/harborview/coinwatch/internal/enrich"
	"github.com/harborview/coinwatch/internal/listing"
	"github.com/harborview/coinwatch/internal/runlog"
	"github.com/harborview/coinwatch/internal/social"
)

var (
	scrapeCount     int
	scrapeSkipLogin bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Collect and enrich today's coin snapshot",
	Long:  "Walks the ranked listing pages, resolves social and repository links, scrapes follower counts, post recency and repo activity, and writes the dated snapshot in JSON, CSV and Parquet.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		if err := config.EnsureDirs(cfg); err != nil {
			return err
		}

		rl, err := openRunlog(ctx)
		if err != nil {
			return err
		}
		defer rl.Close()

		run, err := rl.StartRun(ctx, "scrape")
		if err != nil {
			return err
		}

		records, runErr := runScrape(ctx, rl, run.ID)
		if err := rl.FinishRun(ctx, run.ID, records, runErr); err != nil {
			zap.L().Warn("runlog: finish run", zap.Error(err))
		}
		return runErr
	},
}

func runScrape(ctx context.Context, rl *runlog.Store, runID string) (int, error) {
	session, err := browser.Open(browser.Config{
		Headless:   cfg.Browser.Headless,
		UserAgent:  cfg.Browser.UserAgent,
		CookiePath: cfg.Browser.CookiePath,
	})
	if err != nil {
		return 0, err
	}
	defer session.Close()

	if !scrapeSkipLogin {
		if err := ensureSocialSession(session); err != nil {
			return 0, err
		}
	}

	store, err := openSnapshots()
	if err != nil {
		return 0, err
	}
	logos, err := assets.New(cfg.Data.LogoDir)
	if err != nil {
		return 0, err
	}

	count := cfg.Scrape.Count
	if scrapeCount > 0 {
		count = scrapeCount
	}

	collector := listing.New(session.Primary(), store, logos, listing.Config{
		BaseURL:      cfg.Scrape.BaseURL,
		Count:        count,
		CoinsPerPage: cfg.Scrape.CoinsPerPage,
		MaxPages:     cfg.Scrape.MaxPages,
		TableTimeout: time.Duration(cfg.Scrape.TableTimeoutSecs) * time.Second,
		Settle:       time.Duration(cfg.Scrape.SettleSecs) * time.Second,
		DebugDir:     cfg.Data.DebugDir,
	})

	var snap *coin.Snapshot
	err = phase(ctx, rl, runID, "collect", func() error {
		var cerr error
		snap, cerr = collector.Run(ctx)
		return cerr
	})
	if err != nil {
		return 0, err
	}

	engine := enrich.NewEngine(session, cfg.Scrape.BatchSize, 8*time.Second)

	stages := []struct {
		name string
		en   enrich.Enricher
	}{
		{"resolve-links", social.NewLinkResolver()},
		{"enrich-social", enrich.NewProfileEnricher(cfg.Data.DebugDir)},
		{"enrich-repo", enrich.NewRepoEnricher(cfg.Data.DebugDir)},
	}
	for _, stage := range stages {
		err = phase(ctx, rl, runID, stage.name, func() error {
			if err := engine.Run(ctx, snap.Records, stage.en); err != nil {
				return err
			}
			return store.Persist(snap)
		})
		if err != nil {
			return len(snap.Records), err
		}
	}

	zap.L().Info("scrape complete",
		zap.String("date", snap.Date),
		zap.Int("records", len(snap.Records)),
	)
	return len(snap.Records), nil
}

// ensureSocialSession reuses the saved cookie jar when one exists and logs
// in interactively otherwise. Without either the social enrichment cannot
// see profile pages, so missing credentials are fatal.
func ensureSocialSession(session *browser.Session) error {
	if browser.HasCookieJar(cfg.Browser.CookiePath) {
		zap.L().Info("scrape: reusing saved social session")
		return nil
	}
	if cfg.Social.Username == "" || cfg.Social.Password == "" {
		return eris.New("scrape: no saved social session and no credentials set " +
			"(COINWATCH_SOCIAL_USERNAME / COINWATCH_SOCIAL_PASSWORD)")
	}
	return session.Login(cfg.Social.Username, cfg.Social.Password)
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeCount, "count", 0, "number of coins to collect (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeSkipLogin, "skip-login", false, "skip the social site login bootstrap")
	rootCmd.AddCommand(scrapeCmd)
}

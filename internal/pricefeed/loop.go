// Package pricefeed keeps the latest snapshot's pricing fields fresh by
// polling the price API on an interval.
package pricefeed

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/snapshot"
	"github.com/harborview/coinwatch/pkg/coingecko"
)

// Loop reconciles snapshot prices against the API. The latest snapshot is
// re-resolved every cycle, so a scrape finishing mid-loop is picked up on
// the next tick.
type Loop struct {
	store *snapshot.Store
	api   coingecko.Client

	Interval time.Duration
	Cooldown time.Duration

	// MaxCycles bounds the loop for tests; zero means run until the
	// context is cancelled.
	MaxCycles int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLoop creates a reconciliation loop with the given pacing.
func NewLoop(store *snapshot.Store, api coingecko.Client, interval, cooldown time.Duration) *Loop {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Loop{
		store:    store,
		api:      api,
		Interval: interval,
		Cooldown: cooldown,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// WithClock replaces the clock and sleeper, for tests.
func (l *Loop) WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *Loop {
	l.now = now
	l.sleep = sleep
	return l
}

// Run cycles until the context is cancelled (or MaxCycles is reached).
// A failed cycle shortens the next wait to the cool-down so transient API
// trouble recovers quickly.
func (l *Loop) Run(ctx context.Context) error {
	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		wait := l.Interval
		if err := l.RunCycle(ctx); err != nil {
			zap.L().Warn("pricefeed: cycle failed", zap.Int("cycle", cycle), zap.Error(err))
			wait = l.Cooldown
		}

		if l.MaxCycles > 0 && cycle >= l.MaxCycles {
			return nil
		}
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// RunCycle performs one reconciliation pass over the latest snapshot.
func (l *Loop) RunCycle(ctx context.Context) error {
	path, ok, err := l.store.LatestPath()
	if err != nil {
		return eris.Wrap(err, "pricefeed: resolve latest snapshot")
	}
	if !ok {
		return eris.New("pricefeed: no snapshot to update yet")
	}

	snap, err := l.store.Load(path)
	if err != nil {
		return eris.Wrap(err, "pricefeed: load snapshot")
	}
	records := snap.Records

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.ExternalID != "" {
			ids = append(ids, rec.ExternalID)
		}
	}
	if len(ids) == 0 {
		return eris.New("pricefeed: snapshot has no identifiable coins")
	}

	quotes, err := l.api.SimplePrice(ctx, ids)
	if err != nil {
		return eris.Wrap(err, "pricefeed: fetch quotes")
	}

	nowStamp := l.now().Format(coin.TimestampLayout)
	matched := 0
	for _, rec := range records {
		quote, found := quotes[rec.ExternalID]
		if !found {
			continue
		}
		prevPrice := rec.Price
		coin.ApplyPriceUpdate(rec, coin.PriceUpdate{
			Price:     quote.USD,
			MarketCap: quote.USDMarketCap,
			Change24h: quote.USD24hChange,
			Volume24h: quote.USD24hVol,
		}, nowStamp)
		matched++

		zap.L().Debug("pricefeed: updated",
			zap.String("coin", rec.Name),
			zap.Float64("price_before", prevPrice),
			zap.Float64("price_after", rec.Price),
		)
	}

	if matched == 0 {
		zap.L().Warn("pricefeed: no quotes matched snapshot, skipping write",
			zap.String("path", path))
		return nil
	}

	if err := l.store.PersistInPlace(path, records); err != nil {
		return eris.Wrap(err, "pricefeed: persist updated snapshot")
	}
	zap.L().Info("pricefeed: snapshot updated",
		zap.String("path", path),
		zap.Int("matched", matched),
		zap.Int("records", len(records)),
	)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

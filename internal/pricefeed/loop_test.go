package pricefeed

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/snapshot"
	"github.com/harborview/coinwatch/pkg/coingecko"
)

type fakeAPI struct {
	quotes map[string]coingecko.Quote
	err    error
	calls  int
}

func (f *fakeAPI) SimplePrice(context.Context, []string) (map[string]coingecko.Quote, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.quotes, nil
}

func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func seedStore(t *testing.T, records ...*coin.Record) *snapshot.Store {
	t.Helper()
	store, err := snapshot.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Persist(&coin.Snapshot{Date: "2026-08-31", Records: records}))
	return store
}

func noWait(context.Context, time.Duration) error { return nil }

func TestCycleAppliesQuotesWithFieldFallback(t *testing.T) {
	store := seedStore(t,
		&coin.Record{Name: "Bitcoin", ExternalID: "bitcoin", Price: 60000, Volume24h: coin.Float(5e9)},
		&coin.Record{Name: "Ethereum", ExternalID: "ethereum", Price: 3000},
	)
	api := &fakeAPI{quotes: map[string]coingecko.Quote{
		// Volume omitted: the previous value must survive.
		"bitcoin": {USD: coin.Float(67000), USDMarketCap: coin.Float(1.3e12)},
	}}

	loop := NewLoop(store, api, time.Minute, time.Second).WithClock(fixedNow, noWait)
	require.NoError(t, loop.RunCycle(context.Background()))

	snap, err := store.LoadLatest()
	require.NoError(t, err)

	btc := snap.FindByName("Bitcoin")
	assert.InDelta(t, 67000, btc.Price, 0.001)
	assert.InDelta(t, 1.3e12, btc.MarketCap, 1)
	require.NotNil(t, btc.Volume24h)
	assert.InDelta(t, 5e9, *btc.Volume24h, 0.001)
	require.NotNil(t, btc.LastUpdated)
	assert.Equal(t, "2026-08-31 12:00:00", *btc.LastUpdated)

	// Unquoted coin untouched.
	eth := snap.FindByName("Ethereum")
	assert.InDelta(t, 3000, eth.Price, 0.001)
	assert.Nil(t, eth.LastUpdated)
}

func TestCycleSkipsWriteWhenNothingMatched(t *testing.T) {
	store := seedStore(t, &coin.Record{Name: "Bitcoin", ExternalID: "bitcoin", Price: 60000})
	path, ok, err := store.LatestPath()
	require.NoError(t, err)
	require.True(t, ok)
	before := mtime(t, path)

	api := &fakeAPI{quotes: map[string]coingecko.Quote{}}
	loop := NewLoop(store, api, time.Minute, time.Second).WithClock(fixedNow, noWait)
	require.NoError(t, loop.RunCycle(context.Background()))

	assert.Equal(t, before, mtime(t, path))
}

func TestCycleErrorsWithoutSnapshot(t *testing.T) {
	store, err := snapshot.New(t.TempDir())
	require.NoError(t, err)

	loop := NewLoop(store, &fakeAPI{}, time.Minute, time.Second).WithClock(fixedNow, noWait)
	err = loop.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshot")
}

func TestRunCoolsDownAfterFailure(t *testing.T) {
	store := seedStore(t, &coin.Record{Name: "Bitcoin", ExternalID: "bitcoin"})
	api := &fakeAPI{err: assert.AnError}

	var waits []time.Duration
	loop := NewLoop(store, api, 10*time.Minute, time.Minute).WithClock(fixedNow,
		func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		})
	loop.MaxCycles = 3

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, 3, api.calls)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, waits)
}

func TestRunUsesIntervalAfterSuccess(t *testing.T) {
	store := seedStore(t, &coin.Record{Name: "Bitcoin", ExternalID: "bitcoin", Price: 1})
	api := &fakeAPI{quotes: map[string]coingecko.Quote{"bitcoin": {USD: coin.Float(2)}}}

	var waits []time.Duration
	loop := NewLoop(store, api, 10*time.Minute, time.Minute).WithClock(fixedNow,
		func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		})
	loop.MaxCycles = 2

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []time.Duration{10 * time.Minute}, waits)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := seedStore(t, &coin.Record{Name: "Bitcoin", ExternalID: "bitcoin"})
	loop := NewLoop(store, &fakeAPI{}, time.Minute, time.Second).WithClock(fixedNow, noWait)
	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)
}

func mtime(t *testing.T, path string) time.Time {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return info.ModTime()
}

// Package enrich visits each coin's social and repository pages and writes
// the extracted signals back into the record in place.
//
// Records are processed in fixed-size batches: every page in a batch starts
// loading before any is read, so page-load latency overlaps across the
// batch while host-side extraction stays strictly sequential.
package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/dom"
)

// Session is the subset of the browser session the engine drives.
type Session interface {
	// OpenTab creates a new tab already navigating to url, without
	// waiting for the page to render.
	OpenTab(ctx context.Context, url string) (dom.Page, error)

	// Restore re-focuses the persistent primary tab, adopting a
	// surviving tab as the new primary if the old one is gone.
	Restore()
}

// Enricher inspects one record on its target page.
type Enricher interface {
	// Name labels the enricher in logs and run phases.
	Name() string

	// TargetURL returns the page to visit for the record, or false when
	// the record already has what this enricher extracts.
	TargetURL(r *coin.Record) (string, bool)

	// Extract reads the rendered page and fills record fields in place.
	Extract(ctx context.Context, p dom.Page, r *coin.Record) error

	// Pacing returns the delay after opening each tab (lets client-side
	// rendering settle) and the pause after each extraction (rate
	// limiting against the host).
	Pacing() (settle, pause time.Duration)
}

// Engine runs enrichers over a record set in bounded batches.
type Engine struct {
	session     Session
	batchSize   int
	bodyTimeout time.Duration
	sleep       func(ctx context.Context, d time.Duration)
}

// NewEngine creates an engine driving the given session.
func NewEngine(session Session, batchSize int, bodyTimeout time.Duration) *Engine {
	if batchSize <= 0 {
		batchSize = 5
	}
	if bodyTimeout <= 0 {
		bodyTimeout = 8 * time.Second
	}
	return &Engine{
		session:     session,
		batchSize:   batchSize,
		bodyTimeout: bodyTimeout,
		sleep:       sleepCtx,
	}
}

// WithSleep replaces the pacing sleeper, for tests.
func (e *Engine) WithSleep(fn func(ctx context.Context, d time.Duration)) *Engine {
	e.sleep = fn
	return e
}

// tabEntry pairs a record with its in-flight tab. Tab handles are transient
// automation state and never touch the persisted record schema.
type tabEntry struct {
	rec *coin.Record
	tab dom.Page
}

// Run processes records through the enricher batch by batch. Per-record
// failures are logged and swallowed; only context cancellation stops a run.
func (e *Engine) Run(ctx context.Context, records []*coin.Record, en Enricher) error {
	settle, pause := en.Pacing()

	for start := 0; start < len(records); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + e.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		zap.L().Info("enrichment batch",
			zap.String("enricher", en.Name()),
			zap.Int("batch", start/e.batchSize+1),
			zap.Int("of", (len(records)+e.batchSize-1)/e.batchSize),
		)

		opened := e.fanOut(ctx, batch, en, settle)
		e.fanIn(ctx, opened, en, pause)
		e.teardown(opened)
	}
	return nil
}

// fanOut opens one tab per eligible record. Loads proceed concurrently in
// the browser; this side only issues navigations.
func (e *Engine) fanOut(ctx context.Context, batch []*coin.Record, en Enricher, settle time.Duration) []tabEntry {
	opened := make([]tabEntry, 0, len(batch))
	for _, rec := range batch {
		url, ok := en.TargetURL(rec)
		if !ok {
			continue
		}

		tab, err := e.session.OpenTab(ctx, url)
		if err != nil {
			zap.L().Warn("enrich: open tab failed",
				zap.String("enricher", en.Name()),
				zap.String("coin", rec.Name),
				zap.Error(err),
			)
			continue
		}
		opened = append(opened, tabEntry{rec: rec, tab: tab})
		e.sleep(ctx, settle)
	}
	return opened
}

// fanIn revisits tabs in fan-out order so results attribute to the right
// record, waiting for each page's body before extracting.
func (e *Engine) fanIn(ctx context.Context, opened []tabEntry, en Enricher, pause time.Duration) {
	for _, entry := range opened {
		if entry.tab.Gone() {
			zap.L().Warn("enrich: tab vanished before extraction",
				zap.String("coin", entry.rec.Name),
			)
			continue
		}

		if err := entry.tab.WaitBody(e.bodyTimeout); err != nil {
			zap.L().Warn("enrich: page body never appeared",
				zap.String("enricher", en.Name()),
				zap.String("coin", entry.rec.Name),
				zap.Error(err),
			)
			continue
		}

		if err := en.Extract(ctx, entry.tab, entry.rec); err != nil {
			zap.L().Warn("enrich: extraction failed",
				zap.String("enricher", en.Name()),
				zap.String("coin", entry.rec.Name),
				zap.Error(err),
			)
		}
		e.sleep(ctx, pause)
	}
}

// teardown closes every tab the batch opened, skipping ones whose window
// already vanished, then restores the primary tab.
func (e *Engine) teardown(opened []tabEntry) {
	for _, entry := range opened {
		if entry.tab.Gone() {
			continue
		}
		if err := entry.tab.Close(); err != nil {
			zap.L().Warn("enrich: close tab failed",
				zap.String("coin", entry.rec.Name),
				zap.Error(err),
			)
		}
	}
	e.session.Restore()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Package listing walks the paginated market table and builds the day's
// snapshot: one record per ranked coin, merged against the previous
// snapshot so durable identity fields survive a bad render.
package listing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/diag"
	"github.com/harborview/coinwatch/internal/dom"
	"github.com/harborview/coinwatch/internal/normalize"
	"github.com/harborview/coinwatch/internal/snapshot"
)

const (
	rowSelector       = "table tbody tr"
	nameLinkSelector  = "td:nth-child(3) a"
	rowLogoSelector   = "td:nth-child(3) img"
	symbolSelector    = "td:nth-child(3) .tw-text-gray-500"
	priceSelector     = "td:nth-child(4)"
	marketCapSelector = "td:nth-child(9)"

	scrollStep     = 700
	scrollInterval = 400 * time.Millisecond
)

// Detail-page logo candidates, most structured first.
var logoSelectors = []string{
	`img[data-coin-image]`,
	`[itemprop="image"]`,
	`div[data-coin-logo] img`,
	`img[alt*="logo"]`,
}

// LogoFetcher downloads a logo image and returns its local path.
type LogoFetcher interface {
	Fetch(ctx context.Context, srcURL, externalID string) (string, bool)
}

// Config bounds a collection run.
type Config struct {
	BaseURL      string
	Count        int
	CoinsPerPage int
	MaxPages     int
	TableTimeout time.Duration
	Settle       time.Duration
	DebugDir     string
}

// Collector drives the persistent primary tab across listing pages.
type Collector struct {
	page  dom.Page
	store *snapshot.Store
	logos LogoFetcher
	cfg   Config

	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a collector over the given tab and snapshot store.
// logos may be nil to skip logo downloads.
func New(page dom.Page, store *snapshot.Store, logos LogoFetcher, cfg Config) *Collector {
	if cfg.CoinsPerPage <= 0 {
		cfg.CoinsPerPage = 100
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if cfg.TableTimeout <= 0 {
		cfg.TableTimeout = 20 * time.Second
	}
	return &Collector{
		page:  page,
		store: store,
		logos: logos,
		cfg:   cfg,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

// WithClock replaces the sleeper and clock, for tests.
func (c *Collector) WithClock(sleep func(time.Duration), now func() time.Time) *Collector {
	c.sleep = sleep
	c.now = now
	return c
}

// Run collects up to cfg.Count records, persisting the snapshot after every
// page so a mid-run crash keeps the pages already walked.
func (c *Collector) Run(ctx context.Context) (*coin.Snapshot, error) {
	prior, err := c.store.LoadLatest()
	if err != nil {
		zap.L().Warn("listing: previous snapshot unreadable, starting clean", zap.Error(err))
	}

	snap := coin.NewSnapshot(c.now())
	for pageNo := 1; len(snap.Records) < c.cfg.Count && pageNo <= c.cfg.MaxPages; pageNo++ {
		if err := ctx.Err(); err != nil {
			return snap, err
		}

		pageURL := c.pageURL(pageNo)
		remaining := c.cfg.Count - len(snap.Records)
		want := remaining
		if want > c.cfg.CoinsPerPage {
			want = c.cfg.CoinsPerPage
		}

		rows, err := c.loadPage(pageURL, want)
		if err != nil {
			return snap, err
		}
		if len(rows) == 0 {
			zap.L().Info("listing: page empty, stopping", zap.Int("page", pageNo))
			break
		}

		pageRecords := make([]*coin.Record, 0, want)
		for _, row := range rows {
			if len(snap.Records)+len(pageRecords) >= c.cfg.Count {
				break
			}
			rec, ok := c.extractRow(row, len(snap.Records)+len(pageRecords)+1)
			if !ok {
				continue
			}
			coin.CarryForward(rec, prior.FindByName(rec.Name))
			pageRecords = append(pageRecords, rec)
		}

		c.acquireLogos(ctx, pageURL, pageRecords)
		snap.Records = append(snap.Records, pageRecords...)

		if err := c.store.Persist(snap); err != nil {
			return snap, eris.Wrap(err, "listing: persist page progress")
		}
		zap.L().Info("listing: page collected",
			zap.Int("page", pageNo),
			zap.Int("records", len(snap.Records)),
		)
	}
	return snap, nil
}

func (c *Collector) pageURL(n int) string {
	if n <= 1 {
		return c.cfg.BaseURL
	}
	return fmt.Sprintf("%s?page=%d", c.cfg.BaseURL, n)
}

// loadPage navigates to a listing page, waits for the table, and scrolls
// until the lazily rendered rows reach the wanted count or the page stops
// growing. A missing table is a shared-setup failure and aborts the run
// with a diagnostic capture.
func (c *Collector) loadPage(url string, want int) ([]dom.Element, error) {
	if err := c.page.Navigate(url); err != nil {
		return nil, eris.Wrap(err, "listing: navigate")
	}

	if err := c.page.WaitFor("table", c.cfg.TableTimeout); err != nil {
		if html, herr := c.page.HTML(); herr == nil && c.cfg.DebugDir != "" {
			if _, derr := diag.Save(c.cfg.DebugDir, "table_timeout", url, html); derr != nil {
				zap.L().Warn("listing: diagnostic capture failed", zap.Error(derr))
			}
		}
		return nil, eris.Wrap(err, "listing: market table never appeared")
	}
	c.sleep(c.cfg.Settle)

	return c.scrollRows(want)
}

func (c *Collector) scrollRows(want int) ([]dom.Element, error) {
	lastY := -1
	for {
		rows, err := c.page.Elements(rowSelector)
		if err != nil {
			return nil, eris.Wrap(err, "listing: query rows")
		}
		if len(rows) >= want {
			return rows, nil
		}

		y, err := c.page.ScrollY()
		if err != nil {
			return rows, nil
		}
		if y == lastY {
			// Page stopped growing; take what rendered.
			return rows, nil
		}
		lastY = y

		if err := c.page.ScrollBy(scrollStep); err != nil {
			return rows, nil
		}
		c.sleep(scrollInterval)
	}
}

// extractRow builds a record from one table row. Rows without a name link
// are spacers and skipped.
func (c *Collector) extractRow(row dom.Element, rank int) (*coin.Record, bool) {
	links, err := row.Elements(nameLinkSelector)
	if err != nil || len(links) == 0 {
		return nil, false
	}
	link := links[0]
	name := firstLine(link.Text())
	if name == "" {
		return nil, false
	}

	rec := &coin.Record{
		Rank:       rank,
		Name:       name,
		Symbol:     "?",
		SourceURL:  c.absoluteURL(link.Attr("href")),
		CapturedAt: c.now().Format(coin.TimestampLayout),
	}

	if symbols, serr := row.Elements(symbolSelector); serr == nil && len(symbols) > 0 {
		if s := strings.TrimSpace(symbols[0].Text()); s != "" {
			rec.Symbol = s
		}
	}
	rec.Price = cellMagnitude(row, priceSelector)
	rec.MarketCap = cellMagnitude(row, marketCapSelector)

	rec.ExternalID = row.Attr("data-coin-id")
	if rec.ExternalID == "" {
		rec.ExternalID = link.Attr("data-coin-id")
	}
	if rec.ExternalID == "" {
		rec.ExternalID = urlSlug(rec.SourceURL)
	}

	if imgs, ierr := row.Elements(rowLogoSelector); ierr == nil && len(imgs) > 0 {
		if src := imgs[0].Attr("src"); src != "" {
			rec.LogoSourceURL = coin.String(src)
		}
	}
	return rec, true
}

// acquireLogos runs after the row loop so detail-page navigation cannot
// invalidate row elements still being read. Each hop returns to the listing
// page before the next record, even when extraction fails.
func (c *Collector) acquireLogos(ctx context.Context, listURL string, records []*coin.Record) {
	if c.logos == nil {
		return
	}
	for _, rec := range records {
		if rec.LogoSourceURL == nil && rec.SourceURL != "" {
			c.logoHop(listURL, rec)
		}
		if rec.LogoSourceURL == nil || rec.LogoLocalPath != nil {
			continue
		}
		if path, ok := c.logos.Fetch(ctx, *rec.LogoSourceURL, rec.ExternalID); ok {
			rec.LogoLocalPath = coin.String(path)
		}
	}
}

func (c *Collector) logoHop(listURL string, rec *coin.Record) {
	defer func() {
		if err := c.page.Navigate(listURL); err != nil {
			zap.L().Warn("listing: return navigation failed", zap.Error(err))
		}
	}()

	if err := c.page.Navigate(rec.SourceURL); err != nil {
		zap.L().Warn("listing: detail navigation failed",
			zap.String("coin", rec.Name), zap.Error(err))
		return
	}
	if err := c.page.WaitBody(c.cfg.TableTimeout); err != nil {
		return
	}
	for _, sel := range logoSelectors {
		imgs, err := c.page.Elements(sel)
		if err != nil || len(imgs) == 0 {
			continue
		}
		if src := imgs[0].Attr("src"); src != "" {
			rec.LogoSourceURL = coin.String(src)
			return
		}
	}
}

func (c *Collector) absoluteURL(href string) string {
	if href == "" || strings.Contains(href, "://") {
		return href
	}
	return strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(href, "/")
}

func cellMagnitude(row dom.Element, selector string) float64 {
	cells, err := row.Elements(selector)
	if err != nil || len(cells) == 0 {
		return 0
	}
	text := strings.TrimSpace(cells[0].Text())
	return normalize.Magnitude(strings.TrimPrefix(text, "$"))
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(line)
}

// urlSlug derives a stable identifier from the detail URL's last path
// segment.
func urlSlug(url string) string {
	url = strings.TrimSuffix(url, "/")
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}

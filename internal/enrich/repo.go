package enrich

import (
	"context"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/diag"
	"github.com/harborview/coinwatch/internal/dom"
	"github.com/harborview/coinwatch/internal/normalize"
)

// Org landing pages list pinned repositories above a "Repositories" section
// heading. Counters are summed from the pinned area only when the heading
// exists; otherwise the whole page is in scope.
const aboveRepoHeading = `//*[following::h2[contains(text(), 'Repositories')]]`

var counterPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*([KkMmBb]?)\b`)

// RepoEnricher reads aggregate star and fork counts and the most recent
// update time from a coin's code-hosting org page.
type RepoEnricher struct {
	DebugDir string
	Settle   time.Duration
	Pause    time.Duration
}

// NewRepoEnricher creates a repository enricher writing diagnostic captures
// under debugDir.
func NewRepoEnricher(debugDir string) *RepoEnricher {
	return &RepoEnricher{
		DebugDir: debugDir,
		Settle:   2 * time.Second,
		Pause:    time.Second,
	}
}

func (e *RepoEnricher) Name() string { return "repo-activity" }

func (e *RepoEnricher) Pacing() (time.Duration, time.Duration) {
	return e.Settle, e.Pause
}

func (e *RepoEnricher) TargetURL(r *coin.Record) (string, bool) {
	if r.RepoURL == nil || *r.RepoURL == "" {
		return "", false
	}
	return *r.RepoURL, true
}

// Extract fills RepoStars, RepoForks and RepoLastUpdated. Counter totals of
// zero are treated as a miss, not a zero: org pages always render non-zero
// counts next to the icons, so a zero total means the scan grabbed the
// wrong elements.
func (e *RepoEnricher) Extract(_ context.Context, p dom.Page, r *coin.Record) error {
	if updated, ok := runCascade(p, "repo_last_updated", lastUpdatedStrategies); ok {
		r.RepoLastUpdated = coin.String(updated)
	}

	stars, starsOK := e.sumCounters(p, `svg[aria-label="star"]`, `svg[aria-label="stars"]`)
	forks, forksOK := e.sumCounters(p, `svg[aria-label="fork"]`, `svg[aria-label="forks"]`)
	if starsOK {
		r.RepoStars = coin.Float(stars)
	}
	if forksOK {
		r.RepoForks = coin.Float(forks)
	}

	if !starsOK || !forksOK {
		zap.L().Warn("repo: counters missing",
			zap.String("coin", r.Name),
			zap.Bool("stars", starsOK),
			zap.Bool("forks", forksOK),
		)
		if e.DebugDir != "" {
			if html, err := p.HTML(); err == nil {
				if _, derr := diag.Save(e.DebugDir, "github_debug", r.Name, html); derr != nil {
					zap.L().Warn("repo: debug capture failed", zap.Error(derr))
				}
			}
		}
	}
	return nil
}

// lastUpdatedStrategies resolves the freshest commit time, preferring
// machine-readable datetimes over rendered text.
var lastUpdatedStrategies = []Strategy{
	{
		Name: "relative-time datetime",
		Probe: func(p dom.Page) (string, bool) {
			return newestTimeAttr(p, "relative-time", "datetime", "2006-01-02T15:04:05Z")
		},
	},
	{
		Name: "relative-time title",
		Probe: func(p dom.Page) (string, bool) {
			return newestTimeAttr(p, "relative-time", "title", "Jan 2, 2006")
		},
	},
	{
		Name: "relative-time text",
		Probe: func(p dom.Page) (string, bool) {
			els, err := p.Elements("relative-time")
			if err != nil {
				return "", false
			}
			var newest time.Time
			for _, el := range els {
				t, perr := time.Parse("Jan 2, 2006", el.Text())
				if perr != nil {
					continue
				}
				if t.After(newest) {
					newest = t
				}
			}
			if newest.IsZero() {
				return "", false
			}
			return newest.Format(coin.TimestampLayout), true
		},
	},
}

func newestTimeAttr(p dom.Page, selector, attr, layout string) (string, bool) {
	els, err := p.Elements(selector)
	if err != nil {
		return "", false
	}
	var newest time.Time
	for _, el := range els {
		v := el.Attr(attr)
		if v == "" {
			continue
		}
		t, perr := time.Parse(layout, v)
		if perr != nil {
			continue
		}
		if t.After(newest) {
			newest = t
		}
	}
	if newest.IsZero() {
		return "", false
	}
	return newest.Format(coin.TimestampLayout), true
}

// sumCounters totals the counts next to every icon matching any of the
// selectors, scoped above the repository listing when that section heading
// is present. Icons are de-duplicated by node identity because the XPath
// scope yields overlapping subtrees.
func (e *RepoEnricher) sumCounters(p dom.Page, selectors ...string) (float64, bool) {
	icons := e.scopedIcons(p, selectors)
	if len(icons) == 0 {
		return 0, false
	}

	var total float64
	seen := make(map[string]struct{}, len(icons))
	matched := false
	for _, icon := range icons {
		id := icon.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		parent, ok := icon.Parent()
		if !ok {
			continue
		}
		m := counterPattern.FindStringSubmatch(parent.Text())
		if m == nil {
			continue
		}
		total += normalize.Magnitude(m[1] + m[2])
		matched = true
	}
	return total, matched && total > 0
}

func (e *RepoEnricher) scopedIcons(p dom.Page, selectors []string) []dom.Element {
	var icons []dom.Element

	scope, err := p.ElementsX(aboveRepoHeading)
	if err == nil && len(scope) > 0 {
		for _, region := range scope {
			for _, sel := range selectors {
				found, ferr := region.Elements(sel)
				if ferr != nil {
					continue
				}
				icons = append(icons, found...)
			}
		}
		return icons
	}

	for _, sel := range selectors {
		found, ferr := p.Elements(sel)
		if ferr != nil {
			continue
		}
		icons = append(icons, found...)
	}
	return icons
}

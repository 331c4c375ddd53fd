package enrich

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/diag"
	"github.com/harborview/coinwatch/internal/dom"
	"github.com/harborview/coinwatch/internal/normalize"
	"github.com/harborview/coinwatch/internal/social"
)

// Markers whose presence in a post's text flags it as pinned. Pinned posts
// can be arbitrarily old and would otherwise dominate the recency signal.
var pinnedMarkers = []string{
	"Pinned Tweet by",
	"Pinned Tweet",
	"Pinned by",
	"Pinned",
}

// Follower-count selectors, most specific first. Profile markup shifts
// between rollouts, so the cascade is deliberately long.
var followerSelectors = []string{
	`a[href$="/verified_followers"] > span > span`,
	`a[href$="/followers"] > span > span`,
	`a[href$="/verified_followers"] span span`,
	`a[href$="/followers"] span span`,
	`a[href$="/verified_followers"] span`,
	`a[href$="/followers"] span`,
	`div[data-testid="UserProfileHeader_Items"] a[href$="/followers"] span`,
	`a[href*="verified_followers"] span`,
	`a[href*="/followers"] span`,
	`div[data-testid="UserName"] ~ div a span span`,
	`main a[href$="/verified_followers"]`,
	`main a[href$="/followers"]`,
	`a[role="link"][href$="/followers"]`,
}

var (
	followerJunk = regexp.MustCompile(`[^\d.KMB]`)

	// Raw-markup fallbacks, tried against the full page HTML when every
	// selector misses.
	followerHTMLPatterns = []*regexp.Regexp{
		regexp.MustCompile(`([\d.,]+[KMB]?)\s*Followers`),
		regexp.MustCompile(`"followers_count"\s*:\s*(\d+)`),
		regexp.MustCompile(`Followers[^0-9]{0,40}?([\d.,]+[KMB]?)`),
	}
)

// ProfileEnricher reads follower counts and latest-post recency from a
// coin's social profile page.
type ProfileEnricher struct {
	DebugDir string
	Settle   time.Duration
	Pause    time.Duration
	Now      func() time.Time
}

// NewProfileEnricher creates a profile enricher writing diagnostic captures
// under debugDir.
func NewProfileEnricher(debugDir string) *ProfileEnricher {
	return &ProfileEnricher{
		DebugDir: debugDir,
		Settle:   3 * time.Second,
		Pause:    2 * time.Second,
		Now:      time.Now,
	}
}

func (e *ProfileEnricher) Name() string { return "social-profile" }

func (e *ProfileEnricher) Pacing() (time.Duration, time.Duration) {
	return e.Settle, e.Pause
}

// TargetURL visits profiles for records that carry a social link.
func (e *ProfileEnricher) TargetURL(r *coin.Record) (string, bool) {
	if r.SocialURL == nil || *r.SocialURL == "" {
		return "", false
	}
	return *r.SocialURL, true
}

// Extract fills SocialFollowers and SocialLatestPostAt. The two signals are
// independent; missing one does not abort the other.
func (e *ProfileEnricher) Extract(_ context.Context, p dom.Page, r *coin.Record) error {
	recheckLinks(p, r)

	if latest, ok := e.latestPost(p); ok {
		r.SocialLatestPostAt = coin.String(latest.Format(coin.TimestampLayout))
	} else {
		zap.L().Debug("social: no dated posts on profile", zap.String("coin", r.Name))
	}

	if followers, ok := e.followers(p, r.Name); ok {
		r.SocialFollowers = coin.Float(followers)
	}
	return nil
}

// recheckLinks re-runs the detail-page anchor scan against the profile page
// we are already on. Profiles often link the project's repo and canonical
// account, so a record that arrived with gaps gets a second chance for free.
func recheckLinks(p dom.Page, r *coin.Record) {
	if r.SocialHandle == nil {
		if handle, url, ok := social.FindSocial(p); ok {
			r.SocialHandle = coin.String(handle)
			if r.SocialURL == nil {
				r.SocialURL = coin.String(url)
			}
		}
	}
	if r.RepoURL == nil {
		if url, ok := social.FindRepo(p); ok {
			r.RepoURL = coin.String(url)
		}
	}
}

// latestPost scans visible posts, skips pinned ones, and returns the most
// recent timestamp among the rest.
func (e *ProfileEnricher) latestPost(p dom.Page) (time.Time, bool) {
	articles, err := p.Elements("article")
	if err != nil || len(articles) == 0 {
		return time.Time{}, false
	}

	var stamps []string
	for _, article := range articles {
		if isPinned(article) {
			continue
		}
		times, terr := article.Elements("time")
		if terr != nil {
			continue
		}
		for _, t := range times {
			if dt := t.Attr("datetime"); dt != "" {
				stamps = append(stamps, dt)
				continue
			}
			if rel, ok := normalize.RelativeTime(t.Text(), e.Now()); ok {
				stamps = append(stamps, rel.Format(time.RFC3339))
			}
		}
	}
	return normalize.MostRecent(stamps)
}

// isPinned reports whether a post article is the profile's pinned post,
// checking the social-context badge first and falling back to text markers.
func isPinned(article dom.Element) bool {
	if badges, err := article.Elements(`span[data-testid="socialContext"]`); err == nil {
		for _, badge := range badges {
			if strings.Contains(badge.Text(), "Pinned") {
				return true
			}
		}
	}
	if label := article.Attr("aria-label"); strings.Contains(label, "Pinned") {
		return true
	}
	text := article.Text()
	for _, marker := range pinnedMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// followers runs the selector cascade, then the raw-markup patterns, and
// captures the page for offline inspection when everything misses.
func (e *ProfileEnricher) followers(p dom.Page, name string) (float64, bool) {
	if text, sel, ok := firstDigitText(p, followerSelectors); ok {
		cleaned := followerJunk.ReplaceAllString(text, "")
		if v := normalize.Magnitude(cleaned); v > 0 {
			zap.L().Debug("social: followers via selector",
				zap.String("coin", name),
				zap.String("selector", sel),
			)
			return v, true
		}
	}

	html, err := p.HTML()
	if err == nil {
		for _, pat := range followerHTMLPatterns {
			m := pat.FindStringSubmatch(html)
			if m == nil {
				continue
			}
			raw := strings.ReplaceAll(m[1], ",", "")
			if v := normalize.Magnitude(raw); v > 0 {
				zap.L().Debug("social: followers via markup pattern", zap.String("coin", name))
				return v, true
			}
			if v, perr := strconv.ParseFloat(raw, 64); perr == nil && v > 0 {
				return v, true
			}
		}
	}

	zap.L().Warn("social: follower count not found", zap.String("coin", name))
	if html != "" && e.DebugDir != "" {
		if _, derr := diag.Save(e.DebugDir, "followers_debug", name, html); derr != nil {
			zap.L().Warn("social: debug capture failed", zap.Error(derr))
		}
	}
	return 0, false
}

// Package social resolves a coin's outbound profile links from its detail
// page: the social profile URL and handle, and the code-hosting org URL.
package social

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/dom"
)

const (
	socialAnchors = `//a[contains(@href, 'twitter.com') or contains(@href, 'x.com')]`
	repoAnchors   = `//a[contains(@href, 'github.com')]`
)

var handlePattern = regexp.MustCompile(`(?:twitter\.com|x\.com)/([A-Za-z0-9_]{2,15})`)

// Path heads that appear in share and search links rather than profiles.
var nonProfilePaths = map[string]struct{}{
	"intent":  {},
	"share":   {},
	"search":  {},
	"hashtag": {},
	"home":    {},
	"i":       {},
}

// LinkResolver fills SocialHandle, SocialURL and RepoURL from the coin's
// detail page. It satisfies the enrichment engine's Enricher contract so
// link resolution rides the same batched tab machinery.
type LinkResolver struct {
	Settle time.Duration
	Pause  time.Duration
}

// NewLinkResolver creates a resolver with default pacing.
func NewLinkResolver() *LinkResolver {
	return &LinkResolver{Settle: 2 * time.Second, Pause: time.Second}
}

func (r *LinkResolver) Name() string { return "link-resolver" }

func (r *LinkResolver) Pacing() (time.Duration, time.Duration) {
	return r.Settle, r.Pause
}

// TargetURL visits the detail page only when a link is still missing.
// Records that carried both links forward from a prior snapshot are skipped.
func (r *LinkResolver) TargetURL(rec *coin.Record) (string, bool) {
	if rec.SourceURL == "" {
		return "", false
	}
	if rec.SocialURL != nil && rec.RepoURL != nil {
		return "", false
	}
	return rec.SourceURL, true
}

// Extract scans detail-page anchors. A missing link is a fact about the
// coin, not an error; the record simply stays nil for that field.
func (r *LinkResolver) Extract(_ context.Context, p dom.Page, rec *coin.Record) error {
	if rec.SocialURL == nil {
		if handle, url, ok := FindSocial(p); ok {
			rec.SocialHandle = coin.String(handle)
			rec.SocialURL = coin.String(url)
		} else {
			zap.L().Debug("social: no profile link on detail page", zap.String("coin", rec.Name))
		}
	}

	if rec.RepoURL == nil {
		if url, ok := FindRepo(p); ok {
			rec.RepoURL = coin.String(url)
		} else {
			zap.L().Debug("social: no repo link on detail page", zap.String("coin", rec.Name))
		}
	}
	return nil
}

// FindSocial scans the page's social anchors and returns the first profile
// handle and URL, skipping share and search links.
func FindSocial(p dom.Page) (handle, url string, ok bool) {
	anchors, err := p.ElementsX(socialAnchors)
	if err != nil {
		return "", "", false
	}
	for _, a := range anchors {
		href := a.Attr("href")
		m := handlePattern.FindStringSubmatch(href)
		if m == nil {
			continue
		}
		if _, skip := nonProfilePaths[strings.ToLower(m[1])]; skip {
			continue
		}
		return m[1], href, true
	}
	return "", "", false
}

// FindRepo returns the first code-hosting org or repo URL linked on the page.
func FindRepo(p dom.Page) (string, bool) {
	anchors, err := p.ElementsX(repoAnchors)
	if err != nil {
		return "", false
	}
	for _, a := range anchors {
		href := a.Attr("href")
		if !strings.Contains(href, "github.com/") {
			continue
		}
		return strings.TrimSuffix(href, "/"), true
	}
	return "", false
}

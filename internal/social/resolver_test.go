package social

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/dom"
	"github.com/harborview/coinwatch/internal/dom/domtest"
)

func anchor(id, href string) *domtest.FakeElement {
	return domtest.NewElement(id, "").WithAttr("href", href)
}

func detailPage(socialHref, repoHref string) dom.Page {
	p := domtest.NewPage()
	if socialHref != "" {
		p.WithElementsX(socialAnchors, anchor("tw", socialHref))
	}
	if repoHref != "" {
		p.WithElementsX(repoAnchors, anchor("gh", repoHref))
	}
	return p
}

func TestResolveBothLinks(t *testing.T) {
	page := detailPage("https://twitter.com/bitcoin", "https://github.com/bitcoin/")
	rec := &coin.Record{Name: "Bitcoin", SourceURL: "https://example.com/coins/bitcoin"}

	r := NewLinkResolver()
	require.NoError(t, r.Extract(context.Background(), page, rec))

	require.NotNil(t, rec.SocialHandle)
	assert.Equal(t, "bitcoin", *rec.SocialHandle)
	require.NotNil(t, rec.SocialURL)
	assert.Equal(t, "https://twitter.com/bitcoin", *rec.SocialURL)
	require.NotNil(t, rec.RepoURL)
	assert.Equal(t, "https://github.com/bitcoin", *rec.RepoURL)
}

func TestResolveHandleFromXDomain(t *testing.T) {
	page := detailPage("https://x.com/solana", "")
	rec := &coin.Record{Name: "Solana", SourceURL: "https://example.com/coins/solana"}

	require.NoError(t, NewLinkResolver().Extract(context.Background(), page, rec))
	require.NotNil(t, rec.SocialHandle)
	assert.Equal(t, "solana", *rec.SocialHandle)
	assert.Nil(t, rec.RepoURL)
}

func TestResolveSkipsShareLinks(t *testing.T) {
	p := domtest.NewPage().WithElementsX(socialAnchors,
		anchor("a1", "https://twitter.com/intent/tweet?text=hi"),
		anchor("a2", "https://x.com/cardano"),
	)
	rec := &coin.Record{Name: "Cardano", SourceURL: "https://example.com/coins/cardano"}

	require.NoError(t, NewLinkResolver().Extract(context.Background(), p, rec))
	require.NotNil(t, rec.SocialHandle)
	assert.Equal(t, "cardano", *rec.SocialHandle)
}

func TestResolveMissingLinksLeaveNil(t *testing.T) {
	rec := &coin.Record{Name: "Obscure", SourceURL: "https://example.com/coins/obscure"}
	require.NoError(t, NewLinkResolver().Extract(context.Background(), domtest.NewPage(), rec))
	assert.Nil(t, rec.SocialURL)
	assert.Nil(t, rec.RepoURL)
}

func TestResolvePreservesCarriedLinks(t *testing.T) {
	page := detailPage("https://x.com/fresh", "https://github.com/fresh")
	rec := &coin.Record{
		Name:      "Ripple",
		SourceURL: "https://example.com/coins/ripple",
		SocialURL: coin.String("https://x.com/ripple"),
	}

	require.NoError(t, NewLinkResolver().Extract(context.Background(), page, rec))

	// The carried social link is untouched; only the missing repo link fills.
	assert.Equal(t, "https://x.com/ripple", *rec.SocialURL)
	require.NotNil(t, rec.RepoURL)
	assert.Equal(t, "https://github.com/fresh", *rec.RepoURL)
}

func TestResolverTargetURL(t *testing.T) {
	r := NewLinkResolver()

	_, ok := r.TargetURL(&coin.Record{Name: "NoDetail"})
	assert.False(t, ok)

	url, ok := r.TargetURL(&coin.Record{SourceURL: "https://example.com/coins/bitcoin"})
	require.True(t, ok)
	assert.Equal(t, "https://example.com/coins/bitcoin", url)

	_, ok = r.TargetURL(&coin.Record{
		SourceURL: "https://example.com/coins/bitcoin",
		SocialURL: coin.String("https://x.com/bitcoin"),
		RepoURL:   coin.String("https://github.com/bitcoin"),
	})
	assert.False(t, ok)
}

package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborview/coinwatch/internal/coin"
	"github.com/harborview/coinwatch/internal/dom/domtest"
)

func counter(id, text string) *domtest.FakeElement {
	parent := domtest.NewElement(id+"-parent", text)
	return domtest.NewElement(id, "").WithParent(parent)
}

func TestRepoCountersSummedAcrossPinnedRepos(t *testing.T) {
	page := domtest.NewPage().
		WithElements(`svg[aria-label="star"]`,
			counter("s1", "1.2K"),
			counter("s2", "300"),
		).
		WithElements(`svg[aria-label="fork"]`,
			counter("f1", "450"),
		)

	e := NewRepoEnricher("")
	rec := &coin.Record{Name: "Bitcoin", RepoURL: coin.String("https://github.com/bitcoin")}
	require.NoError(t, e.Extract(context.Background(), page, rec))

	require.NotNil(t, rec.RepoStars)
	assert.InDelta(t, 1500, *rec.RepoStars, 0.1)
	require.NotNil(t, rec.RepoForks)
	assert.InDelta(t, 450, *rec.RepoForks, 0.1)
}

func TestRepoCountersScopedAboveRepositoryHeading(t *testing.T) {
	pinnedArea := domtest.NewElement("area", "").
		WithChild(`svg[aria-label="star"]`, counter("s1", "2K"))

	page := domtest.NewPage().
		WithElementsX(aboveRepoHeading, pinnedArea).
		// Counters outside the pinned area must not contribute.
		WithElements(`svg[aria-label="star"]`, counter("s9", "999"))

	e := NewRepoEnricher("")
	rec := &coin.Record{Name: "Ethereum", RepoURL: coin.String("https://github.com/ethereum")}
	require.NoError(t, e.Extract(context.Background(), page, rec))

	require.NotNil(t, rec.RepoStars)
	assert.InDelta(t, 2000, *rec.RepoStars, 0.1)
}

func TestRepoCountersDeduplicatedByNodeIdentity(t *testing.T) {
	star := counter("s1", "5K")
	outer := domtest.NewElement("outer", "").WithChild(`svg[aria-label="star"]`, star)
	// Overlapping scope subtrees yield the same icon twice.
	inner := domtest.NewElement("inner", "")
	inner.Children = map[string][]*domtest.FakeElement{`svg[aria-label="star"]`: {star}}

	page := domtest.NewPage().WithElementsX(aboveRepoHeading, outer, inner)

	e := NewRepoEnricher("")
	rec := &coin.Record{Name: "Cardano", RepoURL: coin.String("https://github.com/cardano")}
	require.NoError(t, e.Extract(context.Background(), page, rec))

	require.NotNil(t, rec.RepoStars)
	assert.InDelta(t, 5000, *rec.RepoStars, 0.1)
}

func TestRepoLastUpdatedPrefersDatetime(t *testing.T) {
	page := domtest.NewPage().
		WithElements("relative-time",
			domtest.NewElement("r1", "Jan 1, 2020").
				WithAttr("datetime", "2026-08-20T09:30:00Z").
				WithAttr("title", "Aug 1, 2026"),
			domtest.NewElement("r2", "").
				WithAttr("datetime", "2026-07-01T00:00:00Z"),
		)

	e := NewRepoEnricher("")
	rec := &coin.Record{Name: "Polkadot", RepoURL: coin.String("https://github.com/polkadot")}
	require.NoError(t, e.Extract(context.Background(), page, rec))

	require.NotNil(t, rec.RepoLastUpdated)
	assert.Equal(t, "2026-08-20 09:30:00", *rec.RepoLastUpdated)
}

func TestRepoLastUpdatedFallsBackToText(t *testing.T) {
	page := domtest.NewPage().
		WithElements("relative-time", domtest.NewElement("r1", "Mar 5, 2026"))

	e := NewRepoEnricher("")
	rec := &coin.Record{Name: "Chainlink", RepoURL: coin.String("https://github.com/chainlink")}
	require.NoError(t, e.Extract(context.Background(), page, rec))

	require.NotNil(t, rec.RepoLastUpdated)
	assert.Equal(t, "2026-03-05 00:00:00", *rec.RepoLastUpdated)
}

func TestRepoZeroCounterTotalTreatedAsMiss(t *testing.T) {
	page := domtest.NewPage().
		WithHTML("<html>org</html>").
		WithElements(`svg[aria-label="star"]`, counter("s1", "0")).
		WithElements(`svg[aria-label="fork"]`, counter("f1", "0"))

	e := NewRepoEnricher("")
	rec := &coin.Record{Name: "Empty Org", RepoURL: coin.String("https://github.com/empty")}
	require.NoError(t, e.Extract(context.Background(), page, rec))

	assert.Nil(t, rec.RepoStars)
	assert.Nil(t, rec.RepoForks)
}

func TestRepoPartialCountersStillCaptureDebug(t *testing.T) {
	dir := t.TempDir()
	page := domtest.NewPage().
		WithHTML("<html>stars only</html>").
		WithElements(`svg[aria-label="star"]`, counter("s1", "3.2K"))

	e := NewRepoEnricher(dir)
	rec := &coin.Record{Name: "Half Org", RepoURL: coin.String("https://github.com/half")}
	require.NoError(t, e.Extract(context.Background(), page, rec))

	require.NotNil(t, rec.RepoStars)
	assert.InDelta(t, 3200, *rec.RepoStars, 0.1)
	assert.Nil(t, rec.RepoForks)
	assert.FileExists(t, dir+"/github_debug_Half_Org.html")
}

func TestRepoNoCountersCapturesDebug(t *testing.T) {
	dir := t.TempDir()
	page := domtest.NewPage().WithHTML("<html>empty org</html>")

	e := NewRepoEnricher(dir)
	rec := &coin.Record{Name: "Ghost Chain", RepoURL: coin.String("https://github.com/ghost")}
	require.NoError(t, e.Extract(context.Background(), page, rec))

	assert.Nil(t, rec.RepoStars)
	assert.Nil(t, rec.RepoForks)
	assert.FileExists(t, dir+"/github_debug_Ghost_Chain.html")
}

func TestRepoTargetURL(t *testing.T) {
	e := NewRepoEnricher("")
	_, ok := e.TargetURL(&coin.Record{})
	assert.False(t, ok)

	url, ok := e.TargetURL(&coin.Record{RepoURL: coin.String("https://github.com/bitcoin")})
	require.True(t, ok)
	assert.Equal(t, "https://github.com/bitcoin", url)
}

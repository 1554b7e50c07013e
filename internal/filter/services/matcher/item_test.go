package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/bloom"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/index"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/lru"
)

func TestItemMatcher_LookupSite(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "bannedsitelist", "#listcategory: \"Ads\"\nads.tracker.net\nexample.co.uk\ncom.evil\n")

	for _, policy := range []index.Policy{{}, {ForceQuick: true}} {
		spec := itemSpec("bannedsites", domain.SiteList, p, domain.EntryBanned)
		spec.Policy = policy
		m, err := NewItemMatcher(compileList(t, spec), ItemOptions{BloomFactory: bloom.NewFactory()})
		require.NoError(t, err)

		tests := []struct {
			host    string
			ok      bool
			matched string
			apex    string
		}{
			{"ads.tracker.net", true, "ads.tracker.net", "tracker.net"},
			{"http://x.y.ADS.tracker.net:8080/a/b?c", true, "ads.tracker.net", "tracker.net"},
			{"www.example.co.uk", true, "example.co.uk", "example.co.uk"},
			{"tracker.net", false, "", ""},
			{"bads.tracker.net", false, "", ""},
			{"notexample.co.uk", false, "", ""},
			{"", false, "", ""},
		}
		for _, tt := range tests {
			r, ok := m.LookupSite(tt.host)
			assert.Equal(t, tt.ok, ok, "%+v %q", policy, tt.host)
			assert.Equal(t, tt.matched, r.Text, tt.host)
			assert.Equal(t, tt.apex, r.Apex, tt.host)
			if ok {
				assert.Equal(t, "Ads", r.Category)
				assert.Equal(t, domain.EntryBanned, r.Kind)
			}
		}
	}
}

func TestItemMatcher_LookupURL(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "bannedurllist", "example.com/bad\nhttp://example.com/bad/worse/\nexample.com/Case\n")
	m, err := NewItemMatcher(compileList(t, itemSpec("bannedurls", domain.URLList, p, domain.EntryBanned)), ItemOptions{})
	require.NoError(t, err)

	tests := []struct {
		url     string
		ok      bool
		matched string
	}{
		{"https://example.com/bad/worse/page.html", true, "example.com/bad/worse"},
		{"http://EXAMPLE.com/bad", true, "example.com/bad"},
		{"example.com/badger", true, "example.com/bad"},
		{"example.com/CASE/x", true, "example.com/case"},
		{"example.com/good", false, ""},
		{"other.org/bad", false, ""},
	}
	for _, tt := range tests {
		r, ok := m.LookupURL(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.matched, r.Text, tt.url)
		if ok {
			assert.Equal(t, "example.com", r.Apex)
		}
	}
}

func TestItemMatcher_CacheAndBloom(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "sites", "example.com\n")
	cache, err := lru.New(16)
	require.NoError(t, err)
	m, err := NewItemMatcher(compileList(t, itemSpec("sites", domain.SiteList, p, domain.EntryBanned)), ItemOptions{
		BloomFactory: bloom.NewFactory(),
		Cache:        cache,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, ok := m.Lookup("example.com", domain.MatchExact)
		require.True(t, ok)
	}
	st := m.CacheStats()
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(2), st.Hits)

	// Suffix lookups skip the bloom filter and go through the cache.
	_, ok := m.Lookup("www.example.com", domain.MatchSuffix)
	assert.True(t, ok)
	assert.Equal(t, 2, m.CacheStats().Size)
}

func TestItemMatcher_TimeGated(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "sites", "#time: 9 0 17 0 01234\ngames.example\n")
	clk := &clock.MockClock{CurrentTime: monday(10, 0)}
	cache, err := lru.New(8)
	require.NoError(t, err)
	m, err := NewItemMatcher(compileList(t, itemSpec("sites", domain.SiteList, p, domain.EntryBanned)), ItemOptions{Clock: clk, Cache: cache})
	require.NoError(t, err)

	_, ok := m.LookupSite("games.example")
	assert.True(t, ok)
	clk.Set(monday(18, 0))
	_, ok = m.LookupSite("games.example")
	assert.False(t, ok, "memoised match must still be gated by the clock")
}

func TestNewItemMatcher_RejectsPhraseList(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "banned", "<porn>\n")
	_, err := NewItemMatcher(compileList(t, phraseSpec("phrases", domain.Source{Path: p, Kind: domain.EntryBanned})), ItemOptions{})
	require.Error(t, err)
}

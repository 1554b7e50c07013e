package matcher

import (
	"fmt"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/metrics"
	"github.com/haukened/rr-filter/internal/filter/repos/lists"
)

// ItemOptions configures an ItemMatcher. BloomFactory and Cache are
// optional; without them every lookup goes to the index.
type ItemOptions struct {
	BloomFactory lists.BloomFactory
	BloomFPRate  float64
	Cache        lists.LookupCache
	PreserveCase bool
	Clock        clock.Clock
	Logger       log.Logger
	Metrics      *metrics.Metrics
}

// ItemMatcher answers site and URL lookups against a compiled item list.
// It applies a bloom → cache → index pipeline for exact lookups and
// cache → index for the others. Safe for concurrent use.
type ItemMatcher struct {
	list    *lists.Compiled
	bloom   lists.BloomFilter
	cache   lists.LookupCache
	opts    ItemOptions
	clock   clock.Clock
	logger  log.Logger
	metrics *metrics.Metrics
}

// NewItemMatcher wraps list, which must be a compiled site or URL list.
func NewItemMatcher(list *lists.Compiled, opts ItemOptions) (*ItemMatcher, error) {
	if list == nil || list.Index == nil || list.Type == domain.PhraseList {
		return nil, fmt.Errorf("item matcher needs a compiled site or URL list")
	}
	m := &ItemMatcher{
		list:    list,
		cache:   opts.Cache,
		opts:    opts,
		clock:   opts.Clock,
		logger:  log.OrNoop(opts.Logger),
		metrics: opts.Metrics,
	}
	if m.clock == nil {
		m.clock = clock.RealClock{}
	}
	if opts.BloomFactory != nil {
		texts := make([]string, list.Table.Len())
		for i, e := range list.Table.Entries {
			texts[i] = e.Text
		}
		m.bloom = bloomFromTexts(opts.BloomFactory, texts, opts.BloomFPRate)
	}
	return m, nil
}

func bloomFromTexts(f lists.BloomFactory, texts []string, fpRate float64) lists.BloomFilter {
	bf := f.New(uint64(len(texts)), fpRate)
	for _, t := range texts {
		bf.Add([]byte(t))
	}
	return bf
}

// List returns the compiled list being matched.
func (m *ItemMatcher) List() *lists.Compiled { return m.list }

// CacheStats returns lookup cache counters.
func (m *ItemMatcher) CacheStats() lists.CacheStats {
	if m.cache == nil {
		return lists.CacheStats{}
	}
	return m.cache.Stats()
}

// Lookup queries the list with q as given. A match on an entry outside its
// time window is a miss.
func (m *ItemMatcher) Lookup(q string, mode domain.MatchMode) (domain.LookupResult, bool) {
	out := m.lookupRaw(q, mode)
	if !out.OK {
		return domain.LookupResult{}, false
	}
	tbl := m.list.Table
	if !tbl.Active(out.ID, m.clock.Now()) {
		m.logger.Debug(map[string]any{"list": m.list.Name, "query": q}, "lookup_inactive")
		return domain.LookupResult{}, false
	}
	e := tbl.Entry(out.ID)
	return domain.LookupResult{
		Entry:    out.ID,
		Text:     e.Text,
		Kind:     e.Kind,
		Category: tbl.CategoryLabel(e.Category),
	}, true
}

func (m *ItemMatcher) lookupRaw(q string, mode domain.MatchMode) lists.LookupOutcome {
	if mode == domain.MatchExact && m.bloom != nil && !m.bloom.MightContain([]byte(q)) {
		m.metrics.RecordLookup(m.list.Name, "filtered")
		return lists.LookupOutcome{}
	}
	key := lists.LookupKey{Mode: mode, Query: q}
	if m.cache != nil {
		if out, ok := m.cache.Get(key); ok {
			m.record(out)
			return out
		}
	}
	id, ok := m.list.Index.Lookup(q, mode)
	out := lists.LookupOutcome{ID: id, OK: ok}
	if m.cache != nil {
		m.cache.Put(key, out)
	}
	m.record(out)
	return out
}

func (m *ItemMatcher) record(out lists.LookupOutcome) {
	if out.OK {
		m.metrics.RecordLookup(m.list.Name, "hit")
	} else {
		m.metrics.RecordLookup(m.list.Name, "miss")
	}
}

// LookupSite matches host, then each parent domain at a label boundary,
// against a site list. The apex of host is reported for logging.
func (m *ItemMatcher) LookupSite(host string) (domain.LookupResult, bool) {
	h := utils.CanonicalSite(host)
	for cand := h; cand != ""; {
		if r, ok := m.Lookup(cand, domain.MatchExact); ok {
			r.Apex = utils.ApexDomain(h)
			return r, true
		}
		i := strings.IndexByte(cand, '.')
		if i < 0 {
			break
		}
		cand = cand[i+1:]
	}
	return domain.LookupResult{}, false
}

// LookupURL matches the longest URL list entry that prefixes rawURL once
// its scheme is stripped.
func (m *ItemMatcher) LookupURL(rawURL string) (domain.LookupResult, bool) {
	u := utils.CanonicalURL(rawURL, m.opts.PreserveCase)
	r, ok := m.Lookup(u, domain.MatchPrefix)
	if ok {
		host := u
		if i := strings.IndexByte(u, '/'); i >= 0 {
			host = u[:i]
		}
		r.Apex = utils.ApexDomain(host)
	}
	return r, ok
}

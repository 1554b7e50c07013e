package matcher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/metrics"
	"github.com/haukened/rr-filter/internal/filter/repos/lists"
)

// WeightMode selects how repeated phrases contribute to the weight sum.
type WeightMode uint8

const (
	// WeightSingular counts each phrase once per document.
	WeightSingular WeightMode = iota
	// WeightOccurrence multiplies a phrase's weight by its occurrence count.
	WeightOccurrence
)

// ParseWeightMode parses "singular" or "occurrence".
func ParseWeightMode(s string) (WeightMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "singular":
		return WeightSingular, nil
	case "occurrence":
		return WeightOccurrence, nil
	default:
		return 0, fmt.Errorf("unsupported weight mode: %q", s)
	}
}

func (m WeightMode) String() string {
	if m == WeightOccurrence {
		return "occurrence"
	}
	return "singular"
}

// PhraseOptions configures a PhraseMatcher.
type PhraseOptions struct {
	HexDecode    bool
	PreserveCase bool
	WeightMode   WeightMode
	Clock        clock.Clock
	Logger       log.Logger
	Metrics      *metrics.Metrics
}

// PhraseMatcher scans documents against a compiled phrase list. It holds no
// per-scan state and is safe for concurrent use.
type PhraseMatcher struct {
	list    *lists.Compiled
	opts    PhraseOptions
	clock   clock.Clock
	logger  log.Logger
	metrics *metrics.Metrics
}

// NewPhraseMatcher wraps list, which must be a compiled phrase list.
func NewPhraseMatcher(list *lists.Compiled, opts PhraseOptions) (*PhraseMatcher, error) {
	if list == nil || list.Type != domain.PhraseList || list.Graph == nil {
		return nil, fmt.Errorf("phrase matcher needs a compiled phrase list")
	}
	m := &PhraseMatcher{
		list:    list,
		opts:    opts,
		clock:   opts.Clock,
		logger:  log.OrNoop(opts.Logger),
		metrics: opts.Metrics,
	}
	if m.clock == nil {
		m.clock = clock.RealClock{}
	}
	return m, nil
}

// List returns the compiled list being matched.
func (m *PhraseMatcher) List() *lists.Compiled { return m.list }

// prepare applies decoding, case folding and whitespace collapsing. The
// caller's document is never modified.
func (m *PhraseMatcher) prepare(doc []byte) []byte {
	var buf []byte
	if m.opts.HexDecode {
		buf = utils.HexDecode(doc)
	} else {
		buf = append([]byte(nil), doc...)
	}
	if !m.opts.PreserveCase {
		utils.FoldASCII(buf)
	}
	return utils.CollapseSpace(buf)
}

// Scan matches doc against the list. Combination components are never
// reported on their own; a combination is reported when every component
// occurred. Entries outside their time window are dropped.
func (m *PhraseMatcher) Scan(doc []byte) domain.ScanResult {
	m.metrics.RecordScan()
	tbl := m.list.Table

	seen := roaring.New()
	var counts map[domain.EntryID]int
	if m.opts.WeightMode == WeightOccurrence {
		counts = make(map[domain.EntryID]int)
	}
	m.list.Graph.Scan(m.prepare(doc), func(id domain.EntryID) {
		seen.Add(uint32(id))
		if counts != nil {
			counts[id]++
		}
	})

	hits := roaring.New()
	parents := roaring.New()
	it := seen.Iterator()
	for it.HasNext() {
		id := domain.EntryID(it.Next())
		e := tbl.Entry(id)
		if e.IsComponent() {
			parents.Add(uint32(e.Parent))
			continue
		}
		hits.Add(uint32(id))
	}
	pit := parents.Iterator()
	for pit.HasNext() {
		pid := domain.EntryID(pit.Next())
		members := componentSet(tbl.Entry(pid))
		if members.AndCardinality(seen) != members.GetCardinality() {
			continue
		}
		hits.Add(uint32(pid))
		if counts != nil {
			counts[pid] = minCount(members, counts)
		}
	}

	now := m.clock.Now()
	res := domain.ScanResult{CategoryWeights: map[string]int{}}
	var exceptionCat, bannedCat string
	var exceptionSet, bannedSet bool
	hit := hits.Iterator()
	for hit.HasNext() {
		id := domain.EntryID(hit.Next())
		if !tbl.Active(id, now) {
			continue
		}
		e := tbl.Entry(id)
		label := tbl.CategoryLabel(e.Category)
		res.Hits = append(res.Hits, id)
		switch e.Kind {
		case domain.EntryException:
			res.Exception = true
			if !exceptionSet {
				exceptionCat, exceptionSet = label, true
			}
		case domain.EntryBanned:
			res.Banned = true
			if !bannedSet {
				bannedCat, bannedSet = label, true
			}
		case domain.EntryWeighted:
			w := int(e.Weight)
			if counts != nil {
				w *= counts[id]
			}
			res.WeightSum += w
			if label != "" {
				res.CategoryWeights[label] += w
			}
		}
	}
	switch {
	case exceptionSet:
		res.Category = exceptionCat
	case bannedSet:
		res.Category = bannedCat
	default:
		res.Category = heaviestCategory(res.CategoryWeights)
	}

	m.logger.Debug(map[string]any{
		"list":      m.list.Name,
		"hits":      len(res.Hits),
		"weight":    res.WeightSum,
		"banned":    res.Banned,
		"exception": res.Exception,
	}, "phrase_scan")
	return res
}

func componentSet(e domain.Entry) *roaring.Bitmap {
	members := roaring.New()
	for _, c := range e.Combination {
		members.Add(uint32(c))
	}
	return members
}

func minCount(members *roaring.Bitmap, counts map[domain.EntryID]int) int {
	n := -1
	it := members.Iterator()
	for it.HasNext() {
		c := counts[domain.EntryID(it.Next())]
		if n < 0 || c < n {
			n = c
		}
	}
	return max(n, 0)
}

// heaviestCategory returns the label with the largest positive total, ties
// broken alphabetically.
func heaviestCategory(weights map[string]int) string {
	labels := make([]string, 0, len(weights))
	for l := range weights {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	best, bestW := "", 0
	for _, l := range labels {
		if w := weights[l]; w > bestW {
			best, bestW = l, w
		}
	}
	return best
}

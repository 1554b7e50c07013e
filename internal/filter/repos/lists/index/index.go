package index

import (
	"cmp"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
)

// Index answers exact, prefix and suffix queries over item texts. Position i
// in texts is entry id i. Forward orders ids by (text, id); Reverse orders
// ids by (reversed text, id), so "ends with" becomes "starts with" on the
// reversed keys and duplicates resolve to the first listed entry.
type Index struct {
	texts   []string
	revKeys []string
	forward []uint32
	reverse []uint32
	quick   *quickText
}

// Build sorts texts into both orders and prepares quick search when the
// policy selects it.
func Build(texts []string, p Policy) *Index {
	ix := &Index{texts: texts, revKeys: reversedKeys(texts)}
	ix.forward = sortedOrder(ix.texts)
	ix.reverse = sortedOrder(ix.revKeys)
	if p.UseQuick(len(texts)) {
		ix.quick = newQuickText(texts)
	}
	return ix
}

// FromParts rebuilds an Index from persisted orders. The orders must be
// permutations of the text positions.
func FromParts(texts []string, forward, reverse []uint32, quick bool) (*Index, error) {
	if err := checkPermutation(forward, len(texts)); err != nil {
		return nil, fmt.Errorf("forward order: %w", err)
	}
	if err := checkPermutation(reverse, len(texts)); err != nil {
		return nil, fmt.Errorf("reverse order: %w", err)
	}
	ix := &Index{texts: texts, revKeys: reversedKeys(texts), forward: forward, reverse: reverse}
	if quick {
		ix.quick = newQuickText(texts)
	}
	return ix, nil
}

// Len returns the number of items.
func (ix *Index) Len() int { return len(ix.texts) }

// Quick reports whether lookups use quick search.
func (ix *Index) Quick() bool { return ix.quick != nil }

// Forward returns the prefix order. Callers must not modify it.
func (ix *Index) Forward() []uint32 { return ix.forward }

// Reverse returns the suffix order. Callers must not modify it.
func (ix *Index) Reverse() []uint32 { return ix.reverse }

// Lookup finds the entry matching q under mode. For prefix and suffix modes
// the longest matching item wins.
func (ix *Index) Lookup(q string, mode domain.MatchMode) (domain.EntryID, bool) {
	if ix.quick != nil {
		return ix.quick.lookup(q, mode)
	}
	return ix.SortedLookup(q, mode)
}

// SortedLookup runs the binary-search path regardless of policy.
func (ix *Index) SortedLookup(q string, mode domain.MatchMode) (domain.EntryID, bool) {
	var (
		id uint32
		ok bool
	)
	switch mode {
	case domain.MatchExact:
		id, ok = exact(ix.forward, ix.texts, q)
	case domain.MatchPrefix:
		id, ok = longestPrefix(ix.forward, ix.texts, q)
	case domain.MatchSuffix:
		id, ok = longestPrefix(ix.reverse, ix.revKeys, utils.Reverse(q))
	}
	return domain.EntryID(id), ok
}

// QuickLookup runs the quick-search path regardless of policy.
func (ix *Index) QuickLookup(q string, mode domain.MatchMode) (domain.EntryID, bool) {
	qt := ix.quick
	if qt == nil {
		qt = newQuickText(ix.texts)
	}
	return qt.lookup(q, mode)
}

func exact(order []uint32, keys []string, q string) (uint32, bool) {
	i := sort.Search(len(order), func(i int) bool { return keys[order[i]] >= q })
	if i < len(order) && keys[order[i]] == q {
		return order[i], true
	}
	return 0, false
}

// longestPrefix finds the longest key that is a prefix of q. It binary
// searches to q's insertion point, then walks back: a candidate that is not a
// prefix shares only l bytes with q, so any real prefix sorts at or below
// q[:l] and the next candidate is found by another binary search.
func longestPrefix(order []uint32, keys []string, q string) (uint32, bool) {
	hi := sort.Search(len(order), func(i int) bool { return keys[order[i]] > q })
	for hi > 0 {
		c := keys[order[hi-1]]
		if strings.HasPrefix(q, c) {
			lo := sort.Search(hi, func(i int) bool { return keys[order[i]] >= c })
			return order[lo], true
		}
		l := commonPrefixLen(c, q)
		if l == 0 {
			return 0, false
		}
		bound := q[:l]
		hi = sort.Search(hi-1, func(i int) bool { return keys[order[i]] > bound })
	}
	return 0, false
}

func commonPrefixLen(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func sortedOrder(keys []string) []uint32 {
	order := make([]uint32, len(keys))
	for i := range order {
		order[i] = uint32(i)
	}
	slices.SortFunc(order, func(a, b uint32) int {
		if c := strings.Compare(keys[a], keys[b]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return order
}

func reversedKeys(texts []string) []string {
	rev := make([]string, len(texts))
	for i, t := range texts {
		rev[i] = utils.Reverse(t)
	}
	return rev
}

func checkPermutation(order []uint32, n int) error {
	if len(order) != n {
		return fmt.Errorf("length %d, want %d", len(order), n)
	}
	seen := make([]bool, n)
	for _, v := range order {
		if int(v) >= n || seen[v] {
			return fmt.Errorf("invalid position %d", v)
		}
		seen[v] = true
	}
	return nil
}

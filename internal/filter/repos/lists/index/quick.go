package index

import (
	"sort"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

const sep = '\n'

// quickText is the concatenated source text "\nitem0\nitem1\n...\n" plus
// the start offset of every item. Items never contain a newline, so a hit on
// "\n"+p+"\n" is exactly one whole item and the first hit is the first
// listed duplicate.
type quickText struct {
	text    string
	offsets []int
}

func newQuickText(texts []string) *quickText {
	var b strings.Builder
	size := 1
	for _, t := range texts {
		size += len(t) + 1
	}
	b.Grow(size)
	b.WriteByte(sep)
	offsets := make([]int, len(texts))
	for i, t := range texts {
		offsets[i] = b.Len()
		b.WriteString(t)
		b.WriteByte(sep)
	}
	return &quickText{text: b.String(), offsets: offsets}
}

// lookup builds "\n"+q+"\n" once and reuses it for every candidate. Prefix
// candidates shrink from the right and suffix candidates from the left, so
// each step overwrites one byte that no later candidate reads with sep.
func (qt *quickText) lookup(q string, mode domain.MatchMode) (domain.EntryID, bool) {
	switch mode {
	case domain.MatchExact:
		if strings.IndexByte(q, sep) >= 0 {
			return 0, false
		}
		return qt.find(framed(q))
	case domain.MatchPrefix:
		n := len(q)
		if i := strings.IndexByte(q, sep); i >= 0 {
			n = i
		}
		buf := framed(q[:n])
		for k := n; k > 0; k-- {
			buf[k+1] = sep
			if id, ok := qt.find(buf[:k+2]); ok {
				return id, true
			}
		}
	case domain.MatchSuffix:
		start := 0
		if i := strings.LastIndexByte(q, sep); i >= 0 {
			start = i + 1
		}
		buf := framed(q[start:])
		for j := 0; j < len(q)-start; j++ {
			buf[j] = sep
			if id, ok := qt.find(buf[j:]); ok {
				return id, true
			}
		}
	}
	return 0, false
}

// framed returns sep+p+sep.
func framed(p string) []byte {
	buf := make([]byte, 0, len(p)+2)
	buf = append(buf, sep)
	buf = append(buf, p...)
	return append(buf, sep)
}

// find locates the whole item framed in pat.
func (qt *quickText) find(pat []byte) (domain.EntryID, bool) {
	pos := horspool(qt.text, pat)
	if pos < 0 {
		return 0, false
	}
	start := pos + 1
	i := sort.SearchInts(qt.offsets, start)
	if i == len(qt.offsets) || qt.offsets[i] != start {
		return 0, false
	}
	return domain.EntryID(i), true
}

// horspool returns the index of the first occurrence of pat in text using
// the Boyer-Moore-Horspool bad-character skip, or -1.
func horspool(text string, pat []byte) int {
	m, n := len(pat), len(text)
	if m == 0 {
		return 0
	}
	if m > n {
		return -1
	}
	var skip [256]int
	for i := range skip {
		skip[i] = m
	}
	for i := 0; i < m-1; i++ {
		skip[pat[i]] = m - 1 - i
	}
	last := pat[m-1]
	for i := 0; i <= n-m; {
		c := text[i+m-1]
		if c == last && text[i:i+m-1] == string(pat[:m-1]) {
			return i
		}
		i += skip[c]
	}
	return -1
}

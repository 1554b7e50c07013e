package domain

import "fmt"

// MatchMode selects how an item list is queried.
//
// exact  - the query equals a list item
// prefix - a list item is a prefix of the query (URL lists)
// suffix - a list item is a suffix of the query
type MatchMode uint8

const (
	MatchExact MatchMode = iota
	MatchPrefix
	MatchSuffix
)

func (m MatchMode) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchPrefix:
		return "prefix"
	case MatchSuffix:
		return "suffix"
	default:
		return fmt.Sprintf("MatchMode(%d)", m)
	}
}

// ScanResult is the outcome of scanning one document against a phrase list.
// Hits holds reportable entry ids that are active now, ascending.
type ScanResult struct {
	Hits            []EntryID
	Banned          bool
	Exception       bool
	WeightSum       int
	Category        string
	CategoryWeights map[string]int
}

// Hit reports whether id is among the hits.
func (r ScanResult) Hit(id EntryID) bool {
	for _, h := range r.Hits {
		if h == id {
			return true
		}
	}
	return false
}

// LookupResult describes an item list match.
type LookupResult struct {
	Entry    EntryID
	Text     string
	Kind     EntryKind
	Category string
	Apex     string
}

package domain

import (
	"fmt"
	"strings"
)

// EntryID is a dense index into a compiled list's entry table.
type EntryID uint32

// NoEntry marks the absence of an entry, e.g. the parent of a standalone phrase.
const NoEntry EntryID = ^EntryID(0)

// EntryKind classifies a list entry.
//
// banned    - a hit blocks outright
// weighted  - a hit contributes Weight to the document score
// exception - a hit allows outright and wins over banned hits
type EntryKind uint8

const (
	EntryBanned EntryKind = iota
	EntryWeighted
	EntryException
)

// String returns a stable string representation of the entry kind.
func (k EntryKind) String() string {
	switch k {
	case EntryBanned:
		return "banned"
	case EntryWeighted:
		return "weighted"
	case EntryException:
		return "exception"
	default:
		return fmt.Sprintf("EntryKind(%d)", k)
	}
}

// ParseEntryKind converts "banned", "weighted" or "exception" (any case).
func ParseEntryKind(s string) (EntryKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "banned":
		return EntryBanned, nil
	case "weighted":
		return EntryWeighted, nil
	case "exception":
		return EntryException, nil
	default:
		return 0, fmt.Errorf("unsupported EntryKind: %q", s)
	}
}

// Entry is one compiled list line.
//
// Notes:
//   - Text is already canonical (case folded unless case is preserved).
//   - Category and Window are interned ids; zero means none.
//   - A combination entry lists its component ids in Combination. Components
//     carry the combination's id in Parent and are never reported alone.
type Entry struct {
	Text        string
	Kind        EntryKind
	Weight      int32
	Category    CategoryID
	Window      WindowID
	Combination []EntryID
	Parent      EntryID
}

// IsCombination reports whether the entry is an AND-combination of phrases.
func (e Entry) IsCombination() bool { return len(e.Combination) > 0 }

// IsComponent reports whether the entry only exists as part of a combination.
func (e Entry) IsComponent() bool { return e.Parent != NoEntry }

// Validate checks the rules the loader must uphold.
func (e Entry) Validate() error {
	switch e.Kind {
	case EntryBanned, EntryWeighted, EntryException:
	default:
		return fmt.Errorf("unsupported EntryKind: %d", e.Kind)
	}
	if e.Text == "" && !e.IsCombination() {
		return fmt.Errorf("entry text must not be empty")
	}
	if e.Kind != EntryWeighted && e.Weight != 0 {
		return fmt.Errorf("weight %d on %s entry", e.Weight, e.Kind)
	}
	return nil
}

// ListType tells the loader and compiler how a list is matched.
type ListType uint8

const (
	PhraseList ListType = iota
	SiteList
	URLList
)

func (t ListType) String() string {
	switch t {
	case PhraseList:
		return "phrase"
	case SiteList:
		return "site"
	case URLList:
		return "url"
	default:
		return fmt.Sprintf("ListType(%d)", t)
	}
}

// Source is one contributing list file and the kind its entries default to.
type Source struct {
	Path string
	Kind EntryKind
}

package domain

import (
	"fmt"
	"time"
)

// EntryTable is the loaded form of a list: the entries plus the shared
// category and time-window tables their ids point into. It is immutable once
// a compiled list has been published.
type EntryTable struct {
	Entries    []Entry
	Categories *Interner[string]
	Windows    *Interner[TimeWindow]
}

// NewEntryTable returns an empty table with fresh interners.
func NewEntryTable() *EntryTable {
	return &EntryTable{
		Categories: NewInterner[string](),
		Windows:    NewInterner[TimeWindow](),
	}
}

// Len returns the number of entries.
func (t *EntryTable) Len() int { return len(t.Entries) }

// Entry returns the entry with the given id.
func (t *EntryTable) Entry(id EntryID) Entry { return t.Entries[id] }

// Active reports whether entry id counts at now. Entries without a window
// are always active.
func (t *EntryTable) Active(id EntryID, now time.Time) bool {
	e := t.Entries[id]
	if e.Window == 0 {
		return true
	}
	w, ok := t.Windows.Lookup(uint16(e.Window))
	if !ok {
		return true
	}
	return w.Contains(now)
}

// CategoryLabel resolves a category id for reporting. Unknown and zero ids
// resolve to "".
func (t *EntryTable) CategoryLabel(id CategoryID) string {
	label, _ := t.Categories.Lookup(uint16(id))
	return label
}

// Validate checks every entry and the references between entries and the
// interned tables. Tables built by the loader always pass; tables decoded
// from a cache file may not.
func (t *EntryTable) Validate() error {
	n := len(t.Entries)
	for _, w := range t.Windows.Values() {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	for i, e := range t.Entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if int(e.Category) > t.Categories.Len() {
			return fmt.Errorf("entry %d: unknown category %d", i, e.Category)
		}
		if int(e.Window) > t.Windows.Len() {
			return fmt.Errorf("entry %d: unknown time window %d", i, e.Window)
		}
		for _, c := range e.Combination {
			if int(c) >= n || t.Entries[c].Parent != EntryID(i) {
				return fmt.Errorf("entry %d: bad combination member %d", i, c)
			}
		}
		if e.IsComponent() {
			if int(e.Parent) >= n || !t.Entries[e.Parent].IsCombination() {
				return fmt.Errorf("entry %d: bad combination parent %d", i, e.Parent)
			}
		}
	}
	return nil
}

package index

// Policy selects between the sorted index and quick search. Quick search is
// used when ForceQuick is set, or when QuickThreshold is positive and the list
// has fewer items than it. The choice is made once at build time and
// recorded on the Index.
type Policy struct {
	ForceQuick     bool
	QuickThreshold int
}

// UseQuick reports whether a list of n items should use quick search.
func (p Policy) UseQuick(n int) bool {
	return p.ForceQuick || (p.QuickThreshold > 0 && n < p.QuickThreshold)
}

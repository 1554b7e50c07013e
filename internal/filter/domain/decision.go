package domain

// Decision is the outcome of checking a request or a document. Pure value type.
type Decision struct {
	Blocked   bool   // true if the request or content must be refused
	Exception bool   // true if an exception entry allowed it outright
	Reason    string // short machine-friendly reason, e.g. "banned_site"
	Matched   string // text of the decisive entry, if any
	Category  string
	Weight    int
}

// IsBlocked is a convenience accessor.
func (d Decision) IsBlocked() bool { return d.Blocked }

// Allow returns a not-blocked decision.
func Allow() Decision { return Decision{} }

package matcher

import (
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/metrics"
)

// Decision reasons.
const (
	ReasonExceptionSite   = "exception_site"
	ReasonExceptionURL    = "exception_url"
	ReasonBannedSite      = "banned_site"
	ReasonBannedURL       = "banned_url"
	ReasonExceptionPhrase = "exception_phrase"
	ReasonBannedPhrase    = "banned_phrase"
	ReasonWeightExceeded  = "weight_exceeded"
)

// CheckerOptions configures a Checker. Content whose weight sum exceeds
// NaughtinessLimit is blocked.
type CheckerOptions struct {
	NaughtinessLimit int
	Logger           log.Logger
	Metrics          *metrics.Metrics
}

// Checker turns list matches into allow/block decisions using whatever Set
// is current when a check starts.
type Checker struct {
	sets    SetProvider
	opts    CheckerOptions
	logger  log.Logger
	metrics *metrics.Metrics
}

// NewChecker returns a Checker reading sets from p.
func NewChecker(p SetProvider, opts CheckerOptions) *Checker {
	return &Checker{sets: p, opts: opts, logger: log.OrNoop(opts.Logger), metrics: opts.Metrics}
}

// CheckURL decides a request URL. Exception sites and URLs win over banned
// ones.
func (c *Checker) CheckURL(rawURL string) domain.Decision {
	set := c.sets.Current()
	if set == nil {
		return c.done("url", rawURL, domain.Allow())
	}
	steps := []struct {
		m         *ItemMatcher
		site      bool
		exception bool
		reason    string
	}{
		{set.ExceptionSites, true, true, ReasonExceptionSite},
		{set.ExceptionURLs, false, true, ReasonExceptionURL},
		{set.BannedSites, true, false, ReasonBannedSite},
		{set.BannedURLs, false, false, ReasonBannedURL},
	}
	for _, st := range steps {
		if st.m == nil {
			continue
		}
		var (
			r  domain.LookupResult
			ok bool
		)
		if st.site {
			r, ok = st.m.LookupSite(rawURL)
		} else {
			r, ok = st.m.LookupURL(rawURL)
		}
		if !ok {
			continue
		}
		return c.done("url", rawURL, domain.Decision{
			Blocked:   !st.exception,
			Exception: st.exception,
			Reason:    st.reason,
			Matched:   r.Text,
			Category:  r.Category,
		})
	}
	return c.done("url", rawURL, domain.Allow())
}

// CheckContent decides a document body. An exception phrase allows it
// outright, a banned phrase blocks it, and otherwise the weight sum is
// compared with the naughtiness limit.
func (c *Checker) CheckContent(doc []byte) domain.Decision {
	set := c.sets.Current()
	if set == nil || set.Phrases == nil {
		return c.done("content", "", domain.Allow())
	}
	res := set.Phrases.Scan(doc)
	tbl := set.Phrases.List().Table
	first := func(kind domain.EntryKind) string {
		for _, id := range res.Hits {
			if e := tbl.Entry(id); e.Kind == kind {
				return e.Text
			}
		}
		return ""
	}
	d := domain.Decision{Category: res.Category, Weight: res.WeightSum}
	switch {
	case res.Exception:
		d.Exception, d.Reason, d.Matched = true, ReasonExceptionPhrase, first(domain.EntryException)
	case res.Banned:
		d.Blocked, d.Reason, d.Matched = true, ReasonBannedPhrase, first(domain.EntryBanned)
	case res.WeightSum > c.opts.NaughtinessLimit:
		d.Blocked, d.Reason = true, ReasonWeightExceeded
	}
	return c.done("content", "", d)
}

func (c *Checker) done(check, subject string, d domain.Decision) domain.Decision {
	result := "allowed"
	switch {
	case d.Blocked:
		result = "blocked"
	case d.Exception:
		result = "exception"
	}
	c.metrics.RecordDecision(check, result)
	fields := map[string]any{"check": check, "result": result}
	if subject != "" {
		fields["subject"] = subject
	}
	if d.Reason != "" {
		fields["reason"] = d.Reason
		fields["matched"] = d.Matched
		fields["category"] = d.Category
	}
	if d.Weight != 0 {
		fields["weight"] = d.Weight
	}
	c.logger.Debug(fields, "decision")
	return d
}

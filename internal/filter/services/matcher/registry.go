package matcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/haukened/rr-filter/internal/filter/common/clock"
	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/metrics"
	"github.com/haukened/rr-filter/internal/filter/repos/lists"
)

// SetSpec names the lists that make up a Set. Nil specs are skipped.
type SetSpec struct {
	Phrases        *lists.Spec
	BannedSites    *lists.Spec
	ExceptionSites *lists.Spec
	BannedURLs     *lists.Spec
	ExceptionURLs  *lists.Spec
}

// SpecSource is called on every load so reloads pick up group changes.
type SpecSource func() (SetSpec, error)

// StaticSpecs returns a SpecSource that always yields s.
func StaticSpecs(s SetSpec) SpecSource {
	return func() (SetSpec, error) { return s, nil }
}

// Set is one immutable generation of matchers. Any field may be nil when
// the corresponding list is not configured.
type Set struct {
	Phrases        *PhraseMatcher
	BannedSites    *ItemMatcher
	ExceptionSites *ItemMatcher
	BannedURLs     *ItemMatcher
	ExceptionURLs  *ItemMatcher
	Generation     uint64
	LoadedAt       time.Time
}

// RegistryOptions configures a Registry. Phrase and Item are templates for
// every matcher built; Item.Cache is ignored in favour of NewLookupCache so
// each generation starts with an empty cache.
type RegistryOptions struct {
	Compiler       ListCompiler
	Specs          SpecSource
	Phrase         PhraseOptions
	Item           ItemOptions
	NewLookupCache func() (lists.LookupCache, error)
	Workers        int
	Clock          clock.Clock
	Logger         log.Logger
	Metrics        *metrics.Metrics
}

// Registry builds complete list sets and publishes them atomically. Readers
// call Current and keep the returned Set for as long as they need it; a
// reload never changes a Set that is already published.
type Registry struct {
	opts       RegistryOptions
	logger     log.Logger
	clock      clock.Clock
	current    atomic.Pointer[Set]
	mu         sync.Mutex // serialises loads
	generation uint64
}

// NewRegistry returns an empty Registry; call Load before Current.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{opts: opts, logger: log.OrNoop(opts.Logger), clock: opts.Clock}
	if r.clock == nil {
		r.clock = clock.RealClock{}
	}
	if r.opts.Workers <= 0 {
		r.opts.Workers = 4
	}
	return r
}

// Current returns the published Set, or nil before the first Load.
func (r *Registry) Current() *Set {
	return r.current.Load()
}

// Load builds and publishes the initial Set.
func (r *Registry) Load(ctx context.Context) error {
	if err := r.rebuild(ctx); err != nil {
		r.logger.Error(map[string]any{"error": err}, "list_load_failed")
		return err
	}
	return nil
}

// Reload builds a fresh Set and swaps it in. On failure the previous Set
// stays in effect and the error is returned.
func (r *Registry) Reload(ctx context.Context) error {
	if err := r.rebuild(ctx); err != nil {
		r.opts.Metrics.RecordReloadError()
		fields := map[string]any{"error": err}
		if cur := r.Current(); cur != nil {
			fields["kept_generation"] = cur.Generation
		}
		r.logger.Error(fields, "list_reload_failed")
		return err
	}
	r.opts.Metrics.RecordReload()
	return nil
}

type slot struct {
	name  string
	spec  *lists.Spec
	build func(*lists.Compiled) error
}

func (r *Registry) rebuild(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.Compiler == nil || r.opts.Specs == nil {
		return errors.New("registry needs a compiler and a spec source")
	}
	specs, err := r.opts.Specs()
	if err != nil {
		return fmt.Errorf("list specs: %w", err)
	}

	set := &Set{}
	slots := []slot{
		{"phrases", specs.Phrases, func(c *lists.Compiled) (err error) {
			set.Phrases, err = NewPhraseMatcher(c, r.phraseOptions())
			return err
		}},
		{"banned_sites", specs.BannedSites, r.itemBuilder(&set.BannedSites)},
		{"exception_sites", specs.ExceptionSites, r.itemBuilder(&set.ExceptionSites)},
		{"banned_urls", specs.BannedURLs, r.itemBuilder(&set.BannedURLs)},
		{"exception_urls", specs.ExceptionURLs, r.itemBuilder(&set.ExceptionURLs)},
	}

	start := time.Now()
	p := pool.New().WithMaxGoroutines(r.opts.Workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, s := range slots {
		if s.spec == nil {
			continue
		}
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			compiled, err := r.opts.Compiler.CompileOrLoad(*s.spec)
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			if err := s.build(compiled); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			r.opts.Metrics.SetListEntries(s.spec.Name, compiled.Table.Len())
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	r.generation++
	set.Generation = r.generation
	set.LoadedAt = r.clock.Now()
	r.current.Store(set)
	r.logger.Info(map[string]any{
		"generation": set.Generation,
		"elapsed_ms": time.Since(start).Milliseconds(),
	}, "list_set_published")
	return nil
}

func (r *Registry) phraseOptions() PhraseOptions {
	o := r.opts.Phrase
	o.Clock, o.Logger, o.Metrics = r.clock, r.logger, r.opts.Metrics
	return o
}

// itemBuilder returns a slot builder that stores an ItemMatcher in dst.
// Each slot writes a distinct field, so concurrent slots do not race.
func (r *Registry) itemBuilder(dst **ItemMatcher) func(*lists.Compiled) error {
	return func(c *lists.Compiled) error {
		o := r.opts.Item
		o.Clock, o.Logger, o.Metrics = r.clock, r.logger, r.opts.Metrics
		o.Cache = nil
		if r.opts.NewLookupCache != nil {
			cache, err := r.opts.NewLookupCache()
			if err != nil {
				return err
			}
			o.Cache = cache
		}
		m, err := NewItemMatcher(c, o)
		if err != nil {
			return err
		}
		*dst = m
		return nil
	}
}

var _ SetProvider = (*Registry)(nil)

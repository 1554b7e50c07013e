package lists

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	logpkg "github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/metrics"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/index"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/parsers"
)

// Spec describes one list: which files make it up and how it is compiled.
type Spec struct {
	Name         string
	Type         domain.ListType
	Sources      []domain.Source
	PreserveCase bool
	Policy       index.Policy
}

// Fingerprint identifies everything that changes the compiled output apart
// from file contents.
func (s Spec) Fingerprint() uint64 {
	var b strings.Builder
	fmt.Fprintf(&b, "type=%s;case=%t;quick=%t/%d", s.Type, s.PreserveCase, s.Policy.ForceQuick, s.Policy.QuickThreshold)
	for _, src := range s.Sources {
		fmt.Fprintf(&b, ";%s:%s", src.Kind, filepath.Clean(src.Path))
	}
	return xxhash.Sum64String(b.String())
}

// CompilerOptions configures a Compiler. An empty CacheDir or nil Store
// disables the cache.
type CompilerOptions struct {
	CacheDir string
	Store    CacheStore
	Logger   logpkg.Logger
	Metrics  *metrics.Metrics
}

// Compiler turns list specs into compiled lists, reusing cache files whose
// tag is at least as new as every contributing source.
type Compiler struct {
	opts        CompilerOptions
	logger      logpkg.Logger
	builds      atomic.Uint64
	cacheLoads  atomic.Uint64
	cacheErrors atomic.Uint64
}

// NewCompiler returns a Compiler.
func NewCompiler(opts CompilerOptions) *Compiler {
	return &Compiler{opts: opts, logger: logpkg.OrNoop(opts.Logger)}
}

// Stats returns cumulative counters.
func (c *Compiler) Stats() CompilerStats {
	return CompilerStats{
		Builds:      c.builds.Load(),
		CacheLoads:  c.cacheLoads.Load(),
		CacheErrors: c.cacheErrors.Load(),
	}
}

func (c *Compiler) cacheEnabled() bool {
	return c.opts.CacheDir != "" && c.opts.Store != nil
}

// CachePath returns the cache file used for spec.
func (c *Compiler) CachePath(spec Spec) string {
	name := fmt.Sprintf("%s-%s-%016x.cache", spec.Name, spec.Type, spec.Fingerprint())
	return filepath.Join(c.opts.CacheDir, name)
}

// CompileOrLoad returns the compiled list for spec, from cache when a fresh
// image exists and from the source files otherwise. Cache problems are
// logged and never fail the call; source problems always do.
func (c *Compiler) CompileOrLoad(spec Spec) (*Compiled, error) {
	if len(spec.Sources) == 0 {
		return nil, &domain.ConfigError{File: spec.Name, Msg: "list has no source files"}
	}
	fp := spec.Fingerprint()
	if c.cacheEnabled() {
		if compiled := c.tryCache(spec, fp); compiled != nil {
			return compiled, nil
		}
	}

	start := time.Now()
	b := parsers.NewBuilder()
	for _, src := range spec.Sources {
		err := b.Add(src.Path, parsers.Options{
			Type:         spec.Type,
			Kind:         src.Kind,
			PreserveCase: spec.PreserveCase,
			Logger:       c.logger,
		})
		if err != nil {
			return nil, err
		}
	}
	tbl, sources := b.Result()
	compiled := compile(spec, tbl, sources)
	c.builds.Add(1)
	c.opts.Metrics.RecordBuild(spec.Name, time.Since(start))
	c.logger.Info(map[string]any{
		"list":    spec.Name,
		"type":    spec.Type.String(),
		"entries": tbl.Len(),
		"sources": len(sources),
	}, "list_compiled")

	if c.cacheEnabled() {
		c.writeCache(spec, fp, compiled, start)
	}
	return compiled, nil
}

func (c *Compiler) tryCache(spec Spec, fp uint64) *Compiled {
	start := time.Now()
	path := c.CachePath(spec)
	img, err := c.opts.Store.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c.logger.Debug(map[string]any{"list": spec.Name, "cache": path}, "cache_miss")
			return nil
		}
		c.rejectCache(spec, path, err)
		return nil
	}
	if img.Fingerprint != fp || img.Type != spec.Type {
		c.rejectCache(spec, path, &domain.CacheFormatError{Path: path, Reason: "built for different options"})
		return nil
	}
	if stale, why := c.stale(img); stale {
		c.logger.Debug(map[string]any{"list": spec.Name, "cache": path, "reason": why}, "cache_stale")
		return nil
	}
	compiled, err := fromImage(spec, img)
	if err != nil {
		c.rejectCache(spec, path, &domain.CacheFormatError{Path: path, Reason: "invalid image", Err: err})
		return nil
	}
	c.cacheLoads.Add(1)
	c.opts.Metrics.RecordCacheLoad(spec.Name, time.Since(start))
	c.logger.Info(map[string]any{
		"list":    spec.Name,
		"entries": compiled.Table.Len(),
		"cache":   path,
	}, "list_loaded_from_cache")
	return compiled
}

func (c *Compiler) rejectCache(spec Spec, path string, err error) {
	c.cacheErrors.Add(1)
	c.opts.Metrics.RecordCacheError(spec.Name, "load")
	c.logger.Warn(map[string]any{"list": spec.Name, "cache": path, "error": err}, "cache_rejected")
}

// stale reports whether any contributing source is newer than the image or
// can no longer be read.
func (c *Compiler) stale(img *Image) (bool, string) {
	if len(img.Sources) == 0 {
		return true, "no sources recorded"
	}
	for _, p := range img.Sources {
		fi, err := os.Stat(p)
		if err != nil {
			return true, err.Error()
		}
		if fi.ModTime().UnixNano() > img.Tag {
			return true, p + " modified"
		}
	}
	return false, ""
}

// writeCache persists compiled unless a source changed while it was being
// read, in which case the tag would vouch for content never seen.
func (c *Compiler) writeCache(spec Spec, fp uint64, compiled *Compiled, start time.Time) {
	var tag int64
	for _, p := range compiled.Sources {
		fi, err := os.Stat(p)
		if err != nil {
			c.logger.Warn(map[string]any{"list": spec.Name, "source": p, "error": err}, "cache_skip")
			return
		}
		mt := fi.ModTime()
		if mt.After(start) {
			c.logger.Debug(map[string]any{"list": spec.Name, "source": p}, "cache_skip_source_changed")
			return
		}
		tag = max(tag, mt.UnixNano())
	}
	path := c.CachePath(spec)
	if err := os.MkdirAll(c.opts.CacheDir, 0o755); err != nil {
		c.failWrite(spec, path, &domain.IOError{Op: "mkdir", Path: c.opts.CacheDir, Err: err})
		return
	}
	if err := c.opts.Store.Save(path, compiled.image(tag, fp)); err != nil {
		c.failWrite(spec, path, err)
		return
	}
	c.logger.Debug(map[string]any{"list": spec.Name, "cache": path}, "cache_written")
}

func (c *Compiler) failWrite(spec Spec, path string, err error) {
	c.cacheErrors.Add(1)
	c.opts.Metrics.RecordCacheError(spec.Name, "save")
	c.logger.Warn(map[string]any{"list": spec.Name, "cache": path, "error": err}, "cache_write_failed")
}

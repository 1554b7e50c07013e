package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

// Group lists the files that make up each list of a filter group. Every
// source carries the entry kind its lines default to.
//
// A group file looks like:
//
//	phrases:
//	  banned: [bannedphraselist]
//	  weighted: [weightedphraselist]
//	  exception: [exceptionphraselist]
//	sites:
//	  banned: [bannedsitelist]
//	  exception: [exceptionsitelist]
//	urls:
//	  banned: [bannedurllist]
//	  exception: [exceptionurllist]
//
// Relative paths are resolved against the group file's directory.
type Group struct {
	Path           string
	Phrases        []domain.Source
	BannedSites    []domain.Source
	ExceptionSites []domain.Source
	BannedURLs     []domain.Source
	ExceptionURLs  []domain.Source
}

// groupSections maps top-level keys to the kinds they may hold.
var groupSections = map[string][]domain.EntryKind{
	"phrases": {domain.EntryBanned, domain.EntryWeighted, domain.EntryException},
	"sites":   {domain.EntryBanned, domain.EntryException},
	"urls":    {domain.EntryBanned, domain.EntryException},
}

// groupParser picks a koanf parser from the file extension.
func groupParser(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	}
	return nil, fmt.Errorf("group file %s: unsupported extension %q", path, filepath.Ext(path))
}

// LoadGroup reads and validates a group file.
func LoadGroup(path string) (*Group, error) {
	parser, err := groupParser(path)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("failed to load group file %s: %w", path, err)
	}

	var unknown []string
	for name := range k.Raw() {
		if _, ok := groupSections[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("group file %s: unknown sections %v", path, unknown)
	}

	g := &Group{Path: path}
	dir := filepath.Dir(path)
	for section, kinds := range groupSections {
		raw, ok := k.Get(section).(map[string]any)
		if !ok {
			if k.Exists(section) {
				return nil, fmt.Errorf("group file %s: section %q must be a map", path, section)
			}
			continue
		}
		for key, val := range raw {
			kind, err := domain.ParseEntryKind(key)
			if err != nil || !kindAllowed(kind, kinds) {
				return nil, fmt.Errorf("group file %s: %s.%s is not a valid list", path, section, key)
			}
			paths, err := toPaths(val)
			if err != nil {
				return nil, fmt.Errorf("group file %s: %s.%s: %w", path, section, key, err)
			}
			sources := make([]domain.Source, 0, len(paths))
			for _, p := range paths {
				if !filepath.IsAbs(p) {
					p = filepath.Join(dir, p)
				}
				sources = append(sources, domain.Source{Path: filepath.Clean(p), Kind: kind})
			}
			g.add(section, kind, sources)
		}
	}
	g.sortPhrases()
	return g, nil
}

func kindAllowed(k domain.EntryKind, allowed []domain.EntryKind) bool {
	for _, a := range allowed {
		if a == k {
			return true
		}
	}
	return false
}

func (g *Group) add(section string, kind domain.EntryKind, sources []domain.Source) {
	switch section {
	case "phrases":
		g.Phrases = append(g.Phrases, sources...)
	case "sites":
		if kind == domain.EntryException {
			g.ExceptionSites = append(g.ExceptionSites, sources...)
		} else {
			g.BannedSites = append(g.BannedSites, sources...)
		}
	case "urls":
		if kind == domain.EntryException {
			g.ExceptionURLs = append(g.ExceptionURLs, sources...)
		} else {
			g.BannedURLs = append(g.BannedURLs, sources...)
		}
	}
}

// sortPhrases orders phrase sources banned, weighted, exception so entry ids
// and the cache fingerprint do not depend on map iteration.
func (g *Group) sortPhrases() {
	sort.SliceStable(g.Phrases, func(i, j int) bool {
		return g.Phrases[i].Kind < g.Phrases[j].Kind
	})
}

// toPaths accepts a single path or a list of paths.
func toPaths(val any) ([]string, error) {
	var out []string
	switch v := val.(type) {
	case string:
		out = append(out, v)
	case []string:
		out = append(out, v...)
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a path, got %T", item)
			}
			out = append(out, s)
		}
	default:
		return nil, fmt.Errorf("expected a path or list of paths, got %T", val)
	}
	paths := out[:0]
	for _, p := range out {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths, nil
}

package parsers

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	logpkg "github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/domain"
)

// maxIncludeDepth bounds .Include<> nesting.
const maxIncludeDepth = 8

// maxLineBytes is the longest list line accepted.
const maxLineBytes = 1 << 20

// Options controls how a list file is read.
type Options struct {
	Type         domain.ListType
	Kind         domain.EntryKind
	PreserveCase bool
	Logger       logpkg.Logger
}

// Builder accumulates entries from one or more list files into a single
// entry table. A phrase list is usually assembled from a banned, a weighted
// and an exception file.
type Builder struct {
	table   *domain.EntryTable
	sources []string
	seen    map[string]struct{}
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{table: domain.NewEntryTable(), seen: make(map[string]struct{})}
}

// Load reads a single list file into a fresh table.
func Load(path string, opts Options) (*domain.EntryTable, []string, error) {
	b := NewBuilder()
	if err := b.Add(path, opts); err != nil {
		return nil, nil, err
	}
	tbl, sources := b.Result()
	return tbl, sources, nil
}

// Add appends the entries of path (and its includes). On error the builder
// must be discarded; partial tables are never activated.
func (b *Builder) Add(path string, opts Options) error {
	opts.Logger = logpkg.OrNoop(opts.Logger)
	st := fileState{}
	return b.addFile(filepath.Clean(path), opts, st, nil)
}

// Result returns the table and every file that contributed to it, includes
// first-seen order.
func (b *Builder) Result() (*domain.EntryTable, []string) {
	return b.table, b.sources
}

// fileState carries the directives in effect while reading a file.
type fileState struct {
	category domain.CategoryID
	window   domain.WindowID
}

func (b *Builder) addFile(path string, opts Options, st fileState, stack []string) error {
	for _, p := range stack {
		if p == path {
			return &domain.ConfigError{File: stack[len(stack)-1], Msg: fmt.Sprintf("include cycle through %s", path)}
		}
	}
	if len(stack) > maxIncludeDepth {
		return &domain.ConfigError{File: stack[len(stack)-1], Msg: fmt.Sprintf("includes nested deeper than %d", maxIncludeDepth)}
	}
	stack = append(stack, path)

	f, err := os.Open(path)
	if err != nil {
		return &domain.IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	if _, ok := b.seen[path]; !ok {
		b.seen[path] = struct{}{}
		b.sources = append(b.sources, path)
	}

	logger := opts.Logger
	logger.Debug(map[string]any{"source": path, "type": opts.Type.String(), "kind": opts.Kind.String()}, "load_list_start")

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNum := 0
	before := len(b.table.Entries)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(stripLineBOM(scanner.Text()), "\r")
		trimmed := strings.TrimSpace(line)

		switch classifyLine(trimmed) {
		case lineEmpty:
			continue
		case lineComment:
			logger.Debug(map[string]any{"line": lineNum}, "skip_comment")
			continue
		case lineCategory:
			label, err := parseCategory(trimmed)
			if err != nil {
				return &domain.ConfigError{File: path, Line: lineNum, Msg: err.Error()}
			}
			id, err := b.table.Categories.Intern(label)
			if err != nil {
				return &domain.ConfigError{File: path, Line: lineNum, Msg: fmt.Sprintf("category %q: %v", label, err)}
			}
			st.category = domain.CategoryID(id)
			logger.Debug(map[string]any{"line": lineNum, "category": label}, "set_category")
			continue
		case lineTime:
			w, err := domain.ParseTimeTag(strings.TrimSpace(trimmed[len(timeDirective):]))
			if err != nil {
				return &domain.ConfigError{File: path, Line: lineNum, Msg: err.Error()}
			}
			id, err := b.table.Windows.Intern(w)
			if err != nil {
				return &domain.ConfigError{File: path, Line: lineNum, Msg: fmt.Sprintf("time window %s: %v", w, err)}
			}
			st.window = domain.WindowID(id)
			logger.Debug(map[string]any{"line": lineNum, "window": w.String()}, "set_time_window")
			continue
		case lineInclude:
			target, err := parseInclude(trimmed)
			if err != nil {
				return &domain.ConfigError{File: path, Line: lineNum, Msg: err.Error()}
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(path), target)
			}
			if err := b.addFile(filepath.Clean(target), opts, st, stack); err != nil {
				var ioErr *domain.IOError
				if errors.As(err, &ioErr) && ioErr.Path == filepath.Clean(target) {
					return &domain.ConfigError{File: path, Line: lineNum, Msg: fmt.Sprintf("include %s: %v", target, ioErr.Err)}
				}
				return err
			}
			continue
		}

		var perr error
		if opts.Type == domain.PhraseList {
			perr = b.addPhraseLine(trimmed, opts, st)
		} else {
			perr = b.addItemLine(line, opts, st)
		}
		if perr != nil {
			logger.Debug(map[string]any{"line": lineNum, "source": path, "error": perr}, "reject_line")
			return &domain.ConfigError{File: path, Line: lineNum, Msg: perr.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		return &domain.IOError{Op: "read", Path: path, Err: err}
	}
	logger.Debug(map[string]any{"source": path, "count": len(b.table.Entries) - before}, "load_list_done")
	return nil
}

package parsers

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haukened/rr-filter/internal/filter/domain"
)

func writeList(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoad_BannedPhrases(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "banned", "\uFEFF# banned phrases\n\n<Sex>\n< porn >\n   # indented comment\n<xxx>   # trailing note\n")

	tbl, sources, err := Load(p, Options{Type: domain.PhraseList, Kind: domain.EntryBanned})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"sex", " porn ", "xxx"}
	if tbl.Len() != len(want) {
		t.Fatalf("got %d entries, want %d", tbl.Len(), len(want))
	}
	for i, w := range want {
		e := tbl.Entry(domain.EntryID(i))
		if e.Text != w || e.Kind != domain.EntryBanned || e.IsComponent() {
			t.Errorf("entry %d = %+v, want text %q banned standalone", i, e, w)
		}
	}
	if len(sources) != 1 || sources[0] != p {
		t.Fatalf("sources = %v", sources)
	}
}

func TestLoad_PhraseTextMatchesScanPreparation(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "banned", "<ÉCOLE>\n<caf\xe9>\n<free  porn>\n<tab\there>\n")

	tbl, _, err := Load(p, Options{Type: domain.PhraseList, Kind: domain.EntryBanned})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"École", "caf\xe9", "free porn", "tab here"}
	if tbl.Len() != len(want) {
		t.Fatalf("got %d entries, want %d", tbl.Len(), len(want))
	}
	for i, w := range want {
		if got := tbl.Entry(domain.EntryID(i)).Text; got != w {
			t.Errorf("entry %d text = %q, want %q", i, got, w)
		}
	}
}

func TestLoad_WeightedPhrases(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "weighted", "<sex><10>\n<education><-5>\n")

	tbl, _, err := Load(p, Options{Type: domain.PhraseList, Kind: domain.EntryWeighted})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Entry(0).Weight != 10 || tbl.Entry(1).Weight != -5 {
		t.Fatalf("unexpected weights: %d %d", tbl.Entry(0).Weight, tbl.Entry(1).Weight)
	}
}

func TestLoad_CategoryAndTimeDirectives(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "banned", "<first>\n#listcategory: \"Adult\"\n#time: 22 0 6 0 0\n<second>\n")

	tbl, _, err := Load(p, Options{Type: domain.PhraseList, Kind: domain.EntryBanned})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	first, second := tbl.Entry(0), tbl.Entry(1)
	if first.Category != 0 || first.Window != 0 {
		t.Fatalf("directives must only apply to following lines: %+v", first)
	}
	if tbl.CategoryLabel(second.Category) != "Adult" {
		t.Fatalf("category = %q", tbl.CategoryLabel(second.Category))
	}
	mon23 := time.Date(2025, 8, 4, 23, 0, 0, 0, time.UTC)
	mon12 := time.Date(2025, 8, 4, 12, 0, 0, 0, time.UTC)
	if !tbl.Active(1, mon23) || tbl.Active(1, mon12) {
		t.Fatal("time window not applied to second entry")
	}
}

func TestLoad_Combination(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "weighted", "<drug>,<buy><50>\n<single><1>\n")

	tbl, _, err := Load(p, Options{Type: domain.PhraseList, Kind: domain.EntryWeighted})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Len() != 4 {
		t.Fatalf("expected combination + 2 components + single, got %d", tbl.Len())
	}
	combi := tbl.Entry(0)
	if !combi.IsCombination() || combi.Weight != 50 || combi.Text != "drug,buy" {
		t.Fatalf("unexpected combination entry %+v", combi)
	}
	for i, id := range combi.Combination {
		c := tbl.Entry(id)
		if c.Parent != 0 || c.Weight != 0 || c.Text != []string{"drug", "buy"}[i] {
			t.Fatalf("unexpected component %d: %+v", id, c)
		}
	}
	if s := tbl.Entry(3); s.Text != "single" || s.IsComponent() {
		t.Fatalf("unexpected trailing entry %+v", s)
	}
}

func TestLoad_PreserveCase(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "banned", "<MiXeD>\n")
	tbl, _, err := Load(p, Options{Type: domain.PhraseList, Kind: domain.EntryBanned, PreserveCase: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Entry(0).Text != "MiXeD" {
		t.Fatalf("case not preserved: %q", tbl.Entry(0).Text)
	}
}

func TestLoad_MalformedLinesFailWithLineNumber(t *testing.T) {
	cases := []struct {
		name    string
		kind    domain.EntryKind
		content string
		line    int
		msg     string
	}{
		{"missing bracket", domain.EntryBanned, "<ok>\nnot a phrase\n", 2, "expected '<'"},
		{"unterminated", domain.EntryBanned, "<ok>\n<broken\n", 2, "unterminated"},
		{"empty phrase", domain.EntryBanned, "<>\n", 1, "empty phrase"},
		{"missing weight", domain.EntryWeighted, "<a><1>\n<b>\n", 2, "missing weight"},
		{"weight on banned", domain.EntryBanned, "<a><1>\n", 1, "weight not allowed"},
		{"bad weight", domain.EntryWeighted, "<a><ten>\n", 1, "not an integer"},
		{"dangling comma", domain.EntryBanned, "<a>,\n", 1, "expected '<'"},
		{"trailing junk", domain.EntryBanned, "<a> junk\n", 1, "unexpected text"},
		{"bad time tag", domain.EntryBanned, "#time: 25 0 6 0 0\n", 1, "invalid start"},
		{"empty category", domain.EntryBanned, "#listcategory: \"\"\n", 1, "empty list category"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeList(t, t.TempDir(), "list", tc.content)
			tbl, _, err := Load(p, Options{Type: domain.PhraseList, Kind: tc.kind})
			if err == nil || tbl != nil {
				t.Fatalf("expected error and no table, got tbl=%v err=%v", tbl, err)
			}
			var ce *domain.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %T: %v", err, err)
			}
			if ce.Line != tc.line || ce.File != p {
				t.Fatalf("error location = %s:%d, want %s:%d", ce.File, ce.Line, p, tc.line)
			}
			if !strings.Contains(ce.Msg, tc.msg) {
				t.Fatalf("error %q does not mention %q", ce.Msg, tc.msg)
			}
		})
	}
}

func TestLoad_Include(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	inc := writeList(t, filepath.Join(dir, "sub"), "extra", "<included>\n")
	p := writeList(t, dir, "main", "#listcategory: \"Main\"\n<before>\n.Include<sub/extra>\n<after>\n")

	tbl, sources, err := Load(p, Options{Type: domain.PhraseList, Kind: domain.EntryBanned})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var texts []string
	for _, e := range tbl.Entries {
		texts = append(texts, e.Text)
	}
	if strings.Join(texts, "|") != "before|included|after" {
		t.Fatalf("unexpected order %v", texts)
	}
	if tbl.CategoryLabel(tbl.Entry(1).Category) != "Main" {
		t.Fatal("included file should inherit the including file's category")
	}
	if len(sources) != 2 || sources[0] != p || sources[1] != inc {
		t.Fatalf("sources = %v", sources)
	}
}

func TestLoad_IncludeErrors(t *testing.T) {
	dir := t.TempDir()
	a := writeList(t, dir, "a", ".Include<b>\n")
	writeList(t, dir, "b", ".Include<a>\n")
	_, _, err := Load(a, Options{Type: domain.PhraseList, Kind: domain.EntryBanned})
	var ce *domain.ConfigError
	if !errors.As(err, &ce) || !strings.Contains(ce.Msg, "cycle") {
		t.Fatalf("expected include cycle ConfigError, got %v", err)
	}

	m := writeList(t, dir, "m", "<x>\n.Include<missing>\n")
	_, _, err = Load(m, Options{Type: domain.PhraseList, Kind: domain.EntryBanned})
	if !errors.As(err, &ce) || ce.Line != 2 {
		t.Fatalf("expected ConfigError at line 2 for missing include, got %v", err)
	}
}

func TestLoad_TooManyCategoriesFailsWithLineNumber(t *testing.T) {
	var sb strings.Builder
	for i := 0; i <= math.MaxUint16; i++ {
		fmt.Fprintf(&sb, "#listcategory: \"c%d\"\n", i)
	}
	p := writeList(t, t.TempDir(), "many", sb.String())
	_, _, err := Load(p, Options{Type: domain.PhraseList, Kind: domain.EntryBanned})
	var ce *domain.ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if ce.Line != math.MaxUint16+1 {
		t.Fatalf("error line = %d, want %d", ce.Line, math.MaxUint16+1)
	}
	if !strings.Contains(ce.Msg, domain.ErrInternerFull.Error()) {
		t.Fatalf("error %q does not mention the id limit", ce.Msg)
	}
}

func TestLoad_MissingFileIsIOError(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope"), Options{Type: domain.SiteList})
	var ioErr *domain.IOError
	if !errors.As(err, &ioErr) || ioErr.Op != "open" {
		t.Fatalf("expected IOError, got %v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected IOError to wrap ErrNotExist, got %v", err)
	}
}

func TestLoad_SiteList(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "bannedsitelist", "# sites\nExample.COM\nhttp://www.bad.org/path\n*.ads.net\n.tracker.io\nexample.com  # duplicate\n")

	tbl, _, err := Load(p, Options{Type: domain.SiteList, Kind: domain.EntryBanned})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"example.com", "www.bad.org", "ads.net", "tracker.io", "example.com"}
	if tbl.Len() != len(want) {
		t.Fatalf("got %d entries, want %d", tbl.Len(), len(want))
	}
	for i, w := range want {
		if got := tbl.Entry(domain.EntryID(i)).Text; got != w {
			t.Errorf("entry %d = %q, want %q", i, got, w)
		}
	}
}

func TestLoad_URLListAndErrors(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "bannedurllist", "http://Example.com/Bad/\nexample.org/a#frag\n")
	tbl, _, err := Load(p, Options{Type: domain.URLList, Kind: domain.EntryBanned})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Entry(0).Text != "example.com/bad" || tbl.Entry(1).Text != "example.org/a#frag" {
		t.Fatalf("unexpected URL entries: %q %q", tbl.Entry(0).Text, tbl.Entry(1).Text)
	}

	bad := writeList(t, dir, "badurls", "example.com/a example.com/b\n")
	_, _, err = Load(bad, Options{Type: domain.URLList, Kind: domain.EntryBanned})
	var ce *domain.ConfigError
	if !errors.As(err, &ce) || ce.Line != 1 {
		t.Fatalf("expected ConfigError on line 1, got %v", err)
	}
}

func TestBuilder_MergesSources(t *testing.T) {
	dir := t.TempDir()
	banned := writeList(t, dir, "banned", "#listcategory: \"Adult\"\n<porn>\n")
	weighted := writeList(t, dir, "weighted", "#listcategory: \"Adult\"\n<sex><10>\n")
	exception := writeList(t, dir, "exception", "<sex education>\n")

	b := NewBuilder()
	for _, src := range []struct {
		path string
		kind domain.EntryKind
	}{{banned, domain.EntryBanned}, {weighted, domain.EntryWeighted}, {exception, domain.EntryException}} {
		if err := b.Add(src.path, Options{Type: domain.PhraseList, Kind: src.kind}); err != nil {
			t.Fatalf("Add(%s): %v", src.path, err)
		}
	}
	tbl, sources := b.Result()
	if tbl.Len() != 3 || len(sources) != 3 {
		t.Fatalf("got %d entries from %d sources", tbl.Len(), len(sources))
	}
	if tbl.Categories.Len() != 1 {
		t.Fatalf("repeated category should be interned once, got %d", tbl.Categories.Len())
	}
	if tbl.Entry(0).Category != tbl.Entry(1).Category {
		t.Fatal("same label must share an id")
	}
	if tbl.Entry(2).Kind != domain.EntryException {
		t.Fatalf("kind default not applied: %v", tbl.Entry(2).Kind)
	}
}

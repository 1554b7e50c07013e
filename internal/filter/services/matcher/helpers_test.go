package matcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/lists"
)

// monday is 2025-08-04, a Monday.
func monday(hour, min int) time.Time {
	return time.Date(2025, 8, 4, hour, min, 0, 0, time.UTC)
}

func writeList(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func compileList(t *testing.T, spec lists.Spec) *lists.Compiled {
	t.Helper()
	c, err := lists.NewCompiler(lists.CompilerOptions{}).CompileOrLoad(spec)
	require.NoError(t, err)
	return c
}

func phraseSpec(name string, sources ...domain.Source) lists.Spec {
	return lists.Spec{Name: name, Type: domain.PhraseList, Sources: sources}
}

func itemSpec(name string, typ domain.ListType, path string, kind domain.EntryKind) lists.Spec {
	return lists.Spec{Name: name, Type: typ, Sources: []domain.Source{{Path: path, Kind: kind}}}
}

func osChtimes(path string, t time.Time) error {
	return os.Chtimes(path, t, t)
}

package bolt

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/lists"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/graph"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/index"
)

func phraseImage() *lists.Image {
	tbl := domain.NewEntryTable()
	catID, _ := tbl.Categories.Intern("Adult")
	winID, _ := tbl.Windows.Intern(domain.NewTimeWindow([]time.Weekday{time.Monday}, 22, 0, 6, 0))
	cat, win := domain.CategoryID(catID), domain.WindowID(winID)
	tbl.Entries = []domain.Entry{
		{Text: " sex ", Kind: domain.EntryWeighted, Weight: 10, Category: cat, Parent: domain.NoEntry},
		{Text: "education", Kind: domain.EntryWeighted, Weight: -5, Window: win, Parent: domain.NoEntry},
		{Text: "a,b", Kind: domain.EntryWeighted, Weight: 40, Combination: []domain.EntryID{3, 4}, Parent: domain.NoEntry},
		{Text: "a", Kind: domain.EntryWeighted, Parent: 2},
		{Text: "b", Kind: domain.EntryWeighted, Parent: 2},
	}
	b := graph.NewBuilder()
	for i, e := range tbl.Entries {
		if !e.IsCombination() {
			b.Add(e.Text, domain.EntryID(i))
		}
	}
	return &lists.Image{
		Tag:         time.Date(2025, 8, 4, 12, 0, 0, 0, time.UTC).UnixNano(),
		Fingerprint: 0xfeedface,
		Type:        domain.PhraseList,
		Sources:     []string{"/lists/weighted", "/lists/included"},
		Table:       tbl,
		Graph:       b.Build().Parts(),
	}
}

func siteImage() *lists.Image {
	tbl := domain.NewEntryTable()
	texts := []string{"example.com", "ads.example.org", "example.com"}
	for _, tx := range texts {
		tbl.Entries = append(tbl.Entries, domain.Entry{Text: tx, Kind: domain.EntryBanned, Parent: domain.NoEntry})
	}
	ix := index.Build(texts, index.Policy{ForceQuick: true})
	return &lists.Image{
		Tag:         42,
		Fingerprint: 7,
		Type:        domain.SiteList,
		Sources:     []string{"/lists/bannedsitelist"},
		Table:       tbl,
		Quick:       ix.Quick(),
		Forward:     ix.Forward(),
		Reverse:     ix.Reverse(),
	}
}

func TestStore_RoundTrip(t *testing.T) {
	for name, img := range map[string]*lists.Image{"phrase": phraseImage(), "site": siteImage()} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "list.cache")
			s := New()
			require.NoError(t, s.Save(path, img))

			got, err := s.Load(path)
			require.NoError(t, err)
			require.Equal(t, img.Tag, got.Tag)
			require.Equal(t, img.Fingerprint, got.Fingerprint)
			require.Equal(t, img.Type, got.Type)
			require.Equal(t, img.Sources, got.Sources)
			require.Equal(t, img.Quick, got.Quick)
			require.Equal(t, img.Table.Entries, got.Table.Entries)
			require.Equal(t, img.Table.Categories.Values(), got.Table.Categories.Values())
			require.Equal(t, img.Table.Windows.Values(), got.Table.Windows.Values())
			require.Equal(t, img.Forward, got.Forward)
			require.Equal(t, img.Reverse, got.Reverse)
			require.Equal(t, img.Graph, got.Graph)
			require.NoError(t, got.Table.Validate())
		})
	}
}

func TestStore_SaveReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "list.cache")
	s := New()
	require.NoError(t, s.Save(path, siteImage()))
	img := siteImage()
	img.Tag = 99
	require.NoError(t, s.Save(path, img))

	got, err := s.Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(99), got.Tag)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestStore_SaveUnwritableDir(t *testing.T) {
	err := New().Save(filepath.Join(t.TempDir(), "missing", "list.cache"), siteImage())
	var ioErr *domain.IOError
	require.True(t, errors.As(err, &ioErr))
}

func TestStore_LoadMissing(t *testing.T) {
	_, err := New().Load(filepath.Join(t.TempDir(), "absent.cache"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStore_LoadForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.cache")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a bolt database, just some text"), 0o600))
	_, err := New().Load(path)
	var cfe *domain.CacheFormatError
	require.True(t, errors.As(err, &cfe), "got %v", err)
}

// tamper rewrites one key of a saved cache file.
func tamper(t *testing.T, path string, bucket, key []byte, fn func(v []byte) []byte) {
	t.Helper()
	db, err := bbolt.Open(path, 0o600, nil)
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucket)
		v := append([]byte(nil), b.Get(key)...)
		if nv := fn(v); nv != nil {
			return b.Put(key, nv)
		}
		return b.Delete(key)
	}))
	require.NoError(t, db.Close())
}

func TestStore_LoadRejectsDamage(t *testing.T) {
	tests := []struct {
		name   string
		bucket []byte
		key    []byte
		fn     func(v []byte) []byte
	}{
		{"bad magic", bucketMeta, keyMagic, func([]byte) []byte { return []byte("something else") }},
		{"future version", bucketMeta, keyVersion, func(v []byte) []byte { v[7]++; return v }},
		{"short tag", bucketMeta, keyTag, func(v []byte) []byte { return v[:4] }},
		{"bad type", bucketMeta, keyType, func([]byte) []byte { return []byte{9} }},
		{"flipped entry byte", bucketData, keyEntries, func(v []byte) []byte { v[len(v)-1] ^= 0xff; return v }},
		{"truncated graph", bucketData, keyGraph, func(v []byte) []byte { return v[:5] }},
		{"missing windows", bucketData, keyWindows, func([]byte) []byte { return nil }},
		{"resealed garbage", bucketData, keyEntries, func([]byte) []byte { return seal([]byte{0x05, 0x01}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "list.cache")
			require.NoError(t, New().Save(path, phraseImage()))
			tamper(t, path, tt.bucket, tt.key, tt.fn)

			_, err := New().Load(path)
			var cfe *domain.CacheFormatError
			require.True(t, errors.As(err, &cfe), "got %v", err)
			require.Equal(t, path, cfe.Path)
		})
	}
}

func TestStore_LoadRejectsTruncatedFile(t *testing.T) {
	tests := []struct {
		name string
		size func(n int64) int64
	}{
		{"half", func(n int64) int64 { return n / 2 }},
		{"meta only", func(int64) int64 { return pageSize }},
		{"empty", func(int64) int64 { return 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "list.cache")
			require.NoError(t, New().Save(path, phraseImage()))
			fi, err := os.Stat(path)
			require.NoError(t, err)
			require.NoError(t, os.Truncate(path, tt.size(fi.Size())))

			_, err = New().Load(path)
			var cfe *domain.CacheFormatError
			require.True(t, errors.As(err, &cfe), "got %v", err)
			require.Equal(t, path, cfe.Path)
		})
	}
}

func TestCodec_DecodeEntriesRejectsOverflow(t *testing.T) {
	var e encoder
	e.uvarint(1)
	e.str("x")
	e.u8(byte(domain.EntryWeighted))
	e.varint(1 << 40)
	e.uvarint(0)
	e.uvarint(0)
	e.uvarint(0)
	e.uvarint(0)
	_, err := decodeEntries(e.buf)
	require.Error(t, err)
}

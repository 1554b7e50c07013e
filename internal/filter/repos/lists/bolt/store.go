package bolt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/lists"
)

// FormatVersion is bumped whenever the on-disk layout changes.
const FormatVersion uint64 = 1

// pageSize is fixed so Load can size-check a file before mapping it.
const pageSize = 4096

var (
	bucketMeta = []byte("meta")
	bucketData = []byte("data")

	magic = []byte("rr-filter list cache")

	keyMagic       = []byte("magic")
	keyVersion     = []byte("version")
	keyTag         = []byte("tag")
	keyFingerprint = []byte("fingerprint")
	keyType        = []byte("type")
	keyQuick       = []byte("quick")
	keySources     = []byte("sources")

	keyEntries    = []byte("entries")
	keyCategories = []byte("categories")
	keyWindows    = []byte("windows")
	keyForward    = []byte("forward")
	keyReverse    = []byte("reverse")
	keyGraph      = []byte("graph")
)

// boltStore implements lists.CacheStore with one bbolt file per list.
type boltStore struct {
	timeout time.Duration
}

// New returns a cache store. Files are opened only for the duration of a
// Load or Save.
func New() lists.CacheStore {
	return &boltStore{timeout: time.Second}
}

// Save writes img to a temporary file beside path and renames it into
// place, so readers see either the old image or the new one.
func (s *boltStore) Save(path string, img *lists.Image) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return &domain.IOError{Op: "create", Path: dir, Err: err}
	}
	tmp := f.Name()
	_ = f.Close()
	defer func() {
		if tmp != "" {
			_ = os.Remove(tmp)
		}
	}()

	db, err := bbolt.Open(tmp, 0o600, &bbolt.Options{Timeout: s.timeout, PageSize: pageSize})
	if err != nil {
		return &domain.IOError{Op: "open", Path: tmp, Err: err}
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		return writeImage(tx, img)
	})
	if cerr := db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &domain.IOError{Op: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &domain.IOError{Op: "rename", Path: path, Err: err}
	}
	tmp = ""
	return nil
}

type kv struct{ k, v []byte }

func writeImage(tx *bbolt.Tx, img *lists.Image) error {
	meta, err := tx.CreateBucketIfNotExists(bucketMeta)
	if err != nil {
		return err
	}
	data, err := tx.CreateBucketIfNotExists(bucketData)
	if err != nil {
		return err
	}

	u64 := func(v uint64) []byte {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, v)
		return buf
	}
	var quick byte
	if img.Quick {
		quick = 1
	}
	metaKV := []kv{
		{keyMagic, magic},
		{keyVersion, u64(FormatVersion)},
		{keyTag, u64(uint64(img.Tag))},
		{keyFingerprint, u64(img.Fingerprint)},
		{keyType, []byte{byte(img.Type)}},
		{keyQuick, []byte{quick}},
		{keySources, seal(encodeStrings(img.Sources))},
	}
	for _, p := range metaKV {
		if err := meta.Put(p.k, p.v); err != nil {
			return err
		}
	}

	tbl := img.Table
	dataKV := []kv{
		{keyEntries, seal(encodeEntries(tbl.Entries))},
		{keyCategories, seal(encodeStrings(tbl.Categories.Values()))},
		{keyWindows, seal(encodeWindows(tbl.Windows.Values()))},
	}
	if img.Type == domain.PhraseList {
		dataKV = append(dataKV, kv{keyGraph, seal(encodeGraph(img.Graph))})
	} else {
		dataKV = append(dataKV,
			kv{keyForward, seal(encodeOrder(img.Forward))},
			kv{keyReverse, seal(encodeOrder(img.Reverse))},
		)
	}
	for _, p := range dataKV {
		if err := data.Put(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the image at path. A missing file yields an error matching
// os.ErrNotExist; anything unreadable as an image yields a
// *domain.CacheFormatError.
func (s *boltStore) Load(path string) (*lists.Image, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.IOError{Op: "stat", Path: path, Err: err}
		}
		return nil, &domain.CacheFormatError{Path: path, Reason: "unreadable", Err: err}
	}
	// Both meta pages must be present before bbolt maps the file.
	if fi.Size() < 2*pageSize {
		return nil, &domain.CacheFormatError{Path: path, Reason: "truncated file"}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{ReadOnly: true, Timeout: s.timeout})
	if err != nil {
		return nil, &domain.CacheFormatError{Path: path, Reason: "not a cache database", Err: err}
	}
	defer db.Close()

	var img *lists.Image
	err = db.View(func(tx *bbolt.Tx) error {
		// Pages past the end of a truncated file fault on access.
		if tx.Size() > fi.Size() {
			return formatErr("truncated file", nil)
		}
		var rerr error
		img, rerr = readImage(tx)
		return rerr
	})
	if err != nil {
		var cfe *domain.CacheFormatError
		if errors.As(err, &cfe) {
			cfe.Path = path
			return nil, cfe
		}
		return nil, &domain.CacheFormatError{Path: path, Reason: "read failed", Err: err}
	}
	return img, nil
}

// blobStep decodes one sealed value.
type blobStep struct {
	b  *bbolt.Bucket
	k  []byte
	fn func([]byte) error
}

func formatErr(reason string, err error) error {
	return &domain.CacheFormatError{Reason: reason, Err: err}
}

func readImage(tx *bbolt.Tx) (*lists.Image, error) {
	meta := tx.Bucket(bucketMeta)
	data := tx.Bucket(bucketData)
	if meta == nil || data == nil {
		return nil, formatErr("missing buckets", nil)
	}
	if !bytes.Equal(meta.Get(keyMagic), magic) {
		return nil, formatErr("bad magic", nil)
	}
	u64 := func(k []byte) (uint64, error) {
		v := meta.Get(k)
		if len(v) != 8 {
			return 0, formatErr(fmt.Sprintf("bad %s", k), nil)
		}
		return binary.BigEndian.Uint64(v), nil
	}
	version, err := u64(keyVersion)
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, formatErr(fmt.Sprintf("version %d, want %d", version, FormatVersion), nil)
	}
	tag, err := u64(keyTag)
	if err != nil {
		return nil, err
	}
	fp, err := u64(keyFingerprint)
	if err != nil {
		return nil, err
	}
	typ := meta.Get(keyType)
	quick := meta.Get(keyQuick)
	if len(typ) != 1 || typ[0] > byte(domain.URLList) || len(quick) != 1 || quick[0] > 1 {
		return nil, formatErr("bad list flags", nil)
	}

	blob := func(b *bbolt.Bucket, k []byte) ([]byte, error) {
		v := b.Get(k)
		if v == nil {
			return nil, formatErr(fmt.Sprintf("missing %s", k), nil)
		}
		payload, err := unseal(v)
		if err != nil {
			return nil, formatErr(string(k), err)
		}
		return payload, nil
	}
	decode := func(b *bbolt.Bucket, k []byte, fn func([]byte) error) error {
		payload, err := blob(b, k)
		if err != nil {
			return err
		}
		if err := fn(payload); err != nil {
			return formatErr(string(k), err)
		}
		return nil
	}

	img := &lists.Image{
		Tag:         int64(tag),
		Fingerprint: fp,
		Type:        domain.ListType(typ[0]),
		Quick:       quick[0] == 1,
	}
	var (
		categories []string
		windows    []domain.TimeWindow
		entries    []domain.Entry
	)
	steps := []blobStep{
		{meta, keySources, func(p []byte) (err error) { img.Sources, err = decodeStrings(p); return }},
		{data, keyEntries, func(p []byte) (err error) { entries, err = decodeEntries(p); return }},
		{data, keyCategories, func(p []byte) (err error) { categories, err = decodeStrings(p); return }},
		{data, keyWindows, func(p []byte) (err error) { windows, err = decodeWindows(p); return }},
	}
	if img.Type == domain.PhraseList {
		steps = append(steps, blobStep{data, keyGraph, func(p []byte) (err error) { img.Graph, err = decodeGraph(p); return }})
	} else {
		steps = append(steps,
			blobStep{data, keyForward, func(p []byte) (err error) { img.Forward, err = decodeOrder(p); return }},
			blobStep{data, keyReverse, func(p []byte) (err error) { img.Reverse, err = decodeOrder(p); return }},
		)
	}
	for _, st := range steps {
		if err := decode(st.b, st.k, st.fn); err != nil {
			return nil, err
		}
	}

	cats, err := domain.NewInternerFrom(categories)
	if err != nil {
		return nil, formatErr("categories", err)
	}
	wins, err := domain.NewInternerFrom(windows)
	if err != nil {
		return nil, formatErr("windows", err)
	}
	img.Table = &domain.EntryTable{Entries: entries, Categories: cats, Windows: wins}
	if img.Table.Categories.Len() != len(categories) || img.Table.Windows.Len() != len(windows) {
		return nil, formatErr("duplicate interned values", nil)
	}
	return img, nil
}

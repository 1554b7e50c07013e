package lists

import "github.com/haukened/rr-filter/internal/filter/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target FP rate (p).
// It returns m (number of bits) and k (number of hash functions).
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface item matchers need from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory constructs Bloom filters sized for a dataset.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// LookupKey identifies a raw item lookup.
type LookupKey struct {
	Mode  domain.MatchMode
	Query string
}

// LookupOutcome is the memoised result of an index lookup, before any
// time-window gating. Gating depends on the clock and is applied per call.
type LookupOutcome struct {
	ID domain.EntryID
	OK bool
}

// LookupCache memoises index lookups for one compiled list.
type LookupCache interface {
	Get(k LookupKey) (LookupOutcome, bool)
	Put(k LookupKey, o LookupOutcome)
	Len() int
	Purge()
	Stats() CacheStats
}

// CacheStore reads and writes compiled list images.
// Load returns an error wrapping os.ErrNotExist when no image exists, and a
// *domain.CacheFormatError when the file is not a usable image.
type CacheStore interface {
	Load(path string) (*Image, error)
	Save(path string, img *Image) error
}

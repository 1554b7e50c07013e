package lists

// CacheStats reports lightweight lookup cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    // configured capacity (0 for disabled cache)
	Size      int    // current number of entries
	Hits      uint64 // total cache hits since construction
	Misses    uint64 // total cache misses since construction
	Evictions uint64 // total evictions since construction
}

// CompilerStats counts how compiled lists were produced.
type CompilerStats struct {
	Builds      uint64 // lists compiled from source files
	CacheLoads  uint64 // lists decoded from a fresh cache file
	CacheErrors uint64 // cache files rejected or not written
}

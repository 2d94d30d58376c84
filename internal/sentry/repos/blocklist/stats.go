package blocklist

// CacheStats reports lightweight cache metrics.
// All fields are best-effort snapshots and may be updated concurrently.
type CacheStats struct {
	Capacity  int    `json:"capacity"`  // configured capacity (0 for disabled cache)
	Size      int    `json:"size"`      // current number of entries
	Hits      uint64 `json:"hits"`      // total cache hits since construction
	Misses    uint64 `json:"misses"`    // total cache misses since construction
	Evictions uint64 `json:"evictions"` // total evictions since construction
}

// RepoStats reports repository-level counters.
type RepoStats struct {
	Entries       int        `json:"entries"`
	BloomCapacity uint64     `json:"bloom_capacity"`
	Cache         CacheStats `json:"cache"`
}

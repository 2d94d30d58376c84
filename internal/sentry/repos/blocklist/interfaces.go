package blocklist

import "errors"

var (
	// ErrAlreadyPresent is returned by Add when the domain is already blocklisted.
	ErrAlreadyPresent = errors.New("domain already blocklisted")
	// ErrNotPresent is returned by Remove when the domain is not blocklisted.
	ErrNotPresent = errors.New("domain not blocklisted")
	// ErrInvalidDomain is returned when a name cannot be a blocklist key.
	ErrInvalidDomain = errors.New("invalid domain")
)

// Store is the persistent set of blocklisted domains.
// Names handed to a Store are already canonical (see utils.CanonicalDomain).
// Add and Remove are idempotent: a repeated call leaves the set unchanged and
// reports ErrAlreadyPresent / ErrNotPresent so callers can tell the user.
type Store interface {
	Contains(name string) (bool, error)
	Add(name string) error
	Remove(name string) error
	List() ([]string, error)
	Close() error
}

// BloomFilter is the minimal interface the repository needs from Bloom filters.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory constructs Bloom filters sized for an expected capacity and FP rate.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache caches containment decisions by canonical name.
type DecisionCache interface {
	Get(name string) (blocked bool, ok bool)
	Put(name string, blocked bool)
	Len() int
	Purge()
	Stats() CacheStats
}

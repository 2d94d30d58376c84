package blocklist

import (
	"fmt"
	"sync"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
	"github.com/haukened/url-sentry/internal/sentry/common/utils"
)

// minBloomCapacity keeps small blocklists from getting a filter that saturates after a few adds.
const minBloomCapacity = 1024

// Repository composes a Store with a Bloom filter and a DecisionCache.
// Reads go bloom → cache → store; writes go to the store first, then refresh the
// bloom and purge the cache under the write lock, so a read never observes a
// decision older than the last committed write.
type Repository struct {
	mu       sync.RWMutex
	store    Store
	cache    DecisionCache
	factory  BloomFactory
	bloom    BloomFilter
	fpRate   float64
	capacity uint64
	entries  int
	logger   log.Logger
}

// Options configures a Repository.
type Options struct {
	Store   Store
	Cache   DecisionCache
	Factory BloomFactory
	// FPRate is the target false-positive rate of the Bloom filter.
	FPRate float64
	Logger log.Logger
}

// NewRepository constructs a Repository and builds its Bloom filter from the store contents.
// A store that cannot be listed leaves the filter unset; every read then consults the store.
func NewRepository(opts Options) (*Repository, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("blocklist store is required")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("blocklist decision cache is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	r := &Repository{
		store:   opts.Store,
		cache:   opts.Cache,
		factory: opts.Factory,
		fpRate:  opts.FPRate,
		logger:  opts.Logger,
	}
	r.mu.Lock()
	r.rebuildLocked()
	r.mu.Unlock()
	return r, nil
}

// Contains reports whether name is blocklisted. The name is canonicalized first.
// Policy: on store errors, prefer "not blocked" so an unreadable store never blocks everything.
func (r *Repository) Contains(name string) bool {
	cn := utils.CanonicalDomain(name)
	if cn == "" {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.bloom != nil && !r.bloom.MightContain([]byte(cn)) {
		return false
	}
	if blocked, ok := r.cache.Get(cn); ok {
		return blocked
	}
	blocked, err := r.store.Contains(cn)
	if err != nil {
		r.logger.Warn(map[string]any{"domain": cn, "error": err}, "blocklist store lookup failed")
		return false
	}
	r.cache.Put(cn, blocked)
	return blocked
}

// Add blocklists name. It returns ErrAlreadyPresent if name is already present.
func (r *Repository) Add(name string) error {
	cn := utils.CanonicalDomain(name)
	if !ValidName(cn) {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Add(cn); err != nil {
		return err
	}
	r.entries++
	if r.bloom != nil {
		r.bloom.Add([]byte(cn))
		if uint64(r.entries) > r.capacity {
			r.rebuildLocked()
		}
	} else {
		r.rebuildLocked()
	}
	r.cache.Purge()
	r.logger.Info(map[string]any{"domain": cn, "entries": r.entries}, "domain blocklisted")
	return nil
}

// Remove unblocks name. It returns ErrNotPresent if name is not blocklisted.
func (r *Repository) Remove(name string) error {
	cn := utils.CanonicalDomain(name)
	if cn == "" {
		return fmt.Errorf("%w: %q", ErrInvalidDomain, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Remove(cn); err != nil {
		return err
	}
	// Bloom filters cannot forget keys; start over from the store.
	r.rebuildLocked()
	r.cache.Purge()
	r.logger.Info(map[string]any{"domain": cn, "entries": r.entries}, "domain unblocked")
	return nil
}

// List returns every blocklisted domain.
func (r *Repository) List() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.List()
}

// Stats returns repository-level counters.
func (r *Repository) Stats() RepoStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RepoStats{Entries: r.entries, BloomCapacity: r.capacity, Cache: r.cache.Stats()}
}

// Close releases the underlying store.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.Close()
}

// rebuildLocked refills the Bloom filter from the store. Callers hold the write lock.
func (r *Repository) rebuildLocked() {
	names, err := r.store.List()
	if err != nil {
		r.logger.Warn(map[string]any{"error": err}, "blocklist bloom rebuild failed; falling back to store lookups")
		r.bloom = nil
		return
	}
	r.entries = len(names)
	if r.factory == nil {
		r.bloom = nil
		return
	}
	capacity := uint64(2 * len(names))
	if capacity < minBloomCapacity {
		capacity = minBloomCapacity
	}
	bf := r.factory.New(capacity, r.fpRate)
	for _, n := range names {
		bf.Add([]byte(n))
	}
	r.bloom = bf
	r.capacity = capacity
	r.logger.Debug(map[string]any{"entries": len(names), "capacity": capacity}, "blocklist bloom rebuilt")
}

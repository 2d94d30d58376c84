package bloom

import (
	"sync"

	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
)

// filter wraps bits-and-blooms BloomFilter with a RWMutex so Add can run
// alongside concurrent MightContain calls.
type filter struct {
	mu sync.RWMutex
	bf *bitsbloom.BloomFilter
}

func (f *filter) Add(key []byte) {
	f.mu.Lock()
	f.bf.Add(key)
	f.mu.Unlock()
}

func (f *filter) MightContain(key []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bf.Test(key)
}

// factory implements blocklist.BloomFactory using the internal sizing formulas.
type factory struct{}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() blocklist.BloomFactory { return factory{} }

// New constructs a filter sized for capacity keys at the given false-positive rate.
func (factory) New(capacity uint64, fpRate float64) blocklist.BloomFilter {
	m, k := size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}

package memory

import (
	"sort"
	"sync"

	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
)

// memoryStore implements blocklist.Store with a map. Contents are lost on exit.
type memoryStore struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// New returns an empty in-memory store seeded with names.
func New(names ...string) blocklist.Store {
	s := &memoryStore{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[n] = struct{}{}
	}
	return s
}

func (s *memoryStore) Contains(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[name]
	return ok, nil
}

func (s *memoryStore) Add(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; ok {
		return blocklist.ErrAlreadyPresent
	}
	s.names[name] = struct{}{}
	return nil
}

func (s *memoryStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.names[name]; !ok {
		return blocklist.ErrNotPresent
	}
	delete(s.names, name)
	return nil
}

// List returns the names sorted, since map order carries no meaning.
func (s *memoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memoryStore) Close() error { return nil }

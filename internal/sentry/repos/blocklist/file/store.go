// Package file stores the blocklist as a plain text file, one domain per line.
// Comments, blank lines and lines that are not valid domains are kept when the
// file is rewritten.
package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
	"github.com/haukened/url-sentry/internal/sentry/common/utils"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
)

// fileStore keeps the list in memory and writes through to path.
// Adds append a line; removes drop the matching lines and rewrite the file through a
// temp file and rename.
// The process is assumed to be the only writer.
type fileStore struct {
	mu    sync.RWMutex
	path  string
	order []string
	index map[string]struct{}
}

// Open loads the list at path. A missing file is an empty list; parent
// directories are created on the first write.
func Open(path string, logger log.Logger) (blocklist.Store, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	s := &fileStore{path: path, index: make(map[string]struct{})}

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info(map[string]any{"path": path}, "blocklist file not found, starting empty")
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("open blocklist %s: %w", path, err)
	}
	defer f.Close()

	names, err := blocklist.ParseList(f, logger)
	if err != nil {
		return nil, fmt.Errorf("read blocklist %s: %w", path, err)
	}
	for _, n := range names {
		s.index[n] = struct{}{}
	}
	s.order = names
	logger.Info(map[string]any{"path": path, "entries": len(names)}, "blocklist file loaded")
	return s, nil
}

func (s *fileStore) Contains(name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[name]
	return ok, nil
}

func (s *fileStore) Add(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[name]; ok {
		return blocklist.ErrAlreadyPresent
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create blocklist dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open blocklist for append: %w", err)
	}
	if _, err := f.WriteString(name + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("append blocklist: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close blocklist: %w", err)
	}
	s.index[name] = struct{}{}
	s.order = append(s.order, name)
	return nil
}

func (s *fileStore) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[name]; !ok {
		return blocklist.ErrNotPresent
	}
	lines, err := s.readLines()
	if err != nil {
		return err
	}
	keptLines := make([]string, 0, len(lines))
	for _, line := range lines {
		if lineName(line) != name {
			keptLines = append(keptLines, line)
		}
	}
	if err := s.rewrite(keptLines); err != nil {
		return err
	}

	kept := make([]string, 0, len(s.order))
	for _, n := range s.order {
		if n != name {
			kept = append(kept, n)
		}
	}
	delete(s.index, name)
	s.order = kept
	return nil
}

// readLines returns the raw lines of the file. A missing file has none.
func (s *fileStore) readLines() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read blocklist %s: %w", s.path, err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// lineName is the domain a line contributes, as ParseList reads it.
func lineName(line string) string {
	line = strings.TrimPrefix(line, "\uFEFF")
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	return utils.CanonicalDomain(line)
}

// List returns the domains in file order.
func (s *fileStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) rewrite(lines []string) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create blocklist dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".blocklist-*")
	if err != nil {
		return fmt.Errorf("create temp blocklist: %w", err)
	}
	defer os.Remove(tmp.Name())

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp blocklist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp blocklist: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace blocklist: %w", err)
	}
	return nil
}

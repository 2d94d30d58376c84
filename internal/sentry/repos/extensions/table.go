// Package extensions holds the trusted-suffix reputation table.
package extensions

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/haukened/url-sentry/internal/sentry/domain"
)

//go:embed extensions.yaml
var defaultTable []byte

// ErrInvalidTable is returned when table data fails validation.
var ErrInvalidTable = errors.New("invalid extension table")

// Table is an immutable, ordered suffix → label mapping.
// Lookups scan entries in declared order and return the first string-suffix match;
// ties between overlapping suffixes are resolved by position, not by length.
type Table struct {
	entries []domain.ExtensionEntry
}

// Shadow describes an entry that can never match because an earlier entry is a suffix of it.
type Shadow struct {
	Entry    domain.ExtensionEntry
	Position int
	By       domain.ExtensionEntry
}

type document struct {
	Extensions []domain.ExtensionEntry `yaml:"extensions"`
}

// New builds a Table from entries, preserving their order. Suffixes are lowercased.
func New(entries []domain.ExtensionEntry) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrInvalidTable)
	}
	out := make([]domain.ExtensionEntry, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for i, e := range entries {
		e.Suffix = strings.ToLower(strings.TrimSpace(e.Suffix))
		e.Label = strings.TrimSpace(e.Label)
		if len(e.Suffix) < 2 || e.Suffix[0] != '.' {
			return nil, fmt.Errorf("%w: entry %d: suffix %q must start with '.'", ErrInvalidTable, i, e.Suffix)
		}
		if e.Label == "" {
			return nil, fmt.Errorf("%w: entry %d: empty label for %q", ErrInvalidTable, i, e.Suffix)
		}
		if j, dup := seen[e.Suffix]; dup {
			return nil, fmt.Errorf("%w: entry %d: suffix %q already declared at %d", ErrInvalidTable, i, e.Suffix, j)
		}
		seen[e.Suffix] = i
		out = append(out, e)
	}
	return &Table{entries: out}, nil
}

// Decode reads a YAML document of the form `extensions: [{suffix, label}, ...]`.
func Decode(r io.Reader) (*Table, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return New(doc.Extensions)
}

// LoadFile decodes the table stored at path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extension table: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Default returns the embedded table.
func Default() *Table {
	t, err := Decode(strings.NewReader(string(defaultTable)))
	if err != nil {
		panic(fmt.Sprintf("embedded extension table: %v", err))
	}
	return t
}

// Lookup returns the first entry whose suffix name ends with.
// name is expected to be lowercased already.
func (t *Table) Lookup(name string) (domain.ExtensionEntry, bool) {
	for _, e := range t.entries {
		if strings.HasSuffix(name, e.Suffix) {
			return e, true
		}
	}
	return domain.ExtensionEntry{}, false
}

// HasSuffix reports whether s ends with any trusted suffix.
func (t *Table) HasSuffix(s string) bool {
	_, ok := t.Lookup(s)
	return ok
}

// Entries returns a copy of the table in declared order.
func (t *Table) Entries() []domain.ExtensionEntry {
	out := make([]domain.ExtensionEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Shadowed lists entries that are unreachable under first-match semantics.
func (t *Table) Shadowed() []Shadow {
	var out []Shadow
	for j := 1; j < len(t.entries); j++ {
		for i := 0; i < j; i++ {
			if strings.HasSuffix(t.entries[j].Suffix, t.entries[i].Suffix) {
				out = append(out, Shadow{Entry: t.entries[j], Position: j, By: t.entries[i]})
				break
			}
		}
	}
	return out
}

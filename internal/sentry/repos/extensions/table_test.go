package extensions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/url-sentry/internal/sentry/domain"
)

func mustTable(t *testing.T, entries ...domain.ExtensionEntry) *Table {
	t.Helper()
	tbl, err := New(entries)
	require.NoError(t, err)
	return tbl
}

func TestLookup_FirstMatchIsOrderSensitive(t *testing.T) {
	acIn := domain.ExtensionEntry{Suffix: ".ac.in", Label: "A"}
	in := domain.ExtensionEntry{Suffix: ".in", Label: "B"}

	specificFirst := mustTable(t, acIn, in)
	got, ok := specificFirst.Lookup("foo.ac.in")
	require.True(t, ok)
	assert.Equal(t, acIn, got)

	generalFirst := mustTable(t, in, acIn)
	got, ok = generalFirst.Lookup("foo.ac.in")
	require.True(t, ok)
	assert.Equal(t, in, got)
}

func TestLookup_Miss(t *testing.T) {
	tbl := mustTable(t, domain.ExtensionEntry{Suffix: ".com", Label: "Global"})
	_, ok := tbl.Lookup("example.zzz")
	assert.False(t, ok)
	assert.False(t, tbl.HasSuffix("http://example.com/"))
	assert.True(t, tbl.HasSuffix("http://example.com"))
}

func TestDefault(t *testing.T) {
	tbl := Default()
	assert.Equal(t, 78, tbl.Len())

	e, ok := tbl.Lookup("example.com")
	require.True(t, ok)
	assert.Equal(t, domain.ExtensionEntry{Suffix: ".com", Label: "Global"}, e)

	e, ok = tbl.Lookup("totally-dead-domain-xyz123.gov")
	require.True(t, ok)
	assert.Equal(t, "Government", e.Label)

	entries := tbl.Entries()
	assert.Equal(t, ".com", entries[0].Suffix)
	assert.Equal(t, ".ventures", entries[len(entries)-1].Suffix)
}

func TestDefault_ReportsAcademicIndiaShadowed(t *testing.T) {
	shadows := Default().Shadowed()
	require.Len(t, shadows, 1)
	assert.Equal(t, ".ac.in", shadows[0].Entry.Suffix)
	assert.Equal(t, ".in", shadows[0].By.Suffix)

	e, ok := Default().Lookup("iitb.ac.in")
	require.True(t, ok)
	assert.Equal(t, ".in", e.Suffix)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	tbl := mustTable(t, domain.ExtensionEntry{Suffix: ".com", Label: "Global"})
	entries := tbl.Entries()
	entries[0].Label = "mutated"
	e, _ := tbl.Lookup("a.com")
	assert.Equal(t, "Global", e.Label)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		entries []domain.ExtensionEntry
	}{
		{"empty", nil},
		{"no leading dot", []domain.ExtensionEntry{{Suffix: "com", Label: "x"}}},
		{"bare dot", []domain.ExtensionEntry{{Suffix: ".", Label: "x"}}},
		{"empty label", []domain.ExtensionEntry{{Suffix: ".com", Label: " "}}},
		{"duplicate", []domain.ExtensionEntry{{Suffix: ".com", Label: "a"}, {Suffix: ".COM", Label: "b"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			assert.ErrorIs(t, err, ErrInvalidTable)
		})
	}
}

func TestDecode(t *testing.T) {
	doc := `
extensions:
  - suffix: ".Test"
    label: "Testing"
  - suffix: ".example"
    label: "Docs"
`
	tbl, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	e, ok := tbl.Lookup("foo.test")
	require.True(t, ok)
	assert.Equal(t, ".test", e.Suffix)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("extensions:\n  - suffix: .com\n    lable: typo\n"))
	assert.ErrorIs(t, err, ErrInvalidTable)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ext.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extensions:\n  - suffix: .zzz\n    label: Custom\n"), 0o600))

	tbl, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, tbl.HasSuffix("a.zzz"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "blocked_domains.txt"), log.NewNoopLogger())
	require.NoError(t, err)

	names, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestOpen_ParsesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_domains.txt")
	require.NoError(t, os.WriteFile(path, []byte("Evil.test\n\n# note\nphish.example.com\nevil.test\n"), 0o644))

	st, err := Open(path, nil)
	require.NoError(t, err)

	names, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"evil.test", "phish.example.com"}, names)

	ok, err := st.Contains("evil.test")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStore_WritesOneDomainPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blocked_domains.txt")
	st, err := Open(path, log.NewNoopLogger())
	require.NoError(t, err)

	require.NoError(t, st.Add("evil.test"))
	require.NoError(t, st.Add("phish.example.com"))
	require.NoError(t, st.Add("bad.example.org"))
	assert.ErrorIs(t, st.Add("evil.test"), blocklist.ErrAlreadyPresent)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "evil.test\nphish.example.com\nbad.example.org\n", string(data))

	require.NoError(t, st.Remove("phish.example.com"))
	assert.ErrorIs(t, st.Remove("phish.example.com"), blocklist.ErrNotPresent)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "evil.test\nbad.example.org\n", string(data))

	reopened, err := Open(path, log.NewNoopLogger())
	require.NoError(t, err)
	names, err := reopened.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"evil.test", "bad.example.org"}, names)
}

func TestOpen_UnreadablePath(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(dir, log.NewNoopLogger())
	assert.Error(t, err, "a directory is not a readable blocklist")
}

func TestFileStore_RemoveKeepsOtherLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocked_domains.txt")
	content := "# operator notes\nevil.test\n\nlocalhost\nPhish.Example.com. # reported\nbad.example.org\nphish.example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	st, err := Open(path, log.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, st.Remove("phish.example.com"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# operator notes\nevil.test\n\nlocalhost\nbad.example.org\n", string(data))

	names, err := st.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"evil.test", "bad.example.org"}, names)
}

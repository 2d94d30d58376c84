package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/url-sentry/internal/sentry/common/clock"
)

func TestReports_SubmitAndList(t *testing.T) {
	clk := &clock.MockClock{CurrentTime: time.Date(2025, 3, 1, 12, 0, 0, 0, time.Local)}
	r := NewReports(filepath.Join(t.TempDir(), "reports.csv"), clk)

	got, err := r.Submit(Report{URL: " http://phish.zzz ", Name: "Sam", Email: "sam@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "http://phish.zzz", got.URL)
	assert.True(t, got.Timestamp.Equal(clk.CurrentTime))

	clk.Advance(time.Hour)
	_, err = r.Submit(Report{URL: "http://other.zzz", Name: "Kim", Email: "kim@example.org"})
	require.NoError(t, err)

	list, err := r.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "http://other.zzz", list[0].URL)
	assert.Equal(t, "Sam", list[1].Name)
	assert.Equal(t, "sam@example.com", list[1].Email)
	assert.True(t, list[1].Timestamp.Equal(clk.CurrentTime.Add(-time.Hour)))
}

func TestReports_SubmitValidates(t *testing.T) {
	r := NewReports(filepath.Join(t.TempDir(), "reports.csv"), nil)

	tests := []struct {
		name   string
		report Report
	}{
		{"missing url", Report{Name: "Sam", Email: "sam@example.com"}},
		{"missing name", Report{URL: "http://x.zzz", Email: "sam@example.com"}},
		{"missing email", Report{URL: "http://x.zzz", Name: "Sam"}},
		{"bad email", Report{URL: "http://x.zzz", Name: "Sam", Email: "not-an-email"}},
		{"blank fields", Report{URL: "  ", Name: "  ", Email: "  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Submit(tt.report)
			assert.ErrorIs(t, err, ErrInvalidReport)
		})
	}

	list, err := r.List()
	require.NoError(t, err)
	assert.Empty(t, list, "invalid reports are not written")
}

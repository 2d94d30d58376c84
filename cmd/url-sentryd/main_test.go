package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
	"github.com/haukened/url-sentry/internal/sentry/config"
)

const modelDir = "../../internal/sentry/gateways/model/testdata"

type warnRecorder struct {
	log.Logger
	warnings []string
}

func (w *warnRecorder) Warn(_ map[string]any, msg string) { w.warnings = append(w.warnings, msg) }

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.DEFAULT_APP_CONFIG
	cfg.Env = "dev"
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.RateLimit = 0
	cfg.Blocklist.Backend = "memory"
	cfg.Blocklist.Path = ""
	cfg.Models.Forest = filepath.Join(modelDir, "forest.json")
	cfg.Models.SVM = filepath.Join(modelDir, "svc.json")
	cfg.Journal.Dir = t.TempDir()
	return &cfg
}

func TestBuildApplication(t *testing.T) {
	app, err := buildApplication(testConfig(t), log.NewNoopLogger())
	require.NoError(t, err)
	assert.NotNil(t, app.api)
	assert.NotNil(t, app.blocklist)
	assert.Nil(t, app.dnsfilter, "dns filter disabled by default")
	require.NoError(t, app.blocklist.Close())
}

func TestBuildApplication_WithDNSFilter(t *testing.T) {
	cfg := testConfig(t)
	cfg.DNSFilter.Enabled = true
	cfg.DNSFilter.Addr = "127.0.0.1:0"

	app, err := buildApplication(cfg, log.NewNoopLogger())
	require.NoError(t, err)
	assert.NotNil(t, app.dnsfilter)
	require.NoError(t, app.blocklist.Close())
}

func TestBuildApplication_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.AppConfig)
		want   string
	}{
		{"missing forest", func(c *config.AppConfig) { c.Models.Forest = "/nonexistent/rf.json" }, "failed to load forest model"},
		{"missing svm", func(c *config.AppConfig) { c.Models.SVM = "/nonexistent/svm.json" }, "failed to load svm model"},
		{"bad liveness mode", func(c *config.AppConfig) { c.Liveness.Mode = "carrier-pigeon" }, "unsupported liveness mode"},
		{"bad extension file", func(c *config.AppConfig) { c.Extensions.File = "/nonexistent/ext.yaml" }, "failed to load extension table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := buildApplication(cfg, log.NewNoopLogger())
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoadExtensions_WarnsAboutShadowedEntries(t *testing.T) {
	rec := &warnRecorder{Logger: log.NewNoopLogger()}
	table, err := loadExtensions("", rec)
	require.NoError(t, err)
	assert.Positive(t, table.Len())
	assert.Contains(t, rec.warnings, "extension entry is unreachable")
}

func TestBuildBlocklist_Backends(t *testing.T) {
	dir := t.TempDir()

	fileCfg := config.BlocklistConfig{Backend: "file", Path: filepath.Join(dir, "blocked.txt"), CacheSize: 10, FPRate: 0.01}
	require.NoError(t, os.WriteFile(fileCfg.Path, []byte("# comment\nphish.example\n"), 0o644))
	repo, err := buildBlocklist(fileCfg, log.NewNoopLogger())
	require.NoError(t, err)
	assert.True(t, repo.Contains("phish.example"))
	require.NoError(t, repo.Close())

	boltCfg := config.BlocklistConfig{Backend: "bolt", Path: filepath.Join(dir, "blocked.db"), CacheSize: 10, FPRate: 0.01}
	repo, err = buildBlocklist(boltCfg, log.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, repo.Add("phish.example"))
	assert.True(t, repo.Contains("phish.example"))
	require.NoError(t, repo.Close())
}

func TestBuildBlocklist_FallsBackToMemory(t *testing.T) {
	cfg := config.BlocklistConfig{Backend: "bolt", Path: filepath.Join(t.TempDir(), "missing", "dir", "blocked.db"), FPRate: 0.01}
	repo, err := buildBlocklist(cfg, log.NewNoopLogger())
	require.NoError(t, err)
	assert.False(t, repo.Contains("phish.example"))
	require.NoError(t, repo.Add("phish.example"))
	assert.True(t, repo.Contains("phish.example"))
	require.NoError(t, repo.Close())
}

func TestApplication_Run(t *testing.T) {
	app, err := buildApplication(testConfig(t), log.NewNoopLogger())
	require.NoError(t, err)
	require.NoError(t, app.blocklist.Add("phish.example"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return app.api.Addr() != "127.0.0.1:0" }, 2*time.Second, 10*time.Millisecond)
	base := "http://" + app.api.Addr()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(map[string]string{"url": "https://phish.example/login"})
	resp, err := http.Post(base+"/api/v1/classify", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Result struct {
			Verdict string `json:"verdict"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "blocked", out.Result.Verdict)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not stop")
	}
}

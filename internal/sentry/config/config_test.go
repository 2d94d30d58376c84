package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 8, cfg.HTTP.BatchLimit)
	assert.Equal(t, "file", cfg.Blocklist.Backend)
	assert.Equal(t, "/var/lib/url-sentry/blocked_domains.txt", cfg.Blocklist.Path)
	assert.Equal(t, 1000, cfg.Blocklist.CacheSize)
	assert.InDelta(t, 0.01, cfg.Blocklist.FPRate, 1e-12)
	assert.Empty(t, cfg.Extensions.File)
	assert.Equal(t, "system", cfg.Liveness.Mode)
	assert.Equal(t, 3*time.Second, cfg.Liveness.Timeout)
	assert.Equal(t, []string{"1.1.1.1:53", "1.0.0.1:53"}, cfg.Liveness.Servers)
	assert.Equal(t, "/etc/url-sentry/models/rf_model.json", cfg.Models.Forest)
	assert.Equal(t, "/var/lib/url-sentry/logs", cfg.Journal.Dir)
	assert.False(t, cfg.DNSFilter.Enabled)
	assert.Empty(t, cfg.Admin.TokenHash)
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("SENTRY_ENV", "dev")
	t.Setenv("SENTRY_LOG_LEVEL", "debug")
	t.Setenv("SENTRY_HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("SENTRY_HTTP_RATE_LIMIT", "2.5")
	t.Setenv("SENTRY_BLOCKLIST_BACKEND", "bolt")
	t.Setenv("SENTRY_BLOCKLIST_PATH", "/tmp/blocklist.db")
	t.Setenv("SENTRY_BLOCKLIST_CACHE_SIZE", "0")
	t.Setenv("SENTRY_LIVENESS_MODE", "upstream")
	t.Setenv("SENTRY_LIVENESS_TIMEOUT", "750ms")
	t.Setenv("SENTRY_LIVENESS_SERVERS", "8.8.8.8:53, 8.8.4.4:53")
	t.Setenv("SENTRY_DNSFILTER_ENABLED", "true")
	t.Setenv("SENTRY_DNSFILTER_UPSTREAM", "9.9.9.9:53")
	t.Setenv("SENTRY_NOT_A_KEY", "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.HTTP.Addr)
	assert.InDelta(t, 2.5, cfg.HTTP.RateLimit, 1e-12)
	assert.Equal(t, "bolt", cfg.Blocklist.Backend)
	assert.Equal(t, "/tmp/blocklist.db", cfg.Blocklist.Path)
	assert.Equal(t, 0, cfg.Blocklist.CacheSize)
	assert.Equal(t, "upstream", cfg.Liveness.Mode)
	assert.Equal(t, 750*time.Millisecond, cfg.Liveness.Timeout)
	assert.Equal(t, []string{"8.8.8.8:53", "8.8.4.4:53"}, cfg.Liveness.Servers)
	assert.True(t, cfg.DNSFilter.Enabled)
	assert.Equal(t, []string{"9.9.9.9:53"}, cfg.DNSFilter.Upstream)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SENTRY_JOURNAL_DIR=/tmp/journal\n"), 0o644))
	t.Chdir(dir)
	t.Cleanup(func() { _ = os.Unsetenv("SENTRY_JOURNAL_DIR") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/journal", cfg.Journal.Dir)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"env", map[string]string{"SENTRY_ENV": "staging"}},
		{"log level", map[string]string{"SENTRY_LOG_LEVEL": "trace"}},
		{"http addr", map[string]string{"SENTRY_HTTP_ADDR": "nope"}},
		{"backend", map[string]string{"SENTRY_BLOCKLIST_BACKEND": "postgres"}},
		{"path for file backend", map[string]string{"SENTRY_BLOCKLIST_PATH": ""}},
		{"fp rate", map[string]string{"SENTRY_BLOCKLIST_FP_RATE": "1.5"}},
		{"cache size", map[string]string{"SENTRY_BLOCKLIST_CACHE_SIZE": "-1"}},
		{"liveness mode", map[string]string{"SENTRY_LIVENESS_MODE": "ping"}},
		{"liveness servers", map[string]string{"SENTRY_LIVENESS_SERVERS": "not_a_server"}},
		{"upstream without servers", map[string]string{"SENTRY_LIVENESS_MODE": "upstream", "SENTRY_LIVENESS_SERVERS": ""}},
		{"timeout", map[string]string{"SENTRY_LIVENESS_TIMEOUT": "soon"}},
		{"models", map[string]string{"SENTRY_MODELS_FOREST": ""}},
		{"dnsfilter upstream", map[string]string{"SENTRY_DNSFILTER_ENABLED": "true", "SENTRY_DNSFILTER_UPSTREAM": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MemoryBackendNeedsNoPath(t *testing.T) {
	t.Setenv("SENTRY_BLOCKLIST_BACKEND", "memory")
	t.Setenv("SENTRY_BLOCKLIST_PATH", "")
	_, err := Load()
	assert.NoError(t, err)
}

func TestLoad_LoaderFailures(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		orig := defaultLoader
		defaultLoader = func(*koanf.Koanf) error { return errors.New("mocked error") }
		defer func() { defaultLoader = orig }()
		_, err := Load()
		assert.ErrorContains(t, err, "mocked error")
	})
	t.Run("dotenv", func(t *testing.T) {
		orig := dotenvLoader
		dotenvLoader = func() error { return errors.New("mocked dotenv error") }
		defer func() { dotenvLoader = orig }()
		_, err := Load()
		assert.ErrorContains(t, err, "mocked dotenv error")
	})
	t.Run("env", func(t *testing.T) {
		orig := envLoader
		envLoader = func(*koanf.Koanf) error { return errors.New("mocked error") }
		defer func() { envLoader = orig }()
		_, err := Load()
		assert.ErrorContains(t, err, "mocked error")
	})
	t.Run("validation registration", func(t *testing.T) {
		orig := registerValidation
		registerValidation = func(*validator.Validate) error { return errors.New("mocked validation error") }
		defer func() { registerValidation = orig }()
		_, err := Load()
		assert.ErrorContains(t, err, "mocked validation error")
	})
}

func TestValidIPPort(t *testing.T) {
	cases := map[string]bool{
		"1.2.3.4:53":       true,
		"127.0.0.1:5353":   true,
		"[::1]:53":         true,
		"::1:53":           false,
		"192.168.1.1:":     false,
		":53":              false,
		"not_an_ip:53":     false,
		"1.2.3.4:notaport": false,
		"1.2.3.4:0":        false,
		"1.2.3.4:70000":    false,
		"":                 false,
		"1.2.3.4":          false,
	}

	validate := validator.New()
	require.NoError(t, validate.RegisterValidation("ip_port", validIPPort))

	type S struct {
		Addr string `validate:"ip_port"`
	}
	for in, want := range cases {
		err := validate.Struct(S{Addr: in})
		assert.Equal(t, want, err == nil, "validIPPort(%q)", in)
	}
}

func TestValidation_EmptyServerLists(t *testing.T) {
	v := validator.New(validator.WithRequiredStructEnabled())
	require.NoError(t, registerValidation(v))

	cfg := DEFAULT_APP_CONFIG
	cfg.Liveness.Mode = "upstream"
	cfg.Liveness.Servers = []string{}
	assert.ErrorContains(t, v.Struct(&cfg), "Servers")

	cfg = DEFAULT_APP_CONFIG
	cfg.DNSFilter.Enabled = true
	cfg.DNSFilter.Upstream = []string{}
	assert.ErrorContains(t, v.Struct(&cfg), "Upstream")

	cfg = DEFAULT_APP_CONFIG
	cfg.Liveness.Servers = []string{}
	cfg.DNSFilter.Upstream = []string{}
	assert.NoError(t, v.Struct(&cfg), "empty lists are fine when unused")
}

func TestLoad_EmptyServerListFromEnv(t *testing.T) {
	t.Setenv("SENTRY_LIVENESS_MODE", "upstream")
	t.Setenv("SENTRY_LIVENESS_SERVERS", "")
	_, err := Load()
	assert.ErrorContains(t, err, "Servers")
}

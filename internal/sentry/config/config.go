package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from every environment variable the service reads.
const envPrefix = "SENTRY_"

// AppConfig is the complete url-sentry configuration.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env        string           `koanf:"env" validate:"required,oneof=dev prod"`
	Log        LoggingConfig    `koanf:"log"`
	HTTP       HTTPConfig       `koanf:"http"`
	Admin      AdminConfig      `koanf:"admin"`
	Blocklist  BlocklistConfig  `koanf:"blocklist"`
	Extensions ExtensionsConfig `koanf:"extensions"`
	Liveness   LivenessConfig   `koanf:"liveness"`
	Models     ModelsConfig     `koanf:"models"`
	Journal    JournalConfig    `koanf:"journal"`
	DNSFilter  DNSFilterConfig  `koanf:"dnsfilter"`
}

// LoggingConfig controls log verbosity: "debug", "info", "warn", or "error".
type LoggingConfig struct {
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" validate:"required,hostname_port"`
	// RateLimit is the sustained classify requests per second per client; 0 disables limiting.
	RateLimit  float64 `koanf:"rate_limit" validate:"gte=0"`
	Burst      int     `koanf:"burst" validate:"gte=0"`
	BatchLimit int     `koanf:"batch_limit" validate:"gte=1"`
	MaxBatch   int     `koanf:"max_batch" validate:"gte=1"`
}

// AdminConfig holds the bcrypt hash of the admin bearer token. Admin routes are
// disabled while it is empty.
type AdminConfig struct {
	TokenHash string `koanf:"token_hash"`
}

// BlocklistConfig selects and tunes the blocklist backend.
type BlocklistConfig struct {
	Backend   string  `koanf:"backend" validate:"required,oneof=file bolt memory"`
	Path      string  `koanf:"path" validate:"required_unless=Backend memory"`
	CacheSize int     `koanf:"cache_size" validate:"gte=0"`
	FPRate    float64 `koanf:"fp_rate" validate:"gt=0,lt=1"`
}

// ExtensionsConfig optionally replaces the built-in trusted suffix table.
type ExtensionsConfig struct {
	File string `koanf:"file"`
}

// LivenessConfig configures domain liveness checks.
type LivenessConfig struct {
	Mode    string        `koanf:"mode" validate:"required,oneof=system upstream"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	// Servers is a list of DNS servers in ip:port format, used by the upstream mode.
	Servers []string `koanf:"servers" validate:"required_if=Mode upstream,dive,ip_port"`
}

// ModelsConfig points at the two exported model artifacts.
type ModelsConfig struct {
	Forest string `koanf:"forest" validate:"required"`
	SVM    string `koanf:"svm" validate:"required"`
}

// JournalConfig locates the detection and report logs.
type JournalConfig struct {
	Dir string `koanf:"dir" validate:"required"`
}

// DNSFilterConfig configures the optional blocklist-enforcing DNS forwarder.
type DNSFilterConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Addr     string   `koanf:"addr" validate:"omitempty,hostname_port"`
	Upstream []string `koanf:"upstream" validate:"required_if=Enabled true,dive,ip_port"`
}

// DEFAULT_APP_CONFIG is the configuration used when nothing is overridden.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	HTTP: HTTPConfig{
		Addr:       ":8080",
		RateLimit:  10,
		Burst:      20,
		BatchLimit: 8,
		MaxBatch:   100,
	},
	Blocklist: BlocklistConfig{
		Backend:   "file",
		Path:      "/var/lib/url-sentry/blocked_domains.txt",
		CacheSize: 1000,
		FPRate:    0.01,
	},
	Liveness: LivenessConfig{
		Mode:    "system",
		Timeout: 3 * time.Second,
		Servers: []string{"1.1.1.1:53", "1.0.0.1:53"},
	},
	Models: ModelsConfig{
		Forest: "/etc/url-sentry/models/rf_model.json",
		SVM:    "/etc/url-sentry/models/svm_model.json",
	},
	Journal: JournalConfig{Dir: "/var/lib/url-sentry/logs"},
	DNSFilter: DNSFilterConfig{
		Enabled:  false,
		Addr:     "127.0.0.1:5353",
		Upstream: []string{"8.8.8.8:53"},
	},
}

// envKeys maps environment variable names (prefix stripped, lowercased) to config keys.
var envKeys = map[string]string{
	"env":                  "env",
	"log_level":            "log.level",
	"http_addr":            "http.addr",
	"http_rate_limit":      "http.rate_limit",
	"http_burst":           "http.burst",
	"http_batch_limit":     "http.batch_limit",
	"http_max_batch":       "http.max_batch",
	"admin_token_hash":     "admin.token_hash",
	"blocklist_backend":    "blocklist.backend",
	"blocklist_path":       "blocklist.path",
	"blocklist_cache_size": "blocklist.cache_size",
	"blocklist_fp_rate":    "blocklist.fp_rate",
	"extensions_file":      "extensions.file",
	"liveness_mode":        "liveness.mode",
	"liveness_timeout":     "liveness.timeout",
	"liveness_servers":     "liveness.servers",
	"models_forest":        "models.forest",
	"models_svm":           "models.svm",
	"journal_dir":          "journal.dir",
	"dnsfilter_enabled":    "dnsfilter.enabled",
	"dnsfilter_addr":       "dnsfilter.addr",
	"dnsfilter_upstream":   "dnsfilter.upstream",
}

// listKeys are split on spaces and commas.
var listKeys = map[string]bool{
	"liveness.servers":   true,
	"dnsfilter.upstream": true,
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
func validIPPort(fl validator.FieldLevel) bool {
	ip, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// dotenvLoader loads a .env file into the process environment without overriding
// variables that are already set. A missing file is not an error.
var dotenvLoader = func() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// envLoader loads SENTRY_* environment variables through envKeys; unknown names are ignored.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			path, ok := envKeys[strings.ToLower(strings.TrimPrefix(key, envPrefix))]
			if !ok {
				return "", nil
			}
			value = strings.TrimSpace(value)
			if listKeys[path] {
				return path, strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
			}
			return path, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// nonEmptyServerLists rejects empty server lists where required_if passes them:
// an empty SENTRY_* list yields a non-nil, zero-length slice.
func nonEmptyServerLists(sl validator.StructLevel) {
	switch c := sl.Current().Interface().(type) {
	case LivenessConfig:
		if c.Mode == "upstream" && len(c.Servers) == 0 {
			sl.ReportError(c.Servers, "Servers", "Servers", "required_if", "Mode upstream")
		}
	case DNSFilterConfig:
		if c.Enabled && len(c.Upstream) == 0 {
			sl.ReportError(c.Upstream, "Upstream", "Upstream", "required_if", "Enabled true")
		}
	}
}

// registerValidation registers the custom "ip_port" tag and the server list checks.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	v.RegisterStructValidation(nonEmptyServerLists, LivenessConfig{}, DNSFilterConfig{})
	return nil
}

// Load builds the configuration from defaults, an optional .env file and the
// environment, then validates it.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	if err := dotenvLoader(); err != nil {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}

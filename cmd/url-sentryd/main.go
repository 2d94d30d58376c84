package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/haukened/url-sentry/internal/sentry/common/clock"
	"github.com/haukened/url-sentry/internal/sentry/common/log"
	"github.com/haukened/url-sentry/internal/sentry/config"
	"github.com/haukened/url-sentry/internal/sentry/gateways/api"
	"github.com/haukened/url-sentry/internal/sentry/gateways/dnsfilter"
	"github.com/haukened/url-sentry/internal/sentry/gateways/liveness"
	"github.com/haukened/url-sentry/internal/sentry/gateways/model"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist/bloom"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist/bolt"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist/file"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist/lru"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist/memory"
	"github.com/haukened/url-sentry/internal/sentry/repos/extensions"
	"github.com/haukened/url-sentry/internal/sentry/repos/journal"
	"github.com/haukened/url-sentry/internal/sentry/services/classifier"
)

const (
	version = "0.1.0-dev"
	appName = "url-sentryd"
)

// Application holds the wired components of the daemon.
type Application struct {
	config    *config.AppConfig
	blocklist *blocklist.Repository
	api       *api.Server
	dnsfilter *dnsfilter.Server
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.Log.Level,
		"http_addr": cfg.HTTP.Addr,
		"backend":   cfg.Blocklist.Backend,
		"liveness":  cfg.Liveness.Mode,
		"dnsfilter": cfg.DNSFilter.Enabled,
	}, "Starting "+appName)

	app, err := buildApplication(cfg, log.GetLogger())
	if err != nil {
		log.Fatal(map[string]any{"error": err}, "Failed to build application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err}, "Server failed")
	}

	log.Info(nil, appName+" stopped gracefully")
}

// buildApplication constructs all components and wires them together.
func buildApplication(cfg *config.AppConfig, logger log.Logger) (*Application, error) {
	clk := &clock.RealClock{}

	table, err := loadExtensions(cfg.Extensions.File, logger)
	if err != nil {
		return nil, err
	}

	repo, err := buildBlocklist(cfg.Blocklist, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build blocklist: %w", err)
	}

	checker, err := liveness.New(liveness.Mode(cfg.Liveness.Mode), cfg.Liveness.Timeout, cfg.Liveness.Servers, logger)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to create liveness checker: %w", err)
	}

	forest, err := model.Load(cfg.Models.Forest)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to load forest model: %w", err)
	}
	svm, err := model.Load(cfg.Models.SVM)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to load svm model: %w", err)
	}

	svc, err := classifier.New(classifier.Options{
		Blocklist:  repo,
		Extensions: table,
		Liveness:   checker,
		Forest:     forest,
		SVM:        svm,
		Logger:     logger,
	})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	server, err := api.NewServer(api.Options{
		Addr:       cfg.HTTP.Addr,
		Classifier: svc,
		Blocklist:  repo,
		Detections: journal.NewDetections(filepath.Join(cfg.Journal.Dir, "detections.csv"), clk, logger),
		Reports:    journal.NewReports(filepath.Join(cfg.Journal.Dir, "reports.csv"), clk),
		TokenHash:  cfg.Admin.TokenHash,
		RateLimit:  cfg.HTTP.RateLimit,
		Burst:      cfg.HTTP.Burst,
		BatchLimit: cfg.HTTP.BatchLimit,
		MaxBatch:   cfg.HTTP.MaxBatch,
		Logger:     logger,
	})
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("failed to create API server: %w", err)
	}
	if cfg.Admin.TokenHash == "" {
		logger.Warn(nil, "admin token hash not configured, admin routes disabled")
	}

	app := &Application{config: cfg, blocklist: repo, api: server}

	if cfg.DNSFilter.Enabled {
		fwd, err := dnsfilter.NewForwarder(cfg.DNSFilter.Upstream, cfg.Liveness.Timeout, nil)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("failed to create dns forwarder: %w", err)
		}
		app.dnsfilter = dnsfilter.NewServer(cfg.DNSFilter.Addr, dnsfilter.NewHandler(repo, fwd, logger), logger)
		logger.Info(map[string]any{"addr": cfg.DNSFilter.Addr, "upstream": cfg.DNSFilter.Upstream}, "DNS filter configured")
	}

	return app, nil
}

// loadExtensions returns the trusted suffix table, warning about unreachable entries.
func loadExtensions(path string, logger log.Logger) (*extensions.Table, error) {
	table := extensions.Default()
	if path != "" {
		t, err := extensions.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load extension table: %w", err)
		}
		table = t
	}
	for _, s := range table.Shadowed() {
		logger.Warn(map[string]any{"suffix": s.Entry.Suffix, "shadowed_by": s.By.Suffix}, "extension entry is unreachable")
	}
	logger.Info(map[string]any{"entries": table.Len(), "file": path}, "Extension table loaded")
	return table, nil
}

// buildBlocklist opens the configured store behind the cache and bloom layers.
// A store that fails to open degrades to an empty in-memory list.
func buildBlocklist(cfg config.BlocklistConfig, logger log.Logger) (*blocklist.Repository, error) {
	var (
		store blocklist.Store
		err   error
	)
	switch cfg.Backend {
	case "bolt":
		store, err = bolt.New(cfg.Path)
	case "memory":
		store = memory.New()
	default:
		store, err = file.Open(cfg.Path, logger)
	}
	if err != nil {
		logger.Error(map[string]any{"backend": cfg.Backend, "path": cfg.Path, "error": err}, "blocklist store unavailable, using empty in-memory list")
		store = memory.New()
	}

	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	repo, err := blocklist.NewRepository(blocklist.Options{
		Store:   store,
		Cache:   cache,
		Factory: bloom.NewFactory(),
		FPRate:  cfg.FPRate,
		Logger:  logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	logger.Info(map[string]any{"backend": cfg.Backend, "entries": repo.Stats().Entries}, "Blocklist initialized")
	return repo, nil
}

// Run serves the API and, when enabled, the DNS filter until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	defer func() {
		if err := app.blocklist.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error closing blocklist store")
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.api.Start(ctx) })
	if app.dnsfilter != nil {
		g.Go(func() error { return app.dnsfilter.Start(ctx) })
	}
	return g.Wait()
}

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
)

const (
	defaultMaxBatch   = 100
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second

	apiPrefix = "/api/v1"
)

// Server is the JSON HTTP front end of the classifier.
type Server struct {
	addr       string
	classifier Classifier
	blocklist  Blocklist
	detections Detections
	reports    Reports
	tokenHash  string
	batchLimit int
	maxBatch   int
	limiter    *clientLimiter
	logger     log.Logger
	router     *mux.Router
	ready      atomic.Bool
	boundAddr  atomic.Value
}

// Options configures a Server.
type Options struct {
	Addr       string
	Classifier Classifier
	Blocklist  Blocklist
	Detections Detections
	Reports    Reports
	// TokenHash is the bcrypt hash of the admin bearer token; empty disables admin routes.
	TokenHash string
	// RateLimit is requests per second per client on classify routes; 0 disables limiting.
	RateLimit  float64
	Burst      int
	BatchLimit int
	MaxBatch   int
	Logger     log.Logger
}

// NewServer validates opts and builds the router.
func NewServer(opts Options) (*Server, error) {
	if opts.Classifier == nil || opts.Blocklist == nil || opts.Detections == nil || opts.Reports == nil {
		return nil, fmt.Errorf("api: classifier, blocklist, detections and reports are required")
	}
	if opts.MaxBatch <= 0 {
		opts.MaxBatch = defaultMaxBatch
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	limiter, err := newClientLimiter(opts.RateLimit, opts.Burst)
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:       opts.Addr,
		classifier: opts.Classifier,
		blocklist:  opts.Blocklist,
		detections: opts.Detections,
		reports:    opts.Reports,
		tokenHash:  opts.TokenHash,
		batchLimit: opts.BatchLimit,
		maxBatch:   opts.MaxBatch,
		limiter:    limiter,
		logger:     opts.Logger,
	}
	s.router = s.routes()
	return s, nil
}

// routes registers every route on the root router with its full path. Routes on
// subrouters share a copied prefix matcher that resets method mismatches, turning
// 405 answers into 404.
func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.Handle(apiPrefix+"/classify", s.limiter.middleware(http.HandlerFunc(s.handleClassify))).Methods(http.MethodPost)
	r.Handle(apiPrefix+"/classify/batch", s.limiter.middleware(http.HandlerFunc(s.handleClassifyBatch))).Methods(http.MethodPost)

	r.HandleFunc(apiPrefix+"/reports", s.handleSubmitReport).Methods(http.MethodPost)
	r.HandleFunc(apiPrefix+"/detections", s.handleListDetections).Methods(http.MethodGet)
	r.HandleFunc(apiPrefix+"/stats", s.handleStats).Methods(http.MethodGet)

	admin := func(h http.HandlerFunc) http.Handler { return s.requireAdmin(h) }
	r.Handle(apiPrefix+"/admin/blocklist", admin(s.handleListBlocklist)).Methods(http.MethodGet)
	r.Handle(apiPrefix+"/admin/blocklist", admin(s.handleBlock)).Methods(http.MethodPost)
	r.Handle(apiPrefix+"/admin/blocklist/{domain}", admin(s.handleUnblock)).Methods(http.MethodDelete)
	r.Handle(apiPrefix+"/admin/reports", admin(s.handleListReports)).Methods(http.MethodGet)

	r.Use(s.logRequests)
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the bound listen address once Start is serving, or the configured one.
func (s *Server) Addr() string {
	if a, ok := s.boundAddr.Load().(string); ok {
		return a
	}
	return s.addr
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", s.addr, err)
	}
	s.boundAddr.Store(ln.Addr().String())

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.ready.Store(true)
	s.logger.Info(map[string]any{"addr": ln.Addr().String()}, "http api listening")

	select {
	case err := <-errCh:
		s.ready.Store(false)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	s.logger.Info(nil, "http api stopped")
	return nil
}

package dnsfilter

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/miekg/dns"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
)

// Server is the UDP DNS filter listener.
type Server struct {
	addr      string
	handler   dns.Handler
	logger    log.Logger
	boundAddr atomic.Value
}

// NewServer creates a Server listening on addr once started.
func NewServer(addr string, handler dns.Handler, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Server{addr: addr, handler: handler, logger: logger}
}

// Addr returns the bound address while serving, or the configured one.
func (s *Server) Addr() string {
	if a, ok := s.boundAddr.Load().(string); ok {
		return a
	}
	return s.addr
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("dnsfilter: listen on %s: %w", s.addr, err)
	}
	s.boundAddr.Store(pc.LocalAddr().String())

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: s.handler, NotifyStartedFunc: func() { close(started) }}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ActivateAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("dnsfilter: serve: %w", err)
	case <-started:
	}
	s.logger.Info(map[string]any{"addr": pc.LocalAddr().String()}, "dns filter listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("dnsfilter: serve: %w", err)
	case <-ctx.Done():
	}
	if err := srv.Shutdown(); err != nil {
		return fmt.Errorf("dnsfilter: shutdown: %w", err)
	}
	s.logger.Info(nil, "dns filter stopped")
	return nil
}

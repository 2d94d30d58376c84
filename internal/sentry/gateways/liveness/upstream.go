package liveness

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
)

// ExchangeFunc sends m to server and returns the reply.
type ExchangeFunc func(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error)

// UpstreamChecker decides liveness by asking configured DNS servers for an A record.
type UpstreamChecker struct {
	servers  []string
	timeout  time.Duration
	exchange ExchangeFunc
	logger   log.Logger
}

// UpstreamOptions configures an UpstreamChecker.
type UpstreamOptions struct {
	// Servers are "ip:port" addresses, tried in order.
	Servers []string
	Timeout time.Duration
	Logger  log.Logger
	// Exchange is injectable for tests; defaults to a UDP dns.Client.
	Exchange ExchangeFunc
}

// NewUpstream creates an UpstreamChecker. It returns an error if no servers are given
// or a server address is not host:port.
func NewUpstream(opts UpstreamOptions) (*UpstreamChecker, error) {
	if len(opts.Servers) == 0 {
		return nil, fmt.Errorf("no upstream DNS servers provided")
	}
	for _, s := range opts.Servers {
		if _, _, err := net.SplitHostPort(s); err != nil {
			return nil, fmt.Errorf("invalid upstream server %q: %w", s, err)
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.Exchange == nil {
		client := &dns.Client{Net: "udp", Timeout: opts.Timeout}
		opts.Exchange = func(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error) {
			resp, _, err := client.ExchangeContext(ctx, m, server)
			return resp, err
		}
	}
	return &UpstreamChecker{
		servers:  opts.Servers,
		timeout:  opts.Timeout,
		exchange: opts.Exchange,
		logger:   opts.Logger,
	}, nil
}

// IsLive reports whether host has an A record. The first server to answer decides;
// servers that fail at the transport level are skipped while the deadline allows.
func (c *UpstreamChecker) IsLive(ctx context.Context, host string) bool {
	name, ok := normalizeHost(host)
	if !ok {
		c.logger.Debug(map[string]any{"host": host}, "liveness: unresolvable host")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.RecursionDesired = true

	for _, server := range c.servers {
		if ctx.Err() != nil {
			break
		}
		resp, err := c.exchange(ctx, m, server)
		if err != nil || resp == nil {
			c.logger.Debug(map[string]any{"host": name, "server": server, "error": err}, "liveness: upstream exchange failed")
			continue
		}
		return resp.Rcode == dns.RcodeSuccess && hasA(resp)
	}
	return false
}

func hasA(resp *dns.Msg) bool {
	for _, rr := range resp.Answer {
		if _, ok := rr.(*dns.A); ok {
			return true
		}
	}
	return false
}

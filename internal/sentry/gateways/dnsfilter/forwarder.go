package dnsfilter

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"
)

// ExchangeFunc sends m to server and returns the reply.
type ExchangeFunc func(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error)

// Forwarder relays queries to upstream resolvers, trying them in order.
type Forwarder struct {
	servers  []string
	timeout  time.Duration
	exchange ExchangeFunc
}

// NewForwarder creates a Forwarder over servers ("ip:port"). exchange may be nil,
// in which case a UDP dns.Client is used.
func NewForwarder(servers []string, timeout time.Duration, exchange ExchangeFunc) (*Forwarder, error) {
	if len(servers) == 0 {
		return nil, fmt.Errorf("no upstream DNS servers provided")
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if exchange == nil {
		client := &dns.Client{Net: "udp", Timeout: timeout}
		exchange = func(ctx context.Context, m *dns.Msg, server string) (*dns.Msg, error) {
			resp, _, err := client.ExchangeContext(ctx, m, server)
			return resp, err
		}
	}
	return &Forwarder{servers: servers, timeout: timeout, exchange: exchange}, nil
}

// Forward returns the first upstream reply to m.
func (f *Forwarder) Forward(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var lastErr error
	for _, server := range f.servers {
		resp, err := f.exchange(ctx, m, server)
		if err == nil && resp != nil {
			return resp, nil
		}
		if err == nil {
			err = fmt.Errorf("empty reply")
		}
		lastErr = fmt.Errorf("server %s: %w", server, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("all %d upstream servers failed: %w", len(f.servers), lastErr)
}

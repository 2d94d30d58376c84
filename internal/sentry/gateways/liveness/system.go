package liveness

import (
	"context"
	"net"
	"time"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
)

// LookupFunc resolves host to its addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// lookupIPv4 resolves host to its IPv4 addresses with the system resolver.
func lookupIPv4(ctx context.Context, host string) ([]string, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, ip.String())
	}
	return addrs, nil
}

// SystemChecker decides liveness with the operating system resolver.
type SystemChecker struct {
	timeout time.Duration
	lookup  LookupFunc
	logger  log.Logger
}

// SystemOptions configures a SystemChecker.
type SystemOptions struct {
	Timeout time.Duration
	Logger  log.Logger
	// Lookup is injectable for tests; defaults to an IPv4-only system lookup.
	Lookup LookupFunc
}

// NewSystem creates a SystemChecker. A non-positive timeout falls back to DefaultTimeout.
func NewSystem(opts SystemOptions) *SystemChecker {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Lookup == nil {
		opts.Lookup = lookupIPv4
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &SystemChecker{timeout: opts.Timeout, lookup: opts.Lookup, logger: opts.Logger}
}

// IsLive reports whether host resolves to at least one IPv4 address within the timeout.
// Every failure is reported as false; there are no retries.
func (c *SystemChecker) IsLive(ctx context.Context, host string) bool {
	name, ok := normalizeHost(host)
	if !ok {
		c.logger.Debug(map[string]any{"host": host}, "liveness: unresolvable host")
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addrs, err := c.lookup(ctx, name)
	if err != nil {
		c.logger.Debug(map[string]any{"host": name, "error": err}, "liveness: lookup failed")
		return false
	}
	return len(addrs) > 0
}

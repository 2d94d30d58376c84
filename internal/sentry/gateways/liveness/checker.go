package liveness

import (
	"context"
	"fmt"
	"time"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
)

// Mode selects the resolution strategy.
type Mode string

const (
	ModeSystem   Mode = "system"
	ModeUpstream Mode = "upstream"
)

// Checker reports whether a host currently resolves.
type Checker interface {
	IsLive(ctx context.Context, host string) bool
}

// New creates the Checker for mode. servers is only used by ModeUpstream.
func New(mode Mode, timeout time.Duration, servers []string, logger log.Logger) (Checker, error) {
	switch mode {
	case ModeSystem, "":
		return NewSystem(SystemOptions{Timeout: timeout, Logger: logger}), nil
	case ModeUpstream:
		return NewUpstream(UpstreamOptions{Servers: servers, Timeout: timeout, Logger: logger})
	default:
		return nil, fmt.Errorf("unsupported liveness mode: %s", mode)
	}
}

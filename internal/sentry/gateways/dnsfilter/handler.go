package dnsfilter

import (
	"context"
	"strings"

	"github.com/miekg/dns"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
)

// Blocklist answers whether a name is blocked.
type Blocklist interface {
	Contains(name string) bool
}

// Upstream resolves queries that are not blocked.
type Upstream interface {
	Forward(ctx context.Context, m *dns.Msg) (*dns.Msg, error)
}

// Handler answers NXDOMAIN for blocklisted names and forwards everything else.
type Handler struct {
	blocklist Blocklist
	upstream  Upstream
	logger    log.Logger
}

// NewHandler creates a Handler.
func NewHandler(bl Blocklist, up Upstream, logger log.Logger) *Handler {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Handler{blocklist: bl, upstream: up, logger: logger}
}

// ServeDNS implements dns.Handler.
func (h *Handler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	if len(r.Question) != 1 {
		h.reply(w, r, dns.RcodeFormatError)
		return
	}
	name := strings.TrimSuffix(strings.ToLower(r.Question[0].Name), ".")

	if h.blocklist.Contains(name) {
		h.logger.Info(map[string]any{"name": name, "client": w.RemoteAddr().String()}, "dns query blocked")
		h.reply(w, r, dns.RcodeNameError)
		return
	}

	resp, err := h.upstream.Forward(context.Background(), r)
	if err != nil {
		h.logger.Warn(map[string]any{"name": name, "error": err}, "dns forward failed")
		h.reply(w, r, dns.RcodeServerFailure)
		return
	}
	resp.Id = r.Id
	if err := w.WriteMsg(resp); err != nil {
		h.logger.Debug(map[string]any{"name": name, "error": err}, "dns write failed")
	}
}

func (h *Handler) reply(w dns.ResponseWriter, r *dns.Msg, rcode int) {
	m := new(dns.Msg)
	m.SetRcode(r, rcode)
	m.RecursionAvailable = true
	if err := w.WriteMsg(m); err != nil {
		h.logger.Debug(map[string]any{"error": err}, "dns write failed")
	}
}

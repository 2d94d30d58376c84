package liveness

import (
	"strings"
	"time"

	"golang.org/x/net/idna"
)

// DefaultTimeout bounds a single liveness check when no timeout is configured.
const DefaultTimeout = 3 * time.Second

// normalizeHost reduces a domain as typed by a user to the ASCII form a resolver accepts.
// The input is the domain exactly as the blocklist keys it; userinfo or a port makes
// it unresolvable. ok is false when nothing resolvable remains and the caller reports
// such hosts as dead.
func normalizeHost(raw string) (string, bool) {
	host := strings.TrimRight(strings.ToLower(raw), ".")
	if host == "" || strings.ContainsAny(host, "@:/\\ \t\r\n") {
		return "", false
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil || ascii == "" {
		return "", false
	}
	return ascii, true
}

package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalDomain returns a domain in canonical form:
// - Lowercased
// - Trimmed of surrounding whitespace
// - No trailing dots
//
// Blocklist keys and lookups both go through this so comparisons are case-insensitive.
func CanonicalDomain(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// RegisteredDomain returns the eTLD+1 of name (e.g. "www.example.co.uk" -> "example.co.uk").
// Names the public suffix list cannot split are returned canonicalized but otherwise unchanged.
func RegisteredDomain(name string) string {
	name = CanonicalDomain(name)
	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return name
	}
	return apex
}

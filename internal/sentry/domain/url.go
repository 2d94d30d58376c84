package domain

import (
	"net"
	"strings"
	"unicode/utf8"
)

// ParsedURL is the permissive split of a raw URL string.
//
// Netloc is the authority after "//" (userinfo and port included, exactly as typed).
// Domain is Netloc, or Path when Netloc is empty, which lets bare inputs such as
// "example.com" be classified without a scheme.
type ParsedURL struct {
	Raw    string
	Scheme string
	Netloc string
	Path   string
	Domain string
}

// ParseURL splits raw into scheme, netloc and path. It never fails: input that is not
// a URL at all simply ends up in Path (and therefore Domain).
func ParseURL(raw string) ParsedURL {
	p := ParsedURL{Raw: raw}
	rest := raw

	if i := strings.IndexByte(rest, ':'); i > 0 && isSchemeToken(rest[:i]) {
		p.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexAny(rest, "/?#")
		if end < 0 {
			end = len(rest)
		}
		p.Netloc = rest[:end]
		rest = rest[end:]
	}

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		rest = rest[:i]
	}
	p.Path = rest

	p.Domain = p.Netloc
	if p.Domain == "" {
		p.Domain = p.Path
	}
	return p
}

// ValidFormat is the coarse syntactic sanity check applied before classification:
// the domain must contain a dot and be longer than three characters.
func (p ParsedURL) ValidFormat() bool {
	return strings.Contains(p.Domain, ".") && utf8.RuneCountInString(p.Domain) > 3
}

// Hostname returns Domain without userinfo, port, IPv6 brackets or trailing dots.
// It is the form handed to resolvers; blocklist and suffix matching use Domain as is.
func (p ParsedURL) Hostname() string {
	return HostOnly(p.Domain)
}

// HostOnly strips userinfo, port, IPv6 brackets and trailing dots from an authority string.
func HostOnly(authority string) string {
	host := strings.TrimSpace(authority)
	if at := strings.LastIndexByte(host, '@'); at >= 0 {
		host = host[at+1:]
	}
	if strings.Contains(host, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
	}
	if len(host) > 2 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	return strings.TrimRight(host, ".")
}

// isSchemeToken reports whether s is a valid URL scheme: an ASCII letter followed by
// letters, digits, '+', '-' or '.'.
func isSchemeToken(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

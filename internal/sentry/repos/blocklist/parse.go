package blocklist

import (
	"bufio"
	"io"
	"strings"

	"github.com/haukened/url-sentry/internal/sentry/common/log"
	"github.com/haukened/url-sentry/internal/sentry/common/utils"
)

// ParseList parses a newline-delimited list of domains.
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line)
// - Trims surrounding whitespace, lowercases and removes trailing dots
// - Skips empty lines and names that fail ValidName
// - De-duplicates while preserving first-seen order
func ParseList(r io.Reader, logger log.Logger) ([]string, error) {
	scanner := bufio.NewScanner(r)
	seen := make(map[string]struct{})
	out := make([]string, 0, 64)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		name := utils.CanonicalDomain(line)
		if !ValidName(name) {
			logger.Debug(map[string]any{"line": lineNum, "raw": line}, "skip_invalid_domain")
			continue
		}
		if _, ok := seen[name]; ok {
			logger.Debug(map[string]any{"line": lineNum, "name": name}, "skip_duplicate")
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidName reports whether name may be stored as a blocklist key.
// It enforces the following rules:
//   - The total length must not exceed 255 characters.
//   - No whitespace.
//   - At least two labels, each 1-63 characters long.
//   - The first label starts with a letter, digit or wildcard.
func ValidName(name string) bool {
	if name == "" || len(name) > 255 || strings.ContainsAny(name, " \t\r\n") {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
	}
	c := labels[0][0]
	return c == '*' || c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c >= 0x80
}

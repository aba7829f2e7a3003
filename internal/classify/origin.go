// Package classify implements the origin, path, safety, and iCal
// classifiers that gate every incoming request before it is forwarded
// upstream.
package classify

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseAllowedOrigins splits a comma-separated configuration string into
// trimmed, non-empty origin entries. Pure.
func ParseAllowedOrigins(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidateAllowedOrigins parses every entry as an absolute URL and rejects
// anything that is not a bare scheme+host+port origin. Called once at
// start-up; a non-nil error is fatal to the process.
func ValidateAllowedOrigins(list []string) error {
	for _, entry := range list {
		u, err := url.Parse(entry)
		if err != nil {
			return fmt.Errorf("allowed origin %q: %w", entry, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("allowed origin %q: scheme must be http or https", entry)
		}
		if u.Path != "" && u.Path != "/" {
			return fmt.Errorf("allowed origin %q: must not carry a path", entry)
		}
		if u.RawQuery != "" {
			return fmt.Errorf("allowed origin %q: must not carry a query", entry)
		}
		if u.Fragment != "" {
			return fmt.Errorf("allowed origin %q: must not carry a fragment", entry)
		}
	}
	return nil
}

// normalizeOrigin lowercases and strips one trailing slash.
func normalizeOrigin(o string) string {
	o = strings.ToLower(strings.TrimSpace(o))
	return strings.TrimSuffix(o, "/")
}

// IsAllowedOrigin reports whether origin, after trailing-slash stripping
// and case folding, matches an entry in list similarly normalized.
func IsAllowedOrigin(origin string, list []string) bool {
	if origin == "" {
		return false
	}
	want := normalizeOrigin(origin)
	for _, entry := range list {
		if normalizeOrigin(entry) == want {
			return true
		}
	}
	return false
}

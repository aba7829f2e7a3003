package transform

import "strings"

// RewriteCookie normalizes a single Set-Cookie value for cross-site
// Partitioned delivery: any Domain attribute is removed, any standalone
// Secure/SameSite/Partitioned attribute is removed, and a single
// "SameSite=None; Secure; Partitioned" trailer is appended. HttpOnly,
// Path, Expires, Max-Age, and the cookie name/value are preserved
// verbatim and in their original order. Idempotent.
func RewriteCookie(c string) string {
	parts := strings.Split(c, ";")
	kept := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		lower := strings.ToLower(trimmed)

		switch {
		case strings.HasPrefix(lower, "domain="):
			continue
		case lower == "secure":
			continue
		case strings.HasPrefix(lower, "samesite="):
			continue
		case lower == "partitioned":
			continue
		default:
			kept = append(kept, trimmed)
		}
	}

	kept = append(kept, "SameSite=None", "Secure", "Partitioned")
	return strings.Join(kept, "; ")
}

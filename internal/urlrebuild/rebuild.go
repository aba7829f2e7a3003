// Package urlrebuild reconstructs the upstream-bound URL by string-slicing
// the original request line rather than round-tripping it through
// net/url. The upstream's path grammar uses percent-encoded backslashes
// (%5c) as a namespace separator; parsing and re-stringifying a URL
// normalizes that escape and breaks the upstream route, so every
// operation here works on raw strings.
package urlrebuild

import "strings"

// ExtractRawPathAndSearch returns the path+query portion of a raw
// request-target string unchanged. It exists as a named seam so callers
// never reach for net/url when they mean to preserve raw encoding;
// idempotent and never re-encodes %5c/%5C.
func ExtractRawPathAndSearch(rawRequestTarget string) string {
	return rawRequestTarget
}

// BuildUpstreamURL prepends targetHost to the raw path+query, inserting
// the literal "/api" segment immediately after matchedPrefix when
// needsAPIPrefix is true. rawPathAndSearch must be the unparsed
// request-target (e.g. *http.Request.RequestURI on the server side).
func BuildUpstreamURL(targetHost, rawPathAndSearch, matchedPrefix string, needsAPIPrefix bool) string {
	path := ExtractRawPathAndSearch(rawPathAndSearch)

	if needsAPIPrefix && matchedPrefix != "" && strings.HasPrefix(path, matchedPrefix) {
		rest := path[len(matchedPrefix):]
		path = matchedPrefix + "/api" + rest
	}

	host := strings.TrimSuffix(targetHost, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return host + path
}

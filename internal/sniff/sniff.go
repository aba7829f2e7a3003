// Package sniff decides, from a response's status/headers/body sample,
// whether content is static or dynamic and whether the upstream just
// reported a session anomaly, a failed login, or a successful login.
//
// The functions here accept a small capability interface rather than a
// concrete *http.Response so the pure classification logic never depends
// on the transport layer.
package sniff

import "strings"

// Response exposes the minimal surface the sniffers need from an
// upstream HTTP response.
type Response interface {
	// StatusCode returns the HTTP status code.
	StatusCode() int
	// HeaderGet returns the first value of the named header, or "".
	HeaderGet(name string) string
	// HeaderValues returns every value of the named header, in order
	// (used for Set-Cookie, which may repeat).
	HeaderValues(name string) []string
}

// sessionCookieName is the upstream-issued cookie whose presence
// indicates a logged-in session.
const sessionCookieName = "neos_session"

// loginErrorIndicators are substrings the upstream's rejected-credentials
// page emits (the error banner's CSS class and inline color markers).
var loginErrorIndicators = []string{
	"ui-state-error",
	"class=\"loginerror\"",
	"color:#cc0000",
	"color: #cc0000",
}

// IsDynamicContent reports whether contentType should bypass caching:
// exactly an empty contentType, text/html, application/json, or
// application/x-www-form-urlencoded. Everything else, known or not, is
// treated as static.
func IsDynamicContent(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}
	switch ct {
	case "", "text/html", "application/json", "application/x-www-form-urlencoded":
		return true
	}
	return false
}

func locationLooksLikeAuth(location string) bool {
	loc := strings.ToLower(location)
	return strings.Contains(loc, "/login") || strings.HasSuffix(loc, "/") || strings.Contains(loc, "authentication")
}

func bodyLooksLikeLoginForm(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, `name="username"`) &&
		strings.Contains(lower, `name="password"`) &&
		strings.Contains(lower, "login")
}

// DetectSessionIssue reports a possible session anomaly: a redirect
// toward the login/authentication surface, a 401/403, or a body that
// looks like a re-rendered login form.
func DetectSessionIssue(resp Response, body []byte) bool {
	status := resp.StatusCode()
	if status >= 300 && status < 400 {
		if locationLooksLikeAuth(resp.HeaderGet("Location")) {
			return true
		}
	}
	if status == 401 || status == 403 {
		return true
	}
	if len(body) > 0 && bodyLooksLikeLoginForm(body) {
		return true
	}
	return false
}

// IsFailedLoginResponse is DetectSessionIssue plus a check for the
// upstream's rejected-credentials error markers.
func IsFailedLoginResponse(resp Response, body []byte) bool {
	if DetectSessionIssue(resp, body) {
		return true
	}
	if len(body) == 0 {
		return false
	}
	lower := strings.ToLower(string(body))
	for _, indicator := range loginErrorIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// IsSuccessfulLoginResponse reports whether resp indicates a login that
// succeeded: a Set-Cookie carrying the session cookie, or a redirect away
// from the login/authentication surface (and not to a bare host root).
func IsSuccessfulLoginResponse(resp Response) bool {
	for _, cookie := range resp.HeaderValues("Set-Cookie") {
		if strings.Contains(strings.ToLower(cookie), sessionCookieName) {
			return true
		}
	}

	status := resp.StatusCode()
	if status >= 300 && status < 400 {
		location := resp.HeaderGet("Location")
		if location == "" {
			return false
		}
		if locationLooksLikeAuth(location) {
			return false
		}
		return true
	}

	return false
}

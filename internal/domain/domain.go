// Package domain holds the plain data shapes shared across the proxy
// pipeline. Nothing here carries upstream identity — authorization beyond
// IP throttling and allow-listing is the upstream's concern.
package domain

import "net/http"

// RequestContext is the ephemeral, per-invocation view of a client
// request as it is forwarded upstream. RawURL is the upstream URL as a
// plain string (not a parsed *url.URL), built from the raw request-target
// so percent-encoding is preserved; Header and Body are the prepared
// upstream headers and the (possibly transformed) body.
type RequestContext struct {
	ClientIP   string
	Origin     string
	RawURL     string
	Method     string
	Header     http.Header
	Body       []byte
}

// ResponseContext is the ephemeral view of the upstream response as it
// passes through sniffing and rewriting.
type ResponseContext struct {
	StatusCode int
	Header     http.Header
	BodySample []byte
	SetCookies []string
}

// LockoutRecord is the per-IP authentication lockout state, persisted in
// the KV store under the key "auth:lockout:<ip>" with a one-hour absolute
// TTL.
type LockoutRecord struct {
	FailedAttempts int    `json:"failedAttempts"`
	FirstAttemptAt int64  `json:"firstAttemptAt"`
	LockedUntil    *int64 `json:"lockedUntil"`
	LockoutCount   int    `json:"lockoutCount"`
}

// LockoutStatus is the read-side view returned to callers deciding whether
// to admit or reject a request.
type LockoutStatus struct {
	Locked            bool
	LockedUntil       *int64
	RemainingSeconds  int
	FailedAttempts    int
	AttemptsRemaining int
}

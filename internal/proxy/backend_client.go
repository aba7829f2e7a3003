// Package proxy orchestrates the request pipeline: origin/path/safety/
// rate-limit/lockout gates, request reshaping, the upstream fetch, and
// response rewriting.
package proxy

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"time"
)

// userAgent is the fixed identifier substituted for the client's own
// User-Agent on every upstream request.
const userAgent = "VolleyKit/1.0 (PWA; https://volleykit.app)"

// BackendClient forwards requests to the upstream sport-management
// application. Redirects are never followed automatically — the pipeline
// inspects 3xx responses itself to sniff login outcomes.
type BackendClient struct {
	targetHost string
	targetAuth string
	httpClient *http.Client
}

// NewBackendClient creates a client bound to targetHost (an absolute URL,
// e.g. "https://upstream.example.org").
func NewBackendClient(targetHost string, timeout time.Duration) (*BackendClient, error) {
	parsed, err := url.Parse(targetHost)
	if err != nil {
		return nil, err
	}
	return &BackendClient{
		targetHost: targetHost,
		targetAuth: parsed.Host,
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// TargetHost returns the configured upstream base URL.
func (c *BackendClient) TargetHost() string {
	return c.targetHost
}

// Forward issues method against upstreamURL carrying header and body,
// replacing the Host authority with the upstream's and the User-Agent
// with the fixed VolleyKit identifier. Cookies and every other
// application header pass through verbatim.
func (c *BackendClient) Forward(ctx context.Context, method, upstreamURL string, header http.Header, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, upstreamURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header = header.Clone()
	req.Header.Del("Host")
	req.Header.Set("User-Agent", userAgent)
	req.Host = c.targetAuth

	return c.httpClient.Do(req)
}

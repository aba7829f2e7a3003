package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"volleykit-proxy/internal/apierror"
	"volleykit-proxy/internal/classify"
	"volleykit-proxy/internal/dedup"
	"volleykit-proxy/internal/domain"
	"volleykit-proxy/internal/lockout"
	"volleykit-proxy/internal/resilience"
	"volleykit-proxy/internal/sniff"
	"volleykit-proxy/internal/transform"
	"volleykit-proxy/internal/urlrebuild"
)

const (
	clientIPHeader = "CF-Connecting-IP"
	icalTargetPath = "/indoor/iCal/referee/"
)

// Config holds the pipeline's static policy, fixed once at start-up.
type Config struct {
	AllowedOrigins   []string
	TargetHost       string
	KillSwitch       bool
	MistralOCRAPIKey string
}

// StoreHealth is implemented by the lockout store backing this pipeline's
// engine, used only to report liveness on /health.
type StoreHealth interface {
	Ping(ctx context.Context) error
}

// Pipeline is the single composed request handler described by the
// component table: classifiers, transforms, sniffers, and the lockout
// engine, wired around one upstream fetch per request.
type Pipeline struct {
	cfg       Config
	client    *BackendClient
	limiter   Limiter
	engine    *lockout.Engine
	store     StoreHealth
	breaker   *resilience.CircuitBreaker
	coalescer *dedup.Coalescer
	logger    *slog.Logger
}

// Limiter is the capability the pipeline needs from a rate limiter; it
// lets the rate-limit gate be skipped entirely (spec: "if a limiter is
// configured") by passing a nil Limiter.
type Limiter interface {
	Allow(ip string) bool
	RetryAfterSeconds() string
}

// New creates a Pipeline. limiter may be nil to skip the rate-limit gate;
// store may be nil if lockout-store health shouldn't gate /health.
func New(cfg Config, client *BackendClient, limiter Limiter, engine *lockout.Engine, store StoreHealth, breaker *resilience.CircuitBreaker, coalescer *dedup.Coalescer, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		client:    client,
		limiter:   limiter,
		engine:    engine,
		store:     store,
		breaker:   breaker,
		coalescer: coalescer,
		logger:    logger,
	}
}

// ServeHTTP implements http.Handler.
func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathname := r.URL.Path
	requestID := uuid.NewString()
	w.Header().Set("X-Request-ID", requestID)

	// 1. robots.txt precedes the kill switch so crawler directives remain
	// honored during outages.
	if pathname == "/robots.txt" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "User-agent: *\nDisallow: /\n")
		return
	}

	// 2. Kill switch.
	if p.cfg.KillSwitch {
		w.Header().Set("Retry-After", "86400")
		writeJSON(w, http.StatusServiceUnavailable, apierror.KillSwitch(requestID))
		return
	}

	// 3. Health.
	if pathname == "/health" {
		p.serveHealth(w, r)
		return
	}

	origin := r.Header.Get("Origin")
	allowed := classify.IsAllowedOrigin(origin, p.cfg.AllowedOrigins)

	// 4. Origin gate.
	if !allowed {
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return
	}

	ip := clientIP(r)

	// 5. Rate-limit gate.
	if p.limiter != nil && !p.limiter.Allow(ip) {
		retryAfter := p.limiter.RetryAfterSeconds()
		w.Header().Set("Retry-After", retryAfter)
		seconds, _ := strconv.Atoi(retryAfter)
		writeJSON(w, http.StatusTooManyRequests, apierror.RateLimited(requestID, seconds))
		return
	}

	// 6. OPTIONS preflight.
	if r.Method == http.MethodOptions {
		p.writePreflight(w, origin)
		return
	}

	// 7. iCal routing.
	if code, ok := classify.ExtractICalCode(pathname); ok {
		p.serveICal(w, r, origin, code, requestID)
		return
	}

	// 8. Path safety + allow-list.
	if !classify.IsPathSafe(pathname) || !classify.IsAllowedPath(pathname) {
		http.Error(w, "Forbidden: Path not allowed", http.StatusForbidden)
		return
	}

	isAuth := lockout.IsAuthRequest(pathname, r.Method)

	// 9. Auth-lockout gate.
	if isAuth {
		status := p.engine.CheckLockoutStatus(r.Context(), ip, time.Now())
		if status.Locked {
			p.writeLockedOut(w, status)
			return
		}
	}

	// 10. Body preparation.
	var rawBody []byte
	if r.Body != nil {
		rawBody, _ = io.ReadAll(r.Body)
	}
	if isAuth && transform.HasAuthCredentials(string(rawBody)) {
		rawBody = []byte(transform.TransformAuthFormData(string(rawBody)))
	}

	// 11. URL rebuild, preserving raw percent-encoding.
	matchedPrefix := classify.MatchedPrefix(pathname)
	needsAPI := classify.RequiresAPIPrefix(pathname)
	// The unparsed request-target keeps the client's exact encoding;
	// r.URL.RequestURI() is only used for absolute-form or synthetic requests.
	rawTarget := r.RequestURI
	if !strings.HasPrefix(rawTarget, "/") {
		rawTarget = r.URL.RequestURI()
	}
	upstreamURL := urlrebuild.BuildUpstreamURL(p.cfg.TargetHost, rawTarget, matchedPrefix, needsAPI)

	reqCtx := domain.RequestContext{
		ClientIP: ip,
		Origin:   origin,
		RawURL:   upstreamURL,
		Method:   r.Method,
		Header:   prepareUpstreamHeaders(r.Header),
		Body:     rawBody,
	}

	// 13. Forward upstream.
	start := time.Now()
	resp, err := p.fetchUpstream(r.Context(), reqCtx.Method, reqCtx.RawURL, reqCtx.Header, reqCtx.Body)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("upstream fetch failed", "error", err, "path", pathname, "client_ip", reqCtx.ClientIP)
		}
		writeJSON(w, http.StatusBadGateway, apierror.BackendUnavailable(requestID))
		return
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	respBody, _ := io.ReadAll(resp.Body)
	respCtx := domain.ResponseContext{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		BodySample: respBody,
		SetCookies: resp.Header.Values("Set-Cookie"),
	}

	// 14-15. Sniff and rewrite.
	p.writeUpstreamResponse(w, respCtx, origin, latency)

	// 16. Lockout bookkeeping.
	if isAuth {
		view := httpResponseView{status: respCtx.StatusCode, header: respCtx.Header}
		if sniff.IsSuccessfulLoginResponse(view) {
			p.engine.ClearAuthLockout(context.Background(), ip)
		} else if sniff.IsFailedLoginResponse(view, respCtx.BodySample) {
			p.engine.RecordFailedAttempt(context.Background(), ip, time.Now())
		}
	}
}

// fetchUpstream gates the upstream fetch through the circuit breaker. A
// 5xx response counts as a failure just like a transport error, but
// (unlike resilience.Execute) is still returned to the caller so the
// real upstream response reaches the client instead of being replaced
// by a synthetic backend-unavailable body.
func (p *Pipeline) fetchUpstream(ctx context.Context, method, upstreamURL string, header http.Header, body []byte) (*http.Response, error) {
	if !p.breaker.Allow() {
		return nil, resilience.ErrCircuitOpen
	}

	resp, err := p.client.Forward(ctx, method, upstreamURL, header, body)
	if err != nil {
		p.breaker.RecordFailure()
		return nil, err
	}

	if resp.StatusCode >= 500 {
		p.breaker.RecordFailure()
	} else {
		p.breaker.RecordSuccess()
	}
	return resp, nil
}

func (p *Pipeline) serveICal(w http.ResponseWriter, r *http.Request, origin, code, requestID string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if !classify.IsValidICalCode(code) {
		http.Error(w, "Forbidden: invalid iCal code", http.StatusForbidden)
		return
	}

	upstreamURL := strings.TrimSuffix(p.cfg.TargetHost, "/") + icalTargetPath + code
	header := prepareUpstreamHeaders(r.Header)

	result, err := p.coalescer.Do(dedup.Key(r.Method, code), func() (*dedup.Result, error) {
		resp, err := p.fetchUpstream(r.Context(), r.Method, upstreamURL, header, nil)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		return &dedup.Result{Body: respBody, StatusCode: resp.StatusCode, Header: resp.Header.Clone()}, nil
	})
	if err != nil {
		if p.logger != nil {
			p.logger.Error("ical upstream fetch failed", "error", err, "code", code)
		}
		writeJSON(w, http.StatusBadGateway, apierror.BackendUnavailable(requestID))
		return
	}

	// iCal responses retain upstream's own (5-minute) cache policy: no
	// cache-busting is applied here.
	for k, v := range result.Header {
		for _, vv := range v {
			w.Header().Add(k, vv)
		}
	}
	echoCORS(w, origin)
	w.Header().Set("X-Proxy-Timestamp", proxyTimestamp(0))
	w.WriteHeader(result.StatusCode)
	if r.Method != http.MethodHead {
		w.Write(result.Body)
	}
}

func (p *Pipeline) serveHealth(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin != "" && !classify.IsAllowedOrigin(origin, p.cfg.AllowedOrigins) {
		http.Error(w, "Forbidden: Origin not allowed", http.StatusForbidden)
		return
	}
	echoCORS(w, origin)

	degraded := false
	services := map[string]string{"proxy": "ok"}

	if p.store != nil {
		if err := p.store.Ping(r.Context()); err != nil {
			services["lockout_store"] = "down"
			degraded = true
		} else {
			services["lockout_store"] = "ok"
		}
	}

	if p.cfg.MistralOCRAPIKey == "" {
		services["mistral_ocr"] = "unconfigured"
	} else {
		services["mistral_ocr"] = "ok"
	}

	status := "healthy"
	statusCode := http.StatusOK
	if degraded {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"status":   status,
		"services": services,
	})
}

func (p *Pipeline) writePreflight(w http.ResponseWriter, origin string) {
	echoCORS(w, origin)
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

// lockedOutBody is the 423 response shape: the client needs lockedUntil
// (epoch-ms, for an absolute countdown) and remainingSeconds (for a
// plain Retry-After-style message).
type lockedOutBody struct {
	Code             string `json:"code"`
	Error            string `json:"error"`
	LockedUntil      *int64 `json:"lockedUntil"`
	RemainingSeconds int    `json:"remainingSeconds"`
}

func (p *Pipeline) writeLockedOut(w http.ResponseWriter, status domain.LockoutStatus) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", status.RemainingSeconds))
	w.WriteHeader(http.StatusLocked)
	json.NewEncoder(w).Encode(lockedOutBody{
		Code:             apierror.CodeLockedOut,
		Error:            "Account temporarily locked due to repeated failed login attempts",
		LockedUntil:      status.LockedUntil,
		RemainingSeconds: status.RemainingSeconds,
	})
}

func (p *Pipeline) writeUpstreamResponse(w http.ResponseWriter, resp domain.ResponseContext, origin string, latency time.Duration) {
	for _, cookie := range resp.SetCookies {
		w.Header().Add("Set-Cookie", transform.RewriteCookie(cookie))
	}

	contentType := resp.Header.Get("Content-Type")
	for k, v := range resp.Header {
		if k == "Set-Cookie" {
			continue
		}
		for _, vv := range v {
			w.Header().Add(k, vv)
		}
	}

	if sniff.IsDynamicContent(contentType) {
		w.Header().Del("ETag")
		w.Header().Del("Last-Modified")
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
	}

	view := httpResponseView{status: resp.StatusCode, header: resp.Header}
	if sniff.DetectSessionIssue(view, resp.BodySample) {
		w.Header().Set("X-Proxy-Session-Warning", "potential-session-issue")
	}

	w.Header().Set("X-Proxy-Timestamp", proxyTimestamp(latency))
	echoCORS(w, origin)

	w.WriteHeader(resp.StatusCode)
	w.Write(resp.BodySample)
}

func proxyTimestamp(latency time.Duration) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	return fmt.Sprintf("%s; latency=%dms", ts, latency.Milliseconds())
}

func echoCORS(w http.ResponseWriter, origin string) {
	if origin == "" {
		return
	}
	w.Header().Set("Access-Control-Allow-Origin", origin)
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Vary", "Origin")
}

func prepareUpstreamHeaders(incoming http.Header) http.Header {
	out := incoming.Clone()
	out.Del("Host")
	return out
}

func clientIP(r *http.Request) string {
	if v := r.Header.Get(clientIPHeader); v != "" {
		return v
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		return strings.TrimSpace(strings.Split(v, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, statusCode int, body *apierror.Normalized) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	data, _ := body.ToJSON()
	w.Write(data)
}

// httpResponseView adapts *http.Response to sniff.Response.
type httpResponseView struct {
	status int
	header http.Header
}

func (v httpResponseView) StatusCode() int                   { return v.status }
func (v httpResponseView) HeaderGet(name string) string      { return v.header.Get(name) }
func (v httpResponseView) HeaderValues(name string) []string { return v.header.Values(name) }

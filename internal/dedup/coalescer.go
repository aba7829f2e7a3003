// Package dedup coalesces concurrent identical iCal fetches so a burst of
// simultaneous callers for the same referee calendar code triggers a
// single upstream request.
package dedup

import (
	"net/http"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Result holds the outcome of a coalesced upstream fetch.
type Result struct {
	Body       []byte
	StatusCode int
	Header     http.Header
}

// clone returns a deep copy so concurrent waiters never share mutable
// state with each other or the original caller.
func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	body := make([]byte, len(r.Body))
	copy(body, r.Body)
	header := make(http.Header, len(r.Header))
	for k, v := range r.Header {
		header[k] = append([]string{}, v...)
	}
	return &Result{Body: body, StatusCode: r.StatusCode, Header: header}
}

// Coalescer deduplicates concurrent calls sharing the same key.
type Coalescer struct {
	group    singleflight.Group
	inFlight atomic.Int64
}

// New creates a Coalescer.
func New() *Coalescer {
	return &Coalescer{}
}

// Do executes fn, sharing the in-flight call and its result with any
// other caller that arrives with the same key before fn returns. Every
// caller, including concurrent waiters, receives its own copy of the
// result.
func (c *Coalescer) Do(key string, fn func() (*Result, error)) (*Result, error) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	result, _ := v.(*Result)
	return result.clone(), nil
}

// InFlight reports the number of callers currently waiting on a Do call,
// including the one driving each distinct in-flight key.
func (c *Coalescer) InFlight() int64 {
	return c.inFlight.Load()
}

// Key builds a coalescing key for an iCal GET/HEAD request.
func Key(method, code string) string {
	return method + ":" + code
}

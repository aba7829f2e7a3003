package dedup

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoalescer_CoalescesConcurrentCalls(t *testing.T) {
	c := New()
	var calls atomic.Int64
	release := make(chan struct{})

	fn := func() (*Result, error) {
		calls.Add(1)
		<-release
		return &Result{Body: []byte("ok"), StatusCode: 200, Header: http.Header{}}, nil
	}

	var wg sync.WaitGroup
	results := make([]*Result, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			r, err := c.Do("same-key", fn)
			require.NoError(t, err)
			results[idx] = r
		}(i)
	}

	// Hold the first call open until every caller has joined it.
	for c.InFlight() < 10 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "ok", string(r.Body))
	}
}

func TestCoalescer_ResultsAreIndependentCopies(t *testing.T) {
	c := New()
	r1, err := c.Do("key", func() (*Result, error) {
		return &Result{Body: []byte("shared"), Header: http.Header{"X": {"1"}}}, nil
	})
	require.NoError(t, err)

	r1.Body[0] = 'S'
	r1.Header.Set("X", "mutated")

	r2, err := c.Do("key", func() (*Result, error) {
		return &Result{Body: []byte("shared"), Header: http.Header{"X": {"1"}}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "shared", string(r2.Body))
	assert.Equal(t, "1", r2.Header.Get("X"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "GET:Ab3dE9", Key("GET", "Ab3dE9"))
}

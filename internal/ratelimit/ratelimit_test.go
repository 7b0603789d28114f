package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keithlinneman/docserve/internal/httpmw"
)

// fakeClock is safe for concurrent use
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, opts ...Option) (*IPLimiter, *fakeClock) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	withClock := func(l *IPLimiter) { l.now = clk.Now }
	all := append([]Option{WithRate(1, 3), WithTTL(time.Minute), withClock}, opts...)
	return New(ctx, all...), clk
}

func TestAllow_BurstThenRefill(t *testing.T) {
	l, clk := newTestLimiter(t)

	for i := 0; i < 3; i++ {
		if !l.allow("10.0.0.1") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if l.allow("10.0.0.1") {
		t.Fatal("request over burst allowed")
	}

	clk.Advance(time.Second)
	if !l.allow("10.0.0.1") {
		t.Fatal("token should have refilled after 1s")
	}
}

func TestAllow_SeparateBuckets(t *testing.T) {
	l, _ := newTestLimiter(t)
	for i := 0; i < 4; i++ {
		l.allow("10.0.0.1")
	}
	if !l.allow("10.0.0.2") {
		t.Fatal("second IP should have its own bucket")
	}
}

func TestHooks(t *testing.T) {
	var first, every atomic.Int32
	l, _ := newTestLimiter(t,
		WithRate(1, 1),
		WithOnFirstDenied(func(string) { first.Add(1) }),
		WithOnDenied(func(string) { every.Add(1) }),
	)

	l.allow("10.0.0.1")
	for i := 0; i < 5; i++ {
		l.allow("10.0.0.1")
	}
	if first.Load() != 1 {
		t.Fatalf("first-denied = %d, want 1", first.Load())
	}
	if every.Load() != 5 {
		t.Fatalf("denied = %d, want 5", every.Load())
	}
}

func TestCapacity(t *testing.T) {
	var capHits, denied atomic.Int32
	l, _ := newTestLimiter(t,
		WithMaxVisitors(2),
		WithOnCapacity(func(string) { capHits.Add(1) }),
		WithOnDenied(func(string) { denied.Add(1) }),
	)

	if !l.allow("10.0.0.1") || !l.allow("10.0.0.2") {
		t.Fatal("first two IPs should be admitted")
	}
	if l.allow("10.0.0.3") {
		t.Fatal("third IP should be rejected while the table is full")
	}
	if !l.allow("10.0.0.1") {
		t.Fatal("known IP should still be served")
	}
	if capHits.Load() != 1 || denied.Load() != 1 {
		t.Fatalf("capacity=%d denied=%d", capHits.Load(), denied.Load())
	}
	if l.Len() != 2 {
		t.Fatalf("Len = %d, want 2", l.Len())
	}
}

func TestEvict(t *testing.T) {
	var first atomic.Int32
	l, clk := newTestLimiter(t, WithRate(1, 1), WithOnFirstDenied(func(string) { first.Add(1) }))

	l.allow("10.0.0.1")
	l.allow("10.0.0.1")
	clk.Advance(30 * time.Second)
	l.allow("10.0.0.2")

	clk.Advance(45 * time.Second)
	if n := l.evict(clk.Now()); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Fatalf("Len = %d, want 1", l.Len())
	}

	// a re-created entry logs its first denial again
	l.allow("10.0.0.1")
	l.allow("10.0.0.1")
	if first.Load() != 2 {
		t.Fatalf("first-denied = %d, want 2", first.Load())
	}
}

func TestMiddleware(t *testing.T) {
	l, _ := newTestLimiter(t, WithRate(1, 2))
	calls := 0
	h := httpmw.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"msg":"hi"}`))
	}), httpmw.ClientIP, l.Middleware)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/hello.json", http.NoBody)
		req.RemoteAddr = "198.51.100.8:4000"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if got := last.Header().Get("Retry-After"); got != "30" {
		t.Fatalf("Retry-After = %q", got)
	}
	if got := last.Body.String(); got != `{"error":"too many requests"}` {
		t.Fatalf("body = %q", got)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, WithRate(1, 10))
	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if l.allow(fmt.Sprintf("10.0.0.%d", i%2)) {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if ok.Load() != 20 {
		t.Fatalf("allowed = %d, want 20 (burst 10 per IP, two IPs)", ok.Load())
	}
}

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func serve(h http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/-/ready", nil))
	return rec
}

func TestHealthzHandler(t *testing.T) {
	rec := serve(HealthzHandler(Fixed(true, "")))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("healthy: %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(HealthzHandler(Fixed(false, "content root missing")))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "content root missing") {
		t.Fatalf("body = %q", rec.Body.String())
	}
}

func TestReadyzHandler_NilChecker(t *testing.T) {
	rec := serve(ReadyzHandler(nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ready\n" {
		t.Fatalf("nil check: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatal("check responses must not be cached")
	}
}

func TestReadyzHandler_PassesRequestContext(t *testing.T) {
	type key struct{}
	var seen any
	p := CheckFunc(func(ctx context.Context) error { seen = ctx.Value(key{}); return nil })

	req := httptest.NewRequest(http.MethodGet, "/-/ready", nil)
	req = req.WithContext(context.WithValue(req.Context(), key{}, "v"))
	ReadyzHandler(p).ServeHTTP(httptest.NewRecorder(), req)

	if seen != "v" {
		t.Fatalf("check saw %v", seen)
	}
}

package httpmw

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/docserve/internal/log"
)

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}

	rw.Write([]byte("[1,"))
	rw.Write([]byte("2,3]"))
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.status != http.StatusOK {
		t.Fatalf("status = %d, first write should fix it at 200", rw.status)
	}
	if rw.bytes != 7 {
		t.Fatalf("bytes = %d, want 7", rw.bytes)
	}
	rw.Flush()
	if !rec.Flushed {
		t.Fatal("Flush not forwarded")
	}
	if rw.Unwrap() != rec {
		t.Fatal("Unwrap should return the wrapped writer")
	}
}

func TestSchemeFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		proto string
		tls   bool
		want  string
	}{
		{"default", "", false, "http"},
		{"tls", "", true, "https"},
		{"forwarded https", "https", false, "https"},
		{"forwarded mixed case", "HTTPS", false, "https"},
		{"forwarded list takes first", "http, https", true, "http"},
		{"forwarded junk falls back", "javascript", true, "https"},
		{"forwarded injection falls back", "https\r\nX-Evil: 1", false, "http"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			if tc.proto != "" {
				req.Header["X-Forwarded-Proto"] = []string{tc.proto}
			}
			if tc.tls {
				req.TLS = &tls.ConnectionState{}
			}
			if got := schemeFromRequest(req); got != tc.want {
				t.Fatalf("scheme = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestWithLogger_Fields(t *testing.T) {
	spy := newSpyLogger()
	var inner log.Logger
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = log.FromContext(r.Context())
		inner.Info(r.Context(), "inside")
	}), RequestID(""), ClientIP, WithLogger(spy))

	req := httptest.NewRequest(http.MethodGet, "/hello.json?token=secret", http.NoBody)
	req.RemoteAddr = "203.0.113.4:5555"
	req.Header.Set("User-Agent", "curl/8")
	h.ServeHTTP(httptest.NewRecorder(), req)

	recs := spy.all()
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	r := recs[0]
	checks := map[string]any{
		"client.address":       "203.0.113.4",
		"network.peer.address": "203.0.113.4",
		"http.request.method":  http.MethodGet,
		"url.path":             "/hello.json",
		"url.scheme":           "http",
	}
	for k, want := range checks {
		if got, _ := r.field(k); got != want {
			t.Errorf("%s = %v, want %v", k, got, want)
		}
	}
	if id, _ := r.field("request_id"); id == "" || id == nil {
		t.Error("request_id missing")
	}
	for i := 0; i+1 < len(r.kv); i += 2 {
		switch r.kv[i] {
		case "url.query", "user_agent.original":
			t.Errorf("user-supplied field %v logged", r.kv[i])
		}
		if s, ok := r.kv[i+1].(string); ok && (s == "token=secret" || s == "curl/8") {
			t.Errorf("user-supplied value %q logged", s)
		}
	}
}

func TestWithLogger_NilBase(t *testing.T) {
	called := false
	h := WithLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		log.FromContext(r.Context()).Info(r.Context(), "ok")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if !called {
		t.Fatal("handler not called")
	}
}

func TestAccessLog(t *testing.T) {
	spy := newSpyLogger()
	r := chi.NewRouter()
	r.Use(WithLogger(spy), AccessLog())
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"msg":"hi"}`))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/hello.json", http.NoBody))

	recs := spy.all()
	if len(recs) != 1 || recs[0].msg != "http request" {
		t.Fatalf("records = %+v", recs)
	}
	rec := recs[0]
	if v, _ := rec.field("http.response.status_code"); v != http.StatusOK {
		t.Fatalf("status = %v", v)
	}
	if v, _ := rec.field("http.response.body.size"); v != int64(12) {
		t.Fatalf("body size = %v", v)
	}
	if v, _ := rec.field("http.route"); v != "/*" {
		t.Fatalf("route = %v", v)
	}
	if v, ok := rec.field("http.server.request.duration"); !ok || v.(float64) < 0 {
		t.Fatalf("duration = %v", v)
	}
	if v, _ := rec.field("url.path"); v != "/hello.json" {
		t.Fatalf("url.path from request logger = %v", v)
	}
}

func TestAccessLog_ErrorStatus(t *testing.T) {
	spy := newSpyLogger()
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}), WithLogger(spy), AccessLog())
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing.json", http.NoBody))

	recs := spy.all()
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	if v, _ := recs[0].field("http.response.status_code"); v != http.StatusInternalServerError {
		t.Fatalf("status = %v", v)
	}
	if v, _ := recs[0].field("http.route"); v != "unmatched" {
		t.Fatalf("route = %v", v)
	}
}

func TestAccessLog_SkipsHealth(t *testing.T) {
	spy := newSpyLogger()
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), WithLogger(spy), AccessLog())
	for _, p := range []string{"/-/healthy", "/-/ready"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, http.NoBody))
	}
	if n := len(spy.all()); n != 0 {
		t.Fatalf("health checks logged %d records", n)
	}

	for _, p := range []string{"/serve/-/ready", "/reports/-/healthy", "/-/healthy/x"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, http.NoBody))
	}
	if n := len(spy.all()); n != 3 {
		t.Fatalf("document paths ending like checks: logged %d records, want 3", n)
	}
}

func TestAccessLog_NoLoggerInContext(t *testing.T) {
	h := AccessLog()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x.json", http.NoBody))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestScope(t *testing.T) {
	spy := newSpyLogger()
	ctx, _ := recordingContext(t)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).Info(r.Context(), "x")
	}), WithLogger(spy), Scope("document"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody).WithContext(ctx))

	recs := spy.all()
	if len(recs) != 1 {
		t.Fatalf("records = %d", len(recs))
	}
	if v, _ := recs[0].field("handler"); v != "document" {
		t.Fatalf("handler = %v", v)
	}
	_, attr := endedSpanAttr(t, ctx, "app.handler")
	if attr != "document" {
		t.Fatalf("app.handler = %q", attr)
	}
}

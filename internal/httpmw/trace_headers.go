package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

// Response headers naming the server span of a request.
const (
	TraceIDHeader = "X-Trace-Id"
	SpanIDHeader  = "X-Span-Id"
	// W3C Trace Context Level 2 response header: version-traceid-spanid-flags
	TraceResponseHeader = "Traceresponse"
)

// TraceHeaders sets the trace headers from the span in r's context. A
// document that fails with a bare 500 can then be matched to its log records
// and trace. Must run inside the otelhttp handler; without a valid span no
// header is written.
func TraceHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
			h := w.Header()
			h.Set(TraceIDHeader, sc.TraceID().String())
			h.Set(SpanIDHeader, sc.SpanID().String())
			h.Set(TraceResponseHeader, traceResponse(sc))
		}
		next.ServeHTTP(w, r)
	})
}

func traceResponse(sc trace.SpanContext) string {
	return "00-" + sc.TraceID().String() + "-" + sc.SpanID().String() + "-" + sc.TraceFlags().String()
}

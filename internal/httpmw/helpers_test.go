package httpmw

import (
	"context"
	"sync"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/keithlinneman/docserve/internal/log"
)

type record struct {
	level string
	msg   string
	err   error
	kv    []any
}

// spyLogger records every call. With returns a child sharing the sink so
// records made through derived loggers land in one place.
type spyLogger struct {
	sink *spySink
	with []any
}

type spySink struct {
	mu      sync.Mutex
	records []record
}

func newSpyLogger() *spyLogger { return &spyLogger{sink: &spySink{}} }

func (s *spyLogger) With(kv ...any) log.Logger {
	next := append(append([]any{}, s.with...), kv...)
	return &spyLogger{sink: s.sink, with: next}
}

func (s *spyLogger) add(level, msg string, err error, kv []any) {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	all := append(append([]any{}, s.with...), kv...)
	s.sink.records = append(s.sink.records, record{level: level, msg: msg, err: err, kv: all})
}

func (s *spyLogger) Debug(_ context.Context, msg string, kv ...any) { s.add("debug", msg, nil, kv) }
func (s *spyLogger) Info(_ context.Context, msg string, kv ...any)  { s.add("info", msg, nil, kv) }
func (s *spyLogger) Warn(_ context.Context, msg string, kv ...any)  { s.add("warn", msg, nil, kv) }
func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.add("error", msg, err, kv)
}
func (s *spyLogger) Sync() error { return nil }

func (s *spyLogger) all() []record {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	return append([]record(nil), s.sink.records...)
}

// field returns the value of key in a record's key/value pairs
func (r record) field(key string) (any, bool) {
	for i := 0; i+1 < len(r.kv); i += 2 {
		if r.kv[i] == key {
			return r.kv[i+1], true
		}
	}
	return nil, false
}

// recordingContext returns a context carrying a live recording span
func recordingContext(t *testing.T) (context.Context, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, _ := tp.Tracer("test").Start(context.Background(), "request")
	return ctx, sr
}

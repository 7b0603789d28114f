package document

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "docserve/document"

// Observer receives one call per document read. Implemented by metrics.ServerMetrics.
type Observer interface {
	ObserveDocumentRead(backend, result string, seconds float64, size int)
}

// Instrumented wraps a Store with a span and an Observer call per read.
type Instrumented struct {
	next    Store
	backend string
	obs     Observer
	tracer  trace.Tracer
}

// Instrument returns next wrapped for tracing and metrics. obs may be nil.
func Instrument(next Store, backend string, obs Observer) *Instrumented {
	return &Instrumented{
		next:    next,
		backend: backend,
		obs:     obs,
		tracer:  otel.Tracer(tracerName),
	}
}

// GetDocument reads through the wrapped store inside a document.read span
// and reports the outcome, latency and size to the observer.
func (s *Instrumented) GetDocument(ctx context.Context, p string) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "document.read",
		trace.WithAttributes(
			attribute.String("doc.backend", s.backend),
			attribute.String("doc.path", p),
		),
	)
	defer span.End()

	start := time.Now()
	doc, err := s.next.GetDocument(ctx, p)
	kind := Kind(err)

	span.SetAttributes(attribute.String("doc.result", kind))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
	} else {
		span.SetAttributes(attribute.Int("doc.size", len(doc)))
	}

	if s.obs != nil {
		s.obs.ObserveDocumentRead(s.backend, kind, time.Since(start).Seconds(), len(doc))
	}
	return doc, err
}

// Ping forwards to the wrapped store when it implements Pinger.
func (s *Instrumented) Ping(ctx context.Context) error {
	if p, ok := s.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

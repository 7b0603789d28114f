// Package dochttp exposes a document.Store over HTTP: GET <prefix>/<path>
// returns the stored JSON document for <path>.
package dochttp

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/docserve/internal/document"
	"github.com/keithlinneman/docserve/internal/log"
)

const contentTypeJSON = "application/json"

// API serves documents from a Store.
type API struct {
	store  document.Store
	prefix string
	logger log.Logger
}

// NewAPI mounts documents under prefix ("" or e.g. "/serve").
func NewAPI(store document.Store, prefix string, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{
		store:  store,
		prefix: normPrefix(prefix),
		logger: logger,
	}
}

func normPrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Pattern is the chi route the API registers.
func (api *API) Pattern() string { return api.prefix + "/*" }

// RegisterRoutes attaches the document route. Only GET is routed, so chi
// answers other methods with 405.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Get(api.Pattern(), api.HandleDocument)
}

// HandleDocument passes the wildcard remainder to the store unchanged and
// writes the document. Every store failure is a bare 500.
func (api *API) HandleDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := chi.URLParam(r, "*")

	doc, err := api.store.GetDocument(ctx, p)
	if err != nil {
		kind := document.Kind(err)
		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(attribute.String("doc.error_kind", kind))
		}
		L := log.FromContext(ctx)
		if kind == "canceled" {
			L.Debug(ctx, "document request canceled", "doc.path", p)
		} else {
			L.Error(ctx, err, "document read failed",
				"doc.path", p,
				"doc.error_kind", kind,
			)
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		api.logger.Debug(ctx, "write document response", "doc.path", p, "err", err)
	}
}

package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/docserve/internal/health"
	"github.com/keithlinneman/docserve/internal/httpmw"
	"github.com/keithlinneman/docserve/internal/log"
)

type Options struct {
	Logger log.Logger
	Port   int

	Health    health.Checker
	Readiness health.Checker

	// Routes registers application routes after the health routes.
	Routes func(chi.Router)

	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	RateLimitMW  func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
}

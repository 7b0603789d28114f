// Package opshttp is the admin listener: Prometheus metrics, health checks
// and optional pprof, restricted to non-public peers.
package opshttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/keithlinneman/docserve/internal/health"
	"github.com/keithlinneman/docserve/internal/httpmw"
	"github.com/keithlinneman/docserve/internal/httpserver"
	"github.com/keithlinneman/docserve/internal/log"
	"github.com/keithlinneman/docserve/internal/xerrors"
)

// NewHandler builds the admin mux.
func NewHandler(L log.Logger, opts *Options) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	o := opts.normalized()
	mux := http.NewServeMux()

	mux.Handle(httpmw.HealthyPath, health.HealthzHandler(o.Health))
	mux.Handle(httpmw.ReadyPath, health.ReadyzHandler(o.Readiness))

	if o.Metrics != nil {
		mux.Handle(o.MetricsPath, o.Metrics)
	}

	if o.EnablePprof {
		RegisterPprof(mux)
	} else {
		// shadow the prefix so nothing registered on DefaultServeMux leaks through
		mux.HandleFunc("/debug/pprof/", http.NotFound)
	}

	var h http.Handler = mux
	if o.UseRecoverMW {
		h = httpmw.Recover(L, o.OnPanic)(h)
	}
	return requireNonPublicNetwork(L, h)
}

// Start serves the admin mux in the background.
// Returns stop(ctx) for graceful shutdown.
func Start(ctx context.Context, L log.Logger, opts *Options) (func(context.Context) error, error) {
	if L == nil {
		L = log.Nop()
	}
	addr := fmt.Sprintf(":%d", opts.normalized().Port)

	srv := httpserver.NewServer(addr, NewHandler(L, opts))
	// profiles run longer than the public write timeout
	if opts.EnablePprof {
		srv.WriteTimeout = 0
	}

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen for admin port on addr=%v", addr)
	}

	go func() {
		L.Info(ctx, "ops http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "ops http server error")
		}
	}()

	var once sync.Once
	var stopErr error
	stop := func(sctx context.Context) error {
		once.Do(func() {
			L.Info(sctx, "ops http server shutting down")
			c, cancel := context.WithTimeout(sctx, httpserver.DefaultShutdownTimeout)
			defer cancel()
			stopErr = srv.Shutdown(c)
		})
		return stopErr
	}
	return stop, nil
}

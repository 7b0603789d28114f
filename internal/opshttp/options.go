package opshttp

import (
	"net/http"

	"github.com/keithlinneman/docserve/internal/health"
)

const (
	DefaultPort        = 9000
	DefaultMetricsPath = "/metrics"
)

// Options configures the admin listener. Nil checks always pass; a nil
// Metrics handler leaves the metrics path unrouted.
type Options struct {
	Port        int
	Metrics     http.Handler
	MetricsPath string
	EnablePprof bool

	Health    health.Checker
	Readiness health.Checker

	// UseRecoverMW turns a handler panic into a 500; OnPanic runs after each one.
	UseRecoverMW bool
	OnPanic      func()
}

// normalized returns a copy with defaults applied.
func (o *Options) normalized() Options {
	out := *o
	if out.Port == 0 {
		out.Port = DefaultPort
	}
	if out.MetricsPath == "" {
		out.MetricsPath = DefaultMetricsPath
	}
	if out.Health == nil {
		out.Health = health.Fixed(true, "")
	}
	if out.Readiness == nil {
		out.Readiness = health.Fixed(true, "")
	}
	return out
}

// Package cfg is flag-first configuration with environment fallback.
package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/keithlinneman/docserve/internal/log"
)

const EnvPrefix = "DOCSERVE_"

const (
	BackendDir = "dir"
	BackendS3  = "s3"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	OTLPInsecure      bool
	TraceSample       float64
	IncludeErrorLinks bool
	MaxErrorLinks     int

	RoutePrefix     string
	ContentBackend  string
	ContentDir      string
	ContentS3Bucket string
	ContentS3Prefix string
	ContentSSMParam string

	RateLimitRPS   float64
	RateLimitBurst int
	TrustedHops    int

	ShutdownDrain time.Duration
}

// Register binds all config fields to fs with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.BoolVar(&c.OTLPInsecure, "otlp-insecure", true, "plaintext gRPC to the OTLP endpoint (local collector)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.StringVar(&c.RoutePrefix, "route-prefix", "", "URL prefix documents are served under (e.g. /serve)")
	fs.StringVar(&c.ContentBackend, "content-backend", BackendDir, "document store: dir|s3")
	fs.StringVar(&c.ContentDir, "content-dir", "content", "directory documents are read from (backend=dir)")
	fs.StringVar(&c.ContentS3Bucket, "content-s3-bucket", "", "s3 bucket documents are read from (backend=s3)")
	fs.StringVar(&c.ContentS3Prefix, "content-s3-prefix", "", "s3 key prefix for documents (backend=s3)")
	fs.StringVar(&c.ContentSSMParam, "content-ssm-param", "", "optional ssm parameter holding a release id appended to content-s3-prefix")

	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 20, "per-IP request refill rate (0 disables rate limiting)")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 40, "per-IP burst size")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "reverse proxies in front of the server trusted for X-Forwarded-For (0..5)")

	fs.DurationVar(&c.ShutdownDrain, "shutdown-drain", 60*time.Second, "time readiness fails before listeners close on shutdown")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		envVal, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// EnvKey maps flag "foo-bar" to PREFIX_FOO_BAR.
func EnvKey(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

// Validate reports every invalid field at once, or nil.
func Validate(c App) error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		add("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort)
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		add("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort)
	}
	if c.AdminPort == c.HTTPPort {
		add("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort)
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	if c.TraceSample < 0 || c.TraceSample > 1 {
		add("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample)
	}
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			add("OTLP_ENDPOINT required when ENABLE_TRACING=true")
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			add("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err)
		}
	}

	if c.EnablePyroscope {
		if c.PyroServer == "" {
			add("PYRO_SERVER required when ENABLE_PYROSCOPE=true")
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			add("PYRO_SERVER must be a URL (got %q)", c.PyroServer)
		}
		if c.PyroTenantID == "" {
			add("PYRO_TENANT required when ENABLE_PYROSCOPE=true")
		}
	}

	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		add("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks)
	}

	if p := c.RoutePrefix; p != "" && (strings.ContainsAny(p, "{}*?#") || strings.Contains(p, "//")) {
		add("ROUTE_PREFIX must be a plain path (got %q)", p)
	}

	switch c.ContentBackend {
	case BackendDir:
		if c.ContentDir == "" {
			add("CONTENT_DIR required when CONTENT_BACKEND=dir")
		}
	case BackendS3:
		if c.ContentS3Bucket == "" {
			add("CONTENT_S3_BUCKET required when CONTENT_BACKEND=s3")
		}
	default:
		add("invalid CONTENT_BACKEND %q (must be dir|s3)", c.ContentBackend)
	}
	if c.ContentSSMParam != "" && !strings.HasPrefix(c.ContentSSMParam, "/") {
		add("CONTENT_SSM_PARAM must be an absolute parameter path (got %q)", c.ContentSSMParam)
	}

	if c.RateLimitRPS < 0 {
		add("RATE_LIMIT_RPS must be >= 0 (got %v)", c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		add("RATE_LIMIT_BURST must be >= 1 when rate limiting is enabled (got %d)", c.RateLimitBurst)
	}
	if c.TrustedHops < 0 || c.TrustedHops > 5 {
		add("TRUSTED_HOPS must be 0..5 (got %d)", c.TrustedHops)
	}
	if c.ShutdownDrain < 0 {
		add("SHUTDOWN_DRAIN must be >= 0 (got %s)", c.ShutdownDrain)
	}

	return errors.Join(errs...)
}

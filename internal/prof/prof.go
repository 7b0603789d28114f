// Package prof starts Pyroscope continuous profiling.
package prof

import (
	"context"
	"fmt"
	"net/url"
	"runtime"
	"sync"
	"time"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/docserve/internal/log"
	"github.com/keithlinneman/docserve/internal/xerrors"
)

type Options struct {
	Enabled       bool
	AppName       string
	ServerAddress string
	TenantID      string
	// BasicAuthUser/Password for a Grafana Cloud style endpoint.
	BasicAuthUser     string
	BasicAuthPassword string
	Tags              map[string]string
	// defaults to pyroscope's 15s
	UploadRate time.Duration

	// Mutex and block profiles are only collected when their rate is set.
	MutexProfileFraction int
	BlockProfileRate     int
}

// always collected; a document server is mostly allocation and I/O wait
var baseProfileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

func profileTypes(o Options) []pyroscope.ProfileType {
	types := append([]pyroscope.ProfileType(nil), baseProfileTypes...)
	if o.MutexProfileFraction > 0 {
		types = append(types, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration)
	}
	if o.BlockProfileRate > 0 {
		types = append(types, pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration)
	}
	return types
}

func (o Options) validate() error {
	if o.ServerAddress == "" {
		return xerrors.Newf("invalid server address (%q)", o.ServerAddress)
	}
	u, err := url.Parse(o.ServerAddress)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return xerrors.Newf("invalid server address (%q): want http(s)://host[:port]", o.ServerAddress)
	}
	if o.AppName == "" {
		return xerrors.New("app name is required")
	}
	return nil
}

// agentLogger routes pyroscope's own printf logging into the service logger
type agentLogger struct {
	ctx context.Context
	L   log.Logger
}

func (a agentLogger) Infof(format string, args ...any) {
	a.L.Debug(a.ctx, fmt.Sprintf(format, args...), "source", "pyroscope")
}

func (a agentLogger) Debugf(format string, args ...any) {
	a.L.Debug(a.ctx, fmt.Sprintf(format, args...), "source", "pyroscope")
}

func (a agentLogger) Errorf(format string, args ...any) {
	a.L.Warn(a.ctx, fmt.Sprintf(format, args...), "source", "pyroscope")
}

func noop() {}

// Start begins profiling and returns an idempotent stop func. The stop func
// is never nil, even on error, so callers can always defer it. Runtime
// mutex/block sampling set here is reset by stop.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)

	if !opts.Enabled {
		L.Info(ctx, "pyroscope disabled")
		return noop, nil
	}
	if err := opts.validate(); err != nil {
		L.Error(ctx, err, "pyroscope options")
		return noop, err
	}

	prevMutex := -1
	if opts.MutexProfileFraction > 0 {
		prevMutex = runtime.SetMutexProfileFraction(opts.MutexProfileFraction)
	}
	if opts.BlockProfileRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockProfileRate)
	}
	resetRates := func() {
		if prevMutex >= 0 {
			runtime.SetMutexProfileFraction(prevMutex)
		}
		if opts.BlockProfileRate > 0 {
			runtime.SetBlockProfileRate(0)
		}
	}

	types := profileTypes(opts)
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   opts.AppName,
		ServerAddress:     opts.ServerAddress,
		TenantID:          opts.TenantID,
		BasicAuthUser:     opts.BasicAuthUser,
		BasicAuthPassword: opts.BasicAuthPassword,
		Tags:              opts.Tags,
		UploadRate:        opts.UploadRate,
		ProfileTypes:      types,
		Logger:            agentLogger{ctx: context.WithoutCancel(ctx), L: L},
	})
	if err != nil {
		resetRates()
		err = xerrors.Wrapf(err, "pyroscope start server=%s", opts.ServerAddress)
		L.Error(ctx, err, "pyroscope start failed", "app_name", opts.AppName)
		return noop, err
	}

	L.Info(ctx, "pyroscope started",
		"server_address", opts.ServerAddress,
		"app_name", opts.AppName,
		"profile_types", len(types),
	)

	var once sync.Once
	return func() {
		once.Do(func() {
			bg := context.Background()
			if err := profiler.Stop(); err != nil {
				L.Error(bg, xerrors.Wrap(err, "pyroscope stop"), "pyroscope stop failed")
			}
			resetRates()
			L.Info(bg, "pyroscope stopped", "app_name", opts.AppName)
		})
	}, nil
}

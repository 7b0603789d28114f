package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/keithlinneman/docserve/internal/xerrors"
)

// Checker is evaluated per request: nil means pass, an error is the failure reason.
type Checker interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Checker.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

var pass CheckFunc = func(context.Context) error { return nil }

// Fixed always passes, or always fails with reason.
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return pass
	}
	if reason == "" {
		reason = "unhealthy"
	}
	err := xerrors.New(reason)
	return func(context.Context) error { return err }
}

// All passes when every check passes. Checks run in order and the first
// failure stops evaluation. nil checks are skipped.
func All(ps ...Checker) CheckFunc {
	ps = compact(ps)
	return func(ctx context.Context) error {
		for _, p := range ps {
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Any passes as soon as one check passes. With no checks it fails;
// otherwise the last failure is returned.
func Any(ps ...Checker) CheckFunc {
	ps = compact(ps)
	return func(ctx context.Context) error {
		err := xerrors.New("no healthy checks")
		for _, p := range ps {
			if err = p.Check(ctx); err == nil {
				return nil
			}
		}
		return err
	}
}

// Named prefixes failures of p with name, so a combined readiness body says
// which dependency failed ("content store: head bucket docs: ...").
func Named(name string, p Checker) CheckFunc {
	if p == nil {
		return pass
	}
	return func(ctx context.Context) error {
		if err := p.Check(ctx); err != nil {
			return xerrors.Wrap(err, name)
		}
		return nil
	}
}

// Timeout bounds p to d per evaluation. A remote store that hangs then fails
// readiness instead of stalling the check request.
func Timeout(d time.Duration, p Checker) CheckFunc {
	if p == nil {
		return pass
	}
	if d <= 0 {
		return p.Check
	}
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return p.Check(ctx)
	}
}

func compact(ps []Checker) []Checker {
	out := make([]Checker, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// ShutdownGate fails its check from Set until Clear. The zero value is open.
type ShutdownGate struct {
	reason atomic.Pointer[string]
}

// Set closes the gate. An empty reason reads as "draining".
func (g *ShutdownGate) Set(reason string) {
	if reason == "" {
		reason = "draining"
	}
	g.reason.Store(&reason)
}

// Clear reopens the gate.
func (g *ShutdownGate) Clear() { g.reason.Store(nil) }

// Closed reports whether Set has been called since the last Clear.
func (g *ShutdownGate) Closed() bool { return g.reason.Load() != nil }

func (g *ShutdownGate) Checker() CheckFunc {
	return func(context.Context) error {
		if r := g.reason.Load(); r != nil {
			return xerrors.New(*r)
		}
		return nil
	}
}

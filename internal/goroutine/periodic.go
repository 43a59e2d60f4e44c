// Package goroutine drives one simulated core's timer ticks in a loop,
// adapted from the teacher's internal/goroutine.PeriodicGoroutine
// (periodic reinvocation of a Handler on a configurable interval, built
// on glock.Clock so tests can control time). The teacher's job-recorder
// dashboard (internal/goroutine/recorder) and its OpenTelemetry-backed
// internal/observation.Operation tracing are dropped: this kernel has no
// background-job registry to report into and no external collector to
// export spans to (SPEC_FULL.md's ambient-observability clause still
// applies, so handler errors are logged through a sourcegraph/log scoped
// logger instead).
package goroutine

import (
	"context"
	"time"

	"github.com/derision-test/glock"
	"github.com/sourcegraph/log"

	"github.com/egos-2001/kernel-core/internal/errors"
)

type getIntervalFunc func() time.Duration

// PeriodicGoroutine reinvokes a Handler on a fixed interval until its
// context is cancelled, the same reinvocation/backoff shape as the
// teacher's type of the same name.
type PeriodicGoroutine struct {
	name        string
	description string
	getInterval getIntervalFunc
	handler     unifiedHandler
	clock       glock.Clock
	ctx         context.Context
	cancel      context.CancelFunc
	finished    chan struct{}
}

type unifiedHandler interface {
	Handler
	ErrorHandler
}

// Handler represents the main behavior of a PeriodicGoroutine: one
// simulated core's response to a timer tick, in this module's case.
type Handler interface {
	Handle(ctx context.Context) error
}

// ErrorHandler is an optional extension of Handler.
type ErrorHandler interface {
	HandleError(err error)
}

// Finalizer is an optional extension of Handler, called once on shutdown.
type Finalizer interface {
	OnShutdown()
}

// HandlerFunc wraps a function as a Handler.
type HandlerFunc func(ctx context.Context) error

func (f HandlerFunc) Handle(ctx context.Context) error { return f(ctx) }

type simpleHandler struct {
	name  string
	scope log.Logger
	Handler
}

var (
	_ unifiedHandler = (*simpleHandler)(nil)
	_ Finalizer      = (*simpleHandler)(nil)
)

func (h *simpleHandler) HandleError(err error) {
	h.scope.Error("core loop handler returned an error", log.String("handler", h.name), log.Error(err))
}

func (h *simpleHandler) OnShutdown() {
	if finalizer, ok := h.Handler.(Finalizer); ok {
		finalizer.OnShutdown()
	}
}

type Option func(*PeriodicGoroutine)

func WithName(name string) Option {
	return func(p *PeriodicGoroutine) { p.name = name }
}

func WithDescription(description string) Option {
	return func(p *PeriodicGoroutine) { p.description = description }
}

func WithInterval(interval time.Duration) Option {
	return WithIntervalFunc(func() time.Duration { return interval })
}

func WithIntervalFunc(getInterval getIntervalFunc) Option {
	return func(p *PeriodicGoroutine) { p.getInterval = getInterval }
}

// WithClock overrides the real clock, e.g. with a glock.MockClock for
// deterministic tests, the same seam the teacher exposes (there as an
// unexported option).
func WithClock(clock glock.Clock) Option {
	return func(p *PeriodicGoroutine) { p.clock = clock }
}

// NewPeriodicGoroutine constructs a PeriodicGoroutine. The context
// provided propagates into every Handle call and stops the loop on
// cancellation.
func NewPeriodicGoroutine(ctx context.Context, handler Handler, options ...Option) *PeriodicGoroutine {
	r := &PeriodicGoroutine{
		getInterval: func() time.Duration { return time.Second },
		clock:       glock.NewRealClock(),
	}
	for _, o := range options {
		o(r)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.ctx = ctx
	r.cancel = cancel
	r.finished = make(chan struct{})
	r.handler = wrapHandler(handler, r.name, r.description)

	return r
}

func wrapHandler(handler Handler, name, description string) unifiedHandler {
	if uh, ok := handler.(unifiedHandler); ok {
		return uh
	}
	return &simpleHandler{
		name:    name,
		scope:   log.Scoped(name, description),
		Handler: handler,
	}
}

// ErrReinvokeImmediately lets a Handler request it be called again without
// waiting the interval. CoreLoop never returns it; the dispatcher does not
// produce it either.
var ErrReinvokeImmediately = errors.New("core loop handler wishes to be immediately re-invoked")

// MaxConsecutiveReinvocations bounds how many times a Handler may request
// immediate reinvocation before the loop falls back to waiting the normal
// interval, the same backstop the teacher's loop uses against runaway
// busy-looping.
const MaxConsecutiveReinvocations = 100

// Start runs the handler in a loop until Stop is called or its context is
// cancelled.
func (r *PeriodicGoroutine) Start() {
	defer close(r.finished)

	reinvocations := 0

loop:
	for {
		shutdown, reinvoke, err := runHandler(r.ctx, r.handler)

		if shutdown {
			break
		} else if h, ok := r.handler.(ErrorHandler); ok && err != nil {
			h.HandleError(err)
		}

		if reinvoke {
			select {
			case <-r.ctx.Done():
				break loop
			default:
				reinvocations++
				if reinvocations < MaxConsecutiveReinvocations {
					continue loop
				}
			}
		}
		reinvocations = 0

		select {
		case <-r.clock.After(r.getInterval()):
		case <-r.ctx.Done():
			break loop
		}
	}

	if h, ok := r.handler.(Finalizer); ok {
		h.OnShutdown()
	}
}

// Stop cancels the handler's context and blocks until Start has returned.
func (r *PeriodicGoroutine) Stop() {
	r.cancel()
	<-r.finished
}

func (r *PeriodicGoroutine) Name() string        { return r.name }
func (r *PeriodicGoroutine) Description() string { return r.description }
func (r *PeriodicGoroutine) Interval() time.Duration { return r.getInterval() }

func runHandler(ctx context.Context, handler Handler) (shutdown, reinvoke bool, err error) {
	err = handler.Handle(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return true, false, nil
		}
		if errors.Is(err, ErrReinvokeImmediately) {
			return false, true, nil
		}
	}
	return false, false, err
}

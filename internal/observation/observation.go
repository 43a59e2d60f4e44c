// Package observation wraps github.com/sourcegraph/log into the small
// surface the kernel core needs: a scoped logger per component plus a span
// helper for timing dispatcher operations. It intentionally does not pull
// in the teacher's full OpenTracing/OpenTelemetry stack (internal/trace/ot,
// observation.Context) — spec.md's Out-of-scope clause excludes external
// collaborators, and a single-process teaching kernel has nowhere to export
// traces to.
package observation

import (
	"time"

	"github.com/sourcegraph/log"
)

// Context is the module-wide observation handle, analogous in spirit to
// the teacher's observation.Context: one value, constructed once, threaded
// explicitly through every component instead of package-level loggers.
type Context struct {
	Logger log.Logger
}

// NewContext scopes a logger under name/description, the same call shape
// as log.Scoped(name, description) used throughout the teacher corpus.
func NewContext(name, description string) *Context {
	return &Context{Logger: log.Scoped(name, description)}
}

// Operation names a traced unit of work (kernel_entry, yield, try_send, ...).
// With measures wall-clock duration and logs failures; it does not alter
// control flow, so it can wrap the dispatcher's exact sequence from spec.md
// §4.4 without changing behavior.
type Operation struct {
	ctx  *Context
	name string
}

func (c *Context) Operation(name string) *Operation {
	return &Operation{ctx: c, name: name}
}

// With runs fn, logs its duration and any error at Debug/Warn level, and
// returns the error unchanged.
func (op *Operation) With(fn func() error, fields ...log.Field) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	if err != nil {
		op.ctx.Logger.Warn(op.name, append(fields, log.Duration("elapsed", elapsed), log.Error(err))...)
		return err
	}
	op.ctx.Logger.Debug(op.name, append(fields, log.Duration("elapsed", elapsed))...)
	return nil
}

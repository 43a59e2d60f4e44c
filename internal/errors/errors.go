// Package errors re-exports github.com/cockroachdb/errors under this
// module's import path, mirroring the teacher's lib/errors package: every
// other internal package imports errors from here rather than reaching for
// the standard library's errors or fmt.Errorf directly.
package errors

import (
	"github.com/cockroachdb/errors"
)

var (
	New    = errors.New
	Newf   = errors.Newf
	Wrap   = errors.Wrap
	Wrapf  = errors.Wrapf
	Is     = errors.Is
	As     = errors.As
	Errorf = errors.Errorf
)

// ErrKernelPanic marks an invariant-break class error (spec §7): pid
// exhaustion, an ECALL of unknown type, SEND to a nonexistent receiver, or
// a non-ECALL exception in a kernel-mode process. cmd/kernel logs and exits
// non-zero on any error from its demo pipeline, this one included; an error
// from a per-core dispatch loop is only logged by internal/goroutine, and
// that loop keeps ticking (the core is not halted).
var ErrKernelPanic = errors.New("kernel: invariant violated")

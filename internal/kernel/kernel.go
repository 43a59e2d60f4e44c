// Package kernel holds the "single kernel-context object" the Design
// Notes (spec.md §9) call for: the process table, core-to-index map,
// monotonic pid counter (owned by proc.Table), MLFQ policy, and HAL, plus
// the global kernel lock that serialises all cores through the dispatcher
// (spec.md §5). Every dispatcher entry point takes a *Context explicitly
// (internal/ipc takes the table, HAL and memory pieces it needs as
// separate arguments) instead of reaching for package-level globals — grounded on
// the teacher's convention of threading one explicit context object
// (observation.Context, env.Config) through Service.Start rather than
// relying on globals (cmd/worker/shared/service.go).
package kernel

import (
	"sync"

	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/mlfq"
	"github.com/egos-2001/kernel-core/internal/observation"
	"github.com/egos-2001/kernel-core/internal/proc"
)

// Well-known virtual addresses (spec.md §6). These are symbolic in this
// software simulation — there is no real MMU behind them — but they are
// kept as named constants, not magic numbers, exactly as egos-2001 keeps
// SYSCALL_ARG/APPS_ARG/APPS_ENTRY as compile-time addresses.
const (
	SyscallArgVaddr uintptr = 0x1000
	AppsArgVaddr    uintptr = 0x2000
	AppsEntryVaddr  uintptr = 0x3000
)

// Context aggregates every piece of process-wide state the core touches,
// per spec.md §5 ("The process table, core_to_proc_idx, the monotonic pid
// counter, and the MLFQ last-reset timestamp are all protected solely by
// the kernel lock").
type Context struct {
	// lock is the global kernel lock: held from trap entry to mret,
	// released at wfi in the idle path (spec.md §5).
	lock sync.Mutex

	Table *proc.Table
	MLFQ  *mlfq.Policy
	HAL   hal.HAL
	Mem   hal.UserMemory
	Clock hal.Clock
	Obs   *observation.Context

	NCores int
}

// New constructs a kernel context for ncores cores with the given HAL and
// clock, using mlfq.DefaultBaseQuantumMicros as the level-0 quantum.
func New(ncores int, h hal.HAL, mem hal.UserMemory, clock hal.Clock, obs *observation.Context) *Context {
	return NewWithQuantum(ncores, h, mem, clock, obs, mlfq.DefaultBaseQuantumMicros)
}

// NewWithQuantum is New with an explicit level-0 MLFQ quantum, the knob
// cmd/kernel exposes as KERNEL_TIMER_QUANTUM_US (SPEC_FULL.md §6).
func NewWithQuantum(ncores int, h hal.HAL, mem hal.UserMemory, clock hal.Clock, obs *observation.Context, baseQuantumMicros uint64) *Context {
	return &Context{
		Table:  proc.NewTable(clock, obs, ncores),
		MLFQ:   mlfq.NewPolicy(baseQuantumMicros),
		HAL:    h,
		Mem:    mem,
		Clock:  clock,
		Obs:    obs,
		NCores: ncores,
	}
}

// Lock acquires the global kernel lock. Callers release it with Unlock;
// internal/dispatcher acquires it for the full kernel_entry-to-mret
// sequence and releases it at wfi or at return, per spec.md §5.
func (c *Context) Lock() { c.lock.Lock() }

// Unlock releases the global kernel lock.
func (c *Context) Unlock() { c.lock.Unlock() }

// CoreProcIdx is the table index currently dispatched on core, 0 meaning
// idle (spec.md §3).
func (c *Context) CoreProcIdx(core int) int { return c.Table.CoreToProcIdx[core] }

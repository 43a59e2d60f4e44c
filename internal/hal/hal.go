// Package hal is the Time & HAL shim (spec.md §4.1, component C1): a
// monotonic microsecond clock, the fixed trap-frame region, and a façade
// over the platform's timer/MMU/TTY. It performs no scheduling or process
// policy of its own.
package hal

import (
	"time"

	"github.com/derision-test/glock"
)

// SavedRegisterNum is the GPR count spilled by the trap stub (spec.md §6).
const SavedRegisterNum = 32

// Frame is the trap-frame region at SAVED_REGISTER_ADDR: 32 GPRs in
// canonical order, a fixed array so no heap allocation backs it (Design
// Notes §9, "fixed-size containers").
type Frame [SavedRegisterNum]uint64

// Pid is a process id; kept as a distinct type so PCB/syscall code reads
// clearly, matching spec.md's pid-everywhere data model.
type Pid int

// Clock exposes mtime_get() as a monotonic microsecond counter. Production
// code wraps glock.RealClock; tests wrap glock.NewMockClock(), the same fake-clock idiom the teacher's
// internal/goroutine.PeriodicGoroutine and enterprise index_manager use for
// deterministic timing tests.
type Clock interface {
	// NowMicros is mtime_get(): a monotonically non-decreasing microsecond
	// counter (spec.md §4.1, §5).
	NowMicros() uint64
}

type glockClock struct{ g glock.Clock }

// NewClock adapts a glock.Clock to this package's microsecond-granularity
// Clock. Pass glock.NewRealClock() in production, glock.NewMockClock() in
// tests.
func NewClock(g glock.Clock) Clock { return &glockClock{g: g} }

func (c *glockClock) NowMicros() uint64 {
	return uint64(c.g.Now().UnixMicro())
}

// Epoch lets tests seed a glock.MockClock at a fixed point without
// depending on wall-clock time.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// HAL is the façade the kernel consumes from the hardware abstraction
// layer (spec.md §6). It is an interface so internal/simhal can provide a
// fake backend for tests and the cmd/kernel demo, and a real platform
// driver could implement the same surface without the kernel core
// changing.
type HAL interface {
	// TimerReset re-arms the given core's timer for the next quantum.
	TimerReset(core int)
	// MMUTranslate resolves a virtual address in pid's address space to a
	// physical one, the mechanism kernel_entry uses to read the user-space
	// syscall record at SYSCALL_ARG.
	MMUTranslate(pid Pid, vaddr uintptr) (uintptr, error)
	// MMUSwitch programs the MMU to translate for pid going forward.
	MMUSwitch(pid Pid)
	// MMUFlushCache flushes any cached translations after a switch.
	MMUFlushCache()
	// MMUFree releases pid's address space on termination.
	MMUFree(pid Pid)
	// TTYInputEmpty reports whether the TTY input buffer is empty (true
	// when no keystroke is waiting); a false result drives the MLFQ
	// interactive boost (spec.md §4.3).
	TTYInputEmpty() bool
}

// UserMemory is the byte-level counterpart of MMUTranslate: once a virtual
// address has been translated to physical, the kernel memcpy's through it
// (spec.md §4.4 "copy the spilled frame", §4.5 "copy the SYSCALL_MSG_LEN
// payload"). A real platform driver would do this with a raw pointer after
// MMUTranslate; the simulated HAL (internal/simhal) backs it with an
// in-memory per-pid byte arena so the dispatcher and IPC code can be
// exercised without real memory-mapped hardware.
type UserMemory interface {
	CopyIn(pid Pid, vaddr uintptr, dst []byte) error
	CopyOut(pid Pid, vaddr uintptr, src []byte) error
}

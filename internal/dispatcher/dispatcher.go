// Package dispatcher implements kernel_entry and proc_yield (spec.md
// §4.4, component C4): saving/restoring the interrupted process's
// register file and program counter, classifying the trap cause,
// selecting the next runnable process under the MLFQ policy, and
// programming the MMU/privilege mode or idle-waiting.
//
// Grounded on egos-2001's grass/kernel.c (original_source) for the exact
// trap sequence; kernel_entry is wrapped in an internal/observation span in
// the style of cmd/gitserver/server/common/run.go's span-per-operation
// convention, without altering the control flow below. Yield has no span
// of its own; it is timed only as part of a kernel_entry that reaches it.
package dispatcher

import (
	"github.com/sourcegraph/log"

	"github.com/egos-2001/kernel-core/internal/errors"
	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/ipc"
	"github.com/egos-2001/kernel-core/internal/kernel"
	"github.com/egos-2001/kernel-core/internal/mlfq"
	"github.com/egos-2001/kernel-core/internal/proc"
)

// Trap cause ids (spec.md §4.4).
const (
	IntrIDTimer = 7

	ExcpIDECALLU = 8
	ExcpIDECALLM = 11
)

// CauseKind distinguishes the interrupt path from the exception path
// (spec.md §4.4 step 3: "If high bit set -> interrupt path ... else
// exception path").
type CauseKind int

const (
	Exception CauseKind = iota
	Interrupt
)

// Cause is the classified mcause value the trap stub hands kernel_entry.
type Cause struct {
	Kind CauseKind
	ID   uint
}

// EntryResult tells the trap stub what to do on return from kernel_entry:
// either the core went idle (spec.md §4.4 step 6, the wfi path) or a
// process was selected and its frame/mepc should be restored before mret.
type EntryResult struct {
	Idle  bool
	Mepc  uint64
	Frame hal.Frame
}

// KernelEntry is the trap entry point (spec.md §4.4). It saves the
// interrupted context, classifies and handles the trap, and always ends
// by yielding; the returned EntryResult is what the trap stub restores
// before mret, or signals idle so the stub can wfi instead.
func KernelEntry(ctx *kernel.Context, core int, mepc uint64, cause Cause, frame hal.Frame) (EntryResult, error) {
	ctx.Lock()
	defer ctx.Unlock()

	op := ctx.Obs.Operation("kernel_entry")
	var result EntryResult
	err := op.With(func() error {
		curr := ctx.CoreProcIdx(core)
		p := ctx.Table.Slot(curr)
		p.SavedRegisters = frame
		p.Mepc = mepc

		var err error
		switch cause.Kind {
		case Interrupt:
			err = handleInterrupt(ctx, core, curr, cause.ID)
		case Exception:
			err = handleException(ctx, core, curr, cause.ID)
		}
		if err != nil {
			return err
		}

		next := ctx.CoreProcIdx(core)
		if next == 0 {
			result = EntryResult{Idle: true}
			return nil
		}
		np := ctx.Table.Slot(next)
		result = EntryResult{Mepc: np.Mepc, Frame: np.SavedRegisters}
		return nil
	}, log.Int("core", core), log.Int("causeId", int(cause.ID)))

	return result, err
}

// handleException implements spec.md §4.4's exception path.
func handleException(ctx *kernel.Context, core, currIdx int, id uint) error {
	p := ctx.Table.Slot(currIdx)

	if id >= ExcpIDECALLU && id <= ExcpIDECALLM {
		if _, err := ctx.HAL.MMUTranslate(p.Pid, kernel.SyscallArgVaddr); err != nil {
			return errors.Wrap(err, "kernel_entry: mmu_translate syscall arg")
		}
		raw := make([]byte, proc.SyscallRecordLen)
		if err := ctx.Mem.CopyIn(p.Pid, kernel.SyscallArgVaddr, raw); err != nil {
			return errors.Wrap(err, "kernel_entry: copy syscall record")
		}
		proc.DecodeSyscall(raw, &p.Syscall)
		p.Syscall.Status = proc.SyscallPending

		if err := ctx.Table.SetPending(p.Pid, ctx.MLFQ); err != nil {
			return err
		}
		p.Mepc += 4 // ECALL is 4 bytes (spec.md §4.4)

		if err := ipc.TrySyscall(ctx.Table, ctx.HAL, ctx.Mem, p, kernel.SyscallArgVaddr, ctx.MLFQ); err != nil {
			return err
		}
		return Yield(ctx, core)
	}

	if p.Pid >= proc.GPIDUserStart {
		ctx.Obs.Logger.Info("Process killed due to exception",
			log.Int("pid", int(p.Pid)), log.Int("exception", int(id)))
		if _, err := ctx.Table.Free(p.Pid, ctx.HAL); err != nil {
			return err
		}
		return Yield(ctx, core)
	}

	return errors.Wrapf(errors.ErrKernelPanic, "excp_entry: kernel got exception %d", id)
}

// handleInterrupt implements spec.md §4.4's interrupt path. Only the
// timer is handled; any other interrupt id is a kernel invariant break.
func handleInterrupt(ctx *kernel.Context, core, currIdx int, id uint) error {
	if id != IntrIDTimer {
		return errors.Wrapf(errors.ErrKernelPanic, "intr_entry: kernel got interrupt %d", id)
	}

	if currIdx > 0 {
		p := ctx.Table.Slot(currIdx)
		p.TimerInterruptCount++
		now := ctx.Clock.NowMicros()
		if p.LastScheduleTime > 0 {
			runtime := now - p.LastScheduleTime
			p.TotalCPUTime += runtime
			ctx.MLFQ.UpdateLevel(p, runtime)
		}
		p.LastScheduleTime = now
	}
	return Yield(ctx, core)
}

// Yield is proc_yield (spec.md §4.4). It must be called with ctx's lock
// already held.
func Yield(ctx *kernel.Context, core int) error {
	curr := ctx.CoreProcIdx(core)
	p := ctx.Table.Slot(curr)
	if p.Status == proc.Running {
		if err := ctx.Table.SetRunnable(p.Pid, ctx.MLFQ); err != nil {
			return err
		}
	}

	now := ctx.Clock.NowMicros()
	ctx.MLFQ.ResetLevel(now, ctx.HAL.TTYInputEmpty(), ctx.Table)

	for i := 1; i <= proc.MaxNProcess; i++ {
		cand := ctx.Table.Slot(i)
		if cand.Status != proc.PendingSyscall {
			continue
		}
		if cand.WakeupTime > 0 {
			// Sleeping, not blocked on IPC (spec.md §4.1): wake it once its
			// deadline has passed, otherwise leave it parked.
			if now >= cand.WakeupTime {
				cand.WakeupTime = 0
				cand.Status = proc.Runnable
			}
			continue
		}
		if err := ipc.TrySyscall(ctx.Table, ctx.HAL, ctx.Mem, cand, kernel.SyscallArgVaddr, ctx.MLFQ); err != nil {
			return err
		}
	}

	winner := mlfq.Select(ctx.Table, now)
	if winner < 0 {
		ctx.Table.CoreToProcIdx[core] = 0
		ctx.HAL.TimerReset(core)
		return nil
	}

	np := ctx.Table.Slot(winner)
	ctx.Table.CoreToProcIdx[core] = winner
	ctx.HAL.MMUSwitch(np.Pid)
	ctx.HAL.MMUFlushCache()
	if np.Status == proc.Ready {
		np.SavedRegisters[0] = uint64(kernel.AppsArgVaddr)
		np.SavedRegisters[1] = uint64(kernel.AppsArgVaddr) + 4
		np.Mepc = uint64(kernel.AppsEntryVaddr)
	}
	if err := ctx.Table.SetRunning(np.Pid); err != nil {
		return err
	}
	ctx.HAL.TimerReset(core)
	return nil
}

// Package ipc implements synchronous send/receive message passing
// (spec.md §4.5, component C5): rendez-vous SEND/RECV with an optional
// sender wildcard, integrated with the scheduler via blocking status.
//
// Grounded on egos-2001's grass/kernel.c (proc_try_send/proc_try_recv/
// proc_try_syscall in original_source) for the exact matching rules.
package ipc

import (
	"github.com/egos-2001/kernel-core/internal/errors"
	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/proc"
)

// ErrUnknownReceiver is an invariant-break class error (spec.md §7): a
// SEND named a receiver pid with no matching PCB at all.
var ErrUnknownReceiver = errors.Wrap(errors.ErrKernelPanic, "ipc: unknown receiver")

// TrySend attempts to deliver sender's pending SEND. If the named
// receiver is not currently parked in a matching RECV, it returns nil and
// the sender remains PENDING_SYSCALL, retried on the next yield
// (level-triggered, spec.md §4.5 "Progress guarantees"). If the receiver
// does not exist at all, that is a fatal invariant break.
func TrySend(table *proc.Table, sender *proc.PCB) error {
	for i := 0; i < table.NumSlots(); i++ {
		dst := table.Slot(i)
		if dst.Pid != sender.Syscall.Receiver || dst.Status == proc.Unused {
			continue
		}
		if dst.Syscall.Type != proc.SysRecv || dst.Syscall.Status != proc.SyscallPending {
			return nil
		}
		if dst.Syscall.Sender != proc.GPIDAll && dst.Syscall.Sender != sender.Pid {
			return nil
		}
		dst.Syscall.Status = proc.SyscallDone
		dst.Syscall.Sender = sender.Pid
		dst.Syscall.Content = sender.Syscall.Content
		return nil
	}
	return errors.Wrapf(ErrUnknownReceiver, "pid=%d", sender.Syscall.Receiver)
}

// TryRecv completes receiver's pending RECV once a matching SEND has
// landed (receiver.Syscall.Status == SyscallDone). It translates and
// copies the completed record — header (type/sender/receiver/status)
// and content alike — back to user space via the HAL, mirroring
// grass/kernel.c's proc_try_recv memcpy of the whole struct syscall, and
// marks both the receiver and the matched sender RUNNABLE.
func TryRecv(table *proc.Table, hw hal.HAL, mem hal.UserMemory, receiver *proc.PCB, syscallArgVaddr uintptr, mlfq proc.Demoter) error {
	if receiver.Syscall.Status == proc.SyscallPending {
		return nil
	}

	if _, err := hw.MMUTranslate(receiver.Pid, syscallArgVaddr); err != nil {
		return errors.Wrap(err, "try_recv: mmu_translate")
	}
	if err := mem.CopyOut(receiver.Pid, syscallArgVaddr, proc.EncodeSyscall(receiver.Syscall)); err != nil {
		return errors.Wrap(err, "try_recv: copy to user space")
	}

	if err := table.SetRunnable(receiver.Pid, mlfq); err != nil {
		return err
	}
	return table.SetRunnable(receiver.Syscall.Sender, mlfq)
}

// TrySyscall dispatches proc's outstanding syscall to TrySend or TryRecv
// (spec.md §4.5's proc_try_syscall). Any other syscall type is an
// invariant break (spec.md §7: "ECALL from unknown syscall type").
func TrySyscall(table *proc.Table, hw hal.HAL, mem hal.UserMemory, p *proc.PCB, syscallArgVaddr uintptr, mlfq proc.Demoter) error {
	switch p.Syscall.Type {
	case proc.SysRecv:
		return TryRecv(table, hw, mem, p, syscallArgVaddr, mlfq)
	case proc.SysSend:
		return TrySend(table, p)
	default:
		return errors.Wrapf(errors.ErrKernelPanic, "try_syscall: unknown syscall type=%d", p.Syscall.Type)
	}
}

// Package userland supplies small demo user processes exercised against
// the kernel core, standing in for the real RISC-V user binaries
// egos-2001 ships under apps/user (original_source/apps/user/wcl.c,
// grep.c). File-system access (dir_lookup/file_read) is out of scope
// here — spec.md's Non-goals exclude storage — so these processes
// operate directly on in-memory lines piped to them over SEND/RECV
// instead of reading a file first, keeping the part that matters to this
// kernel (the IPC rendez-vous) and dropping the part that doesn't.
package userland

import (
	"strings"

	"github.com/egos-2001/kernel-core/internal/ipc"
	"github.com/egos-2001/kernel-core/internal/kernel"
	"github.com/egos-2001/kernel-core/internal/proc"
)

// LineCounter is wcl.c's line-counting loop, reimplemented as a RECV
// handler: every delivered message is one line, counted unless blank.
type LineCounter struct {
	Lines int
}

// Handle counts line if it carries content, matching wcl.c's
// has_content bookkeeping.
func (lc *LineCounter) Handle(line string) {
	if strings.TrimRight(line, "\r\n") != "" {
		lc.Lines++
	}
}

// Grep is grep.c's pattern search, reimplemented as a RECV handler: every
// delivered message is one line, kept if it contains Pattern.
type Grep struct {
	Pattern string
	Matches []string
}

// Handle keeps line if it matches Pattern, mirroring grep.c's strstr check.
func (g *Grep) Handle(line string) {
	if strings.Contains(line, g.Pattern) {
		g.Matches = append(g.Matches, line)
	}
}

// Sink is satisfied by LineCounter and Grep: anything that consumes one
// delivered line at a time.
type Sink interface {
	Handle(line string)
}

// Pipe spawns a source process and a sink process, sends each of lines
// from the source to the sink over SEND/RECV, and feeds every delivered
// line to sink.Handle — the same rendez-vous two real user processes
// (e.g. a shell piping into wcl or grep) would go through, driven here
// directly against proc.Table and internal/ipc rather than through a
// full ECALL trap, since there is no real user-mode CPU behind these
// demo processes.
func Pipe(ctx *kernel.Context, sink Sink, lines []string) error {
	ctx.Lock()
	defer ctx.Unlock()

	sourcePid, err := ctx.Table.Alloc()
	if err != nil {
		return err
	}
	sinkPid, err := ctx.Table.Alloc()
	if err != nil {
		return err
	}
	if err := ctx.Table.SetReady(sourcePid); err != nil {
		return err
	}
	if err := ctx.Table.SetReady(sinkPid); err != nil {
		return err
	}
	ctx.HAL.MMUSwitch(sourcePid)
	ctx.HAL.MMUSwitch(sinkPid)

	source := ctx.Table.ByPid(sourcePid)
	sinkProc := ctx.Table.ByPid(sinkPid)

	for _, line := range lines {
		var content [proc.SyscallMsgLen]byte
		copy(content[:], line)

		sinkProc.Status = proc.PendingSyscall
		sinkProc.Syscall = proc.Syscall{Type: proc.SysRecv, Sender: proc.GPIDAll, Status: proc.SyscallPending}

		source.Status = proc.PendingSyscall
		source.Syscall = proc.Syscall{Type: proc.SysSend, Receiver: sinkPid, Status: proc.SyscallPending, Content: content}

		if err := ipc.TrySyscall(ctx.Table, ctx.HAL, ctx.Mem, source, kernel.SyscallArgVaddr, ctx.MLFQ); err != nil {
			return err
		}
		if err := ipc.TrySyscall(ctx.Table, ctx.HAL, ctx.Mem, sinkProc, kernel.SyscallArgVaddr, ctx.MLFQ); err != nil {
			return err
		}

		raw := make([]byte, proc.SyscallRecordLen)
		if err := ctx.Mem.CopyIn(sinkPid, kernel.SyscallArgVaddr, raw); err != nil {
			return err
		}
		var delivered proc.Syscall
		proc.DecodeSyscall(raw, &delivered)
		sink.Handle(strings.TrimRight(string(delivered.Content[:]), "\x00"))
	}

	if _, err := ctx.Table.Free(sourcePid, ctx.HAL); err != nil {
		return err
	}
	_, err = ctx.Table.Free(sinkPid, ctx.HAL)
	return err
}

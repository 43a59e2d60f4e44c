package dispatcher

import (
	"testing"
	"time"

	"github.com/derision-test/glock"
	"github.com/stretchr/testify/require"

	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/kernel"
	"github.com/egos-2001/kernel-core/internal/observation"
	"github.com/egos-2001/kernel-core/internal/proc"
	"github.com/egos-2001/kernel-core/internal/simhal"
)

func newFixture(t *testing.T, ncores int) (*kernel.Context, *glock.MockClock, *simhal.Simulated) {
	t.Helper()
	mc := glock.NewMockClock()
	clk := hal.NewClock(mc)
	sim := simhal.New()
	obs := observation.NewContext("dispatcher_test", "")
	ctx := kernel.New(ncores, sim, sim, clk, obs)
	return ctx, mc, sim
}

// loadReady allocates a pid, marks it READY, and maps its address space,
// as a loader would before the process's first dispatch.
func loadReady(t *testing.T, ctx *kernel.Context, sim *simhal.Simulated) hal.Pid {
	t.Helper()
	pid, err := ctx.Table.Alloc()
	require.NoError(t, err)
	require.NoError(t, ctx.Table.SetReady(pid))
	sim.Map(pid)
	return pid
}

func TestYieldIdlesWhenNothingRunnable(t *testing.T) {
	ctx, _, sim := newFixture(t, 1)

	require.NoError(t, Yield(ctx, 0))

	require.Equal(t, 0, ctx.CoreProcIdx(0))
	require.Equal(t, 1, sim.TimerResetCount(0))
}

func TestYieldDispatchesHighestPriorityReady(t *testing.T) {
	ctx, _, sim := newFixture(t, 1)
	pid := loadReady(t, ctx, sim)

	require.NoError(t, Yield(ctx, 0))

	require.Equal(t, pid, ctx.Table.Slot(ctx.CoreProcIdx(0)).Pid)
	require.Equal(t, proc.Running, ctx.Table.ByPid(pid).Status)
	require.Equal(t, uint64(kernel.AppsEntryVaddr), ctx.Table.ByPid(pid).Mepc)
}

func TestYieldPrefersLowerQueueLevel(t *testing.T) {
	ctx, _, sim := newFixture(t, 1)
	low := loadReady(t, ctx, sim)
	high := loadReady(t, ctx, sim)
	// The policy's first ResetLevel call performs the initial periodic
	// reset; run it now so the levels set below survive the Yield.
	ctx.MLFQ.ResetLevel(ctx.Clock.NowMicros(), true, ctx.Table)
	ctx.Table.ByPid(low).QueueLevel = 3
	ctx.Table.ByPid(high).QueueLevel = 0

	require.NoError(t, Yield(ctx, 0))

	require.Equal(t, high, ctx.Table.Slot(ctx.CoreProcIdx(0)).Pid)
}

func TestKernelEntryTimerInterruptAccruesCPUTimeAndReschedules(t *testing.T) {
	ctx, mc, sim := newFixture(t, 1)
	pid := loadReady(t, ctx, sim)
	require.NoError(t, Yield(ctx, 0)) // dispatch pid onto core 0

	mc.Advance(250 * time.Millisecond)
	result, err := KernelEntry(ctx, 0, 0x3000, Cause{Kind: Interrupt, ID: IntrIDTimer}, hal.Frame{})
	require.NoError(t, err)
	require.False(t, result.Idle)

	require.Equal(t, uint64(250_000), ctx.Table.ByPid(pid).TotalCPUTime)
	require.Equal(t, 1, ctx.Table.ByPid(pid).TimerInterruptCount)
}

func TestKernelEntryUnknownInterruptIsFatal(t *testing.T) {
	ctx, _, sim := newFixture(t, 1)
	loadReady(t, ctx, sim)
	require.NoError(t, Yield(ctx, 0))

	_, err := KernelEntry(ctx, 0, 0x3000, Cause{Kind: Interrupt, ID: 99}, hal.Frame{})
	require.Error(t, err)
}

func TestKernelEntryKillsFaultingUserProcess(t *testing.T) {
	ctx, _, sim := newFixture(t, 1)
	pid, err := ctx.Table.Alloc()
	require.NoError(t, err)
	for pid < proc.GPIDUserStart {
		pid, err = ctx.Table.Alloc()
		require.NoError(t, err)
	}
	require.NoError(t, ctx.Table.SetReady(pid))
	sim.Map(pid)
	require.NoError(t, Yield(ctx, 0))

	_, err = KernelEntry(ctx, 0, 0x3000, Cause{Kind: Exception, ID: 2}, hal.Frame{})
	require.NoError(t, err, "killing a user process is not itself an error")
	require.Nil(t, ctx.Table.ByPid(pid))
}

func TestKernelEntryExceptionInKernelModeProcessIsFatal(t *testing.T) {
	ctx, _, sim := newFixture(t, 1)
	pid := loadReady(t, ctx, sim) // first alloc'd pid is 1, below GPIDUserStart
	require.Less(t, int(pid), int(proc.GPIDUserStart))
	require.NoError(t, Yield(ctx, 0))

	_, err := KernelEntry(ctx, 0, 0x3000, Cause{Kind: Exception, ID: 2}, hal.Frame{})
	require.Error(t, err)
}

func TestKernelEntryECALLCopiesSyscallAndAttemptsDelivery(t *testing.T) {
	ctx, _, sim := newFixture(t, 1)
	receiverPid := loadReady(t, ctx, sim)
	require.NoError(t, Yield(ctx, 0)) // dispatch receiver onto core 0

	raw := proc.EncodeSyscall(proc.Syscall{Type: proc.SysRecv, Sender: proc.GPIDAll})
	require.NoError(t, sim.CopyOut(receiverPid, kernel.SyscallArgVaddr, raw))

	result, err := KernelEntry(ctx, 0, 0x4000, Cause{Kind: Exception, ID: ExcpIDECALLU}, hal.Frame{})
	require.NoError(t, err)

	// No sender has arrived yet, so the receiver is parked and the core
	// goes idle until the next yield retries it.
	require.True(t, result.Idle)
	require.Equal(t, proc.PendingSyscall, ctx.Table.ByPid(receiverPid).Status)
	require.Equal(t, proc.SysRecv, ctx.Table.ByPid(receiverPid).Syscall.Type)
}

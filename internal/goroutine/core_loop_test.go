package goroutine

import (
	"context"
	"testing"

	"github.com/derision-test/glock"
	"github.com/stretchr/testify/require"

	"github.com/egos-2001/kernel-core/internal/dispatcher"
	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/kernel"
	"github.com/egos-2001/kernel-core/internal/observation"
	"github.com/egos-2001/kernel-core/internal/simhal"
)

func TestCoreLoopHandleDeliversTimerTick(t *testing.T) {
	sim := simhal.New()
	clk := hal.NewClock(glock.NewMockClock())
	ctx := kernel.New(1, sim, sim, clk, observation.NewContext("core_loop_test", ""))

	pid, err := ctx.Table.Alloc()
	require.NoError(t, err)
	require.NoError(t, ctx.Table.SetReady(pid))
	sim.Map(pid)
	require.NoError(t, dispatcher.Yield(ctx, 0))

	loop := &CoreLoop{Ctx: ctx, Core: 0}
	require.NoError(t, loop.Handle(context.Background()))

	require.Equal(t, 1, ctx.Table.ByPid(pid).TimerInterruptCount)
}

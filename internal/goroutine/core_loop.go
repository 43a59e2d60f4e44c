package goroutine

import (
	"context"

	"github.com/egos-2001/kernel-core/internal/dispatcher"
	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/kernel"
)

// CoreLoop is a Handler that ticks one simulated core's timer on every
// invocation, feeding a synthetic timer interrupt into
// dispatcher.KernelEntry exactly as the real timer peripheral would
// (spec.md §4.4). cmd/kernel starts one of these per simulated core.
type CoreLoop struct {
	Ctx  *kernel.Context
	Core int
}

var _ Handler = (*CoreLoop)(nil)

// Handle delivers one timer interrupt to c.Core. It never returns
// ErrReinvokeImmediately: the interval itself is the simulated quantum, so
// there is no useful work to redo before it elapses.
func (c *CoreLoop) Handle(ctx context.Context) error {
	_, err := dispatcher.KernelEntry(c.Ctx, c.Core, 0, dispatcher.Cause{
		Kind: dispatcher.Interrupt,
		ID:   dispatcher.IntrIDTimer,
	}, hal.Frame{})
	return err
}

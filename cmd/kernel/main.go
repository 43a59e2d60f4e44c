// Command kernel boots the simulated multicore kernel core: one
// simhal-backed hardware layer, one kernel.Context, and one
// goroutine.CoreLoop per configured core ticking the timer and driving
// the MLFQ scheduler and IPC rendez-vous (spec.md §§3-5). It then runs
// the wcl/grep-style userland demo pipeline and exits.
//
// Adapted from the teacher's cmd/worker bootstrap (log.Init +
// log.Scoped), trading the worker's job-registry Service abstraction
// (internal/service, debugserver) for a direct construction of this
// module's own kernel.Context — there is exactly one thing to start
// here, not a pluggable registry of jobs.
package main

import (
	"context"
	"os"
	"time"

	"github.com/derision-test/glock"
	"github.com/sourcegraph/log"

	"github.com/egos-2001/kernel-core/internal/env"
	"github.com/egos-2001/kernel-core/internal/errors"
	"github.com/egos-2001/kernel-core/internal/goroutine"
	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/kernel"
	"github.com/egos-2001/kernel-core/internal/observation"
	"github.com/egos-2001/kernel-core/internal/proc"
	"github.com/egos-2001/kernel-core/internal/simhal"
	"github.com/egos-2001/kernel-core/internal/userland"
)

const myName = "kernel"

func main() {
	// sourcegraph/log reads its level from SRC_LOG_LEVEL itself (dev/sg's
	// enrichWithLogLevels sets the same variable rather than passing a
	// level through log.Init), so KERNEL_LOG_LEVEL is forwarded into it
	// before Init runs.
	level := env.Get("KERNEL_LOG_LEVEL", "info", "log verbosity (debug, info, warn, error)")
	os.Setenv("SRC_LOG_LEVEL", level)

	liblog := log.Init(log.Resource{Name: myName, Version: "dev"})
	defer liblog.Sync()

	logger := log.Scoped(myName, "egos-2001-style MLFQ teaching kernel")

	if err := run(logger); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}

func run(logger log.Logger) error {
	ncores := env.GetInt("KERNEL_CORES", 2, "number of simulated cores")
	baseQuantum := env.GetInt("KERNEL_TIMER_QUANTUM_US", 10_000, "base MLFQ level-0 quantum, in microseconds")

	if maxProcs := env.GetInt("KERNEL_MAX_NPROCESS", proc.MaxNProcess, "process table capacity"); maxProcs != proc.MaxNProcess {
		logger.Warn("KERNEL_MAX_NPROCESS ignored: the process table is a fixed-size array sized at compile time",
			log.Int("requested", maxProcs), log.Int("actual", proc.MaxNProcess))
	}

	obs := observation.NewContext(myName, "kernel core observation scope")
	sim := simhal.New()
	clk := hal.NewClock(glock.NewRealClock())
	ctx := kernel.NewWithQuantum(ncores, sim, sim, clk, obs, uint64(baseQuantum))

	loops := make([]*goroutine.PeriodicGoroutine, ncores)
	for core := 0; core < ncores; core++ {
		loop := &goroutine.CoreLoop{Ctx: ctx, Core: core}
		loops[core] = goroutine.NewPeriodicGoroutine(context.Background(), loop,
			goroutine.WithName("kernel.core"),
			goroutine.WithDescription("timer-driven MLFQ dispatch loop for one simulated core"),
			goroutine.WithInterval(time.Millisecond),
		)
		go loops[core].Start()
	}
	defer func() {
		for _, l := range loops {
			l.Stop()
		}
	}()

	counter := &userland.LineCounter{}
	if err := userland.Pipe(ctx, counter, []string{"booting kernel core", "scheduling MLFQ", "done"}); err != nil {
		return errors.Wrap(err, "userland demo pipeline")
	}
	logger.Info("demo pipeline finished", log.Int("lines", counter.Lines))

	return nil
}

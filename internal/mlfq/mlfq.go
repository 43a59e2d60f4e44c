// Package mlfq implements the multi-level feedback queue policy (spec.md
// §4.3, component C3): per-level quantum accounting, demotion on quantum
// exhaustion, periodic global reset, and interactive boost.
//
// Grounded on egos-2001's grass/kernel.c (mlfq_update_level/mlfq_reset_level
// in original_source) for exact constants and control flow; the demotion
// and reset counters follow the promauto.NewCounterVec instrumentation
// style used for scheduler-adjacent accounting in cmd/gitserver/server/
// cleanup.go and other_examples' sourcegraph-zoekt shards/sched.go.
package mlfq

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/egos-2001/kernel-core/internal/proc"
)

// Levels is the number of MLFQ priority levels, 0 highest.
const Levels = 5

// ResetPeriod is the wall-clock interval, in microseconds, between global
// priority resets (spec.md §4.3).
const ResetPeriod uint64 = 10_000_000

// DefaultBaseQuantumMicros is level 0's quantum (spec.md §4.3): 100ms,
// doubling-by-addition through the levels (100ms, 200ms, ... 500ms).
// Overridable via KERNEL_TIMER_QUANTUM_US (SPEC_FULL.md §6).
const DefaultBaseQuantumMicros uint64 = 100_000

// quantum is the CPU-time budget at level L before demotion:
// (L+1) * baseQuantum.
func quantum(baseQuantum uint64, level int) uint64 {
	return uint64(level+1) * baseQuantum
}

// Policy is the MLFQ scheduler state: the configured base quantum and the
// last global-reset timestamp, since per-process queue level/time live on
// the PCB itself (spec.md §3).
type Policy struct {
	baseQuantum   uint64
	lastResetTime uint64

	demotions *prometheus.CounterVec
	resets    prometheus.Counter
}

// The demotion/reset counters are registered once, at package
// initialisation, on the default Prometheus registry (as promauto does
// throughout the teacher corpus's scheduler and janitor code), so any
// number of policies can share them.
var (
	demotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_mlfq_demotions_total",
		Help: "Number of times a process was demoted to a lower MLFQ level.",
	}, []string{"to_level"})
	resetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kernel_mlfq_resets_total",
		Help: "Number of global MLFQ priority resets.",
	})
)

// NewPolicy constructs a policy that records into the package's shared
// demotion/reset counters.
func NewPolicy(baseQuantumMicros uint64) *Policy {
	return &Policy{
		baseQuantum: baseQuantumMicros,
		demotions:   demotionsTotal,
		resets:      resetsTotal,
	}
}

// UpdateLevel adds runtime to p's queue time and demotes it one level if
// its quantum at the current level is exhausted (spec.md §4.3). The
// bottom level never demotes further. No round-robin cursor exists among
// bottom-level co-residents: Select picks the lowest table index among
// them every time, so higher-index processes at that level can starve
// (Design Notes §9 Open Question #2, replicated rather than fixed, per
// SPEC_FULL.md).
func (pol *Policy) UpdateLevel(p *proc.PCB, runtime uint64) {
	p.QueueTime += runtime
	if p.QueueLevel >= Levels-1 {
		return
	}
	if p.QueueTime >= quantum(pol.baseQuantum, p.QueueLevel) {
		p.QueueLevel++
		p.QueueTime = 0
		if pol.demotions != nil {
			pol.demotions.WithLabelValues(strconv.Itoa(p.QueueLevel)).Inc()
		}
	}
}

// ResetLevel is called at every yield (spec.md §4.3). It performs the
// interactive boost — forcing the shell to level 0 if the TTY has
// buffered input — and, every ResetPeriod microseconds of wall time,
// resets every non-UNUSED process to level 0.
func (pol *Policy) ResetLevel(now uint64, ttyEmpty bool, table *proc.Table) {
	if !ttyEmpty {
		for i := 0; i < table.NumSlots(); i++ {
			p := table.Slot(i)
			if p.Pid == proc.GPIDShell && p.Status != proc.Unused {
				p.QueueLevel = 0
				p.QueueTime = 0
				break
			}
		}
	}

	if now-pol.lastResetTime >= ResetPeriod {
		for i := 0; i < table.NumSlots(); i++ {
			p := table.Slot(i)
			if p.Status != proc.Unused {
				p.QueueLevel = 0
				p.QueueTime = 0
			}
		}
		pol.lastResetTime = now
		if pol.resets != nil {
			pol.resets.Inc()
		}
	}
}

// Select implements spec.md §4.4 step 4: a first pass for the runnable
// PCB (READY or RUNNABLE, not sleeping) with the smallest queue level,
// ties broken by lowest table index, and a fallback second pass for the
// first runnable PCB by index if the first pass found nothing.
func Select(table *proc.Table, now uint64) int {
	minLevel := Levels
	winner := -1
	for i := 1; i <= proc.MaxNProcess; i++ {
		p := table.Slot(i)
		if p.WakeupTime > 0 && now < p.WakeupTime {
			continue
		}
		if (p.Status == proc.Ready || p.Status == proc.Runnable) && p.QueueLevel < minLevel {
			minLevel = p.QueueLevel
			winner = i
		}
	}
	if winner >= 0 {
		return winner
	}
	for i := 1; i <= proc.MaxNProcess; i++ {
		p := table.Slot(i)
		if p.WakeupTime > 0 && now < p.WakeupTime {
			continue
		}
		if p.Status == proc.Ready || p.Status == proc.Runnable {
			return i
		}
	}
	return -1
}

// Package proc is the process table & lifecycle manager (spec.md §4.2,
// component C2): a fixed-capacity table of process control blocks,
// allocation, status transitions, and termination reporting.
//
// Grounded on egos-2001's grass/process.c (original_source) for exact
// field semantics, constants, and the termination report's contents and
// ordering.
package proc

import (
	"github.com/sourcegraph/log"

	"github.com/egos-2001/kernel-core/internal/errors"
	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/observation"
)

// Well-known pids (spec.md §6). GPIDAll is the RECV wildcard and is also
// the permanent pid of the table's index-0 idle sentinel, so it can never
// be assigned to a real process by Alloc (which starts at index 1 and
// counts up from 1).
const (
	GPIDAll       hal.Pid = 0
	GPIDShell     hal.Pid = 2
	GPIDUserStart hal.Pid = 10
)

// MaxNProcess bounds the table to MaxNProcess+1 slots; index 0 is the idle
// sentinel (spec.md §3).
const MaxNProcess = 16

// SyscallMsgLen is the fixed inline payload length carried in every
// syscall record (spec.md §3).
const SyscallMsgLen = 32

// Status is the PCB's lifecycle state (spec.md §3).
type Status int

const (
	Unused Status = iota
	Loading
	Ready
	Running
	Runnable
	PendingSyscall
)

func (s Status) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Loading:
		return "LOADING"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Runnable:
		return "RUNNABLE"
	case PendingSyscall:
		return "PENDING_SYSCALL"
	default:
		return "UNKNOWN"
	}
}

// SyscallType distinguishes the two IPC operations (spec.md §4.5).
type SyscallType int

const (
	SysNone SyscallType = iota
	SysSend
	SysRecv
)

// SyscallStatus tracks whether a syscall record is still being serviced.
type SyscallStatus int

const (
	SyscallPending SyscallStatus = iota
	SyscallDone
)

// Syscall is the in-kernel copy of the user-space syscall record
// (spec.md §6): type, peer pid, inline payload, and completion status.
type Syscall struct {
	Type     SyscallType
	Sender   hal.Pid // RECV: requested filter (GPIDAll or a specific pid); SEND: unused until matched
	Receiver hal.Pid // SEND: target pid
	Status   SyscallStatus
	Content  [SyscallMsgLen]byte
}

// PCB is the process control block (spec.md §3).
type PCB struct {
	Pid    hal.Pid
	Status Status

	Mepc           uint64
	SavedRegisters hal.Frame

	Syscall Syscall

	// MLFQ scheduling state.
	QueueLevel       int
	QueueTime        uint64
	LastScheduleTime uint64
	WakeupTime       uint64

	// Lifecycle accounting.
	CreationTime       uint64
	FirstScheduleTime  uint64
	TotalCPUTime       uint64
	TerminationTime    uint64
	TimerInterruptCount int
}

// BlockedOn reports the peer and kind of IPC block this PCB is waiting on,
// for observability only (SPEC_FULL.md §4.5) — it never feeds scheduling
// decisions and does not replace Status.
func (p *PCB) BlockedOn() (peer hal.Pid, kind SyscallType, blocked bool) {
	if p.Status != PendingSyscall || p.Syscall.Status != SyscallPending {
		return 0, SysNone, false
	}
	switch p.Syscall.Type {
	case SysSend:
		return p.Syscall.Receiver, SysSend, true
	case SysRecv:
		return p.Syscall.Sender, SysRecv, true
	default:
		return 0, SysNone, false
	}
}

// Demoter is the subset of the MLFQ policy the process table needs when a
// transition out of RUNNING forwards accrued runtime for accounting
// (spec.md §4.2: "forwards that interval to the MLFQ policy").
type Demoter interface {
	UpdateLevel(p *PCB, runtime uint64)
}

// Table is the fixed-size process table (spec.md §3): MaxNProcess+1 PCBs,
// index 0 the idle sentinel. CoreToProcIdx maps each hart to the PCB index
// currently dispatched on it.
type Table struct {
	slots         [MaxNProcess + 1]PCB
	nextPid       hal.Pid
	CoreToProcIdx []int

	clock  hal.Clock
	logger log.Logger
}

// NewTable constructs an empty table for ncores cores.
func NewTable(clock hal.Clock, obs *observation.Context, ncores int) *Table {
	return &Table{
		CoreToProcIdx: make([]int, ncores),
		clock:         clock,
		logger:        obs.Logger,
	}
}

var (
	// ErrTableFull is an invariant-break class error (spec.md §7): the
	// table has no UNUSED slot at index >= 1.
	ErrTableFull = errors.Wrap(errors.ErrKernelPanic, "process table full")
	// ErrUnknownPid is returned by lookups that address a pid with no
	// matching PCB.
	ErrUnknownPid = errors.New("proc: unknown pid")
)

// Slot returns the PCB at table index i. i must be in [0, MaxNProcess].
func (t *Table) Slot(i int) *PCB { return &t.slots[i] }

// ByPid returns the PCB for pid, or nil if no slot holds it.
func (t *Table) ByPid(pid hal.Pid) *PCB {
	i := t.find(pid)
	if i < 0 {
		return nil
	}
	return &t.slots[i]
}

// NumSlots is the table's fixed capacity, including the idle sentinel.
func (t *Table) NumSlots() int { return len(t.slots) }

// find returns the table index of the PCB with the given pid, or -1.
func (t *Table) find(pid hal.Pid) int {
	for i := 1; i <= MaxNProcess; i++ {
		if t.slots[i].Pid == pid && t.slots[i].Status != Unused {
			return i
		}
	}
	return -1
}

// Alloc finds the first UNUSED slot at index >= 1, assigns a fresh
// monotonic pid, marks it LOADING, and zeroes accounting/scheduling state
// (spec.md §4.2). Returns ErrTableFull if no slot is free — an invariant
// break per spec.md §7, not a transient condition.
func (t *Table) Alloc() (hal.Pid, error) {
	for i := 1; i <= MaxNProcess; i++ {
		if t.slots[i].Status == Unused {
			t.nextPid++
			pid := t.nextPid
			t.slots[i] = PCB{
				Pid:          pid,
				Status:       Loading,
				CreationTime: t.clock.NowMicros(),
			}
			return pid, nil
		}
	}
	return 0, ErrTableFull
}

// SetReady transitions pid to READY (post-load, pre-first-dispatch).
func (t *Table) SetReady(pid hal.Pid) error {
	i := t.find(pid)
	if i < 0 {
		return errors.Wrap(ErrUnknownPid, "set_ready")
	}
	t.slots[i].Status = Ready
	return nil
}

// SetRunning transitions pid to RUNNING, stamping FirstScheduleTime on its
// first call and refreshing LastScheduleTime every call (spec.md §4.2).
func (t *Table) SetRunning(pid hal.Pid) error {
	i := t.find(pid)
	if i < 0 {
		return errors.Wrap(ErrUnknownPid, "set_running")
	}
	now := t.clock.NowMicros()
	if t.slots[i].FirstScheduleTime == 0 {
		t.slots[i].FirstScheduleTime = now
	}
	t.slots[i].LastScheduleTime = now
	t.slots[i].Status = Running
	return nil
}

// accrueRunningTime adds the interval since LastScheduleTime to
// TotalCPUTime and forwards it to the MLFQ policy, as spec.md §4.2
// requires of any transition out of RUNNING.
func (t *Table) accrueRunningTime(i int, mlfq Demoter) {
	p := &t.slots[i]
	if p.Status == Running && p.LastScheduleTime > 0 {
		now := t.clock.NowMicros()
		runtime := now - p.LastScheduleTime
		p.TotalCPUTime += runtime
		if mlfq != nil {
			mlfq.UpdateLevel(p, runtime)
		}
	}
}

// SetRunnable transitions pid to RUNNABLE (preemption), accruing CPU time
// first if it was RUNNING.
func (t *Table) SetRunnable(pid hal.Pid, mlfq Demoter) error {
	i := t.find(pid)
	if i < 0 {
		return errors.Wrap(ErrUnknownPid, "set_runnable")
	}
	t.accrueRunningTime(i, mlfq)
	t.slots[i].Status = Runnable
	return nil
}

// SetPending transitions pid to PENDING_SYSCALL (ECALL or sleep), accruing
// CPU time first if it was RUNNING.
func (t *Table) SetPending(pid hal.Pid, mlfq Demoter) error {
	i := t.find(pid)
	if i < 0 {
		return errors.Wrap(ErrUnknownPid, "set_pending")
	}
	t.accrueRunningTime(i, mlfq)
	t.slots[i].Status = PendingSyscall
	return nil
}

// Sleep puts pid to sleep until now+usec, marking it PENDING_SYSCALL with
// WakeupTime set (spec.md §4.1's "sleep/wake based on monotonic time").
func (t *Table) Sleep(pid hal.Pid, usec uint64) error {
	i := t.find(pid)
	if i < 0 {
		return errors.Wrap(ErrUnknownPid, "sleep")
	}
	t.slots[i].WakeupTime = t.clock.NowMicros() + usec
	t.slots[i].Status = PendingSyscall
	return nil
}

// responseClamp replicates, without "fixing", the source's documented
// quirk (spec.md §4.2, §9 Open Question #1): a response time that exceeds
// the turnaround or 10s is treated as implausible (clock not yet warm) and
// clamped to half the turnaround, rather than to the turnaround itself.
const responseClampThresholdMicros = 10_000_000

func responseClamp(turnaround, response uint64) uint64 {
	if response > turnaround || response > responseClampThresholdMicros {
		return turnaround / 2
	}
	return response
}

// TerminationReport is the six-line per-process report spec.md §4.2 and
// §6 require on free, expressed as a struct so internal/observation can
// render it as one structured log call instead of six fmt.Println calls
// (SPEC_FULL.md §4.2) while still surfacing the same six values.
type TerminationReport struct {
	Pid               hal.Pid
	TurnaroundMillis  uint64
	ResponseMillis    uint64
	CPUMillis         uint64
	WaitingMillis     uint64
	TimerInterrupts   int
	FinalQueueLevel   int
}

func (t *Table) terminate(i int, hw hal.HAL) TerminationReport {
	p := &t.slots[i]
	now := t.clock.NowMicros()
	p.TerminationTime = now

	turnaround := now - p.CreationTime
	var response uint64
	if p.FirstScheduleTime > p.CreationTime {
		response = p.FirstScheduleTime - p.CreationTime
	}
	response = responseClamp(turnaround, response)

	var waiting uint64
	if turnaround > response+p.TotalCPUTime {
		waiting = turnaround - response - p.TotalCPUTime
	}

	report := TerminationReport{
		Pid:              p.Pid,
		TurnaroundMillis: turnaround / 1000,
		ResponseMillis:   response / 1000,
		CPUMillis:        p.TotalCPUTime / 1000,
		WaitingMillis:    waiting / 1000,
		TimerInterrupts:  p.TimerInterruptCount,
		FinalQueueLevel:  p.QueueLevel,
	}

	t.logger.Info("Process terminated",
		log.Int("pid", int(p.Pid)),
		log.Uint64("turnaroundMs", report.TurnaroundMillis),
		log.Uint64("responseMs", report.ResponseMillis),
		log.Uint64("cpuMs", report.CPUMillis),
		log.Uint64("waitingMs", report.WaitingMillis),
		log.Int("timerInterrupts", report.TimerInterrupts),
		log.Int("finalQueueLevel", report.FinalQueueLevel),
	)

	if hw != nil {
		hw.MMUFree(p.Pid)
	}
	*p = PCB{}
	p.Status = Unused
	return report
}

// Free terminates pid, or (pid == GPIDAll) every user-space process
// (pid >= GPIDUserStart), emitting a TerminationReport for each and
// releasing its address space (spec.md §4.2).
func (t *Table) Free(pid hal.Pid, hw hal.HAL) ([]TerminationReport, error) {
	if pid != GPIDAll {
		i := t.find(pid)
		if i < 0 {
			return nil, errors.Wrap(ErrUnknownPid, "free")
		}
		return []TerminationReport{t.terminate(i, hw)}, nil
	}

	var reports []TerminationReport
	for i := 1; i <= MaxNProcess; i++ {
		if t.slots[i].Pid >= GPIDUserStart && t.slots[i].Status != Unused {
			reports = append(reports, t.terminate(i, hw))
		}
	}
	return reports, nil
}

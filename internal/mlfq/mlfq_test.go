package mlfq

import (
	"testing"

	"github.com/derision-test/glock"
	"github.com/stretchr/testify/require"

	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/observation"
	"github.com/egos-2001/kernel-core/internal/proc"
)

func newTestTable(t *testing.T) (*proc.Table, *glock.MockClock) {
	t.Helper()
	mc := glock.NewMockClock()
	clk := hal.NewClock(mc)
	return proc.NewTable(clk, observation.NewContext("mlfq_test", ""), 1), mc
}

func TestUpdateLevelDemotesOnQuantumExhaustion(t *testing.T) {
	pol := NewPolicy(DefaultBaseQuantumMicros)
	p := &proc.PCB{QueueLevel: 0}

	pol.UpdateLevel(p, quantum(DefaultBaseQuantumMicros, 0)-1)
	require.Equal(t, 0, p.QueueLevel, "must not demote before the quantum is exhausted")

	pol.UpdateLevel(p, 1)
	require.Equal(t, 1, p.QueueLevel)
	require.Equal(t, uint64(0), p.QueueTime, "queue time resets on demotion")
}

func TestUpdateLevelNeverDemotesPastBottom(t *testing.T) {
	pol := NewPolicy(DefaultBaseQuantumMicros)
	p := &proc.PCB{QueueLevel: Levels - 1}

	pol.UpdateLevel(p, quantum(DefaultBaseQuantumMicros, Levels-1)*10)
	require.Equal(t, Levels-1, p.QueueLevel)
}

func TestResetLevelInteractiveBoostTargetsOnlyShell(t *testing.T) {
	table, _ := newTestTable(t)
	pol := NewPolicy(DefaultBaseQuantumMicros)

	shellPid, err := table.Alloc()
	require.NoError(t, err)
	for shellPid != proc.GPIDShell {
		shellPid, err = table.Alloc()
		require.NoError(t, err)
	}
	require.NoError(t, table.SetReady(shellPid))
	shell := table.ByPid(shellPid)
	shell.QueueLevel = 3

	otherPid, err := table.Alloc()
	require.NoError(t, err)
	require.NoError(t, table.SetReady(otherPid))
	other := table.ByPid(otherPid)
	other.QueueLevel = 3

	pol.ResetLevel(1000, false /* ttyEmpty=false: a key arrived */, table)

	require.Equal(t, 0, shell.QueueLevel)
	require.Equal(t, 3, other.QueueLevel, "boost only affects the shell")
}

func TestResetLevelPeriodicResetAffectsEveryProcess(t *testing.T) {
	table, _ := newTestTable(t)
	pol := NewPolicy(DefaultBaseQuantumMicros)

	pid, err := table.Alloc()
	require.NoError(t, err)
	require.NoError(t, table.SetReady(pid))
	p := table.ByPid(pid)
	p.QueueLevel = 4

	pol.ResetLevel(ResetPeriod, true, table)
	require.Equal(t, 0, p.QueueLevel)
}

func TestSelectPrefersLowestQueueLevel(t *testing.T) {
	table, _ := newTestTable(t)

	lowPid, err := table.Alloc()
	require.NoError(t, err)
	require.NoError(t, table.SetReady(lowPid))

	highPid, err := table.Alloc()
	require.NoError(t, err)
	require.NoError(t, table.SetReady(highPid))
	table.ByPid(highPid).QueueLevel = 0
	table.ByPid(lowPid).QueueLevel = 2

	winner := Select(table, 0)
	require.Equal(t, highPid, table.Slot(winner).Pid)
}

func TestSelectSkipsSleepingProcesses(t *testing.T) {
	table, _ := newTestTable(t)

	sleeperPid, err := table.Alloc()
	require.NoError(t, err)
	require.NoError(t, table.SetReady(sleeperPid))
	require.NoError(t, table.Sleep(sleeperPid, 1_000_000))

	runnablePid, err := table.Alloc()
	require.NoError(t, err)
	require.NoError(t, table.SetReady(runnablePid))

	winner := Select(table, 500)
	require.Equal(t, runnablePid, table.Slot(winner).Pid)
}

func TestSelectReturnsNegativeOneWhenNothingRunnable(t *testing.T) {
	table, _ := newTestTable(t)
	require.Equal(t, -1, Select(table, 0))
}

// Package simhal is the simulated HAL backend (SPEC_FULL.md §4.1,
// component C10): a fake timer/MMU/TTY/user-memory implementation that
// lets internal/dispatcher and internal/ipc be exercised end to end
// without real hardware, in the spirit of the glock.NewMockClock fakes
// used throughout the teacher corpus's scheduler and worker tests.
package simhal

import (
	"sync"

	"github.com/egos-2001/kernel-core/internal/errors"
	"github.com/egos-2001/kernel-core/internal/hal"
)

// ErrBadAddress is returned when a translation or copy targets a pid with
// no mapped address space. Callers receive it as an ordinary error; the
// dispatcher returns it wrapped from KernelEntry and does not kill the
// process over it.
var ErrBadAddress = errors.New("simhal: unmapped address")

// Simulated is an in-memory HAL + UserMemory implementation.
type Simulated struct {
	mu sync.Mutex

	timerResets  map[int]int
	mem          map[hal.Pid]map[uintptr][]byte
	ttyBuffered  int
}

var (
	_ hal.HAL        = (*Simulated)(nil)
	_ hal.UserMemory = (*Simulated)(nil)
)

// New constructs an empty simulated HAL.
func New() *Simulated {
	return &Simulated{
		timerResets: make(map[int]int),
		mem:         make(map[hal.Pid]map[uintptr][]byte),
	}
}

// Map registers pid's simulated address space so MMUTranslate/CopyIn/
// CopyOut can target it; MMUSwitch and proc.Alloc-adjacent setup call
// this for a freshly loaded process, mirroring the real MMU being
// programmed with a fresh page table on process creation.
func (s *Simulated) Map(pid hal.Pid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mem[pid] == nil {
		s.mem[pid] = make(map[uintptr][]byte)
	}
}

// TimerReset records a timer re-arm for core, for test assertions.
func (s *Simulated) TimerReset(core int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timerResets[core]++
}

// TimerResetCount reports how many times TimerReset(core) has been
// called, for tests asserting the dispatcher re-arms the timer on every
// dispatch and on idle entry (spec.md §4.4 steps 5-6).
func (s *Simulated) TimerResetCount(core int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timerResets[core]
}

// MMUTranslate reports ErrBadAddress for any pid not yet Map'd;
// otherwise it returns vaddr unchanged (there is no real physical/virtual
// distinction in the simulation — the identity mapping is the simplest
// translation that still lets CopyIn/CopyOut key off the same address).
func (s *Simulated) MMUTranslate(pid hal.Pid, vaddr uintptr) (uintptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mem[pid]; !ok {
		return 0, errors.Wrapf(ErrBadAddress, "pid=%d vaddr=%#x", pid, vaddr)
	}
	return vaddr, nil
}

func (s *Simulated) MMUSwitch(pid hal.Pid) { s.Map(pid) }

func (s *Simulated) MMUFlushCache() {}

func (s *Simulated) MMUFree(pid hal.Pid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mem, pid)
}

// TTYInputEmpty reports whether PushKey has queued an unconsumed
// keystroke.
func (s *Simulated) TTYInputEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttyBuffered == 0
}

// PushKey simulates a keystroke arriving, for the interactive-boost test
// scenario (spec.md §8 scenario 5).
func (s *Simulated) PushKey() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttyBuffered++
}

// DrainKeys consumes all buffered keystrokes, as the TTY driver would
// once the shell reads them.
func (s *Simulated) DrainKeys() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttyBuffered = 0
}

// CopyIn copies len(dst) bytes from pid's simulated address space at
// vaddr into dst (e.g. reading the user-space syscall record on ECALL).
func (s *Simulated) CopyIn(pid hal.Pid, vaddr uintptr, dst []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	space, ok := s.mem[pid]
	if !ok {
		return errors.Wrapf(ErrBadAddress, "pid=%d vaddr=%#x", pid, vaddr)
	}
	copy(dst, space[vaddr])
	return nil
}

// CopyOut copies src into pid's simulated address space at vaddr (e.g.
// writing the completed syscall record back on RECV completion).
func (s *Simulated) CopyOut(pid hal.Pid, vaddr uintptr, src []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	space, ok := s.mem[pid]
	if !ok {
		return errors.Wrapf(ErrBadAddress, "pid=%d vaddr=%#x", pid, vaddr)
	}
	buf := make([]byte, len(src))
	copy(buf, src)
	space[vaddr] = buf
	return nil
}

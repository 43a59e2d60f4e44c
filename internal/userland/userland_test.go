package userland

import (
	"testing"

	"github.com/derision-test/glock"
	"github.com/stretchr/testify/require"

	"github.com/egos-2001/kernel-core/internal/hal"
	"github.com/egos-2001/kernel-core/internal/kernel"
	"github.com/egos-2001/kernel-core/internal/observation"
	"github.com/egos-2001/kernel-core/internal/simhal"
)

func newFixture(t *testing.T) *kernel.Context {
	t.Helper()
	sim := simhal.New()
	clk := hal.NewClock(glock.NewMockClock())
	return kernel.New(1, sim, sim, clk, observation.NewContext("userland_test", ""))
}

func TestLineCounterCountsNonBlankLines(t *testing.T) {
	ctx := newFixture(t)
	counter := &LineCounter{}

	err := Pipe(ctx, counter, []string{"first line", "", "third line"})
	require.NoError(t, err)
	require.Equal(t, 2, counter.Lines)
}

func TestGrepKeepsOnlyMatchingLines(t *testing.T) {
	ctx := newFixture(t)
	grep := &Grep{Pattern: "error"}

	err := Pipe(ctx, grep, []string{"starting up", "error: disk full", "all good", "fatal error here"})
	require.NoError(t, err)
	require.Equal(t, []string{"error: disk full", "fatal error here"}, grep.Matches)
}

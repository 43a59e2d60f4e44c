package simhal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMMUTranslateRequiresMappedPid(t *testing.T) {
	s := New()

	_, err := s.MMUTranslate(7, 0x1000)
	require.ErrorIs(t, err, ErrBadAddress)

	s.Map(7)
	paddr, err := s.MMUTranslate(7, 0x1000)
	require.NoError(t, err)
	require.Equal(t, uintptr(0x1000), paddr)
}

func TestMMUFreeUnmapsAddressSpace(t *testing.T) {
	s := New()
	s.Map(3)
	require.NoError(t, s.CopyOut(3, 0x2000, []byte("hi")))

	s.MMUFree(3)

	_, err := s.MMUTranslate(3, 0x2000)
	require.Error(t, err)
}

func TestCopyOutThenCopyInRoundTrips(t *testing.T) {
	s := New()
	s.Map(1)

	require.NoError(t, s.CopyOut(1, 0x3000, []byte("payload")))
	dst := make([]byte, len("payload"))
	require.NoError(t, s.CopyIn(1, 0x3000, dst))
	require.Equal(t, "payload", string(dst))
}

func TestTTYInputEmptyTracksPushAndDrain(t *testing.T) {
	s := New()
	require.True(t, s.TTYInputEmpty())

	s.PushKey()
	require.False(t, s.TTYInputEmpty())

	s.DrainKeys()
	require.True(t, s.TTYInputEmpty())
}

func TestTimerResetCountsPerCore(t *testing.T) {
	s := New()
	s.TimerReset(0)
	s.TimerReset(0)
	s.TimerReset(1)

	require.Equal(t, 2, s.TimerResetCount(0))
	require.Equal(t, 1, s.TimerResetCount(1))
}

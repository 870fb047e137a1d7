package registers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_WordRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.SetWord(Holding, AddrCommand, 42))
	v, err := s.GetWord(Holding, AddrCommand)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), v)
}

func Test_SignedWordHandlesNegativeStatus(t *testing.T) {
	s := New()
	require.NoError(t, s.SetWordSigned(Input, AddrStatus, StatusError))
	v, err := s.GetWordSigned(Input, AddrStatus)
	require.NoError(t, err)
	assert.EqualValues(t, -1, v)
}

func Test_DwordFloatRoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.SetDwordFloat(Holding, AddrRefWallThickness, 5.0))
	v, err := s.GetDwordFloat(Holding, AddrRefWallThickness)
	require.NoError(t, err)
	assert.Equal(t, float32(5.0), v)

	high, err := s.GetWord(Holding, AddrRefWallThickness)
	require.NoError(t, err)
	low, err := s.GetWord(Holding, AddrRefWallThickness+1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x40A0), high, "5.0f high word")
	assert.Equal(t, uint16(0x0000), low)
}

func Test_DwordU32RoundTrip(t *testing.T) {
	s := New()
	require.NoError(t, s.SetDwordU32(Holding, AddrAxisStepCount, 123456))
	v, err := s.GetDwordU32(Holding, AddrAxisStepCount)
	require.NoError(t, err)
	assert.EqualValues(t, 123456, v)
}

func Test_IncrementSaturatesAt0xFFFF(t *testing.T) {
	s := New()
	require.NoError(t, s.SetWord(Input, AddrShiftTotal, 0xfffe))
	require.NoError(t, s.IncrementWordSaturating(Input, AddrShiftTotal, 1))
	require.NoError(t, s.IncrementWordSaturating(Input, AddrShiftTotal, 5))
	v, err := s.GetWord(Input, AddrShiftTotal)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xffff), v)
}

func Test_SnapshotReflectsLiveValues(t *testing.T) {
	s := New()
	require.NoError(t, s.SetWord(Holding, AddrQualityCheckMode, 2))
	require.NoError(t, s.SetWord(Holding, AddrAllowedBad, 3))

	snap, err := s.Snapshot(Holding, []int{AddrQualityCheckMode, AddrAllowedBad})
	require.NoError(t, err)
	assert.Equal(t, uint16(2), snap[AddrQualityCheckMode])
	assert.Equal(t, uint16(3), snap[AddrAllowedBad])
}

func Test_OutOfRangeAddressErrors(t *testing.T) {
	s := New()
	_, err := s.GetWord(Holding, 1)
	assert.Error(t, err)
}

func Test_AllWordsDumpsFullBankKeyedByModiconAddress(t *testing.T) {
	s := New()
	require.NoError(t, s.SetWord(Holding, AddrCommand, 14))
	require.NoError(t, s.SetWordSigned(Input, AddrStatus, StatusError))

	holding := s.AllWords(Holding)
	assert.Equal(t, uint16(14), holding[AddrCommand])

	input := s.AllWords(Input)
	assert.Equal(t, uint16(0xffff), input[AddrStatus])
}

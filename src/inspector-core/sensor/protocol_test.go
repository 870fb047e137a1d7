package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_BroadcastLatchFrame(t *testing.T) {
	assert.Equal(t, []byte{0x00, 0x85}, BroadcastLatchFrame())
}

func Test_ReadLatchedFrame(t *testing.T) {
	assert.Equal(t, []byte{3, 0x86}, ReadLatchedFrame(3))
}

func Test_StreamStartFrame(t *testing.T) {
	assert.Equal(t, []byte{4, 0x87}, StreamStartFrame(4))
}

func Test_StreamStopFrame(t *testing.T) {
	assert.Equal(t, []byte{4, 0x88}, StreamStopFrame(4))
}

func Test_ParamWriteFrame_SetsHighBitOnEveryPayloadByte(t *testing.T) {
	frame := ParamWriteFrame(2, 0x0C, 0x1234)
	require.Len(t, frame, 6)
	assert.Equal(t, byte(2), frame[0])
	assert.Equal(t, byte(0x83), frame[1])
	for _, b := range frame[2:] {
		assert.NotZero(t, b&0x80, "payload byte %#x must have high bit set", b)
	}
}

func Test_CommitFlashFrame(t *testing.T) {
	assert.Equal(t, []byte{1, 0x84, 0x8A, 0x8A}, CommitFlashFrame(1))
}

func Test_DecodeReply_RejectsMissingHighBit(t *testing.T) {
	_, err := DecodeReply([4]byte{0x80, 0x80, 0x80, 0x00})
	assert.Error(t, err)
}

func Test_DecodeReply_AssemblesRawFromLowNibbles(t *testing.T) {
	// lo = 0x5 | (0xA<<4) = 0xA5, hi = 0x3 | (0x0<<4) = 0x03
	// raw = 0xA5 | (0x03<<8) = 0x03A5 = 933
	reply := [4]byte{0x80 | 0x5, 0x80 | 0xA, 0x80 | 0x3, 0x80 | 0x0}
	raw, err := DecodeReply(reply)
	require.NoError(t, err)
	assert.EqualValues(t, 0x03A5, raw)
}

func Test_RawToMM_ZeroMeansNoTarget(t *testing.T) {
	assert.Equal(t, float32(0), RawToMM(0))
}

func Test_RawToMM_Bounds(t *testing.T) {
	assert.InDelta(t, 20.0, RawToMM(1), 0.01)
	assert.InDelta(t, 45.0, RawToMM(16384), 0.01)
}

func Test_IsValidMM(t *testing.T) {
	assert.True(t, IsValidMM(20.0))
	assert.True(t, IsValidMM(50.0))
	assert.False(t, IsValidMM(19.999))
	assert.False(t, IsValidMM(50.001))
}

func Test_RawToMM_AlwaysInRangeOrZero_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.Uint16Range(0, rawMax).Draw(t, "raw")
		mm := RawToMM(raw)
		if raw == 0 {
			assert.Equal(t, float32(0), mm)
		} else {
			assert.True(t, mm >= MinValidMM && mm <= MaxValidMM, "mm=%v out of range for raw=%v", mm, raw)
		}
	})
}

func Test_MMToRiftekInt_ClampsAndRoundTrips(t *testing.T) {
	assert.EqualValues(t, 0, MMToRiftekInt(20.0))
	assert.EqualValues(t, 0, MMToRiftekInt(10.0)) // below range clamps to 0
	assert.EqualValues(t, rawMax, MMToRiftekInt(1000.0))

	// mid-range value should decode back to something close to itself
	mm := float32(35.0)
	raw := MMToRiftekInt(mm)
	decoded := RawToMM(raw)
	assert.InDelta(t, float64(mm), float64(decoded), 0.01)
}

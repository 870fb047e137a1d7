package calibration

import (
	"testing"

	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/lasergeom/inspector-core/src/inspector-core/sensor"
	"github.com/lasergeom/inspector-core/src/inspector-core/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Wall_CMD100_ComputesDist12AndDist13(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrRefWallThickness, 5.0))
	e := New(store, nil)
	e.Start(100)
	e.Feed(sensor.Sample{S1: util.PointerTo(float32(10.0)), S2: util.PointerTo(float32(12.0)), S3: util.PointerTo(float32(3.0))})
	e.Feed(sensor.Sample{S1: util.PointerTo(float32(10.0)), S2: util.PointerTo(float32(12.0)), S3: util.PointerTo(float32(3.0))})

	status, err := e.Finish(100)
	require.NoError(t, err)
	assert.Equal(t, registers.StatusIdle, status)

	d12, err := store.GetDwordFloat(registers.Holding, registers.AddrCalibDist12)
	require.NoError(t, err)
	assert.InDelta(t, 27.0, d12, 1e-4) // 10+12+5

	d13, err := store.GetDwordFloat(registers.Holding, registers.AddrCalibDist13)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, d13, 1e-4) // 10-3
}

func Test_Wall_CMD100_RefNotPositive_FailsAndZeroes(t *testing.T) {
	store := registers.New()
	// ref left at zero.
	e := New(store, nil)
	e.Start(100)
	e.Feed(sensor.Sample{S1: util.PointerTo(float32(10.0)), S2: util.PointerTo(float32(12.0)), S3: util.PointerTo(float32(3.0))})

	status, err := e.Finish(100)
	assert.Error(t, err)
	assert.Equal(t, registers.StatusError, status)

	d12, _ := store.GetDwordFloat(registers.Holding, registers.AddrCalibDist12)
	assert.Equal(t, float32(0), d12)
}

func Test_Wall_CMD100_NoSamples_Fails(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrRefWallThickness, 5.0))
	e := New(store, nil)
	e.Start(100)
	status, err := e.Finish(100)
	assert.Error(t, err)
	assert.Equal(t, registers.StatusError, status)
}

func Test_Bottom_CMD101(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrRefBottomThickness, 2.0))
	e := New(store, nil)
	e.Start(101)
	e.Feed(sensor.Sample{S4: util.PointerTo(float32(8.0))})
	status, err := e.Finish(101)
	require.NoError(t, err)
	assert.Equal(t, registers.StatusIdle, status)
	d4s, err := store.GetDwordFloat(registers.Holding, registers.AddrCalibDist4Surface)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, d4s, 1e-4)
}

func Test_FlangeAxis_CMD102_HalfRefPlusAvg(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrRefBodyDiameter, 100.0))
	e := New(store, nil)
	e.Start(102)
	e.Feed(sensor.Sample{S1: util.PointerTo(float32(4.0))})
	status, err := e.Finish(102)
	require.NoError(t, err)
	assert.Equal(t, registers.StatusIdle, status)
	d1c, err := store.GetDwordFloat(registers.Holding, registers.AddrCalibDist1Axis)
	require.NoError(t, err)
	assert.InDelta(t, 54.0, d1c, 1e-4) // 50+4
}

func Test_Height_CMD103_RequiresThreeOfLastFiveNonZero(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrRefHeight, 1.0))
	require.NoError(t, store.SetDwordU32(registers.Holding, registers.AddrAxisStepCount, 200))
	require.NoError(t, store.SetWord(registers.Holding, registers.AddrEncoderPulsesPerMm, 100))

	e := New(store, nil)
	e.Start(103)
	// only 2 of 5 non-zero -> fails
	for _, v := range []float32{0, 0, 1.0, 0, 1.0} {
		e.Feed(sensor.Sample{S1: util.PointerTo(v)})
	}
	status, err := e.Finish(103)
	assert.Error(t, err)
	assert.Equal(t, registers.StatusError, status)

	e.Start(103)
	for _, v := range []float32{0, 1.0, 1.0, 0, 1.0} {
		e.Feed(sensor.Sample{S1: util.PointerTo(v)})
	}
	status, err = e.Finish(103)
	require.NoError(t, err)
	assert.Equal(t, registers.StatusIdle, status)
	dp, err := store.GetDwordFloat(registers.Holding, registers.AddrDistToRefPlane)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, dp, 1e-4) // 200/100 + 1.0
}

type fakeWriter struct {
	calls []struct {
		addr byte
		code uint16
		val  uint16
	}
}

func (f *fakeWriter) WriteParameter(addr byte, code, val uint16) error {
	f.calls = append(f.calls, struct {
		addr byte
		code uint16
		val  uint16
	}{addr, code, val})
	return nil
}

func Test_SensorWindowWrite_CMD106_ConvertsAndWritesBothEdges(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrSensor3WindowStart, 25.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrSensor3WindowEnd, 35.0))

	w := &fakeWriter{}
	e := New(store, w)
	e.Start(106)
	status, err := e.Finish(106)
	require.NoError(t, err)
	assert.Equal(t, registers.StatusIdle, status)
	require.Len(t, w.calls, 2)
	assert.Equal(t, sensor.MMToRiftekInt(25.0), w.calls[0].val)
	assert.Equal(t, sensor.MMToRiftekInt(35.0), w.calls[1].val)
}

func Test_SensorWindowWrite_CMD106_NonPositiveWindowFails(t *testing.T) {
	store := registers.New()
	w := &fakeWriter{}
	e := New(store, w)
	e.Start(106)
	_, err := e.Finish(106)
	assert.Error(t, err)
}

func Test_Diagnostics_CMD104_IsNoOp(t *testing.T) {
	store := registers.New()
	e := New(store, nil)
	e.Start(104)
	status, err := e.Finish(104)
	require.NoError(t, err)
	assert.Equal(t, registers.StatusIdle, status)
}

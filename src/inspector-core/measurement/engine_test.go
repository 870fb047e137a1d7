package measurement

import (
	"testing"

	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/lasergeom/inspector-core/src/inspector-core/sensor"
	"github.com/lasergeom/inspector-core/src/inspector-core/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feedBatches(t *testing.T, e *Engine, s1, s2 float32, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		e.Feed(sensor.Sample{S1: util.PointerTo(s1), S2: util.PointerTo(s2)})
	}
}

func Test_UpperWallCycle_MatchesWorkedExample(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrCalibDist12, 22.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrOffsetUpperWall, 0.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrExtrapThickness, 1.0))

	e := New(store)
	require.NoError(t, e.StartPhase(10))
	// 100 raw samples of s1=8.0, s2=9.0 drain into 10 batches, each
	// thickness = 22.0 - 8.0 - 9.0 = 5.0 (spec §8 scenario 3).
	feedBatches(t, e, 8.0, 9.0, 100)

	result, err := e.CalculateWall()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, result.Thickness.Avg, 1e-4)
	assert.InDelta(t, 5.0, result.Thickness.Max, 1e-4)
	assert.InDelta(t, 5.0, result.Thickness.Min, 1e-4)
}

func Test_CalculateWall_EmptyBufferErrors(t *testing.T) {
	store := registers.New()
	e := New(store)
	require.NoError(t, e.StartPhase(10))
	_, err := e.CalculateWall()
	assert.Error(t, err)
}

func Test_CalculateWall_WrongActivePhaseErrors(t *testing.T) {
	store := registers.New()
	e := New(store)
	require.NoError(t, e.StartPhase(30))
	_, err := e.CalculateWall()
	assert.Error(t, err)
}

func Test_FlangeCompositeCycle_IndependentPerSensorAccumulation(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrCalibDist1Axis, 60.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrCalibFlangeAxis, 80.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrCalibDist4Surface, 30.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrOffsetBottom, 0.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrExtrapBodyDiameter, 1.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrExtrapFlangeDiameter, 1.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrExtrapThickness, 1.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrOffsetBodyDiameter, 0.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrOffsetFlangeDiameter, 0.0))

	e := New(store)
	require.NoError(t, e.StartPhase(12))
	// two distinct window-drains per sensor so each radius series has
	// N=2 entries and ReduceDiameter's i/i+N/2 pairing has something to pair.
	for batch := 0; batch < 2; batch++ {
		for i := 0; i < 10; i++ {
			e.Feed(sensor.Sample{
				S1: util.PointerTo(float32(10.0)), // body radius batches = 60-10 = 50
				S3: util.PointerTo(float32(20.0)), // flange radius batches = 80-20 = 60
				S4: util.PointerTo(float32(5.0)),  // bottom batches = 30-5 = 25
			})
		}
	}

	result, err := e.CalculateFlangeComposite()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, result.BodyDiameter.Avg, 1e-3) // 50+50
	assert.InDelta(t, 120.0, result.FlangeDiameter.Avg, 1e-3) // 60+60
	assert.InDelta(t, 25.0, result.Bottom.Avg, 1e-3)
}

func Test_SeparateBodyCycle(t *testing.T) {
	store := registers.New()
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrCalibBodySeparateAxis, 70.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrExtrapBodyDiameter, 1.0))
	require.NoError(t, store.SetDwordFloat(registers.Holding, registers.AddrOffsetBodyDiameter, 1.5))

	e := New(store)
	require.NoError(t, e.StartPhase(30))
	for i := 0; i < 20; i++ {
		e.Feed(sensor.Sample{S3: util.PointerTo(float32(20.0))}) // radius batches = 70-20 = 50
	}
	result, err := e.CalculateSeparateBody()
	require.NoError(t, err)
	assert.InDelta(t, 101.5, result.BodyDiameter.Avg, 1e-3) // 50+50+1.5 offset
}

func Test_Stop_DiscardsActivePhase(t *testing.T) {
	store := registers.New()
	e := New(store)
	require.NoError(t, e.StartPhase(30))
	e.Feed(sensor.Sample{S3: util.PointerTo(float32(1.0))})
	e.Stop()
	_, err := e.CalculateSeparateBody()
	assert.Error(t, err)
}

func Test_WriteStats_WritesMaxAvgMinAtOffsets(t *testing.T) {
	store := registers.New()
	require.NoError(t, WriteStats(store, registers.AddrUpperWallMax, Stats{Max: 1, Avg: 2, Min: 3}))
	max, err := store.GetDwordFloat(registers.Input, registers.AddrUpperWallMax)
	require.NoError(t, err)
	avg, err := store.GetDwordFloat(registers.Input, registers.AddrUpperWallAvg)
	require.NoError(t, err)
	min, err := store.GetDwordFloat(registers.Input, registers.AddrUpperWallMin)
	require.NoError(t, err)
	assert.Equal(t, float32(1), max)
	assert.Equal(t, float32(2), avg)
	assert.Equal(t, float32(3), min)
}

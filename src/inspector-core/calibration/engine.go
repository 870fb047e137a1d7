// Package calibration implements the per-command collectors and closed-form
// constant computations of CMD=100..108 (spec §4.4): accumulate valid
// readings for the relevant sensor(s) while the command holds, then reduce
// to a calibration constant on the 0-transition and commit it to holding
// registers.
package calibration

import (
	"fmt"

	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/lasergeom/inspector-core/src/inspector-core/sensor"
)

// ParameterWriter is the sensor driver's CMD=106 surface: write a Riftek
// parameter and commit it to flash, without exposing the serial port
// itself across the calibration/sensor package boundary.
type ParameterWriter interface {
	WriteParameter(addr byte, code, val uint16) error
}

// Engine runs one calibration phase at a time.
type Engine struct {
	store  *registers.Store
	writer ParameterWriter
	active *accumulator
}

// New returns an idle calibration engine.
func New(store *registers.Store, writer ParameterWriter) *Engine {
	return &Engine{store: store, writer: writer}
}

// accumulator sums valid readings per sensor for the duration of one phase.
// CMD=103 additionally tracks a trailing window of the last 5 s1 samples to
// evaluate its "3 of last 5 non-zero" precondition.
type accumulator struct {
	cmd     int
	sums    map[int]float64
	counts  map[int]int
	last5S1 []float32
}

func newAccumulator(cmd int) *accumulator {
	return &accumulator{cmd: cmd, sums: map[int]float64{}, counts: map[int]int{}}
}

func (a *accumulator) add(i int, v *float32) {
	if v == nil {
		return
	}
	a.sums[i] += float64(*v)
	a.counts[i]++
}

func (a *accumulator) avg(i int) (float32, bool) {
	n := a.counts[i]
	if n == 0 {
		return 0, false
	}
	return float32(a.sums[i] / float64(n)), true
}

// Start clears buffers and begins a new calibration phase on the 0 -> C
// transition. CMD=104 and CMD=106 don't accumulate; Start is a no-op for
// them, Finish handles their one-shot work directly.
func (e *Engine) Start(cmd int) {
	switch cmd {
	case 100, 101, 102, 103, 105, 107, 108:
		e.active = newAccumulator(cmd)
	default:
		e.active = nil
	}
}

// Abort discards the active phase without computing anything, for a
// command change away from a calibration command that never reaches 0
// (spec §4.7 "on any command change, prior phase is stopped").
func (e *Engine) Abort() {
	e.active = nil
}

// Feed accumulates one sensor sample into the active phase.
func (e *Engine) Feed(s sensor.Sample) {
	if e.active == nil {
		return
	}
	switch e.active.cmd {
	case 100:
		e.active.add(1, s.S1)
		e.active.add(2, s.S2)
		e.active.add(3, s.S3)
	case 101:
		e.active.add(4, s.S4)
	case 102:
		e.active.add(1, s.S1)
	case 105, 107, 108:
		e.active.add(3, s.S3)
	case 103:
		e.active.add(1, s.S1)
		if s.S1 != nil {
			e.active.last5S1 = append(e.active.last5S1, *s.S1)
			if len(e.active.last5S1) > 5 {
				e.active.last5S1 = e.active.last5S1[len(e.active.last5S1)-5:]
			}
		}
	}
}

// nonZeroCount counts non-zero entries in the trailing window.
func nonZeroCount(values []float32) int {
	n := 0
	for _, v := range values {
		if v != 0 {
			n++
		}
	}
	return n
}

// Finish runs the closed-form computation for the C -> 0 transition and
// commits the result (or, on precondition failure, zeroes the target
// registers). It returns the status code the caller should commit: 0 on
// success, StatusError on failure.
func (e *Engine) Finish(cmd int) (int, error) {
	defer func() { e.active = nil }()

	switch cmd {
	case 100:
		return e.finishWall()
	case 101:
		return e.finishBottom()
	case 102:
		return e.finishHalfDiameterPlusAvg(registers.AddrRefBodyDiameter, registers.AddrCalibDist1Axis, 1)
	case 103:
		return e.finishHeight()
	case 105:
		return e.finishHalfDiameterPlusAvg(registers.AddrRefFlangeDiameter, registers.AddrCalibFlangeAxis, 3)
	case 107:
		return e.finishHalfDiameterPlusAvg(registers.AddrRefBodySeparateDiam, registers.AddrCalibBodySeparateAxis, 3)
	case 108:
		return e.finishHalfDiameterPlusAvg(registers.AddrRefBody2Diam, registers.AddrCalibBody2Axis, 3)
	case 106:
		return e.finishSensorWindowWrite()
	case 104:
		return registers.StatusIdle, nil
	default:
		return registers.StatusError, fmt.Errorf("calibration: unknown command %d", cmd)
	}
}

func (e *Engine) zero(addrs ...int) error {
	for _, addr := range addrs {
		if err := e.store.SetDwordFloat(registers.Holding, addr, 0); err != nil {
			return err
		}
	}
	return nil
}

// finishWall: d12 = s1+s2+ref; d13 = s1-s3 (CMD=100).
func (e *Engine) finishWall() (int, error) {
	ref, err := e.store.GetDwordFloat(registers.Holding, registers.AddrRefWallThickness)
	if err != nil {
		return registers.StatusError, err
	}
	s1, ok1 := e.active.avg(1)
	s2, ok2 := e.active.avg(2)
	s3, ok3 := e.active.avg(3)
	if ref <= 0 || !ok1 || !ok2 || !ok3 {
		if err := e.zero(registers.AddrCalibDist12, registers.AddrCalibDist13); err != nil {
			return registers.StatusError, err
		}
		return registers.StatusError, fmt.Errorf("calibration: CMD=100 precondition failed")
	}
	d12 := s1 + s2 + ref
	d13 := s1 - s3
	if err := e.store.SetDwordFloat(registers.Holding, registers.AddrCalibDist12, d12); err != nil {
		return registers.StatusError, err
	}
	if err := e.store.SetDwordFloat(registers.Holding, registers.AddrCalibDist13, d13); err != nil {
		return registers.StatusError, err
	}
	return registers.StatusIdle, nil
}

// finishBottom: d4s = s4 + ref (CMD=101).
func (e *Engine) finishBottom() (int, error) {
	ref, err := e.store.GetDwordFloat(registers.Holding, registers.AddrRefBottomThickness)
	if err != nil {
		return registers.StatusError, err
	}
	s4, ok := e.active.avg(4)
	if ref <= 0 || !ok {
		if err := e.zero(registers.AddrCalibDist4Surface); err != nil {
			return registers.StatusError, err
		}
		return registers.StatusError, fmt.Errorf("calibration: CMD=101 precondition failed")
	}
	if err := e.store.SetDwordFloat(registers.Holding, registers.AddrCalibDist4Surface, s4+ref); err != nil {
		return registers.StatusError, err
	}
	return registers.StatusIdle, nil
}

// finishHalfDiameterPlusAvg implements the shared "ref/2 + avg(sensor)"
// recipe used by CMD=102 (sensor 1), 105/107/108 (sensor 3).
func (e *Engine) finishHalfDiameterPlusAvg(refAddr, outAddr int, sensorIdx int) (int, error) {
	ref, err := e.store.GetDwordFloat(registers.Holding, refAddr)
	if err != nil {
		return registers.StatusError, err
	}
	avg, ok := e.active.avg(sensorIdx)
	if ref <= 0 || !ok {
		if err := e.zero(outAddr); err != nil {
			return registers.StatusError, err
		}
		return registers.StatusError, fmt.Errorf("calibration: precondition failed for output %d", outAddr)
	}
	if err := e.store.SetDwordFloat(registers.Holding, outAddr, ref/2+avg); err != nil {
		return registers.StatusError, err
	}
	return registers.StatusIdle, nil
}

// finishHeight: dp = steps/pulses + ref (CMD=103). Requires at least 3
// non-zero s1 readings among the last 5 samples seen.
func (e *Engine) finishHeight() (int, error) {
	ref, err := e.store.GetDwordFloat(registers.Holding, registers.AddrRefHeight)
	if err != nil {
		return registers.StatusError, err
	}
	steps, err := e.store.GetDwordU32(registers.Holding, registers.AddrAxisStepCount)
	if err != nil {
		return registers.StatusError, err
	}
	pulses, err := e.store.GetWord(registers.Holding, registers.AddrEncoderPulsesPerMm)
	if err != nil {
		return registers.StatusError, err
	}
	if ref <= 0 || pulses == 0 || nonZeroCount(e.active.last5S1) < 3 {
		if err := e.zero(registers.AddrDistToRefPlane); err != nil {
			return registers.StatusError, err
		}
		return registers.StatusError, fmt.Errorf("calibration: CMD=103 precondition failed")
	}
	dp := float32(steps)/float32(pulses) + ref
	if err := e.store.SetDwordFloat(registers.Holding, registers.AddrDistToRefPlane, dp); err != nil {
		return registers.StatusError, err
	}
	return registers.StatusIdle, nil
}

// finishSensorWindowWrite: CMD=106 converts the configured mm window
// (40404-7) into Riftek raw units and pushes it to sensor 3's onboard
// parameters, committing to flash. This is a direct hardware write, not an
// accumulate-reduce phase, so it has no buffer precondition of its own.
func (e *Engine) finishSensorWindowWrite() (int, error) {
	start, err := e.store.GetDwordFloat(registers.Holding, registers.AddrSensor3WindowStart)
	if err != nil {
		return registers.StatusError, err
	}
	end, err := e.store.GetDwordFloat(registers.Holding, registers.AddrSensor3WindowEnd)
	if err != nil {
		return registers.StatusError, err
	}
	if start <= 0 || end <= 0 || e.writer == nil {
		return registers.StatusError, fmt.Errorf("calibration: CMD=106 precondition failed")
	}
	startRaw := sensor.MMToRiftekInt(start)
	endRaw := sensor.MMToRiftekInt(end)
	const sensor3Addr = 3
	if err := e.writer.WriteParameter(sensor3Addr, 0x0C, startRaw); err != nil {
		return registers.StatusError, err
	}
	if err := e.writer.WriteParameter(sensor3Addr, 0x0E, endRaw); err != nil {
		return registers.StatusError, err
	}
	return registers.StatusIdle, nil
}

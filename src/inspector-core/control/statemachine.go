// Package control implements the command-register state machine (spec
// §4.7): it watches the command cell, dispatches sensor samples to exactly
// one active engine, and owns the status register protocol.
package control

import (
	"context"
	"time"

	"github.com/lasergeom/inspector-core/src/inspector-core/calibration"
	"github.com/lasergeom/inspector-core/src/inspector-core/measurement"
	"github.com/lasergeom/inspector-core/src/inspector-core/quality"
	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/lasergeom/inspector-core/src/inspector-core/sensor"
	"github.com/sirupsen/logrus"
)

// Command codes the state machine dispatches on (spec §4.7, §6).
const (
	cmdIdle = 0

	cmdUpperWallCollect = 10
	cmdUpperWallCalc    = 11
	cmdFlangeCollect    = 12
	cmdFlangeCalc       = 13
	cmdLowerWallCollect = 14
	cmdLowerWallCalc    = 15
	cmdQualityEval      = 16

	cmdSeparateFlangeCollect = 20
	cmdSeparateFlangeCalc    = 21
	cmdSeparateBodyCollect   = 30
	cmdSeparateBodyCalc      = 31
	cmdBody2Collect          = 40
	cmdBody2Calc             = 41

	cmdQuadStream = 200

	cmdHeightRuntime = 9 // not implemented; register map retained (Open Question #3)
)

// SamplePopper is the sensor driver's consumer surface, satisfied by
// *sensor.Driver: Pop drains the driver's ring buffer and Connected reports
// the sensor-OK state.
type SamplePopper interface {
	Pop() (sensor.Sample, bool)
	Connected() bool
}

// ShiftSnapshot is emitted whenever the shift number (40100) changes,
// carrying the counters as they stood the instant before they were reset
// (spec §4.7 shift-change detection; supplement for a future report
// consumer, see SPEC_FULL.md).
type ShiftSnapshot struct {
	PreviousShift uint16
	NewShift      uint16
	Total, Good, CondGood, Bad uint16
	At time.Time
}

// Machine is the single state-machine instance driving one inspection
// stand. It is not safe for concurrent use; it is meant to be driven by
// exactly one goroutine (the "main control thread" of spec §5).
type Machine struct {
	store  *registers.Store
	log    *logrus.Entry
	driver SamplePopper

	measurementEngine *measurement.Engine
	calibrationEngine *calibration.Engine
	qualityEvaluator  *quality.Evaluator

	lastCmd int

	cycleActive    bool // a measurement cycle (CMD=10..41) has started but not reached CMD=16
	body2Required  bool

	shiftObserved bool
	lastShift     uint16

	// OnShiftChange, when set, is invoked synchronously on shift-change
	// detection, before counters are cleared. Intended for a report
	// plug-in or the diagnostics stream; nil is a valid no-op.
	OnShiftChange func(ShiftSnapshot)
}

// New builds a Machine bound to store and the sensor driver's popper/
// connectivity surface.
func New(store *registers.Store, log *logrus.Entry, driver SamplePopper) *Machine {
	return &Machine{
		store:             store,
		log:               log,
		driver:            driver,
		measurementEngine: measurement.New(store),
		calibrationEngine: calibration.New(store, driverParamWriter(driver)),
		qualityEvaluator:  quality.New(store),
	}
}

// driverParamWriter narrows SamplePopper to calibration.ParameterWriter
// when the concrete driver supports it (the sensor.Driver does); a fake
// driver in tests need not implement CMD=106 writes.
func driverParamWriter(d SamplePopper) calibration.ParameterWriter {
	if w, ok := d.(calibration.ParameterWriter); ok {
		return w
	}
	return nil
}

// Run drives the control loop until ctx is cancelled, sleeping 5ms while a
// phase is actively consuming samples and 100ms otherwise (spec §5).
func (m *Machine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.tickErrorReset()
		m.tickShiftChange()
		active := m.tickCommand()
		m.tickSensorOK()

		sleep := 100 * time.Millisecond
		if active {
			sleep = 5 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}

// tickErrorReset clears the status register when the HMI writes 1 to
// 40024, then resets that cell back to 0 (spec §4.7).
func (m *Machine) tickErrorReset() {
	reset, err := m.store.GetWord(registers.Holding, registers.AddrErrorReset)
	if err != nil || reset != 1 {
		return
	}
	if err := m.store.SetWordSigned(registers.Input, registers.AddrStatus, registers.StatusIdle); err != nil {
		m.log.WithError(err).Error("clearing status on error-reset")
	}
	if err := m.store.SetWord(registers.Holding, registers.AddrErrorReset, 0); err != nil {
		m.log.WithError(err).Error("resetting error-reset cell")
	}
}

// tickShiftChange detects 40100 changing and clears per-shift counters and
// tallies; the first observation after startup only records the baseline
// (spec §4.7 "initial observation is synchronizing").
func (m *Machine) tickShiftChange() {
	shift, err := m.store.GetWord(registers.Holding, registers.AddrShiftNumber)
	if err != nil {
		return
	}
	if !m.shiftObserved {
		m.shiftObserved = true
		m.lastShift = shift
		return
	}
	if shift == m.lastShift {
		return
	}

	snap := ShiftSnapshot{PreviousShift: m.lastShift, NewShift: shift, At: time.Now()}
	snap.Total, _ = m.store.GetWord(registers.Input, registers.AddrShiftTotal)
	snap.Good, _ = m.store.GetWord(registers.Input, registers.AddrShiftGood)
	snap.CondGood, _ = m.store.GetWord(registers.Input, registers.AddrShiftCondGood)
	snap.Bad, _ = m.store.GetWord(registers.Input, registers.AddrShiftBad)

	if m.OnShiftChange != nil {
		m.OnShiftChange(snap)
	}

	for _, addr := range []int{
		registers.AddrShiftTotal, registers.AddrShiftGood, registers.AddrShiftCondGood, registers.AddrShiftBad,
	} {
		_ = m.store.SetWord(registers.Input, addr, 0)
	}
	for addr := registers.AddrTallyCondBadHeight; addr <= registers.AddrTallyBadBottomGreater; addr++ {
		_ = m.store.SetWord(registers.Input, addr, 0)
	}
	m.lastShift = shift
}

// tickSensorOK mirrors the driver's connection state into 30058 (spec §8
// invariant 8).
func (m *Machine) tickSensorOK() {
	v := uint16(0)
	if m.driver.Connected() {
		v = 1
	}
	_ = m.store.SetWord(registers.Input, registers.AddrSensorOK, v)
}

// tickCommand reads the command register, handles a transition if one
// occurred, and — while a phase is active — drains one sample into it.
// Returns whether a phase is actively consuming samples this tick.
func (m *Machine) tickCommand() bool {
	cmdWord, err := m.store.GetWord(registers.Holding, registers.AddrCommand)
	if err != nil {
		return false
	}
	cmd := int(cmdWord)

	if cmd != m.lastCmd {
		m.onTransition(m.lastCmd, cmd)
		m.lastCmd = cmd
	}

	switch cmd {
	case cmdUpperWallCollect, cmdFlangeCollect, cmdLowerWallCollect,
		cmdSeparateFlangeCollect, cmdSeparateBodyCollect, cmdBody2Collect:
		if s, ok := m.driver.Pop(); ok {
			m.measurementEngine.Feed(s)
		}
		return true
	case cmdQuadStream:
		if s, ok := m.driver.Pop(); ok {
			m.writeLiveSensors(s)
		}
		return true
	case 100, 101, 102, 103, 105, 107, 108:
		if s, ok := m.driver.Pop(); ok {
			m.calibrationEngine.Feed(s)
		}
		return true
	}
	return false
}

func (m *Machine) writeLiveSensors(s sensor.Sample) {
	addrs := []int{registers.AddrLiveSensors, registers.AddrLiveSensors + 2, registers.AddrLiveSensors + 4, registers.AddrLiveSensors + 6}
	for i, addr := range addrs {
		if v := s.Get(i + 1); v != nil {
			_ = m.store.SetDwordFloat(registers.Input, addr, *v)
		}
	}
}

// onTransition implements spec §4.7's "on any command change, prior phase
// is stopped" plus the entry/exit actions each command family needs.
func (m *Machine) onTransition(from, to int) {
	// A calibration command (100-108) heading to 0, or a measurement
	// collect command heading to its own calc command, is finished rather
	// than stopped: the finish handlers below need the buffers stopPhase
	// would otherwise discard.
	calibrationFinishing := to == cmdIdle && from >= 100 && from <= 108
	if !calibrationFinishing && !isMeasurementCalcOf(from, to) {
		m.stopPhase(from)
	}

	switch to {
	case cmdIdle:
		m.handleReturnToIdle(from)
		return

	case cmdUpperWallCollect:
		m.startMeasurement(cmdUpperWallCollect, cmdUpperWallCollect)
	case cmdFlangeCollect:
		m.startMeasurement(cmdFlangeCollect, cmdFlangeCollect)
	case cmdLowerWallCollect:
		m.startMeasurement(cmdLowerWallCollect, cmdLowerWallCollect)
	case cmdSeparateFlangeCollect:
		m.startMeasurement(cmdSeparateFlangeCollect, cmdSeparateFlangeCollect)
	case cmdSeparateBodyCollect:
		m.startMeasurement(cmdSeparateBodyCollect, cmdSeparateBodyCollect)
	case cmdBody2Collect:
		m.startMeasurement(cmdBody2Collect, cmdBody2Collect)
		m.body2Required = true

	case cmdUpperWallCalc:
		m.finishWall(registers.AddrUpperWallMax, registers.StatusCalcWallComplete)
	case cmdLowerWallCalc:
		m.finishWall(registers.AddrLowerWallMax, registers.StatusCalcBottomComplete)
	case cmdFlangeCalc:
		m.finishFlangeComposite()
	case cmdSeparateFlangeCalc:
		m.finishSeparateFlange()
	case cmdSeparateBodyCalc:
		m.finishSeparateBody()
	case cmdBody2Calc:
		m.finishBody2()
	case cmdQualityEval:
		m.finishQuality()

	case cmdQuadStream:
		m.setStatus(registers.StatusQuadStreaming)

	case cmdHeightRuntime:
		// CMD=9 runtime height phase is not implemented (Open Question #3):
		// the command is mirrored into status with no engine behind it.
		m.setStatus(cmdHeightRuntime)

	default:
		if to >= 100 && to <= 108 {
			m.calibrationEngine.Start(to)
			m.setStatus(to)
			return
		}
		m.setStatus(to)
	}
}

// stopPhase discards whatever the previous command's engine had buffered
// (spec §4.7 "prior phase is stopped: its buffers cleared").
func (m *Machine) stopPhase(from int) {
	switch {
	case isMeasurementCollectCmd(from):
		m.measurementEngine.Stop()
	case from >= 100 && from <= 108:
		m.calibrationEngine.Abort()
	}
}

// isMeasurementCalcOf reports whether to is the calculate command that
// consumes the buffers collect command from just gathered (spec §4.5: the
// calc command is always the collect command's successor, e.g. 10->11).
func isMeasurementCalcOf(from, to int) bool {
	pairs := map[int]int{
		cmdUpperWallCollect:      cmdUpperWallCalc,
		cmdFlangeCollect:         cmdFlangeCalc,
		cmdLowerWallCollect:      cmdLowerWallCalc,
		cmdSeparateFlangeCollect: cmdSeparateFlangeCalc,
		cmdSeparateBodyCollect:   cmdSeparateBodyCalc,
		cmdBody2Collect:          cmdBody2Calc,
	}
	return pairs[from] == to
}

func isMeasurementCollectCmd(cmd int) bool {
	switch cmd {
	case cmdUpperWallCollect, cmdFlangeCollect, cmdLowerWallCollect,
		cmdSeparateFlangeCollect, cmdSeparateBodyCollect, cmdBody2Collect:
		return true
	}
	return false
}

func (m *Machine) startMeasurement(startCmd, statusCmd int) {
	if startCmd == cmdUpperWallCollect {
		m.cycleActive = true
	}
	if err := m.measurementEngine.StartPhase(startCmd); err != nil {
		m.log.WithError(err).Error("starting measurement phase")
		m.setStatus(registers.StatusError)
		return
	}
	m.setStatus(statusCmd)
}

func (m *Machine) setStatus(code int) {
	if err := m.store.SetWordSigned(registers.Input, registers.AddrStatus, int16(code)); err != nil {
		m.log.WithError(err).Error("writing status register")
	}
}

// handleReturnToIdle implements the abort rule: CMD -> 0 while a
// measurement cycle is active and hasn't reached CMD=16 sets status=-1
// and counts the cycle as interrupted, with no counter increments (spec
// §4.7, §8 invariant 7). A calibration command (100-108) transitioning to
// 0 instead runs its closed-form computation (spec §4.4 step 3).
func (m *Machine) handleReturnToIdle(from int) {
	if from >= 100 && from <= 108 {
		status, err := m.calibrationEngine.Finish(from)
		if err != nil {
			m.log.WithError(err).WithField("command", from).Warn("calibration precondition failed")
		}
		m.setStatus(status)
		return
	}

	if m.cycleActive {
		m.log.WithField("abortedAt", from).Warn("measurement cycle aborted before quality evaluation")
		m.cycleActive = false
		m.body2Required = false
		m.setStatus(registers.StatusError)
		return
	}
	m.setStatus(cmdIdle)
}

func (m *Machine) finishWall(resultBaseAddr, completeStatus int) {
	result, err := m.measurementEngine.CalculateWall()
	if err != nil {
		m.log.WithError(err).Error("wall calculation failed")
		m.setStatus(registers.StatusError)
		return
	}
	if err := measurement.WriteStats(m.store, resultBaseAddr, result.Thickness); err != nil {
		m.log.WithError(err).Error("writing wall stats")
	}
	m.setStatus(completeStatus)
}

func (m *Machine) finishFlangeComposite() {
	result, err := m.measurementEngine.CalculateFlangeComposite()
	if err != nil {
		m.log.WithError(err).Error("flange composite calculation failed")
		m.setStatus(registers.StatusError)
		return
	}
	if err := measurement.WriteStats(m.store, registers.AddrBodyDiameterMax, result.BodyDiameter); err != nil {
		m.log.WithError(err).Error("writing body diameter stats")
	}
	if err := measurement.WriteStats(m.store, registers.AddrFlangeDiameterMax, result.FlangeDiameter); err != nil {
		m.log.WithError(err).Error("writing flange diameter stats")
	}
	if err := measurement.WriteStats(m.store, registers.AddrBottomMax, result.Bottom); err != nil {
		m.log.WithError(err).Error("writing bottom stats")
	}
	m.setStatus(registers.StatusCalcFlangeComplete)
}

func (m *Machine) finishSeparateFlange() {
	result, err := m.measurementEngine.CalculateSeparateFlange()
	if err != nil {
		m.log.WithError(err).Error("separate flange calculation failed")
		m.setStatus(registers.StatusError)
		return
	}
	if err := measurement.WriteStats(m.store, registers.AddrFlangeDiameterMax, result.FlangeDiameter); err != nil {
		m.log.WithError(err).Error("writing flange diameter stats")
	}
	if err := measurement.WriteStats(m.store, registers.AddrBottomMax, result.Bottom); err != nil {
		m.log.WithError(err).Error("writing bottom stats")
	}
	m.setStatus(registers.StatusSeparateFlangeComplete)
}

func (m *Machine) finishSeparateBody() {
	result, err := m.measurementEngine.CalculateSeparateBody()
	if err != nil {
		m.log.WithError(err).Error("separate body calculation failed")
		m.setStatus(registers.StatusError)
		return
	}
	if err := measurement.WriteStats(m.store, registers.AddrBodyDiameterMax, result.BodyDiameter); err != nil {
		m.log.WithError(err).Error("writing body diameter stats")
	}
	m.setStatus(registers.StatusSeparateBodyComplete)
}

func (m *Machine) finishBody2() {
	result, err := m.measurementEngine.CalculateBody2()
	if err != nil {
		m.log.WithError(err).Error("body2 calculation failed")
		m.setStatus(registers.StatusError)
		return
	}
	if err := measurement.WriteStats(m.store, registers.AddrBody2DiameterMax, result.BodyDiameter); err != nil {
		m.log.WithError(err).Error("writing body2 diameter stats")
	}
	m.setStatus(registers.StatusBody2Complete)
}

func (m *Machine) finishQuality() {
	_, _, err := m.qualityEvaluator.Evaluate(m.body2Required)
	m.body2Required = false
	m.cycleActive = false
	if err != nil {
		m.log.WithError(err).Error("quality evaluation failed")
		m.setStatus(registers.StatusError)
		return
	}
	m.setStatus(registers.StatusCalcQualityComplete)
}

package persistence

import "github.com/lasergeom/inspector-core/src/inspector-core/registers"

// cell names one persisted register cell. Multi-register floats/u32s are
// named by their base address; Width reflects how many consecutive words
// the poller must read as a unit so a float pair is never snapshotted torn.
type cell struct {
	bank  registers.Bank
	addr  int
	width int
}

// AllowList is the explicit set of cells persisted across a restart (spec
// §4.3). It deliberately excludes the command register (40001), the shift
// number (40100) and product number (40101) — both operator/state-machine
// driven values that must come from the HMI on every restart, not from a
// stale snapshot, matching `original_source/modbus_database_integration.py`'s
// own exclusion list ("NOT saved: CMD, shift, product number") — the status
// register (30009), the error-reset latch (40024), the axis step count
// (40052-53, PLC-owned scratch), live/instantaneous values (30001-08 QUAD
// stream, 30058 sensor OK, 40057/40059 PLC-supplied single values), and the
// per-cycle measured result triples (30016-30064) — those are recomputed
// every cycle and not meaningful to restore stale.
//
// What IS persisted: everything an operator configures once and expects to
// survive a power cycle (reference inputs, calibration outputs, thresholds,
// offsets, check mode/allowances) plus the cumulative counters a shift
// report depends on (shift counters, per-parameter tallies).
var AllowList = buildAllowList()

func buildAllowList() []cell {
	var cells []cell
	f := func(addr int) { cells = append(cells, cell{bank: registers.Holding, addr: addr, width: 2}) }
	u16h := func(addr int) { cells = append(cells, cell{bank: registers.Holding, addr: addr, width: 1}) }
	i16 := func(addr int) { cells = append(cells, cell{bank: registers.Input, addr: addr, width: 1}) }

	// Reference inputs, 40002-09.
	f(registers.AddrRefWallThickness)
	f(registers.AddrRefBottomThickness)
	f(registers.AddrRefBodyDiameter)
	f(registers.AddrRefHeight)

	// Calibration outputs, 40010-17 / 40032-33 / 40038-41 / 40055-56.
	f(registers.AddrCalibDist12)
	f(registers.AddrCalibDist13)
	f(registers.AddrCalibDist4Surface)
	f(registers.AddrCalibDist1Axis)
	f(registers.AddrCalibFlangeAxis)
	f(registers.AddrCalibBodySeparateAxis)
	f(registers.AddrCalibBody2Axis)
	f(registers.AddrDistToRefPlane)

	// Flange/body-separate/body2 reference inputs, 40030/34/36.
	f(registers.AddrRefFlangeDiameter)
	f(registers.AddrRefBodySeparateDiam)
	f(registers.AddrRefBody2Diam)

	// Quality configuration, 40049-54.
	u16h(registers.AddrQualityCheckMode)
	u16h(registers.AddrAllowedCondBad)
	u16h(registers.AddrAllowedBad)
	u16h(registers.AddrEncoderPulsesPerMm)

	// Body2 threshold triple, 40346-51.
	f(registers.AddrThreshBody2Base)
	f(registers.AddrThreshBody2CondBadErr)
	f(registers.AddrThreshBody2BadErr)

	// Seven-parameter threshold block, 40352-93.
	for _, addr := range []int{
		registers.AddrThreshHeightBase, registers.AddrThreshHeightCondBadErr, registers.AddrThreshHeightBadErr,
		registers.AddrThreshUpperWallBase, registers.AddrThreshUpperWallCondBadErr, registers.AddrThreshUpperWallBadErr,
		registers.AddrThreshFlangeThicknessBase, registers.AddrThreshFlangeThicknessCondBadErr, registers.AddrThreshFlangeThicknessBadErr,
		registers.AddrThreshLowerWallBase, registers.AddrThreshLowerWallCondBadErr, registers.AddrThreshLowerWallBadErr,
		registers.AddrThreshBottomBase, registers.AddrThreshBottomCondBadErr, registers.AddrThreshBottomBadErr,
		registers.AddrThreshFlangeDiameterBase, registers.AddrThreshFlangeDiameterCondBadErr, registers.AddrThreshFlangeDiameterBadErr,
		registers.AddrThreshBodyDiameterBase, registers.AddrThreshBodyDiameterCondBadErr, registers.AddrThreshBodyDiameterBadErr,
	} {
		f(addr)
	}

	// Positive-bad errors, 40400-03.
	f(registers.AddrPositiveBadBottom)
	f(registers.AddrPositiveBadLowerWall)

	// Sensor-3 window (CMD=106 source of truth), 40404-07.
	f(registers.AddrSensor3WindowStart)
	f(registers.AddrSensor3WindowEnd)

	// Offset/extrapolation block, 40500-23.
	for _, addr := range []int{
		registers.AddrOffsetUpperWall, registers.AddrOffsetLowerWall, registers.AddrOffsetFlangeThickness,
		registers.AddrOffsetHeight, registers.AddrOffsetBottom, registers.AddrOffsetBodyDiameter,
		registers.AddrOffsetFlangeDiameter, registers.AddrOffsetBody2Diameter,
		registers.AddrExtrapBodyDiameter, registers.AddrExtrapFlangeDiameter,
		registers.AddrExtrapBody2Diameter, registers.AddrExtrapThickness,
	} {
		f(addr)
	}

	// Cumulative shift counters, 30101-04.
	i16(registers.AddrShiftTotal)
	i16(registers.AddrShiftGood)
	i16(registers.AddrShiftCondGood)
	i16(registers.AddrShiftBad)

	// Per-parameter tallies, 30201-23.
	for addr := registers.AddrTallyCondBadHeight; addr <= registers.AddrTallyBadBottomGreater; addr++ {
		i16(addr)
	}

	return cells
}

package registers

// Modicon-notation register addresses for the Modbus external contract
// (spec §6). Holding registers are HMI/PLC-writable, system-readable;
// input registers are system-writable, HMI-readable.
//
// Where spec §6 leaves the exact sub-field layout of a range open (the
// 40352-40393 per-parameter threshold block, and the 40500-40523
// offset/extrapolation block), the layout is fixed here and documented in
// SPEC_FULL.md as an Open Question resolution. Every address spec.md names
// explicitly is placed exactly where spec.md puts it.
const (
	AddrCommand = 40001 // u16, current command

	AddrRefWallThickness  = 40002 // f32
	AddrRefBottomThickness = 40004 // f32
	AddrRefBodyDiameter   = 40006 // f32, CMD=102 input
	AddrRefHeight         = 40008 // f32, CMD=103 input

	AddrCalibDist12       = 40010 // f32, CMD=100 output
	AddrCalibDist13       = 40012 // f32, CMD=100 output
	AddrCalibDist4Surface = 40014 // f32, CMD=101 output
	AddrCalibDist1Axis    = 40016 // f32, CMD=102 output

	AddrErrorReset = 40024 // u16, write 1 to clear status

	AddrRefFlangeDiameter     = 40030 // f32, CMD=105 input
	AddrCalibFlangeAxis       = 40032 // f32, CMD=105 output (s3-to-axis, flange recipe)
	AddrRefBodySeparateDiam   = 40034 // f32, CMD=107 input
	AddrRefBody2Diam          = 40036 // f32, CMD=108 input
	AddrCalibBodySeparateAxis = 40038 // f32, CMD=107 output
	AddrCalibBody2Axis        = 40040 // f32, CMD=108 output

	AddrQualityCheckMode  = 40049 // u16, 0..3
	AddrAllowedCondBad    = 40050 // u16
	AddrAllowedBad        = 40051 // u16
	AddrAxisStepCount     = 40052 // u32, high word first, PLC-supplied
	AddrEncoderPulsesPerMm = 40054 // u16
	AddrDistToRefPlane    = 40055 // f32, CMD=103 output
	AddrMeasuredHeight    = 40057 // f32, from PLC
	AddrMeasuredFlangeThk = 40059 // f32, from PLC

	AddrShiftNumber   = 40100 // u16
	AddrProductNumber = 40101 // u16, incremented by the system

	// Body-2 thresholds: one triple {base, cond_bad_error, bad_error}.
	AddrThreshBody2Base        = 40346
	AddrThreshBody2CondBadErr  = 40348
	AddrThreshBody2BadErr      = 40350

	// Seven-parameter threshold block: 21 floats (42 registers), one triple
	// per parameter in the order below. Chosen to mirror the parameter-tally
	// ordering at 30201-30223.
	AddrThreshHeightBase               = 40352
	AddrThreshHeightCondBadErr         = 40354
	AddrThreshHeightBadErr             = 40356
	AddrThreshUpperWallBase            = 40358
	AddrThreshUpperWallCondBadErr      = 40360
	AddrThreshUpperWallBadErr          = 40362
	AddrThreshFlangeThicknessBase      = 40364
	AddrThreshFlangeThicknessCondBadErr = 40366
	AddrThreshFlangeThicknessBadErr    = 40368
	AddrThreshLowerWallBase            = 40370
	AddrThreshLowerWallCondBadErr      = 40372
	AddrThreshLowerWallBadErr          = 40374
	AddrThreshBottomBase               = 40376
	AddrThreshBottomCondBadErr         = 40378
	AddrThreshBottomBadErr             = 40380
	AddrThreshFlangeDiameterBase       = 40382
	AddrThreshFlangeDiameterCondBadErr = 40384
	AddrThreshFlangeDiameterBadErr     = 40386
	AddrThreshBodyDiameterBase         = 40388
	AddrThreshBodyDiameterCondBadErr   = 40390
	AddrThreshBodyDiameterBadErr       = 40392

	// Positive-bad errors for the two two-sided parameters.
	AddrPositiveBadBottom    = 40400 // f32
	AddrPositiveBadLowerWall = 40402 // f32

	// Sensor-3 discrete window for CMD=106 (parameter write + flash commit).
	AddrSensor3WindowStart = 40404 // f32, mm
	AddrSensor3WindowEnd   = 40406 // f32, mm

	// Offset and extrapolation coefficients, 12 floats (24 registers).
	AddrOffsetUpperWall           = 40500 // f32
	AddrOffsetLowerWall           = 40502 // f32
	AddrOffsetFlangeThickness     = 40504 // f32
	AddrOffsetHeight              = 40506 // f32, reserved: height phase not run by this core (Open Question #3)
	AddrOffsetBottom              = 40508 // f32
	AddrOffsetBodyDiameter        = 40510 // f32
	AddrOffsetFlangeDiameter      = 40512 // f32
	AddrOffsetBody2Diameter       = 40514 // f32
	AddrExtrapBodyDiameter        = 40516 // f32
	AddrExtrapFlangeDiameter      = 40518 // f32
	AddrExtrapBody2Diameter       = 40520 // f32
	AddrExtrapThickness           = 40522 // f32, shared by upper/lower wall, bottom, flange thickness series
)

// Input registers (system-writable, HMI-readable).
const (
	AddrLiveSensors = 30001 // f32 x 4, QUAD mode CMD=200

	AddrStatus = 30009 // i16, cycle status

	AddrUpperWallMax = 30016 // f32
	AddrUpperWallAvg = 30018 // f32
	AddrUpperWallMin = 30020 // f32
	AddrLowerWallMax = 30022 // f32
	AddrLowerWallAvg = 30024 // f32
	AddrLowerWallMin = 30026 // f32
	AddrBottomMax    = 30028 // f32
	AddrBottomAvg    = 30030 // f32
	AddrBottomMin    = 30032 // f32

	AddrHeightMax = 30040 // f32, written only if CMD=9 core enabled (it is not, see Open Question #3)
	AddrHeightAvg = 30042 // f32
	AddrHeightMin = 30044 // f32

	AddrBodyDiameterMax   = 30046 // f32
	AddrBodyDiameterAvg   = 30048 // f32
	AddrBodyDiameterMin   = 30050 // f32
	AddrFlangeDiameterMax = 30052 // f32
	AddrFlangeDiameterAvg = 30054 // f32
	AddrFlangeDiameterMin = 30056 // f32

	AddrSensorOK = 30058 // u16, 1 = OK, 0 = error

	AddrBody2DiameterMax = 30059 // f32
	AddrBody2DiameterAvg = 30061 // f32
	AddrBody2DiameterMin = 30063 // f32

	AddrShiftTotal    = 30101 // u16
	AddrShiftGood     = 30102 // u16
	AddrShiftCondGood = 30103 // u16
	AddrShiftBad      = 30104 // u16

	// Conditionally-bad tally, one register per entry, in this order.
	AddrTallyCondBadHeight           = 30201
	AddrTallyCondBadUpperWall        = 30202
	AddrTallyCondBadFlangeThickness  = 30203
	AddrTallyCondBadLowerWallGreater = 30204
	AddrTallyCondBadLowerWallLess    = 30205
	AddrTallyCondBadBottomLess       = 30206
	AddrTallyCondBadBottomGreater    = 30207
	AddrTallyCondBadFlangeDiameter   = 30208
	AddrTallyCondBadBodyDiameter     = 30209

	// Bad tally, split by direction, one register per entry, in this order.
	AddrTallyBadHeightLess           = 30210
	AddrTallyBadHeightGreater        = 30211
	AddrTallyBadUpperWallLess        = 30212
	AddrTallyBadUpperWallGreater     = 30213
	AddrTallyBadFlangeThicknessLess  = 30214
	AddrTallyBadFlangeThicknessGreater = 30215
	AddrTallyBadFlangeDiameterLess   = 30216
	AddrTallyBadFlangeDiameterGreater = 30217
	AddrTallyBadBodyDiameterLess     = 30218
	AddrTallyBadBodyDiameterGreater  = 30219
	AddrTallyBadLowerWallLess        = 30220
	AddrTallyBadLowerWallGreater     = 30221
	AddrTallyBadBottomLess           = 30222
	AddrTallyBadBottomGreater        = 30223
)

// Status codes written to AddrStatus (spec §6). The system never consumes
// its own status; these values are informational for the HMI.
const (
	StatusIdle = 0

	StatusCalcWallComplete    = 110
	StatusCalcFlangeComplete  = 112
	StatusCalcBottomComplete  = 114
	StatusCalcQualityComplete = 116

	StatusSeparateFlangeComplete = 212
	StatusSeparateBodyComplete   = 312
	StatusBody2Complete          = 412

	StatusHeightSearching = 90
	StatusHeightComplete  = 91
	StatusHeightCalibDone = 931

	StatusQuadStreaming = 200

	StatusError = -1
)

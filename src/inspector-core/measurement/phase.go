package measurement

import "github.com/lasergeom/inspector-core/src/inspector-core/sensor"

// phase is the explicit per-phase context described in Design Notes §9,
// replacing a single object with optional/"hasattr" fields: each measurement
// phase is its own value, constructed fresh on phase entry and discarded on
// exit, caching whatever calibration constants it needs.
type phase interface {
	// feed consumes one synchronized sensor sample, advancing whichever
	// windows this phase cares about.
	feed(sensor.Sample)
}

// wallPhase (upper wall CMD=10 / lower wall CMD=14): sensors 1 and 2 must
// both be present in the same sample for a batch to advance, since the
// thickness formula combines both sensors' filtered averages (spec §4.5).
type wallPhase struct {
	s1w, s2w *Window
	series   *Series
	dist12   float32
	offset   float32
}

func newWallPhase(dist12, offset float32) *wallPhase {
	return &wallPhase{
		s1w:    NewWindow(),
		s2w:    NewWindow(),
		series: NewSeries(),
		dist12: dist12,
		offset: offset,
	}
}

func (p *wallPhase) feed(s sensor.Sample) {
	if s.S1 == nil || s.S2 == nil {
		return
	}
	full1 := p.s1w.Add(*s.S1)
	full2 := p.s2w.Add(*s.S2)
	if full1 && full2 {
		s1batch := p.s1w.Drain()
		s2batch := p.s2w.Drain()
		thickness := p.dist12 - s1batch - s2batch + p.offset
		p.series.Append(thickness)
	}
}

// singleSensorAccumulator independently windows and reduces one sensor's
// readings into a derived series, used by every phase whose formula
// references only one sensor at a time (body/flange radii, bottom
// thickness). Each instance is unsynchronized with any sibling
// accumulator in the same phase, matching spec §4.5's per-sensor formulas.
type singleSensorAccumulator struct {
	window *Window
	series *Series
	derive func(batch float32) float32
}

func newAccumulator(derive func(float32) float32) *singleSensorAccumulator {
	return &singleSensorAccumulator{
		window: NewWindow(),
		series: NewSeries(),
		derive: derive,
	}
}

func (a *singleSensorAccumulator) feed(v *float32) {
	if v == nil {
		return
	}
	if a.window.Add(*v) {
		batch := a.window.Drain()
		a.series.Append(a.derive(batch))
	}
}

// flangeCompositePhase (CMD=12): sensors 1, 3, 4, each reduced
// independently (body radius, flange radius, bottom thickness).
type flangeCompositePhase struct {
	body   *singleSensorAccumulator
	flange *singleSensorAccumulator
	bottom *singleSensorAccumulator
}

func newFlangeCompositePhase(dist1Axis, dist3AxisFlange, dist4Surface, bottomOffset float32) *flangeCompositePhase {
	return &flangeCompositePhase{
		body:   newAccumulator(func(s1 float32) float32 { return dist1Axis - s1 }),
		flange: newAccumulator(func(s3 float32) float32 { return dist3AxisFlange - s3 }),
		bottom: newAccumulator(func(s4 float32) float32 { return dist4Surface - s4 + bottomOffset }),
	}
}

func (p *flangeCompositePhase) feed(s sensor.Sample) {
	p.body.feed(s.S1)
	p.flange.feed(s.S3)
	p.bottom.feed(s.S4)
}

// separateFlangePhase (CMD=20): sensors 3, 4.
type separateFlangePhase struct {
	flange *singleSensorAccumulator
	bottom *singleSensorAccumulator
}

func newSeparateFlangePhase(dist3AxisFlange, dist4Surface, bottomOffset float32) *separateFlangePhase {
	return &separateFlangePhase{
		flange: newAccumulator(func(s3 float32) float32 { return dist3AxisFlange - s3 }),
		bottom: newAccumulator(func(s4 float32) float32 { return dist4Surface - s4 + bottomOffset }),
	}
}

func (p *separateFlangePhase) feed(s sensor.Sample) {
	p.flange.feed(s.S3)
	p.bottom.feed(s.S4)
}

// separateBodyPhase (CMD=30): sensor 3 only.
type separateBodyPhase struct {
	body *singleSensorAccumulator
}

func newSeparateBodyPhase(dist3AxisBody float32) *separateBodyPhase {
	return &separateBodyPhase{
		body: newAccumulator(func(s3 float32) float32 { return dist3AxisBody - s3 }),
	}
}

func (p *separateBodyPhase) feed(s sensor.Sample) {
	p.body.feed(s.S3)
}

// body2Phase (CMD=40): sensor 3 only, second body recipe.
type body2Phase struct {
	body2 *singleSensorAccumulator
}

func newBody2Phase(dist3AxisBody2 float32) *body2Phase {
	return &body2Phase{
		body2: newAccumulator(func(s3 float32) float32 { return dist3AxisBody2 - s3 }),
	}
}

func (p *body2Phase) feed(s sensor.Sample) {
	p.body2.feed(s.S3)
}

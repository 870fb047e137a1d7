package measurement

import (
	"fmt"

	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
	"github.com/lasergeom/inspector-core/src/inspector-core/sensor"
)

// Engine drives the six measurement phases (spec §4.5), consuming sensor
// samples from the main control loop and, on each phase's calculate
// command, reducing its accumulated series into {max, avg, min} stats.
//
// Engine never touches the status register: every caller (the state
// machine) decides the status code to commit once Calculate returns,
// including on precondition failure.
type Engine struct {
	store  *registers.Store
	active phase
}

// New returns an idle engine bound to store.
func New(store *registers.Store) *Engine {
	return &Engine{store: store}
}

// StartPhase resets the engine for one of the six measurement commands,
// caching the calibration constants and offset/extrapolation coefficients
// it will need at Calculate time. cmd is the collect-phase command (10,
// 12, 14, 20, 30, 40); any other value is an error.
func (e *Engine) StartPhase(cmd int) error {
	switch cmd {
	case 10:
		d12, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibDist12)
		if err != nil {
			return err
		}
		offset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetUpperWall)
		if err != nil {
			return err
		}
		e.active = newWallPhase(d12, offset)
	case 14:
		d12, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibDist12)
		if err != nil {
			return err
		}
		offset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetLowerWall)
		if err != nil {
			return err
		}
		e.active = newWallPhase(d12, offset)
	case 12:
		d1c, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibDist1Axis)
		if err != nil {
			return err
		}
		d3cFlange, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibFlangeAxis)
		if err != nil {
			return err
		}
		d4s, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibDist4Surface)
		if err != nil {
			return err
		}
		bottomOffset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetBottom)
		if err != nil {
			return err
		}
		e.active = newFlangeCompositePhase(d1c, d3cFlange, d4s, bottomOffset)
	case 20:
		d3cFlange, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibFlangeAxis)
		if err != nil {
			return err
		}
		d4s, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibDist4Surface)
		if err != nil {
			return err
		}
		bottomOffset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetBottom)
		if err != nil {
			return err
		}
		e.active = newSeparateFlangePhase(d3cFlange, d4s, bottomOffset)
	case 30:
		d3cBody, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibBodySeparateAxis)
		if err != nil {
			return err
		}
		e.active = newSeparateBodyPhase(d3cBody)
	case 40:
		d3cBody2, err := e.store.GetDwordFloat(registers.Holding, registers.AddrCalibBody2Axis)
		if err != nil {
			return err
		}
		e.active = newBody2Phase(d3cBody2)
	default:
		return fmt.Errorf("measurement: unknown collect phase command %d", cmd)
	}
	return nil
}

// Feed advances the active phase with one synchronized sensor sample. A
// no-op when the engine is idle.
func (e *Engine) Feed(s sensor.Sample) {
	if e.active != nil {
		e.active.feed(s)
	}
}

// Stop discards the active phase without computing anything (abort path).
func (e *Engine) Stop() {
	e.active = nil
}

// WallResult, FlangeCompositeResult etc. group the stats a calculate
// command writes to the input register bank.
type WallResult struct {
	Thickness Stats
}

type FlangeCompositeResult struct {
	BodyDiameter   Stats
	FlangeDiameter Stats
	Bottom         Stats
}

type SeparateFlangeResult struct {
	FlangeDiameter Stats
	Bottom         Stats
}

type SeparateBodyResult struct {
	BodyDiameter Stats
}

type Body2Result struct {
	BodyDiameter Stats
}

// CalculateWall reduces an upper- or lower-wall phase (CMD=11 / CMD=15).
// The offset register (40500/40502) was cached by StartPhase and folded
// into each batch as it was fed; extrapolation is applied here, shared
// across every thickness recipe (40522).
func (e *Engine) CalculateWall() (WallResult, error) {
	p, ok := e.active.(*wallPhase)
	if !ok {
		return WallResult{}, fmt.Errorf("measurement: no active wall phase")
	}
	if p.series.Len() == 0 {
		return WallResult{}, fmt.Errorf("measurement: empty wall buffer")
	}
	extrap, err := e.store.GetDwordFloat(registers.Holding, registers.AddrExtrapThickness)
	if err != nil {
		return WallResult{}, err
	}
	return WallResult{Thickness: ReduceThickness(p.series, extrap)}, nil
}

// CalculateFlangeComposite reduces CMD=12's phase (CMD=13).
func (e *Engine) CalculateFlangeComposite() (FlangeCompositeResult, error) {
	p, ok := e.active.(*flangeCompositePhase)
	if !ok {
		return FlangeCompositeResult{}, fmt.Errorf("measurement: no active flange composite phase")
	}
	if p.body.series.Len() == 0 || p.flange.series.Len() == 0 || p.bottom.series.Len() == 0 {
		return FlangeCompositeResult{}, fmt.Errorf("measurement: empty flange composite buffer")
	}
	bodyExtrap, err := e.store.GetDwordFloat(registers.Holding, registers.AddrExtrapBodyDiameter)
	if err != nil {
		return FlangeCompositeResult{}, err
	}
	flangeExtrap, err := e.store.GetDwordFloat(registers.Holding, registers.AddrExtrapFlangeDiameter)
	if err != nil {
		return FlangeCompositeResult{}, err
	}
	thicknessExtrap, err := e.store.GetDwordFloat(registers.Holding, registers.AddrExtrapThickness)
	if err != nil {
		return FlangeCompositeResult{}, err
	}
	bodyOffset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetBodyDiameter)
	if err != nil {
		return FlangeCompositeResult{}, err
	}
	flangeOffset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetFlangeDiameter)
	if err != nil {
		return FlangeCompositeResult{}, err
	}
	return FlangeCompositeResult{
		BodyDiameter:   ReduceDiameter(p.body.series, bodyExtrap, bodyOffset),
		FlangeDiameter: ReduceDiameter(p.flange.series, flangeExtrap, flangeOffset),
		Bottom:         ReduceThickness(p.bottom.series, thicknessExtrap),
	}, nil
}

// CalculateSeparateFlange reduces CMD=20's phase (CMD=21).
func (e *Engine) CalculateSeparateFlange() (SeparateFlangeResult, error) {
	p, ok := e.active.(*separateFlangePhase)
	if !ok {
		return SeparateFlangeResult{}, fmt.Errorf("measurement: no active separate flange phase")
	}
	if p.flange.series.Len() == 0 || p.bottom.series.Len() == 0 {
		return SeparateFlangeResult{}, fmt.Errorf("measurement: empty separate flange buffer")
	}
	flangeExtrap, err := e.store.GetDwordFloat(registers.Holding, registers.AddrExtrapFlangeDiameter)
	if err != nil {
		return SeparateFlangeResult{}, err
	}
	thicknessExtrap, err := e.store.GetDwordFloat(registers.Holding, registers.AddrExtrapThickness)
	if err != nil {
		return SeparateFlangeResult{}, err
	}
	flangeOffset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetFlangeDiameter)
	if err != nil {
		return SeparateFlangeResult{}, err
	}
	return SeparateFlangeResult{
		FlangeDiameter: ReduceDiameter(p.flange.series, flangeExtrap, flangeOffset),
		Bottom:         ReduceThickness(p.bottom.series, thicknessExtrap),
	}, nil
}

// CalculateSeparateBody reduces CMD=30's phase (CMD=31).
func (e *Engine) CalculateSeparateBody() (SeparateBodyResult, error) {
	p, ok := e.active.(*separateBodyPhase)
	if !ok {
		return SeparateBodyResult{}, fmt.Errorf("measurement: no active separate body phase")
	}
	if p.body.series.Len() == 0 {
		return SeparateBodyResult{}, fmt.Errorf("measurement: empty separate body buffer")
	}
	extrap, err := e.store.GetDwordFloat(registers.Holding, registers.AddrExtrapBodyDiameter)
	if err != nil {
		return SeparateBodyResult{}, err
	}
	offset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetBodyDiameter)
	if err != nil {
		return SeparateBodyResult{}, err
	}
	return SeparateBodyResult{BodyDiameter: ReduceDiameter(p.body.series, extrap, offset)}, nil
}

// CalculateBody2 reduces CMD=40's phase (CMD=41).
func (e *Engine) CalculateBody2() (Body2Result, error) {
	p, ok := e.active.(*body2Phase)
	if !ok {
		return Body2Result{}, fmt.Errorf("measurement: no active body2 phase")
	}
	if p.body2.series.Len() == 0 {
		return Body2Result{}, fmt.Errorf("measurement: empty body2 buffer")
	}
	extrap, err := e.store.GetDwordFloat(registers.Holding, registers.AddrExtrapBody2Diameter)
	if err != nil {
		return Body2Result{}, err
	}
	offset, err := e.store.GetDwordFloat(registers.Holding, registers.AddrOffsetBody2Diameter)
	if err != nil {
		return Body2Result{}, err
	}
	return Body2Result{BodyDiameter: ReduceDiameter(p.body2.series, extrap, offset)}, nil
}

// WriteStats commits a {max, avg, min} triple to the input register bank
// at baseAddr, baseAddr+2, baseAddr+4 (spec §6 layout convention).
func WriteStats(store *registers.Store, baseAddr int, s Stats) error {
	if err := store.SetDwordFloat(registers.Input, baseAddr, s.Max); err != nil {
		return err
	}
	if err := store.SetDwordFloat(registers.Input, baseAddr+2, s.Avg); err != nil {
		return err
	}
	return store.SetDwordFloat(registers.Input, baseAddr+4, s.Min)
}

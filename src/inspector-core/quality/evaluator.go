// Package quality implements the CMD=16 evaluator (spec §4.6): per-parameter
// one-sided/two-sided threshold checks against measured {max, avg, min}
// triples, rolled up into a cycle verdict, with shift-counter and
// per-parameter tally side effects.
package quality

import (
	"github.com/lasergeom/inspector-core/src/inspector-core/registers"
)

// Verdict is a per-value, per-parameter, or cycle-level outcome. Ordered by
// severity so max(a, b) picks the worse of the two.
type Verdict int

const (
	Good Verdict = iota
	CondGood
	Bad
)

func worse(a, b Verdict) Verdict {
	if b > a {
		return b
	}
	return a
}

// direction records which side of "good" a non-good value fell on, for the
// direction-aware tally registers.
type direction int

const (
	dirNone direction = iota
	dirLess
	dirGreater
)

// thresholds is one parameter's {base, cond_bad_error, bad_error[,
// positive_bad_error]} tuple, read fresh from holding registers each cycle
// (spec §3 Thresholds).
type thresholds struct {
	base         float32
	condBadError float32 // <= 0
	badError     float32 // <= condBadError
	positiveBad  float32 // >= 0, two-sided only
	twoSided     bool
}

// evaluate classifies one measured value against t (spec §4.6).
//
// One-sided: GOOD in [base+cond_bad_error, base]; COND in
// [base+bad_error, base+cond_bad_error); else BAD. Values above base are
// BAD (direction=greater).
//
// Two-sided: GOOD extends upward to [base+cond_bad_error,
// base+positive_bad_error] (spec invariant #6); below that, the one-sided
// COND/BAD structure applies unchanged. Above base+positive_bad_error is
// BAD (direction=greater). There is no upper COND band: §4.6 names only
// one extension ("above that is BAD"), so the upper-direction COND tally
// registers reserved for two-sided parameters (§6) are never incremented
// by this evaluator — see SPEC_FULL.md Open Question #6.
func (t thresholds) evaluate(v float32) (Verdict, direction) {
	goodHigh := t.base
	if t.twoSided {
		goodHigh = t.base + t.positiveBad
	}
	goodLow := t.base + t.condBadError
	condLow := t.base + t.badError

	switch {
	case v >= goodLow && v <= goodHigh:
		return Good, dirNone
	case v > goodHigh:
		return Bad, dirGreater
	case v >= condLow:
		return CondGood, dirNone
	default:
		return Bad, dirLess
	}
}

// paramSpec binds one measured parameter to its register addresses: the
// measured {max, avg, min} triple (input bank), the threshold tuple and
// positive-bad-error (holding bank, 0 if one-sided), and the tally
// registers its non-GOOD verdicts increment.
type paramSpec struct {
	key      string
	twoSided bool

	maxAddr, avgAddr, minAddr int

	// singleAddr, when non-zero, overrides the {max,avg,min} triple with one
	// holding-register value supplied directly by the PLC (height, 40057;
	// flange thickness, 40059), ignoring the configured check mode.
	singleAddr int

	baseAddr, condBadAddr, badAddr, positiveBadAddr int

	tallyCondAddr                      int // 0 = none (see body2 note)
	tallyBadLessAddr, tallyBadGreaterAddr int
}

func (p paramSpec) loadThresholds(store *registers.Store) (thresholds, error) {
	base, err := store.GetDwordFloat(registers.Holding, p.baseAddr)
	if err != nil {
		return thresholds{}, err
	}
	condBad, err := store.GetDwordFloat(registers.Holding, p.condBadAddr)
	if err != nil {
		return thresholds{}, err
	}
	bad, err := store.GetDwordFloat(registers.Holding, p.badAddr)
	if err != nil {
		return thresholds{}, err
	}
	t := thresholds{base: base, condBadError: condBad, badError: bad, twoSided: p.twoSided}
	if p.twoSided {
		positiveBad, err := store.GetDwordFloat(registers.Holding, p.positiveBadAddr)
		if err != nil {
			return thresholds{}, err
		}
		t.positiveBad = positiveBad
	}
	return t, nil
}

// catalog is the seven always-evaluated parameters, in the order the tally
// registers were laid out (spec §6, registers/map.go).
var catalog = []paramSpec{
	{
		// Height, like flange thickness, is handed in by the PLC as a single
		// value (40057) rather than produced by our own measurement engine
		// (the CMD=9 runtime height phase is not implemented; see
		// SPEC_FULL.md Open Question #3). The 30040-45 input triple would
		// never be written by this core, so it is not used here.
		key: "height", twoSided: false,
		singleAddr: registers.AddrMeasuredHeight,
		baseAddr: registers.AddrThreshHeightBase, condBadAddr: registers.AddrThreshHeightCondBadErr, badAddr: registers.AddrThreshHeightBadErr,
		tallyCondAddr: registers.AddrTallyCondBadHeight,
		tallyBadLessAddr: registers.AddrTallyBadHeightLess, tallyBadGreaterAddr: registers.AddrTallyBadHeightGreater,
	},
	{
		key: "upper_wall", twoSided: false,
		maxAddr: registers.AddrUpperWallMax, avgAddr: registers.AddrUpperWallAvg, minAddr: registers.AddrUpperWallMin,
		baseAddr: registers.AddrThreshUpperWallBase, condBadAddr: registers.AddrThreshUpperWallCondBadErr, badAddr: registers.AddrThreshUpperWallBadErr,
		tallyCondAddr: registers.AddrTallyCondBadUpperWall,
		tallyBadLessAddr: registers.AddrTallyBadUpperWallLess, tallyBadGreaterAddr: registers.AddrTallyBadUpperWallGreater,
	},
	{
		// Flange thickness has no measurement-engine output of its own: it is
		// handed in by the PLC as a single already-computed value (40059),
		// not a {max,avg,min} triple, so check mode never applies to it.
		key: "flange_thickness", twoSided: false,
		singleAddr: registers.AddrMeasuredFlangeThk,
		baseAddr: registers.AddrThreshFlangeThicknessBase, condBadAddr: registers.AddrThreshFlangeThicknessCondBadErr, badAddr: registers.AddrThreshFlangeThicknessBadErr,
		tallyCondAddr: registers.AddrTallyCondBadFlangeThickness,
		tallyBadLessAddr: registers.AddrTallyBadFlangeThicknessLess, tallyBadGreaterAddr: registers.AddrTallyBadFlangeThicknessGreater,
	},
	{
		key: "lower_wall", twoSided: true,
		maxAddr: registers.AddrLowerWallMax, avgAddr: registers.AddrLowerWallAvg, minAddr: registers.AddrLowerWallMin,
		baseAddr: registers.AddrThreshLowerWallBase, condBadAddr: registers.AddrThreshLowerWallCondBadErr, badAddr: registers.AddrThreshLowerWallBadErr,
		positiveBadAddr: registers.AddrPositiveBadLowerWall,
		tallyCondAddr: registers.AddrTallyCondBadLowerWallLess,
		tallyBadLessAddr: registers.AddrTallyBadLowerWallLess, tallyBadGreaterAddr: registers.AddrTallyBadLowerWallGreater,
	},
	{
		key: "bottom", twoSided: true,
		maxAddr: registers.AddrBottomMax, avgAddr: registers.AddrBottomAvg, minAddr: registers.AddrBottomMin,
		baseAddr: registers.AddrThreshBottomBase, condBadAddr: registers.AddrThreshBottomCondBadErr, badAddr: registers.AddrThreshBottomBadErr,
		positiveBadAddr: registers.AddrPositiveBadBottom,
		tallyCondAddr: registers.AddrTallyCondBadBottomLess,
		tallyBadLessAddr: registers.AddrTallyBadBottomLess, tallyBadGreaterAddr: registers.AddrTallyBadBottomGreater,
	},
	{
		key: "flange_diameter", twoSided: false,
		maxAddr: registers.AddrFlangeDiameterMax, avgAddr: registers.AddrFlangeDiameterAvg, minAddr: registers.AddrFlangeDiameterMin,
		baseAddr: registers.AddrThreshFlangeDiameterBase, condBadAddr: registers.AddrThreshFlangeDiameterCondBadErr, badAddr: registers.AddrThreshFlangeDiameterBadErr,
		tallyCondAddr: registers.AddrTallyCondBadFlangeDiameter,
		tallyBadLessAddr: registers.AddrTallyBadFlangeDiameterLess, tallyBadGreaterAddr: registers.AddrTallyBadFlangeDiameterGreater,
	},
	{
		key: "body_diameter", twoSided: false,
		maxAddr: registers.AddrBodyDiameterMax, avgAddr: registers.AddrBodyDiameterAvg, minAddr: registers.AddrBodyDiameterMin,
		baseAddr: registers.AddrThreshBodyDiameterBase, condBadAddr: registers.AddrThreshBodyDiameterCondBadErr, badAddr: registers.AddrThreshBodyDiameterBadErr,
		tallyCondAddr: registers.AddrTallyCondBadBodyDiameter,
		tallyBadLessAddr: registers.AddrTallyBadBodyDiameterLess, tallyBadGreaterAddr: registers.AddrTallyBadBodyDiameterGreater,
	},
}

// body2Spec is the optional eighth parameter (spec §4.6, only evaluated
// when CMD=40 ran this cycle). It shares the body_diameter tally bucket:
// the register map has no dedicated body2 tally (registers/map.go), since
// body2 is a second recipe for the same physical quantity.
var body2Spec = paramSpec{
	key: "body2_diameter", twoSided: false,
	maxAddr: registers.AddrBody2DiameterMax, avgAddr: registers.AddrBody2DiameterAvg, minAddr: registers.AddrBody2DiameterMin,
	baseAddr: registers.AddrThreshBody2Base, condBadAddr: registers.AddrThreshBody2CondBadErr, badAddr: registers.AddrThreshBody2BadErr,
	tallyCondAddr: registers.AddrTallyCondBadBodyDiameter,
	tallyBadLessAddr: registers.AddrTallyBadBodyDiameterLess, tallyBadGreaterAddr: registers.AddrTallyBadBodyDiameterGreater,
}

// ParamResult is one parameter's rolled-up verdict, for logging/diagnostics.
type ParamResult struct {
	Key     string
	Verdict Verdict
	Dir     direction
}

// Evaluator runs CMD=16 against the register store.
type Evaluator struct {
	store *registers.Store
}

// New returns an evaluator bound to store.
func New(store *registers.Store) *Evaluator {
	return &Evaluator{store: store}
}

// checkMode 0..3: which of {max, avg, min} are consulted (spec §4.6).
func selectedAddrs(mode uint16, p paramSpec) []int {
	switch mode {
	case 1:
		return []int{p.avgAddr}
	case 2:
		return []int{p.maxAddr, p.avgAddr}
	case 3:
		return []int{p.minAddr, p.avgAddr}
	default:
		return []int{p.maxAddr, p.avgAddr, p.minAddr}
	}
}

func (ev *Evaluator) evaluateParam(mode uint16, p paramSpec) (ParamResult, error) {
	t, err := p.loadThresholds(ev.store)
	if err != nil {
		return ParamResult{}, err
	}

	if p.singleAddr != 0 {
		v, err := ev.store.GetDwordFloat(registers.Holding, p.singleAddr)
		if err != nil {
			return ParamResult{}, err
		}
		verdict, dir := t.evaluate(v)
		return ParamResult{Key: p.key, Verdict: verdict, Dir: dir}, nil
	}

	worst := Good
	worstDir := dirNone
	for _, addr := range selectedAddrs(mode, p) {
		v, err := ev.store.GetDwordFloat(registers.Input, addr)
		if err != nil {
			return ParamResult{}, err
		}
		verdict, dir := t.evaluate(v)
		if verdict > worst {
			worst = verdict
			worstDir = dir
		}
	}
	return ParamResult{Key: p.key, Verdict: worst, Dir: worstDir}, nil
}

func (ev *Evaluator) incrementTally(p paramSpec, r ParamResult) error {
	switch r.Verdict {
	case CondGood:
		if p.tallyCondAddr != 0 {
			return ev.store.IncrementWordSaturating(registers.Input, p.tallyCondAddr, 1)
		}
	case Bad:
		addr := p.tallyBadLessAddr
		if r.Dir == dirGreater {
			addr = p.tallyBadGreaterAddr
		}
		return ev.store.IncrementWordSaturating(registers.Input, addr, 1)
	}
	return nil
}

// Evaluate runs one full CMD=16 pass: reads check mode and allowances,
// evaluates every parameter (plus body2 when required), increments shift
// counters and per-parameter tallies, and bumps the product number.
func (ev *Evaluator) Evaluate(body2Required bool) (Verdict, []ParamResult, error) {
	mode, err := ev.store.GetWord(registers.Holding, registers.AddrQualityCheckMode)
	if err != nil {
		return Bad, nil, err
	}
	allowedCond, err := ev.store.GetWord(registers.Holding, registers.AddrAllowedCondBad)
	if err != nil {
		return Bad, nil, err
	}
	allowedBad, err := ev.store.GetWord(registers.Holding, registers.AddrAllowedBad)
	if err != nil {
		return Bad, nil, err
	}

	params := catalog
	if body2Required {
		params = append(append([]paramSpec{}, catalog...), body2Spec)
	}

	results := make([]ParamResult, 0, len(params))
	var condCount, badCount uint16
	for _, p := range params {
		r, err := ev.evaluateParam(mode, p)
		if err != nil {
			return Bad, nil, err
		}
		results = append(results, r)
		switch r.Verdict {
		case CondGood:
			condCount++
		case Bad:
			badCount++
		}
		if err := ev.incrementTally(p, r); err != nil {
			return Bad, nil, err
		}
	}

	cycle := Good
	switch {
	case badCount > allowedBad:
		cycle = Bad
	case condCount > allowedCond:
		cycle = CondGood
	}

	if err := ev.store.IncrementWordSaturating(registers.Input, registers.AddrShiftTotal, 1); err != nil {
		return cycle, results, err
	}
	shiftAddr := registers.AddrShiftGood
	switch cycle {
	case CondGood:
		shiftAddr = registers.AddrShiftCondGood
	case Bad:
		shiftAddr = registers.AddrShiftBad
	}
	if err := ev.store.IncrementWordSaturating(registers.Input, shiftAddr, 1); err != nil {
		return cycle, results, err
	}

	product, err := ev.store.GetWord(registers.Holding, registers.AddrProductNumber)
	if err != nil {
		return cycle, results, err
	}
	if err := ev.store.SetWord(registers.Holding, registers.AddrProductNumber, product+1); err != nil {
		return cycle, results, err
	}

	return cycle, results, nil
}

// Package measurement implements the per-phase windowed filtering,
// diameter/thickness reduction, and phase contexts of the Measurement
// Engine (spec §4.5).
package measurement

import "slices"

// windowCapacity is the fixed 10-sample batch size (spec §3 SensorWindow,
// §4.5 "10-sample batch filter").
const windowCapacity = 10

// maxMedianDeviation is the outlier cutoff applied after sorting a window:
// values deviating from the median by more than this are dropped.
const maxMedianDeviation = 1.5

// Window is a fixed-capacity ordered sequence used for one batch of raw
// samples (spec §3 SensorWindow[T]). It is reset at phase entry, filled
// sample-by-sample, and drained when full to produce one filtered value.
type Window struct {
	values []float32
}

// NewWindow returns an empty window.
func NewWindow() *Window {
	return &Window{values: make([]float32, 0, windowCapacity)}
}

// Add appends one raw valid sample. Returns true once the window holds
// windowCapacity samples and is ready to be drained.
func (w *Window) Add(v float32) bool {
	w.values = append(w.values, v)
	return len(w.values) >= windowCapacity
}

// Len reports how many samples are currently buffered.
func (w *Window) Len() int {
	return len(w.values)
}

// Reset empties the window (spec invariant #3: buffers empty before any new
// sample is appended after a command change).
func (w *Window) Reset() {
	w.values = w.values[:0]
}

// Drain computes the batch's filtered output and resets the window (spec
// §4.5 steps 2-5):
//  1. sort the 10 values
//  2. median = mean of the 5th and 6th (1-indexed) elements
//  3. drop values deviating from the median by more than 1.5mm
//  4. if >= 5 survive, output their mean; else output the median
func (w *Window) Drain() float32 {
	sorted := slices.Clone(w.values)
	slices.Sort(sorted)

	median := (sorted[4] + sorted[5]) / 2

	var sum float32
	survivors := 0
	for _, v := range sorted {
		if abs32(v-median) <= maxMedianDeviation {
			sum += v
			survivors++
		}
	}

	w.Reset()

	if survivors >= 5 {
		return sum / float32(survivors)
	}
	return median
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

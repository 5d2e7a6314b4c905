// Package smoothing turns a raw temperature stream into a smoothed one.
//
// Every filter emits exactly one output per input. Until the window is full
// the output is computed over the samples seen so far.
package smoothing

import (
	"fmt"
	"sort"

	"github.com/asecurityteam/rolling"

	"clevo-fan/internal/ec"
)

// Kind selects a filter.
type Kind string

const (
	None    Kind = ""
	Average Kind = "average"
	Median  Kind = "median"
)

// Filter consumes one sample and returns the smoothed value.
//
// Filters hold their window and are not safe for concurrent use.
type Filter interface {
	Next(t ec.Temperature) ec.Temperature
}

// New returns the filter for kind over the size most recent samples.
func New(kind Kind, size int) (Filter, error) {
	switch kind {
	case None:
		return Passthrough{}, nil
	case Average:
		return NewMovingAverage(size)
	case Median:
		return NewMovingMedian(size)
	default:
		return nil, fmt.Errorf("smoothing: unknown filter %q", kind)
	}
}

// Passthrough returns every sample unchanged.
type Passthrough struct{}

func (Passthrough) Next(t ec.Temperature) ec.Temperature { return t }

// window keeps the most recent samples; the oldest is overwritten once full.
//
// The point policy pre-allocates every bucket with a zero and fills offsets
// in order, so only the first n buckets hold samples until it wraps.
type window struct {
	points *rolling.PointPolicy
	size   int
	n      int
}

func newWindow(size int) (*window, error) {
	if size < 1 {
		return nil, fmt.Errorf("smoothing: window size must be >= 1, got %d", size)
	}
	return &window{points: rolling.NewPointPolicy(rolling.NewWindow(size)), size: size}, nil
}

func (w *window) push(t ec.Temperature, reduce func(rolling.Window) float64) ec.Temperature {
	w.points.Append(float64(t))
	if w.n < w.size {
		w.n++
	}
	return ec.Temperature(w.points.Reduce(func(all rolling.Window) float64 {
		return reduce(all[:w.n])
	}))
}

// MovingAverage emits the arithmetic mean of the window. The sum is taken
// over the whole window on every sample, not accumulated.
type MovingAverage struct {
	w *window
}

func NewMovingAverage(size int) (*MovingAverage, error) {
	w, err := newWindow(size)
	if err != nil {
		return nil, err
	}
	return &MovingAverage{w: w}, nil
}

func (m *MovingAverage) Next(t ec.Temperature) ec.Temperature {
	return m.w.push(t, rolling.Avg)
}

// MovingMedian emits the element at index len/2 of the sorted window. For an
// even number of samples that is the upper of the two middle values.
type MovingMedian struct {
	w *window
}

func NewMovingMedian(size int) (*MovingMedian, error) {
	w, err := newWindow(size)
	if err != nil {
		return nil, err
	}
	return &MovingMedian{w: w}, nil
}

func (m *MovingMedian) Next(t ec.Temperature) ec.Temperature {
	return m.w.push(t, upperMedian)
}

func upperMedian(w rolling.Window) float64 {
	var values []float64
	for _, bucket := range w {
		values = append(values, bucket...)
	}
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	return values[len(values)/2]
}

// Package indicators computes technical indicators over OHLCV bars.
// Every function is pure; outputs are aligned to the input with
// leading undefined positions where history is insufficient.
package indicators

import (
	"errors"
	"fmt"
	"iter"
	"math"

	"equities-trading-bot/internal/broker"
)

// ErrInsufficientData is returned when a series is shorter than the period requires
var ErrInsufficientData = errors.New("insufficient data")

func insufficient(name string, have, need int) error {
	return fmt.Errorf("%w: %s needs %d values, have %d", ErrInsufficientData, name, need, have)
}

// Value is one position of a series; OK is false while undefined
type Value struct {
	V  float64
	OK bool
}

// Series is an indicator output aligned to its input
type Series []Value

func newSeries(n int) Series {
	return make(Series, n)
}

func (s Series) set(i int, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	s[i] = Value{V: v, OK: true}
}

// Len returns the series length
func (s Series) Len() int { return len(s) }

// At returns the value at i
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s) {
		return 0, false
	}
	return s[i].V, s[i].OK
}

// Last returns the final value
func (s Series) Last() (float64, bool) {
	return s.At(len(s) - 1)
}

// All walks the defined positions in order. The walk can be restarted.
func (s Series) All() iter.Seq2[int, float64] {
	return func(yield func(int, float64) bool) {
		for i, v := range s {
			if !v.OK {
				continue
			}
			if !yield(i, v.V) {
				return
			}
		}
	}
}

// Defined returns the defined values only
func (s Series) Defined() []float64 {
	out := make([]float64, 0, len(s))
	for _, v := range s.All() {
		out = append(out, v)
	}
	return out
}

// Closes extracts close prices
func Closes(bars []broker.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// Volumes extracts volumes
func Volumes(bars []broker.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

// HighestHigh returns the max high over the lookback bars ending before end (exclusive)
func HighestHigh(bars []broker.Bar, lookback, end int) (float64, error) {
	if end > len(bars) {
		end = len(bars)
	}
	start := end - lookback
	if lookback <= 0 || start < 0 {
		return 0, insufficient("highest high", end, lookback)
	}
	high := bars[start].High
	for _, b := range bars[start+1 : end] {
		high = math.Max(high, b.High)
	}
	return high, nil
}

// LowestLow returns the min low over the lookback bars ending before end (exclusive)
func LowestLow(bars []broker.Bar, lookback, end int) (float64, error) {
	if end > len(bars) {
		end = len(bars)
	}
	start := end - lookback
	if lookback <= 0 || start < 0 {
		return 0, insufficient("lowest low", end, lookback)
	}
	low := bars[start].Low
	for _, b := range bars[start+1 : end] {
		low = math.Min(low, b.Low)
	}
	return low, nil
}

// Mean returns the arithmetic mean
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

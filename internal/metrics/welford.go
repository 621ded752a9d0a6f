// Package metrics holds running statistics used by the history summary.
package metrics

import "math"

// Welford accumulates count, mean, population variance and range in a
// single pass without keeping the observations.
type Welford struct {
	count int
	mean  float64
	m2    float64 // sum of squared differences from the mean
	min   float64
	max   float64
}

// Add records one observation
func (w *Welford) Add(x float64) {
	w.count++
	if w.count == 1 {
		w.min, w.max = x, x
	} else {
		w.min = math.Min(w.min, x)
		w.max = math.Max(w.max, x)
	}
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	w.m2 += delta * (x - w.mean)
}

// Count returns the number of observations.
func (w *Welford) Count() int {
	return w.count
}

// Mean returns the running mean, 0 when empty.
func (w *Welford) Mean() float64 {
	return w.mean
}

// StdDev returns the population standard deviation.
// Returns 0 if fewer than 2 observations.
func (w *Welford) StdDev() float64 {
	if w.count < 2 {
		return 0
	}
	return math.Sqrt(w.m2 / float64(w.count))
}

// Stats is the JSON form of a Welford accumulator
type Stats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Stats snapshots the accumulator. Mean and standard deviation are rounded
// to two decimals; an empty accumulator reports zeros.
func (w *Welford) Stats() Stats {
	if w.count == 0 {
		return Stats{}
	}
	return Stats{
		Mean:   round2(w.mean),
		StdDev: round2(w.StdDev()),
		Min:    w.min,
		Max:    w.max,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Package stats provides the numerical helpers behind the parameter
// dataset's summary block: streaming moment accumulators, per-sensor-pair
// residual summaries, and symmetric matrix handling for the covariance,
// correlation and Hessian blocks.
package stats

import (
	"fmt"
	"math"
)

// Accumulator computes mean and standard deviation in one pass using
// Welford's update, so 16.8M-row residual sets can be summarised without
// holding the values.
type Accumulator struct {
	n    int
	mean float64
	m2   float64
}

// Add folds one value into the accumulator. NaNs are skipped so masked
// matchups do not poison the summary.
func (a *Accumulator) Add(x float64) {
	if math.IsNaN(x) {
		return
	}
	a.n++
	delta := x - a.mean
	a.mean += delta / float64(a.n)
	a.m2 += delta * (x - a.mean)
}

// N returns the number of accumulated values.
func (a *Accumulator) N() int { return a.n }

// Mean returns the running mean, or NaN when empty.
func (a *Accumulator) Mean() float64 {
	if a.n == 0 {
		return math.NaN()
	}
	return a.mean
}

// Stdev returns the sample standard deviation (n-1 denominator), or NaN
// when fewer than two values were seen.
func (a *Accumulator) Stdev() float64 {
	if a.n < 2 {
		return math.NaN()
	}
	return math.Sqrt(a.m2 / float64(a.n-1))
}

// MeanStdev returns the standard deviation of the mean, Stdev()/sqrt(n).
func (a *Accumulator) MeanStdev() float64 {
	if a.n < 2 {
		return math.NaN()
	}
	return a.Stdev() / math.Sqrt(float64(a.n))
}

// PairSummary is the per-sensor-pair residual summary block of the
// parameter dataset: one row per pair, aligned across all fields.
type PairSummary struct {
	Sensors              []string
	KResMean             []float64
	KResMeanStdev        []float64
	KResStdev            []float64
	KResUncertaintyLMean []float64
	KResUncertaintyHMean []float64
}

// Len returns the number of summary rows.
func (s *PairSummary) Len() int { return len(s.Sensors) }

type pairAcc struct {
	kRes Accumulator
	uL   Accumulator
	uH   Accumulator
}

// SummarisePairs recomputes the summary block from per-matchup residuals.
// labels carries the sensor-pair label of each matchup; rows are grouped by
// label in order of first appearance, matching how the harmonisation job
// concatenates its matchup files.
func SummarisePairs(labels []string, kRes []float64, uncL, uncH []float32) (*PairSummary, error) {
	if len(labels) != len(kRes) || len(kRes) != len(uncL) || len(uncL) != len(uncH) {
		return nil, fmt.Errorf("stats: misaligned inputs: %d labels, %d residuals, %d/%d uncertainties",
			len(labels), len(kRes), len(uncL), len(uncH))
	}
	accs := make(map[string]*pairAcc)
	var order []string
	for i, label := range labels {
		acc, ok := accs[label]
		if !ok {
			acc = &pairAcc{}
			accs[label] = acc
			order = append(order, label)
		}
		acc.kRes.Add(kRes[i])
		acc.uL.Add(float64(uncL[i]))
		acc.uH.Add(float64(uncH[i]))
	}

	s := &PairSummary{
		Sensors:              order,
		KResMean:             make([]float64, len(order)),
		KResMeanStdev:        make([]float64, len(order)),
		KResStdev:            make([]float64, len(order)),
		KResUncertaintyLMean: make([]float64, len(order)),
		KResUncertaintyHMean: make([]float64, len(order)),
	}
	for i, label := range order {
		acc := accs[label]
		s.KResMean[i] = acc.kRes.Mean()
		s.KResMeanStdev[i] = acc.kRes.MeanStdev()
		s.KResStdev[i] = acc.kRes.Stdev()
		s.KResUncertaintyLMean[i] = acc.uL.Mean()
		s.KResUncertaintyHMean[i] = acc.uH.Mean()
	}
	return s, nil
}

package measure

import (
	"fmt"
	"time"

	"github.com/johnsiilver/dispatchcost/strategy"
)

// Unit is the unit of per-call figures.
const Unit = "ns/op"

// Sample is the outcome of one fork of one strategy. It is not modified after Run returns it.
type Sample struct {
	Strategy string
	Family   strategy.Family
	Fork     int
	// Ops is the number of calls in each measured iteration.
	Ops int
	// Elapsed holds the wall time of each measured iteration. Warmup iterations are never
	// recorded. Elapsed is nil when Err is set.
	Elapsed []time.Duration
	// Err is why the fork failed, or nil.
	Err error

	seq int
}

// Valid reports whether the fork completed.
func (s Sample) Valid() bool {
	return s.Err == nil && len(s.Elapsed) > 0
}

// PerCall returns the nanoseconds per call for every measured iteration.
func (s Sample) PerCall() []float64 {
	if !s.Valid() || s.Ops < 1 {
		return nil
	}
	out := make([]float64, len(s.Elapsed))
	for i, e := range s.Elapsed {
		out[i] = float64(e.Nanoseconds()) / float64(s.Ops)
	}
	return out
}

// Mean returns the mean nanoseconds per call, or NaN for a failed fork.
func (s Sample) Mean() float64 {
	return mean(s.PerCall())
}

// String implements fmt.Stringer for log output.
func (s Sample) String() string {
	if s.Err != nil {
		return fmt.Sprintf("%s/%d: failed: %v", s.Strategy, s.Fork, s.Err)
	}
	return fmt.Sprintf("%s/%d: %.3f %s over %d iterations", s.Strategy, s.Fork, s.Mean(), Unit, len(s.Elapsed))
}

// Summary aggregates the valid forks of one strategy.
type Summary struct {
	Strategy string
	Family   strategy.Family
	// Samples is the number of measured iterations across valid forks.
	Samples int
	// Mean is the mean ns per call.
	Mean float64
	// Error is the half width of the Confidence interval around Mean.
	Error  float64
	StdDev float64
	Min    float64
	Max    float64
	Unit   string
	// Forks and FailedForks count the forks that completed and failed.
	Forks       int
	FailedForks int
}

// Result holds every sample of a run, ordered by strategy then fork.
type Result struct {
	Samples []Sample
}

// Failures returns the samples of failed forks.
func (r *Result) Failures() []Sample {
	var out []Sample
	for _, s := range r.Samples {
		if !s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

// Summaries aggregates the samples per strategy, in run order. A strategy without any valid
// fork has no summary.
func (r *Result) Summaries() []Summary {
	var (
		out   []Summary
		index = map[string]int{}
		calls = map[string][]float64{}
	)
	for _, s := range r.Samples {
		i, ok := index[s.Strategy]
		if !ok {
			i = len(out)
			index[s.Strategy] = i
			out = append(out, Summary{Strategy: s.Strategy, Family: s.Family, Unit: Unit})
		}
		if !s.Valid() {
			out[i].FailedForks++
			continue
		}
		out[i].Forks++
		calls[s.Strategy] = append(calls[s.Strategy], s.PerCall()...)
	}

	kept := out[:0]
	for _, sum := range out {
		xs := calls[sum.Strategy]
		if len(xs) == 0 {
			continue
		}
		sum.Samples = len(xs)
		sum.Mean = mean(xs)
		sum.StdDev = stddev(xs, sum.Mean)
		sum.Error = marginOfError(sum.StdDev, len(xs))
		sum.Min, sum.Max = minMax(xs)
		kept = append(kept, sum)
	}
	return kept
}

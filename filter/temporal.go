package filter

import (
	"fmt"
	"math"

	"github.com/notargets/inflowgen/types"
)

// Retention is the weight a = exp(-pi dt / (2T)) kept from the previous step, zero when T <= 0
func Retention(dt, T float64) float64 {
	if T <= 0 {
		return 0
	}
	return math.Exp(-math.Pi * dt / (2 * T))
}

// Complement is the weight sqrt(1 - a^2) given to new noise, preserving unit variance
func Complement(a float64) float64 {
	return math.Sqrt(math.Max(0, 1-a*a))
}

/*
TemporalCorrelator blends each new spatially correlated field with the previous output
	Psi(t) = a Psi(t - dt) + sqrt(1 - a^2) psi(t)
with one time scale per node and component. The first step has no history and returns
the spatial field unchanged.
*/
type TemporalCorrelator struct {
	TimeScales []types.Vector
	previous   []types.Vector
}

func NewTemporalCorrelator(timeScales []types.Vector) *TemporalCorrelator {
	return &TemporalCorrelator{TimeScales: timeScales}
}

func (tc *TemporalCorrelator) Correlate(spatial []types.Vector, dt float64) (out []types.Vector, err error) {
	if len(spatial) != len(tc.TimeScales) {
		err = fmt.Errorf("field has %d nodes, time scales have %d", len(spatial), len(tc.TimeScales))
		return
	}
	out = make([]types.Vector, len(spatial))
	if tc.previous == nil {
		copy(out, spatial)
		tc.previous = out
		return
	}
	for I, psi := range spatial {
		for c := 0; c < 3; c++ {
			a := Retention(dt, tc.TimeScales[I][c])
			out[I][c] = a*tc.previous[I][c] + Complement(a)*psi[c]
		}
	}
	tc.previous = out
	return
}

// State is the last output, nil before the first step
func (tc *TemporalCorrelator) State() []types.Vector {
	return tc.previous
}

func (tc *TemporalCorrelator) SetState(prev []types.Vector) (err error) {
	if prev != nil && len(prev) != len(tc.TimeScales) {
		err = fmt.Errorf("state has %d nodes, lattice has %d", len(prev), len(tc.TimeScales))
		return
	}
	tc.previous = prev
	return
}

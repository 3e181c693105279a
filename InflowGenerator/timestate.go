package InflowGenerator

import (
	"fmt"
	"time"
)

type Phase int

const (
	PhaseRandom Phase = iota
	PhaseSpatial
	PhaseTemporal
	PhaseInterpolation
	PhaseScaling
	PhaseMassFlow
	NumPhases
)

var phaseNames = [NumPhases]string{"random", "spatial", "temporal", "interpolation", "scaling", "massflow"}

func (p Phase) String() string {
	if p < 0 || p >= NumPhases {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// TimeStep identifies one call of the host time loop
type TimeStep struct {
	Index  int
	Time   float64
	DeltaT float64
}

/*
TimeState is the step bookkeeping carried across continuation restarts: the last step
index and time, the number of steps generated and the wall time spent in each phase.
*/
type TimeState struct {
	Index   int
	Time    float64
	Steps   int
	Elapsed [NumPhases]time.Duration
}

func (ts *TimeState) Add(p Phase, d time.Duration) {
	ts.Elapsed[p] += d
}

func (ts *TimeState) Advance(step TimeStep) {
	ts.Index = step.Index
	ts.Time = step.Time
	ts.Steps++
}

func (ts TimeState) Total() (d time.Duration) {
	for _, e := range ts.Elapsed {
		d += e
	}
	return
}

func (ts TimeState) String() string {
	s := fmt.Sprintf("step %d, t = %g, %d steps generated", ts.Index, ts.Time, ts.Steps)
	for p := Phase(0); p < NumPhases; p++ {
		s += fmt.Sprintf(", %s %v", p, ts.Elapsed[p])
	}
	return s
}

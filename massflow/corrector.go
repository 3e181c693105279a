package massflow

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/notargets/inflowgen/types"
	"github.com/notargets/inflowgen/utils"
)

var ErrUnknownRule = errors.New("unknown mass flow correction rule")

const DefaultRule = "shift"

// Rule adjusts the face velocities in place so the flux through the patch equals target
type Rule func(mc *Corrector, u []types.Vector, actual, target float64)

var Rules = map[string]Rule{
	"scale": scaleRule,
	"shift": shiftRule,
	"none":  func(mc *Corrector, u []types.Vector, actual, target float64) {},
}

func RuleNames() (names []string) {
	for name := range Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func LookupRule(name string) (r Rule, err error) {
	var ok bool
	if r, ok = Rules[name]; !ok {
		err = fmt.Errorf("%w: %q, must be one of %v", ErrUnknownRule, name, RuleNames())
	}
	return
}

/*
scaleRule rescales the mean normal velocity of every face by one factor,
	u_n <- u_n + (alpha - 1) U_n,   alpha - 1 = (target - actual) / sum(U.S)
leaving the tangential components and the fluctuations untouched. A mean profile that
does not pass through the patch in one direction has no factor to scale, so the
correction shifts instead.
*/
func scaleRule(mc *Corrector, u []types.Vector, actual, target float64) {
	if !mc.Unidirectional() {
		shiftRule(mc, u, actual, target)
		return
	}
	ratio := (target - actual) / mc.MeanTotal
	for f := range u {
		if mc.Mags[f] == 0 {
			continue
		}
		u[f] = u[f].Add(mc.Normals[f].Scale(ratio * mc.MeanFlux[f] / mc.Mags[f]))
	}
}

// shiftRule adds a uniform velocity along each face normal
func shiftRule(mc *Corrector, u []types.Vector, actual, target float64) {
	if mc.TotalArea == 0 {
		return
	}
	du := (target - actual) / mc.TotalArea
	for f := range u {
		u[f] = u[f].Add(mc.Normals[f].Scale(du))
	}
}

/*
Corrector holds the face area vectors of a patch split into partitions, and the flux of
the mean profile through each face. Partial fluxes are summed per partition in parallel
and reduced in partition order, so the result is the same on every call with the same
inputs.
*/
type Corrector struct {
	Areas     []types.Vector
	Normals   []types.Vector
	Mags      []float64
	TotalArea float64
	MeanFlux  []float64 // U_mean . S per face
	MeanTotal float64
	MeanAbs   float64 // sum |U_mean . S|
	Rule      Rule
	RuleName  string
	Faces     *utils.PartitionMap
}

// NewCorrector takes the face area vectors and the mean velocity on each face, mean may be nil
func NewCorrector(areas, mean []types.Vector, rule string, procLimit int) (mc *Corrector, err error) {
	mc = &Corrector{
		Areas:    areas,
		Normals:  make([]types.Vector, len(areas)),
		Mags:     make([]float64, len(areas)),
		MeanFlux: make([]float64, len(areas)),
		RuleName: rule,
		Faces:    utils.NewPartitionMap(utils.ParallelDegreeFor(procLimit, len(areas)), len(areas)),
	}
	if mc.Rule, err = LookupRule(rule); err != nil {
		return
	}
	if mean != nil && len(mean) != len(areas) {
		err = fmt.Errorf("have %d mean velocities for %d faces", len(mean), len(areas))
		return
	}
	for f, a := range areas {
		mc.Mags[f] = a.Mag()
		mc.Normals[f] = a.Normalized()
		if mean != nil {
			mc.MeanFlux[f] = mean[f].Dot(a)
		}
	}
	mc.TotalArea = floats.Sum(mc.Mags)
	mc.MeanTotal = floats.Sum(mc.MeanFlux)
	for _, phi := range mc.MeanFlux {
		mc.MeanAbs += math.Abs(phi)
	}
	return
}

// Unidirectional is true when the mean profile crosses every face in the same direction, with nonzero total
func (mc *Corrector) Unidirectional() bool {
	if mc.MeanAbs == 0 {
		return false
	}
	return math.Abs(mc.MeanTotal) >= (1-utils.NODETOL)*mc.MeanAbs
}

func (mc *Corrector) Flux(u []types.Vector) (flux float64) {
	var (
		NP      = mc.Faces.ParallelDegree
		partial = make([]float64, NP)
		wg      = sync.WaitGroup{}
	)
	for np := 0; np < NP; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			f0, f1 := mc.Faces.GetBucketRange(np)
			for f := f0; f < f1; f++ {
				partial[np] += u[f].Dot(mc.Areas[f])
			}
		}(np)
	}
	wg.Wait()
	return floats.Sum(partial)
}

// Correct applies the rule in place and returns the flux before correction
func (mc *Corrector) Correct(u []types.Vector, target float64) (actual float64, err error) {
	if len(u) != len(mc.Areas) {
		err = fmt.Errorf("have %d velocities for %d faces", len(u), len(mc.Areas))
		return
	}
	actual = mc.Flux(u)
	mc.Rule(mc, u, actual, target)
	return
}

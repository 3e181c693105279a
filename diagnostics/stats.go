package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/notargets/inflowgen/types"
)

// Moments of a velocity sample: mean and covariance (the Reynolds stress)
type Moments struct {
	N    int
	Mean types.Vector
	Cov  types.SymmTensor
}

// FieldMoments treats every face of one generated field as a sample
func FieldMoments(u []types.Vector) (m Moments, err error) {
	if len(u) < 2 {
		err = fmt.Errorf("need at least two samples, have %d", len(u))
		return
	}
	data := mat.NewDense(len(u), 3, nil)
	for i, v := range u {
		data.SetRow(i, v[:])
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)
	m.N = len(u)
	for i := 0; i < 3; i++ {
		m.Mean[i] = stat.Mean(mat.Col(nil, i, data), nil)
		for j := i; j < 3; j++ {
			m.Cov.Set(i, j, cov.At(i, j))
		}
	}
	return
}

/*
Accumulator gathers per face statistics over time steps, the quantities the generated
inflow is meant to reproduce: the mean velocity and the Reynolds stress at each face.
*/
type Accumulator struct {
	N     int
	sum   []types.Vector
	sumSq []types.SymmTensor
}

func NewAccumulator(nFaces int) *Accumulator {
	return &Accumulator{
		sum:   make([]types.Vector, nFaces),
		sumSq: make([]types.SymmTensor, nFaces),
	}
}

func (a *Accumulator) Add(u []types.Vector) (err error) {
	if len(u) != len(a.sum) {
		err = fmt.Errorf("field has %d faces, accumulator %d", len(u), len(a.sum))
		return
	}
	for f, v := range u {
		a.sum[f] = a.sum[f].Add(v)
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				a.sumSq[f].Set(i, j, a.sumSq[f].At(i, j)+v[i]*v[j])
			}
		}
	}
	a.N++
	return
}

func (a *Accumulator) Mean() (U []types.Vector) {
	U = make([]types.Vector, len(a.sum))
	if a.N == 0 {
		return
	}
	for f := range a.sum {
		U[f] = a.sum[f].Scale(1 / float64(a.N))
	}
	return
}

// Stress is the population covariance at each face
func (a *Accumulator) Stress() (R []types.SymmTensor) {
	R = make([]types.SymmTensor, len(a.sum))
	if a.N == 0 {
		return
	}
	n := float64(a.N)
	for f := range a.sum {
		mean := a.sum[f].Scale(1 / n)
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				R[f].Set(i, j, a.sumSq[f].At(i, j)/n-mean[i]*mean[j])
			}
		}
	}
	return
}

// StressError is the largest deviation of the measured stress from the target, relative to the target trace
func (a *Accumulator) StressError(target []types.SymmTensor) (maxRel float64, err error) {
	if len(target) != len(a.sum) {
		err = fmt.Errorf("target has %d faces, accumulator %d", len(target), len(a.sum))
		return
	}
	for f, R := range a.Stress() {
		tr := target[f].Trace()
		if tr <= 0 {
			continue
		}
		for c := range R {
			maxRel = math.Max(maxRel, math.Abs(R[c]-target[f][c])/tr)
		}
	}
	return
}

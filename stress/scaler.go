package stress

import (
	"fmt"

	"github.com/notargets/inflowgen/types"
)

// LundScaler turns unit variance, uncorrelated fluctuations into velocities u = U + L·xi per face
type LundScaler struct {
	Mean    []types.Vector
	Factors []types.Tensor
	Clamped []int // Faces whose stress was projected onto the PSD cone
}

func NewLundScaler(mean []types.Vector, R []types.SymmTensor) (ls *LundScaler, err error) {
	if len(mean) != len(R) {
		err = fmt.Errorf("have %d mean velocities and %d stress tensors", len(mean), len(R))
		return
	}
	ls = &LundScaler{
		Mean:    mean,
		Factors: make([]types.Tensor, len(R)),
	}
	var clamped bool
	for f, r := range R {
		if ls.Factors[f], clamped, err = DecomposeOrClamp(r); err != nil {
			err = fmt.Errorf("face %d: %w", f, err)
			return
		}
		if clamped {
			ls.Clamped = append(ls.Clamped, f)
		}
	}
	return
}

func (ls *LundScaler) Scale(xi []types.Vector) (u []types.Vector, err error) {
	if len(xi) != len(ls.Mean) {
		err = fmt.Errorf("have %d fluctuations for %d faces", len(xi), len(ls.Mean))
		return
	}
	u = make([]types.Vector, len(xi))
	for f := range xi {
		u[f] = ls.Mean[f].Add(ls.Factors[f].MulVec(xi[f]))
	}
	return
}

// CheckProfile rejects input stresses that are not positive semi-definite beyond Tolerance
func CheckProfile(R []types.SymmTensor) (err error) {
	for i, r := range R {
		if _, err = Decompose(r); err != nil {
			return fmt.Errorf("input point %d: %w", i, err)
		}
	}
	return
}

package stress

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/inflowgen/types"
)

var ErrNotPositiveSemiDefinite = errors.New("reynolds stress tensor is not positive semi-definite")

// Tolerance is the negative pivot, relative to the trace, still treated as zero
var Tolerance = 1.e-8

/*
Decompose returns the lower triangular factor L of Lund, Wu & Squires (1998) with
L·Lᵗ = R:
	L11 = sqrt(R11)
	L21 = R21 / L11           L22 = sqrt(R22 - L21^2)
	L31 = R31 / L11           L32 = (R32 - L21 L31) / L22
	L33 = sqrt(R33 - L31^2 - L32^2)
Zero pivots are allowed when the matching off diagonal entries vanish.
*/
func Decompose(R types.SymmTensor) (L types.Tensor, err error) {
	var (
		tol = Tolerance * math.Max(math.Abs(R.Trace()), math.SmallestNonzeroFloat64)
	)
	pivot := func(v float64) (p float64, ok bool) {
		switch {
		case v < -tol:
			return 0, false
		case v < 0:
			return 0, true
		}
		return math.Sqrt(v), true
	}
	divide := func(num, den float64) (q float64, ok bool) {
		if den == 0 {
			return 0, math.Abs(num) <= math.Sqrt(tol*math.Abs(R.Trace()))
		}
		return num / den, true
	}
	var (
		ok                 bool
		l11, l22, l33      float64
		l21, l31, l32, arg float64
	)
	fail := func() (types.Tensor, error) {
		return types.Tensor{}, fmt.Errorf("%w: %v", ErrNotPositiveSemiDefinite, R)
	}
	if l11, ok = pivot(R[types.XX]); !ok {
		return fail()
	}
	if l21, ok = divide(R[types.XY], l11); !ok {
		return fail()
	}
	if l31, ok = divide(R[types.XZ], l11); !ok {
		return fail()
	}
	if l22, ok = pivot(R[types.YY] - l21*l21); !ok {
		return fail()
	}
	if l32, ok = divide(R[types.YZ]-l21*l31, l22); !ok {
		return fail()
	}
	arg = R[types.ZZ] - l31*l31 - l32*l32
	if l33, ok = pivot(arg); !ok {
		return fail()
	}
	L.Set(0, 0, l11)
	L.Set(1, 0, l21)
	L.Set(1, 1, l22)
	L.Set(2, 0, l31)
	L.Set(2, 1, l32)
	L.Set(2, 2, l33)
	return
}

// Eigen returns the ascending eigenvalues and the eigenvectors (columns) of R
func Eigen(R types.SymmTensor) (vals []float64, vecs *mat.Dense, err error) {
	var (
		es   mat.EigenSym
		full = R.Full()
		sym  = mat.NewSymDense(3, full[:])
	)
	if !es.Factorize(sym, true) {
		err = fmt.Errorf("eigen decomposition failed for %v", R)
		return
	}
	vals = es.Values(nil)
	vecs = &mat.Dense{}
	es.VectorsTo(vecs)
	return
}

// ProjectPSD sets the negative eigenvalues of R to zero
func ProjectPSD(R types.SymmTensor) (P types.SymmTensor, err error) {
	var (
		vals []float64
		vecs *mat.Dense
	)
	if vals, vecs, err = Eigen(R); err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			var sum float64
			for n, lambda := range vals {
				sum += math.Max(lambda, 0) * vecs.At(i, n) * vecs.At(j, n)
			}
			P.Set(i, j, sum)
		}
	}
	return
}

// DecomposeOrClamp projects R onto the positive semi-definite tensors when it is not, reporting the clamp
func DecomposeOrClamp(R types.SymmTensor) (L types.Tensor, clamped bool, err error) {
	if L, err = Decompose(R); err == nil || !errors.Is(err, ErrNotPositiveSemiDefinite) {
		return
	}
	var P types.SymmTensor
	if P, err = ProjectPSD(R); err != nil {
		return
	}
	clamped = true
	L, err = Decompose(P)
	return
}

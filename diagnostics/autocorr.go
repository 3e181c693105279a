package diagnostics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/notargets/inflowgen/lattice"
	"github.com/notargets/inflowgen/types"
)

type Axis int

const (
	AlongY Axis = iota // Lattice columns, fixed k
	AlongZ             // Lattice rows, fixed j
)

func (a Axis) String() string {
	if a == AlongY {
		return "y"
	}
	return "z"
}

/*
Correlogram accumulates the two point correlation of one velocity component along a
lattice direction, averaged over all lines of the lattice and all added fields:
	r(m) = <x(n) x(n+m)>
Each line is zero padded to twice its length so the FFT product gives the linear, not
the circular, correlation.
*/
type Correlogram struct {
	Axis      Axis
	Component int
	Spacing   float64
	g         *lattice.Grid
	fft       *fourier.FFT
	n         int
	sum       []float64
	pairs     []float64
	seq       []float64
	coeff     []complex128
}

func NewCorrelogram(g *lattice.Grid, axis Axis, component int) (cg *Correlogram, err error) {
	if component < 0 || component > 2 {
		err = fmt.Errorf("component %d out of range", component)
		return
	}
	cg = &Correlogram{
		Axis:      axis,
		Component: component,
		g:         g,
	}
	switch axis {
	case AlongY:
		cg.n, cg.Spacing = g.NY, g.DY
	case AlongZ:
		cg.n, cg.Spacing = g.NZ, g.DZ
	default:
		return nil, fmt.Errorf("unknown axis %d", axis)
	}
	cg.fft = fourier.NewFFT(2 * cg.n)
	cg.sum = make([]float64, cg.n)
	cg.pairs = make([]float64, cg.n)
	cg.seq = make([]float64, 2*cg.n)
	return
}

// Add takes a field on the lattice nodes
func (cg *Correlogram) Add(field []types.Vector) (err error) {
	if len(field) != cg.g.NumNodes() {
		err = fmt.Errorf("field has %d nodes, lattice %d", len(field), cg.g.NumNodes())
		return
	}
	lines := cg.g.NZ
	if cg.Axis == AlongZ {
		lines = cg.g.NY
	}
	for l := 0; l < lines; l++ {
		for i := range cg.seq {
			cg.seq[i] = 0
		}
		for i := 0; i < cg.n; i++ {
			var ind int
			if cg.Axis == AlongY {
				ind = cg.g.Index1D(i, l)
			} else {
				ind = cg.g.Index1D(l, i)
			}
			cg.seq[i] = field[ind][cg.Component]
		}
		cg.coeff = cg.fft.Coefficients(cg.coeff, cg.seq)
		for i, c := range cg.coeff {
			cg.coeff[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
		}
		cg.seq = cg.fft.Sequence(cg.seq, cg.coeff)
		scale := 1 / float64(len(cg.seq))
		for m := 0; m < cg.n; m++ {
			cg.sum[m] += cg.seq[m] * scale
			cg.pairs[m] += float64(cg.n - m)
		}
	}
	return
}

// Correlation is r(m) / r(0) for m = 0 .. n-1
func (cg *Correlogram) Correlation() (r []float64) {
	r = make([]float64, cg.n)
	if cg.pairs[0] == 0 {
		return
	}
	r0 := cg.sum[0] / cg.pairs[0]
	for m := range r {
		if cg.pairs[m] == 0 || r0 == 0 {
			continue
		}
		r[m] = cg.sum[m] / cg.pairs[m] / r0
	}
	return
}

// IntegralScale integrates the correlation up to its first zero crossing, trapezoidal rule
func IntegralScale(r []float64, spacing float64) (L float64) {
	for m := 1; m < len(r); m++ {
		if r[m] <= 0 {
			// Linear interpolation to the crossing
			frac := r[m-1] / (r[m-1] - r[m])
			L += 0.5 * r[m-1] * frac * spacing
			return
		}
		L += 0.5 * (r[m-1] + r[m]) * spacing
	}
	return
}

// CorrelationLength is the separation where the correlation first falls to 1/e, interpolated between lags
func CorrelationLength(r []float64, spacing float64) (L float64) {
	target := 1 / math.E
	for m := 1; m < len(r); m++ {
		if r[m] <= target {
			frac := (r[m-1] - target) / (r[m-1] - r[m])
			return (float64(m-1) + frac) * spacing
		}
	}
	return float64(len(r)-1) * spacing
}

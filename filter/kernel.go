package filter

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

var ErrUnknownShape = errors.New("unknown correlation shape")

// ShapeFunc samples an unnormalized filter coefficient at offset k in -NL..NL for a shape of width w spacings
type ShapeFunc func(k, NL int, w float64) float64

/*
Shapes maps the correlationShape option onto the sampled filter forms and the
autocorrelation each imposes on white noise before truncation,
	gaussian:  exp(-k^2 / w^2)        r(m) = exp(-m^2 / (2 w^2))    Klein, Sadiki & Janicka (2003)
	exp:       exp(-(k + NL) / w)     r(m) = exp(-|m| / w)          one sided, the AR(1) impulse response
	doubleExp: exp(-|k| / w)          r(m) = (1 + |m|/w) exp(-|m|/w) two sided, the Laplace function
The width w is fitted in NewKernel so the truncated filter gives r(n) = 1/e.
*/
var Shapes = map[string]ShapeFunc{
	"gaussian": func(k, NL int, w float64) float64 {
		kk := float64(k)
		return math.Exp(-kk * kk / (w * w))
	},
	"exp": func(k, NL int, w float64) float64 {
		return math.Exp(-float64(k+NL) / w)
	},
	"doubleExp": func(k, NL int, w float64) float64 {
		return math.Exp(-math.Abs(float64(k)) / w)
	},
}

func ShapeNames() (names []string) {
	for name := range Shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

func LookupShape(name string) (sf ShapeFunc, err error) {
	var ok bool
	if sf, ok = Shapes[name]; !ok {
		err = fmt.Errorf("%w: %q, must be one of %v", ErrUnknownShape, name, ShapeNames())
	}
	return
}

/*
Kernel holds the 2*NL+1 coefficients of a one dimensional digital filter, Coeffs[NL] is
the centre. The coefficients are normalized so that sum(Coeffs^2) = 1, which makes the
filtered field keep the unit variance of the white noise it is applied to. The shape
width Decay is chosen so the filtered field decorrelates to 1/e at N spacings.
*/
type Kernel struct {
	Shape  string
	N      int // Length scale in lattice spacings
	NL     int // Half width
	Decay  float64
	Coeffs []float64
}

func NewKernel(shape string, n, nfK int) (kn *Kernel, err error) {
	var (
		sf ShapeFunc
	)
	if sf, err = LookupShape(shape); err != nil {
		return
	}
	if n < 1 {
		err = fmt.Errorf("length scale must span at least one lattice spacing, have n = %d", n)
		return
	}
	if nfK < 1 {
		err = fmt.Errorf("nfK must be at least 1, have %d", nfK)
		return
	}
	kn = &Kernel{
		Shape:  shape,
		N:      n,
		NL:     nfK * n,
		Coeffs: make([]float64, 2*nfK*n+1),
	}
	kn.fitDecay(sf)
	return
}

func (kn *Kernel) sample(sf ShapeFunc, w float64) {
	for i := range kn.Coeffs {
		kn.Coeffs[i] = sf(i-kn.NL, kn.NL, w)
	}
	norm := math.Sqrt(floats.Dot(kn.Coeffs, kn.Coeffs))
	floats.Scale(1./norm, kn.Coeffs)
}

/*
fitDecay bisects on the shape width until Autocorrelation(N) = 1/e. The correlation at a
fixed lag grows with the width from 0 (a single spike) towards 1 - N/(2NL+1) >= 1/2 (a
flat filter), so the root is bracketed once the upper width passes it.
*/
func (kn *Kernel) fitDecay(sf ShapeFunc) {
	var (
		target = 1 / math.E
		lo     = 1.e-3
		hi     = float64(kn.N)
	)
	kn.sample(sf, hi)
	for kn.Autocorrelation(kn.N) < target {
		lo, hi = hi, 2*hi
		kn.sample(sf, hi)
	}
	for i := 0; i < 100 && hi-lo > 1.e-12*hi; i++ {
		mid := 0.5 * (lo + hi)
		kn.sample(sf, mid)
		if kn.Autocorrelation(kn.N) < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	kn.Decay = 0.5 * (lo + hi)
	kn.sample(sf, kn.Decay)
}

func (kn *Kernel) Width() int {
	return len(kn.Coeffs)
}

// At returns the coefficient at offset k from the centre, zero outside the support
func (kn *Kernel) At(k int) float64 {
	if k < -kn.NL || k > kn.NL {
		return 0
	}
	return kn.Coeffs[k+kn.NL]
}

// Autocorrelation is the correlation the filter imposes between nodes m spacings apart
func (kn *Kernel) Autocorrelation(m int) (r float64) {
	for k := -kn.NL; k <= kn.NL; k++ {
		r += kn.At(k) * kn.At(k+m)
	}
	return
}

// Kernel2D is the separable outer product ky ⊗ kz, row index along y
func Kernel2D(ky, kz *Kernel) (k2 [][]float64) {
	k2 = make([][]float64, ky.Width())
	for a, by := range ky.Coeffs {
		k2[a] = make([]float64, kz.Width())
		for b, bz := range kz.Coeffs {
			k2[a][b] = by * bz
		}
	}
	return
}

// GridUnits converts a length scale into an integer number of spacings, never below one
func GridUnits(L, delta float64) (n int) {
	n = int(math.Round(L / delta))
	if n < 1 {
		n = 1
	}
	return
}

// KernelFactory builds and caches kernels for one shape and truncation
type KernelFactory struct {
	Shape string
	NfK   int
	mu    sync.Mutex
	cache map[int]*Kernel
}

func NewKernelFactory(shape string, nfK int) (kf *KernelFactory, err error) {
	if _, err = LookupShape(shape); err != nil {
		return
	}
	if nfK < 1 {
		err = fmt.Errorf("nfK must be at least 1, have %d", nfK)
		return
	}
	kf = &KernelFactory{
		Shape: shape,
		NfK:   nfK,
		cache: make(map[int]*Kernel),
	}
	return
}

func (kf *KernelFactory) Get(n int) (kn *Kernel, err error) {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	var ok bool
	if kn, ok = kf.cache[n]; ok {
		return
	}
	if kn, err = NewKernel(kf.Shape, n, kf.NfK); err != nil {
		return
	}
	kf.cache[n] = kn
	return
}

func (kf *KernelFactory) Len() int {
	kf.mu.Lock()
	defer kf.mu.Unlock()
	return len(kf.cache)
}

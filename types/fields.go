package types

import "math"

// Component indexes the three velocity components u, v, w
type Component uint8

const (
	U Component = iota
	V
	W
)

var ComponentNames = [3]string{"u", "v", "w"}

func (c Component) String() string {
	return ComponentNames[c]
}

// Point2 is a location on the inflow plane, stored as (y, z)
type Point2 [2]float64

type Vector [3]float64

func (a Vector) Add(b Vector) (c Vector) {
	for i := 0; i < 3; i++ {
		c[i] = a[i] + b[i]
	}
	return
}

func (a Vector) Sub(b Vector) (c Vector) {
	for i := 0; i < 3; i++ {
		c[i] = a[i] - b[i]
	}
	return
}

func (a Vector) Scale(s float64) (c Vector) {
	for i := 0; i < 3; i++ {
		c[i] = s * a[i]
	}
	return
}

func (a Vector) Dot(b Vector) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func (a Vector) Mag() float64 {
	return math.Sqrt(a.Dot(a))
}

func (a Vector) Normalized() (c Vector) {
	m := a.Mag()
	if m == 0 {
		return
	}
	return a.Scale(1. / m)
}

/*
SymmTensor stores the six independent entries of a symmetric 3x3 tensor in the order
	xx, xy, xz, yy, yz, zz
*/
type SymmTensor [6]float64

const (
	XX = iota
	XY
	XZ
	YY
	YZ
	ZZ
)

var symmIndex = [3][3]int{
	{XX, XY, XZ},
	{XY, YY, YZ},
	{XZ, YZ, ZZ},
}

func NewSymmTensorDiag(xx, yy, zz float64) (s SymmTensor) {
	s[XX], s[YY], s[ZZ] = xx, yy, zz
	return
}

func (s SymmTensor) At(i, j int) float64 {
	return s[symmIndex[i][j]]
}

func (s *SymmTensor) Set(i, j int, val float64) {
	s[symmIndex[i][j]] = val
}

func (s SymmTensor) Trace() float64 {
	return s[XX] + s[YY] + s[ZZ]
}

func (s SymmTensor) Full() (t Tensor) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[3*i+j] = s.At(i, j)
		}
	}
	return
}

func (s SymmTensor) Add(b SymmTensor) (c SymmTensor) {
	for i := range s {
		c[i] = s[i] + b[i]
	}
	return
}

func (s SymmTensor) Scale(a float64) (c SymmTensor) {
	for i := range s {
		c[i] = a * s[i]
	}
	return
}

// Tensor is a full 3x3 tensor stored row major
type Tensor [9]float64

func (t Tensor) At(i, j int) float64 {
	return t[3*i+j]
}

func (t *Tensor) Set(i, j int, val float64) {
	t[3*i+j] = val
}

func (t Tensor) MulVec(v Vector) (r Vector) {
	for i := 0; i < 3; i++ {
		r[i] = t[3*i]*v[0] + t[3*i+1]*v[1] + t[3*i+2]*v[2]
	}
	return
}

// OuterSelf returns T·Tᵗ, which is symmetric by construction
func (t Tensor) OuterSelf() (s SymmTensor) {
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += t.At(i, k) * t.At(j, k)
			}
			s[symmIndex[i][j]] = sum
		}
	}
	return
}

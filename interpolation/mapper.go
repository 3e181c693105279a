package interpolation

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"

	"github.com/notargets/inflowgen/types"
)

/*
Mapper transfers fields from NSrc source points to NTgt target points with a fixed
sparse weight matrix W (NTgt x NSrc). Every row of W sums to one, so constant fields are
reproduced exactly.
*/
type Mapper struct {
	NSrc, NTgt  int
	W           *sparse.CSR
	Fingerprint uint64
	raw         *blas.SparseMatrix
}

func newMapper(dok *sparse.DOK, src, tgt []types.Point2) (m *Mapper) {
	m = &Mapper{
		NSrc:        len(src),
		NTgt:        len(tgt),
		W:           dok.ToCSR(),
		Fingerprint: Fingerprint(src, tgt),
	}
	m.raw = m.W.RawMatrix()
	return
}

// Fingerprint identifies a pair of point sets, a changed fingerprint means the weights are stale
func Fingerprint(src, tgt []types.Point2) uint64 {
	var (
		h   = fnv.New64a()
		buf [8]byte
	)
	for _, pts := range [][]types.Point2{src, tgt} {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(pts)))
		h.Write(buf[:])
		for _, p := range pts {
			for _, x := range p {
				binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
				h.Write(buf[:])
			}
		}
	}
	return h.Sum64()
}

// Row returns the source indices and weights contributing to target i
func (m *Mapper) Row(i int) (ind []int, w []float64) {
	var (
		r0, r1 = m.raw.Indptr[i], m.raw.Indptr[i+1]
	)
	return m.raw.Ind[r0:r1], m.raw.Data[r0:r1]
}

func applyRows[T any](m *Mapper, src []T, add func(dst *T, w float64, s T)) (dst []T, err error) {
	if len(src) != m.NSrc {
		err = fmt.Errorf("mapper expects %d source values, have %d", m.NSrc, len(src))
		return
	}
	dst = make([]T, m.NTgt)
	for i := range dst {
		ind, w := m.Row(i)
		for n, j := range ind {
			add(&dst[i], w[n], src[j])
		}
	}
	return
}

func (m *Mapper) ApplyScalar(src []float64) ([]float64, error) {
	return applyRows(m, src, func(dst *float64, w float64, s float64) {
		*dst += w * s
	})
}

func (m *Mapper) ApplyVector(src []types.Vector) ([]types.Vector, error) {
	return applyRows(m, src, func(dst *types.Vector, w float64, s types.Vector) {
		for c := range s {
			dst[c] += w * s[c]
		}
	})
}

func (m *Mapper) ApplySymmTensor(src []types.SymmTensor) ([]types.SymmTensor, error) {
	return applyRows(m, src, func(dst *types.SymmTensor, w float64, s types.SymmTensor) {
		for c := range s {
			dst[c] += w * s[c]
		}
	})
}

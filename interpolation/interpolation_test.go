package interpolation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/inflowgen/geometry2D"
	"github.com/notargets/inflowgen/lattice"
	"github.com/notargets/inflowgen/types"
)

func linear(p types.Point2) float64 {
	return 2*p[0] - 3*p[1] + 1
}

func checkRowSums(t *testing.T, m *Mapper) {
	for i := 0; i < m.NTgt; i++ {
		_, w := m.Row(i)
		var sum float64
		for _, x := range w {
			sum += x
			assert.True(t, x >= 0)
		}
		assert.InDelta(t, 1., sum, 1.e-12)
	}
}

func TestPlanarMapper(t *testing.T) {
	var (
		src = []types.Point2{{0, 0}, {1, 0}, {0, 1}, {1, 1}, {0.4, 0.6}, {0.7, 0.2}}
		tgt = []types.Point2{{0.5, 0.5}, {0.1, 0.9}, {0.95, 0.05}, {2, 2}, {-1, 0.1}, {0.4, 0.6}}
	)
	{ // Linear fields are reproduced inside the hull, nearest values outside
		m, err := NewPlanarMapper(src, tgt, 0)
		require.NoError(t, err)
		assert.Equal(t, len(src), m.NSrc)
		assert.Equal(t, len(tgt), m.NTgt)
		checkRowSums(t, m)
		f := make([]float64, len(src))
		for i, p := range src {
			f[i] = linear(p)
		}
		out, err := m.ApplyScalar(f)
		require.NoError(t, err)
		for _, i := range []int{0, 1, 2, 5} {
			assert.InDelta(t, linear(tgt[i]), out[i], 1.e-10)
		}
		assert.InDelta(t, f[3], out[3], 1.e-14)
		assert.InDelta(t, f[0], out[4], 1.e-14)

		vs := make([]types.Vector, len(src))
		ts := make([]types.SymmTensor, len(src))
		for i := range src {
			vs[i] = types.Vector{f[i], 1, -f[i]}
			ts[i] = types.NewSymmTensorDiag(f[i], f[i], 2)
		}
		vo, err := m.ApplyVector(vs)
		require.NoError(t, err)
		to, err := m.ApplySymmTensor(ts)
		require.NoError(t, err)
		for i := range tgt {
			assert.InDelta(t, out[i], vo[i][0], 1.e-12)
			assert.InDelta(t, 1., vo[i][1], 1.e-12)
			assert.InDelta(t, out[i], to[i][types.YY], 1.e-12)
			assert.InDelta(t, 2., to[i][types.ZZ], 1.e-12)
			assert.InDelta(t, 0., to[i][types.XY], 1.e-12)
		}
		_, err = m.ApplyScalar(f[:2])
		assert.Error(t, err)
	}
	{ // Perturbed sources still give a partition of unity
		var grid []types.Point2
		for j := 0; j < 4; j++ {
			for k := 0; k < 4; k++ {
				grid = append(grid, types.Point2{float64(j), float64(k)})
			}
		}
		m, err := NewPlanarMapper(grid, []types.Point2{{1.5, 1.5}, {0.5, 2.5}, {3, 3}, {5, 1}}, 1.e-6)
		require.NoError(t, err)
		checkRowSums(t, m)
		out, _ := m.ApplyScalar(make([]float64, len(grid)))
		assert.Equal(t, 4, len(out))
	}
	{ // Collinear sources interpolate along the line
		line := []types.Point2{{0, 2}, {0, 0}, {0, 1}}
		m, err := NewPlanarMapper(line, []types.Point2{{0, 0.25}, {0.3, 1.5}, {0, -4}, {0, 9}}, 0)
		require.NoError(t, err)
		checkRowSums(t, m)
		out, _ := m.ApplyScalar([]float64{20, 0, 10})
		assert.InDelta(t, 2.5, out[0], 1.e-12)
		assert.InDelta(t, 15., out[1], 1.e-12)
		assert.InDelta(t, 0., out[2], 1.e-12)
		assert.InDelta(t, 20., out[3], 1.e-12)
	}
	{ // Single source and no sources
		m, err := NewPlanarMapper([]types.Point2{{1, 1}}, []types.Point2{{0, 0}, {3, 3}}, 0)
		require.NoError(t, err)
		out, _ := m.ApplyScalar([]float64{7})
		assert.Equal(t, []float64{7, 7}, out)
		_, err = NewPlanarMapper(nil, []types.Point2{{0, 0}}, 0)
		assert.True(t, errors.Is(err, ErrNoSourcePoints))
	}
}

func TestLatticeMapper(t *testing.T) {
	p := geometry2D.NewRectangularPatch("inlet", 0, 0, 1, 0, 1, 4, 4)
	g, err := lattice.Build(p.BoundBox(), 0.25, 0.25, 1, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 6, g.NY)
	f := make([]float64, g.NumNodes())
	for I, q := range g.Points2() {
		f[I] = linear(q)
	}
	{ // Bilinear interpolation is exact for linear fields
		tgt := geometry2D.ProjectYZ(p.FaceCentres())
		m := NewLatticeMapper(g, tgt)
		checkRowSums(t, m)
		out, err := m.ApplyScalar(f)
		require.NoError(t, err)
		for i, q := range tgt {
			assert.InDelta(t, linear(q), out[i], 1.e-10)
		}
	}
	{ // Nodes map onto themselves and outside targets clamp to the edge
		m := NewLatticeMapper(g, []types.Point2{g.Points2()[7], {-10, -10}, {10, 10}})
		out, _ := m.ApplyScalar(f)
		assert.InDelta(t, f[7], out[0], 1.e-10)
		assert.InDelta(t, f[0], out[1], 1.e-10)
		assert.InDelta(t, f[g.NumNodes()-1], out[2], 1.e-10)
	}
}

func TestHandle(t *testing.T) {
	var (
		src = []types.Point2{{0, 0}, {1, 0}, {0, 1}}
		tgt = []types.Point2{{0.2, 0.2}}
		h   = NewHandle("input-to-patch", PlanarBuilder(0))
	)
	m1, err := h.Get(src, tgt)
	require.NoError(t, err)
	m2, _ := h.Get(src, []types.Point2{{0.2, 0.2}})
	assert.True(t, m1 == m2)
	assert.Equal(t, 1, h.Rebuilds)
	m3, _ := h.Get(src, []types.Point2{{0.3, 0.2}})
	assert.False(t, m1 == m3)
	assert.Equal(t, 2, h.Rebuilds)
	assert.NotEqual(t, Fingerprint(src, tgt), Fingerprint(tgt, src))
	_, err = h.Get(nil, tgt)
	assert.Error(t, err)
}

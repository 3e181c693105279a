package interpolation

import (
	"math"

	"github.com/james-bowman/sparse"

	"github.com/notargets/inflowgen/lattice"
	"github.com/notargets/inflowgen/types"
	"github.com/notargets/inflowgen/utils"
)

// NewLatticeMapper interpolates bilinearly from lattice nodes, targets beyond the lattice take the edge values
func NewLatticeMapper(g *lattice.Grid, tgt []types.Point2) (m *Mapper) {
	var (
		dok = sparse.NewDOK(len(tgt), g.NumNodes())
	)
	cell := func(x, origin, delta float64, n int) (i0 int, t float64) {
		f := math.Max(0, math.Min((x-origin)/delta, float64(n-1)))
		i0 = utils.ClampInt(int(math.Floor(f)), 0, n-2)
		t = f - float64(i0)
		return
	}
	for i, p := range tgt {
		j0, ty := cell(p[0], g.Origin[0], g.DY, g.NY)
		k0, tz := cell(p[1], g.Origin[1], g.DZ, g.NZ)
		for _, c := range [4]struct {
			j, k int
			w    float64
		}{
			{j0, k0, (1 - ty) * (1 - tz)},
			{j0 + 1, k0, ty * (1 - tz)},
			{j0, k0 + 1, (1 - ty) * tz},
			{j0 + 1, k0 + 1, ty * tz},
		} {
			if c.w != 0 {
				dok.Set(i, g.Index1D(c.j, c.k), c.w)
			}
		}
	}
	m = newMapper(dok, g.Points2(), tgt)
	return
}

package lattice

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/inflowgen/geometry2D"
	"github.com/notargets/inflowgen/types"
	"github.com/notargets/inflowgen/utils"
)

var ErrZeroExtent = errors.New("patch has zero extent")

// Margin is the number of lattice nodes added outside the patch on each side
const Margin = 1

/*
Grid is the virtual lattice: NY rows along y by NZ columns along z, node (j, k) at
	Origin + (j*DY, k*DZ)
in the inflow plane x = X. Nodes are stored row major, row j first.
*/
type Grid struct {
	NY, NZ        int
	DY, DZ        float64
	Height, Width float64 // Extents covered by the patch, excluding the margin
	Origin        types.Point2
	X             float64
	Points        []types.Vector
}

/*
Build sizes the lattice so the spacing resolves the smallest length scale in each
direction with gridFactor nodes:
	DY <= minLy / gridFactor, DZ <= minLz / gridFactor
extY and extZ override the patch extents when larger (LY, LZ of the configuration).
*/
func Build(bb geometry2D.BoundBox, minLy, minLz, gridFactor, extY, extZ float64) (g *Grid, err error) {
	var (
		span = bb.Span()
	)
	if span[1] <= 0 || span[2] <= 0 {
		err = fmt.Errorf("%w: bounding box %s", ErrZeroExtent, bb)
		return
	}
	if minLy <= 0 || minLz <= 0 {
		err = fmt.Errorf("length scales must be positive, have Ly = %g, Lz = %g", minLy, minLz)
		return
	}
	if gridFactor <= 0 {
		err = fmt.Errorf("gridFactor must be positive, have %g", gridFactor)
		return
	}
	g = &Grid{
		Height: math.Max(span[1], extY),
		Width:  math.Max(span[2], extZ),
		X:      bb.Centre()[0],
	}
	nCellsY := int(math.Ceil(g.Height/(minLy/gridFactor) - utils.NODETOL))
	nCellsZ := int(math.Ceil(g.Width/(minLz/gridFactor) - utils.NODETOL))
	g.DY = g.Height / float64(nCellsY)
	g.DZ = g.Width / float64(nCellsZ)
	g.NY = nCellsY + 1 + 2*Margin
	g.NZ = nCellsZ + 1 + 2*Margin
	centre := bb.Centre()
	g.Origin = types.Point2{
		utils.RoundSix(centre[1] - 0.5*g.Height - Margin*g.DY),
		utils.RoundSix(centre[2] - 0.5*g.Width - Margin*g.DZ),
	}
	g.fillPoints()
	return
}

func (g *Grid) fillPoints() {
	g.Points = make([]types.Vector, g.NY*g.NZ)
	for j := 0; j < g.NY; j++ {
		for k := 0; k < g.NZ; k++ {
			g.Points[g.Index1D(j, k)] = g.Node(j, k)
		}
	}
}

func (g *Grid) Node(j, k int) types.Vector {
	return types.Vector{
		g.X,
		utils.RoundSix(g.Origin[0] + float64(j)*g.DY),
		utils.RoundSix(g.Origin[1] + float64(k)*g.DZ),
	}
}

func (g *Grid) NumNodes() int {
	return g.NY * g.NZ
}

func (g *Grid) Index1D(j, k int) int {
	return utils.Index1D(j, k, g.NZ)
}

func (g *Grid) Index2D(I int) (j, k int) {
	return utils.Index2D(I, g.NZ)
}

func (g *Grid) Points2() []types.Point2 {
	return geometry2D.ProjectYZ(g.Points)
}

// SameLayout reports whether two lattices share nodes, so fields can be reused without remapping
func (g *Grid) SameLayout(o *Grid) bool {
	if o == nil {
		return false
	}
	return g.NY == o.NY && g.NZ == o.NZ && g.Origin == o.Origin &&
		math.Abs(g.DY-o.DY) < utils.NODETOL && math.Abs(g.DZ-o.DZ) < utils.NODETOL
}

func (g *Grid) String() string {
	return fmt.Sprintf("NY x NZ = %d x %d, dy = %8.5f, dz = %8.5f, origin = %v",
		g.NY, g.NZ, g.DY, g.DZ, g.Origin)
}

// Layout is the part of a Grid needed to rebuild it, as stored with restart data
type Layout struct {
	NY, NZ int
	DY, DZ float64
	Origin types.Point2
	X      float64
}

func (g *Grid) Layout() Layout {
	return Layout{NY: g.NY, NZ: g.NZ, DY: g.DY, DZ: g.DZ, Origin: g.Origin, X: g.X}
}

func FromLayout(l Layout) (g *Grid) {
	g = &Grid{
		NY: l.NY, NZ: l.NZ,
		DY: l.DY, DZ: l.DZ,
		Height: float64(l.NY-1-2*Margin) * l.DY,
		Width:  float64(l.NZ-1-2*Margin) * l.DZ,
		Origin: l.Origin,
		X:      l.X,
	}
	g.fillPoints()
	return
}

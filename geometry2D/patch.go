package geometry2D

import (
	"fmt"
	"math"

	"github.com/notargets/inflowgen/types"
)

/*
Patch is the host mesh boundary the inflow is generated on. The generator only needs
face centres, face area vectors (area weighted outward normals) and the bounding box.
The inflow plane is assumed normal to x, lattice directions are y and z.
*/
type Patch interface {
	Name() string
	FaceCentres() []types.Vector
	FaceAreas() []types.Vector
	BoundBox() BoundBox
}

type BoundBox struct {
	Min, Max types.Vector
}

func NewBoundBox(pts []types.Vector) (bb BoundBox) {
	if len(pts) == 0 {
		return
	}
	bb.Min, bb.Max = pts[0], pts[0]
	for _, p := range pts[1:] {
		for i := 0; i < 3; i++ {
			bb.Min[i] = math.Min(bb.Min[i], p[i])
			bb.Max[i] = math.Max(bb.Max[i], p[i])
		}
	}
	return
}

func (bb BoundBox) Span() types.Vector {
	return bb.Max.Sub(bb.Min)
}

func (bb BoundBox) Centre() types.Vector {
	return bb.Max.Add(bb.Min).Scale(0.5)
}

func (bb BoundBox) String() string {
	return fmt.Sprintf("[%v -> %v]", bb.Min, bb.Max)
}

// FacePatch is a patch given explicitly by its faces
type FacePatch struct {
	PatchName string
	Centres   []types.Vector
	Areas     []types.Vector
}

func NewFacePatch(name string, centres, areas []types.Vector) (fp *FacePatch, err error) {
	if len(centres) != len(areas) {
		err = fmt.Errorf("patch %s: %d face centres but %d face areas", name, len(centres), len(areas))
		return
	}
	fp = &FacePatch{
		PatchName: name,
		Centres:   centres,
		Areas:     areas,
	}
	return
}

func (fp *FacePatch) Name() string                { return fp.PatchName }
func (fp *FacePatch) FaceCentres() []types.Vector { return fp.Centres }
func (fp *FacePatch) FaceAreas() []types.Vector   { return fp.Areas }
func (fp *FacePatch) BoundBox() BoundBox          { return NewBoundBox(fp.Centres) }

/*
NewRectangularPatch builds a structured ny x nz patch of faces at plane x covering
[y0,y1] x [z0,z1]. Face area vectors point in -x, the outward direction of an inlet on
the low x side of a domain.
*/
func NewRectangularPatch(name string, x, y0, y1, z0, z1 float64, ny, nz int) (fp *FacePatch) {
	var (
		hy, hz  = (y1 - y0) / float64(ny), (z1 - z0) / float64(nz)
		centres = make([]types.Vector, ny*nz)
		areas   = make([]types.Vector, ny*nz)
	)
	for j := 0; j < ny; j++ {
		for k := 0; k < nz; k++ {
			ind := k + nz*j
			centres[ind] = types.Vector{x, y0 + (float64(j)+0.5)*hy, z0 + (float64(k)+0.5)*hz}
			areas[ind] = types.Vector{-hy * hz, 0, 0}
		}
	}
	fp = &FacePatch{
		PatchName: name,
		Centres:   centres,
		Areas:     areas,
	}
	return
}

// ProjectYZ maps points onto the inflow plane
func ProjectYZ(pts []types.Vector) (p2 []types.Point2) {
	p2 = make([]types.Point2, len(pts))
	for i, p := range pts {
		p2[i] = types.Point2{p[1], p[2]}
	}
	return
}

// TotalArea is the sum of face area magnitudes
func TotalArea(p Patch) (area float64) {
	for _, sf := range p.FaceAreas() {
		area += sf.Mag()
	}
	return
}

package geometry2D

import (
	"math"

	"github.com/pradeep-pyro/triangle"

	"github.com/notargets/inflowgen/types"
	"github.com/notargets/inflowgen/utils"
)

type TriMesh struct {
	Points   []types.Point2
	Tris     [][3]int
	VertTris [][]int // Triangles incident to each vertex
}

// NewDelaunay triangulates the points, an empty Tris means the points are degenerate (collinear or < 3)
func NewDelaunay(pts []types.Point2) (tm *TriMesh) {
	tm = &TriMesh{
		Points:   pts,
		VertTris: make([][]int, len(pts)),
	}
	if len(pts) < 3 || isCollinear(pts) {
		return
	}
	in := make([][2]float64, len(pts))
	for i, p := range pts {
		in[i] = [2]float64{p[0], p[1]}
	}
	for _, tri := range triangle.Delaunay(in) {
		t := [3]int{int(tri[0]), int(tri[1]), int(tri[2])}
		if math.Abs(tm.signedArea(t)) < utils.NODETOL {
			continue // sliver from co-linear points on the hull
		}
		tn := len(tm.Tris)
		tm.Tris = append(tm.Tris, t)
		for _, v := range t {
			tm.VertTris[v] = append(tm.VertTris[v], tn)
		}
	}
	return
}

func isCollinear(pts []types.Point2) bool {
	var (
		p0    = pts[0]
		scale float64
		dir   types.Point2
	)
	for _, p := range pts[1:] {
		d := math.Hypot(p[0]-p0[0], p[1]-p0[1])
		if d > scale {
			scale = d
			dir = types.Point2{p[0] - p0[0], p[1] - p0[1]}
		}
	}
	if scale == 0 {
		return true
	}
	for _, p := range pts[1:] {
		cross := dir[0]*(p[1]-p0[1]) - dir[1]*(p[0]-p0[0])
		if math.Abs(cross) > 1.e-10*scale*scale {
			return false
		}
	}
	return true
}

func (tm *TriMesh) signedArea(t [3]int) float64 {
	var (
		a, b, c = tm.Points[t[0]], tm.Points[t[1]], tm.Points[t[2]]
	)
	return 0.5 * ((b[0]-a[0])*(c[1]-a[1]) - (c[0]-a[0])*(b[1]-a[1]))
}

// Barycentric returns the barycentric coordinates of p in triangle tn
func (tm *TriMesh) Barycentric(tn int, p types.Point2) (w [3]float64) {
	var (
		t       = tm.Tris[tn]
		a, b, c = tm.Points[t[0]], tm.Points[t[1]], tm.Points[t[2]]
		det     = (b[1]-c[1])*(a[0]-c[0]) + (c[0]-b[0])*(a[1]-c[1])
	)
	w[0] = ((b[1]-c[1])*(p[0]-c[0]) + (c[0]-b[0])*(p[1]-c[1])) / det
	w[1] = ((c[1]-a[1])*(p[0]-c[0]) + (a[0]-c[0])*(p[1]-c[1])) / det
	w[2] = 1 - w[0] - w[1]
	return
}

func inside(w [3]float64, tol float64) bool {
	return w[0] >= -tol && w[1] >= -tol && w[2] >= -tol
}

/*
Locate finds the triangle containing p, checking the triangles around the hint vertex
first. Barycentric coordinates are clipped at zero and renormalized so they always sum
to one.
*/
func (tm *TriMesh) Locate(p types.Point2, hintVertex int) (tn int, w [3]float64, found bool) {
	var (
		tol = 1.e-9
	)
	accept := func(tn int) bool {
		w = tm.Barycentric(tn, p)
		return inside(w, tol)
	}
	tn = -1
	if hintVertex >= 0 && hintVertex < len(tm.VertTris) {
		for _, t := range tm.VertTris[hintVertex] {
			if accept(t) {
				tn = t
				break
			}
		}
	}
	if tn == -1 {
		for t := range tm.Tris {
			if accept(t) {
				tn = t
				break
			}
		}
	}
	if tn == -1 {
		return
	}
	found = true
	var sum float64
	for i := range w {
		w[i] = math.Max(w[i], 0)
		sum += w[i]
	}
	for i := range w {
		w[i] /= sum
	}
	return
}

/*
LocallyDelaunay checks the empty circumcircle property across every interior edge: the
vertex of the neighbouring triangle opposite a shared edge must not lie inside the
circumcircle of the triangle on the other side.
*/
func (tm *TriMesh) LocallyDelaunay() bool {
	if len(tm.Tris) == 0 {
		return true
	}
	edgeTris := make(map[[2]int][]int)
	for tn, t := range tm.Tris {
		for i := 0; i < 3; i++ {
			a, b := t[(i+1)%3], t[(i+2)%3]
			if a > b {
				a, b = b, a
			}
			edgeTris[[2]int{a, b}] = append(edgeTris[[2]int{a, b}], tn)
		}
	}
	// Unit extent so the in-circle tolerance does not depend on the coordinate scale
	var (
		p0, span = tm.Points[0], 0.
		unit     = func(p types.Point2) types.Point2 {
			return types.Point2{(p[0] - p0[0]) / span, (p[1] - p0[1]) / span}
		}
	)
	for _, p := range tm.Points {
		span = math.Max(span, math.Max(math.Abs(p[0]-p0[0]), math.Abs(p[1]-p0[1])))
	}
	for e, tns := range edgeTris {
		if len(tns) != 2 {
			continue
		}
		var (
			t0, t1 = tm.Tris[tns[0]], tm.Tris[tns[1]]
			d      = t1[0] + t1[1] + t1[2] - e[0] - e[1]
		)
		if InCircle(unit(tm.Points[t0[0]]), unit(tm.Points[t0[1]]), unit(tm.Points[t0[2]]), unit(tm.Points[d])) {
			return false
		}
	}
	return true
}

// InCircle is true when d lies strictly inside the circumcircle of a, b, c
func InCircle(a, b, c, d types.Point2) (inside bool) {
	// Calculate handedness, counter-clockwise is (positive) and clockwise is (negative)
	signBit := math.Signbit((b[0]-a[0])*(c[1]-a[1]) - (c[0]-a[0])*(b[1]-a[1]))
	ax_ := a[0] - d[0]
	ay_ := a[1] - d[1]
	bx_ := b[0] - d[0]
	by_ := b[1] - d[1]
	cx_ := c[0] - d[0]
	cy_ := c[1] - d[1]
	det := (ax_*ax_+ay_*ay_)*(bx_*cy_-cx_*by_) -
		(bx_*bx_+by_*by_)*(ax_*cy_-cx_*ay_) +
		(cx_*cx_+cy_*cy_)*(ax_*by_-bx_*ay_)
	if signBit {
		return det < -utils.NODETOL
	}
	return det > utils.NODETOL
}

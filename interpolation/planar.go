package interpolation

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/notargets/inflowgen/geometry2D"
	"github.com/notargets/inflowgen/types"
)

var (
	ErrNoSourcePoints = errors.New("no source points to interpolate from")
	ErrNotDelaunay    = errors.New("source triangulation fails the empty circumcircle test")
)

/*
NewPlanarMapper interpolates from scattered source points in the inflow plane. Targets
inside the convex hull of the sources get barycentric weights from a Delaunay
triangulation, targets outside take the value of the nearest source point. Sources
lying on a line are interpolated linearly along it.

A positive perturb moves each source by up to perturb times the size of the point cloud
before triangulating, which breaks ties between co-circular points on regular input.
*/
func NewPlanarMapper(src, tgt []types.Point2, perturb float64) (m *Mapper, err error) {
	if len(src) == 0 {
		err = ErrNoSourcePoints
		return
	}
	var (
		dok     = sparse.NewDOK(len(tgt), len(src))
		nearest = newNearestFinder(src)
		tm      = geometry2D.NewDelaunay(jitter(src, perturb))
	)
	if len(tm.Tris) == 0 {
		lineWeights(dok, src, tgt)
		m = newMapper(dok, src, tgt)
		return
	}
	if !tm.LocallyDelaunay() {
		err = fmt.Errorf("%w: %d points, %d triangles", ErrNotDelaunay, len(src), len(tm.Tris))
		return
	}
	for i, p := range tgt {
		nn := nearest.Find(p)
		tn, w, found := tm.Locate(p, nn)
		if !found {
			dok.Set(i, nn, 1)
			continue
		}
		for n, v := range tm.Tris[tn] {
			if w[n] != 0 {
				dok.Set(i, v, w[n])
			}
		}
	}
	m = newMapper(dok, src, tgt)
	return
}

func jitter(src []types.Point2, perturb float64) (pts []types.Point2) {
	if perturb <= 0 {
		return src
	}
	var (
		lo, hi = src[0], src[0]
		rng    = rand.New(rand.NewPCG(uint64(len(src)), 0x5eed))
	)
	for _, p := range src {
		lo = types.Point2{math.Min(lo[0], p[0]), math.Min(lo[1], p[1])}
		hi = types.Point2{math.Max(hi[0], p[0]), math.Max(hi[1], p[1])}
	}
	scale := perturb * math.Hypot(hi[0]-lo[0], hi[1]-lo[1])
	pts = make([]types.Point2, len(src))
	for i, p := range src {
		pts[i] = types.Point2{
			p[0] + scale*(rng.Float64()-0.5),
			p[1] + scale*(rng.Float64()-0.5),
		}
	}
	return
}

// lineWeights interpolates linearly along the direction of largest spread, clamped at the ends
func lineWeights(dok *sparse.DOK, src, tgt []types.Point2) {
	var (
		p0    = src[0]
		dir   types.Point2
		dmax  float64
		order = make([]int, len(src))
		s     = make([]float64, len(src))
	)
	for _, p := range src {
		if d := math.Hypot(p[0]-p0[0], p[1]-p0[1]); d > dmax {
			dmax = d
			dir = types.Point2{(p[0] - p0[0]) / d, (p[1] - p0[1]) / d}
		}
	}
	project := func(p types.Point2) float64 {
		return (p[0]-p0[0])*dir[0] + (p[1]-p0[1])*dir[1]
	}
	for i, p := range src {
		order[i] = i
		s[i] = project(p)
	}
	sort.SliceStable(order, func(a, b int) bool { return s[order[a]] < s[order[b]] })
	for i, p := range tgt {
		var (
			sp   = project(p)
			last = len(order) - 1
		)
		switch {
		case dmax == 0 || sp <= s[order[0]]:
			dok.Set(i, order[0], 1)
		case sp >= s[order[last]]:
			dok.Set(i, order[last], 1)
		default:
			hi := sort.Search(len(order), func(n int) bool { return s[order[n]] >= sp })
			lo := hi - 1
			a, b := order[lo], order[hi]
			if s[b] == s[a] {
				dok.Set(i, b, 1)
				continue
			}
			t := (sp - s[a]) / (s[b] - s[a])
			if t < 1 {
				dok.Set(i, a, 1-t)
			}
			if t > 0 {
				dok.Set(i, b, t)
			}
		}
	}
}

// nearestFinder answers nearest source queries with a k-d tree, which reorders its points
type nearestFinder struct {
	tree  *kdtree.Tree
	index map[[2]float64]int
}

func newNearestFinder(src []types.Point2) (nf *nearestFinder) {
	var (
		pts = make(kdtree.Points, len(src))
	)
	nf = &nearestFinder{index: make(map[[2]float64]int, len(src))}
	for i, p := range src {
		pts[i] = kdtree.Point{p[0], p[1]}
		key := [2]float64{p[0], p[1]}
		if _, ok := nf.index[key]; !ok {
			nf.index[key] = i
		}
	}
	nf.tree = kdtree.New(pts, false)
	return
}

func (nf *nearestFinder) Find(p types.Point2) int {
	c, _ := nf.tree.Nearest(kdtree.Point{p[0], p[1]})
	q := c.(kdtree.Point)
	return nf.index[[2]float64{q[0], q[1]}]
}

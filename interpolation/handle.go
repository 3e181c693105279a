package interpolation

import (
	"github.com/notargets/inflowgen/types"
)

type BuildFunc func(src, tgt []types.Point2) (*Mapper, error)

// Handle owns one mapper and replaces it whenever the source or target points change
type Handle struct {
	Name     string
	build    BuildFunc
	mapper   *Mapper
	Rebuilds int
}

func NewHandle(name string, build BuildFunc) *Handle {
	return &Handle{Name: name, build: build}
}

func PlanarBuilder(perturb float64) BuildFunc {
	return func(src, tgt []types.Point2) (*Mapper, error) {
		return NewPlanarMapper(src, tgt, perturb)
	}
}

// Get returns the current mapper, rebuilding it first when the points differ from the last build
func (h *Handle) Get(src, tgt []types.Point2) (m *Mapper, err error) {
	if h.mapper != nil && h.mapper.Fingerprint == Fingerprint(src, tgt) {
		m = h.mapper
		return
	}
	if m, err = h.build(src, tgt); err != nil {
		return
	}
	h.mapper = m
	h.Rebuilds++
	return
}

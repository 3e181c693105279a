package massflow

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/inflowgen/geometry2D"
	"github.com/notargets/inflowgen/types"
)

func TestCorrector(t *testing.T) {
	var (
		p     = geometry2D.NewRectangularPatch("inlet", 0, 0, 2, 0, 1, 7, 5)
		areas = p.FaceAreas()
		rng   = rand.New(rand.NewPCG(11, 12))
	)
	uniform := func(U types.Vector) (mean []types.Vector) {
		mean = make([]types.Vector, len(areas))
		for f := range mean {
			mean[f] = U
		}
		return
	}
	field := func(mean []types.Vector) (u []types.Vector) {
		u = make([]types.Vector, len(areas))
		for f := range u {
			u[f] = mean[f].Add(types.Vector{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()})
		}
		return
	}
	{ // Flux is independent of the number of partitions
		mean := uniform(types.Vector{5, 0, 0})
		u := field(mean)
		c1, err := NewCorrector(areas, mean, DefaultRule, 1)
		require.NoError(t, err)
		c4, err := NewCorrector(areas, mean, DefaultRule, 4)
		require.NoError(t, err)
		assert.InDelta(t, c1.Flux(u), c4.Flux(u), 1.e-12)
		assert.InDelta(t, 2., c1.TotalArea, 1.e-12)
		assert.InDelta(t, -6., c4.Flux(uniform(types.Vector{3, 1, 1})), 1.e-12)
		assert.InDelta(t, -10., c1.MeanTotal, 1.e-12)
		assert.True(t, c1.Unidirectional())
	}
	{ // Both rules hit the target every step and leave the tangential components alone
		mean := uniform(types.Vector{8, 0, 0})
		for _, rule := range []string{"scale", "shift"} {
			mc, err := NewCorrector(areas, mean, rule, 3)
			require.NoError(t, err)
			for step := 0; step < 5; step++ {
				u := field(mean)
				before := append([]types.Vector{}, u...)
				actual, err := mc.Correct(u, -16)
				require.NoError(t, err)
				assert.NotEqual(t, -16., actual)
				assert.InDelta(t, -16., mc.Flux(u), 1.e-10)
				for f := range u {
					assert.Equal(t, before[f][1], u[f][1])
					assert.Equal(t, before[f][2], u[f][2])
					// A uniform mean profile makes both rules the same shift
					assert.InDelta(t, (actual+16)/2, u[f][0]-before[f][0], 1.e-12)
				}
			}
		}
	}
	{ // Scaling moves each face in proportion to its mean normal velocity, fluctuations kept
		mean := make([]types.Vector, len(areas))
		for f, c := range p.FaceCentres() {
			mean[f] = types.Vector{1 + 4*c[1], 0.5, 0}
		}
		mc, err := NewCorrector(areas, mean, "scale", 2)
		require.NoError(t, err)
		u := field(mean)
		before := append([]types.Vector{}, u...)
		actual, err := mc.Correct(u, mc.MeanTotal)
		require.NoError(t, err)
		assert.InDelta(t, mc.MeanTotal, mc.Flux(u), 1.e-10)
		alpha := (mc.MeanTotal - actual) / mc.MeanTotal
		for f := range u {
			assert.InDelta(t, alpha*mean[f][0], u[f][0]-before[f][0], 1.e-12)
			assert.Equal(t, before[f][1], u[f][1])
		}
	}
	{ // A zero mean profile with zero target keeps the fluctuations
		mean := uniform(types.Vector{})
		for _, rule := range []string{"scale", "shift"} {
			mc, _ := NewCorrector(areas, mean, rule, 2)
			assert.False(t, mc.Unidirectional())
			u := field(mean)
			before := append([]types.Vector{}, u...)
			actual, err := mc.Correct(u, 0)
			require.NoError(t, err)
			assert.InDelta(t, 0., mc.Flux(u), 1.e-12)
			var sumSq float64
			for f := range u {
				// Only the patch mean of the normal component is removed
				assert.InDelta(t, actual/2, u[f][0]-before[f][0], 1.e-12)
				sumSq += u[f][0] * u[f][0]
			}
			assert.True(t, sumSq/float64(len(u)) > 0.3, rule)
		}
	}
	{ // A weak mean flow is not amplified
		mean := uniform(types.Vector{0.05, 0, 0})
		mc, _ := NewCorrector(areas, mean, "scale", 2)
		target := mc.MeanTotal
		for step := 0; step < 20; step++ {
			u := field(mean)
			before := append([]types.Vector{}, u...)
			actual, err := mc.Correct(u, target)
			require.NoError(t, err)
			assert.InDelta(t, target, mc.Flux(u), 1.e-12)
			for f := range u {
				assert.InDelta(t, math.Abs(actual-target)/2, math.Abs(u[f][0]-before[f][0]), 1.e-12)
			}
		}
	}
	{ // A profile crossing the patch both ways shifts
		mean := make([]types.Vector, len(areas))
		for f := range mean {
			mean[f] = types.Vector{1, 0, 0}
			if f%2 == 0 {
				mean[f][0] = -1
			}
		}
		mc, _ := NewCorrector(areas, mean, "scale", 1)
		assert.False(t, mc.Unidirectional())
		u := make([]types.Vector, len(areas))
		_, err := mc.Correct(u, -4)
		require.NoError(t, err)
		assert.InDelta(t, -4., mc.Flux(u), 1.e-12)
		assert.InDelta(t, 2., u[0][0], 1.e-12)
		assert.InDelta(t, 2., u[1][0], 1.e-12)
	}
	{ // The none rule only measures
		mc, _ := NewCorrector(areas, nil, "none", 2)
		u := field(uniform(types.Vector{3, 0, 0}))
		before := append([]types.Vector{}, u...)
		actual, err := mc.Correct(u, 100)
		require.NoError(t, err)
		assert.Equal(t, before, u)
		assert.InDelta(t, mc.Flux(u), actual, 1.e-12)
		assert.Equal(t, []string{"none", "scale", "shift"}, RuleNames())
		assert.Equal(t, "shift", DefaultRule)
	}
	{ // Errors
		_, err := NewCorrector(areas, nil, "bulk", 1)
		assert.True(t, errors.Is(err, ErrUnknownRule))
		_, err = NewCorrector(areas, make([]types.Vector, 3), "scale", 1)
		assert.Error(t, err)
		mc, _ := NewCorrector(areas, nil, "shift", 1)
		_, err = mc.Correct(make([]types.Vector, 2), 1)
		assert.Error(t, err)
	}
}

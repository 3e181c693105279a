package InflowGenerator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/inflowgen/InflowGenerator"
	"github.com/notargets/inflowgen/InputParameters"
	"github.com/notargets/inflowgen/diagnostics"
	"github.com/notargets/inflowgen/filter"
	"github.com/notargets/inflowgen/geometry2D"
	"github.com/notargets/inflowgen/readfiles"
	"github.com/notargets/inflowgen/types"
)

func TestGeneratorLatticeCorrelation(t *testing.T) {
	var (
		ctx    = context.Background()
		dt     = 0.01
		nSteps = 1500
		Ly, Lz = 0.4, 0.6
	)
	if testing.Short() {
		nSteps = 300
	}
	for _, shape := range []string{"gaussian", "exp", "doubleExp"} {
		cfg := InputParameters.NewInflowParameters()
		cfg.LY, cfg.LZ = 1, 1
		cfg.GridFactor = 4
		cfg.NfK = 2
		cfg.Seed = 5
		cfg.ProcLimit = 3
		cfg.CorrelationShape = shape
		pt := readfiles.ProfilePoint{
			R:  types.NewSymmTensorDiag(1, 1, 1),
			Ly: types.Vector{Ly, Ly, Ly},
			Lz: types.Vector{Lz, Lz, Lz},
			T:  types.Vector{dt, dt, dt},
		}
		g, err := InflowGenerator.NewGenerator(cfg, InflowGenerator.Dependencies{
			Patch:   geometry2D.NewRectangularPatch("inlet", 0, -0.05, 1.05, -0.05, 1.05, 11, 11),
			Profile: readfiles.UniformProfile(pt, -0.2, 1.2, -0.2, 1.2, 3, 3),
		})
		require.NoError(t, err)
		require.NoError(t, g.Initialize(ctx))
		var (
			cgY, errY = diagnostics.NewCorrelogram(g.Grid, diagnostics.AlongY, 0)
			cgZ, errZ = diagnostics.NewCorrelogram(g.Grid, diagnostics.AlongZ, 0)
		)
		require.NoError(t, errY)
		require.NoError(t, errZ)
		for n := 1; n <= nSteps; n++ {
			_, err := g.Update(ctx, InflowGenerator.TimeStep{Index: n, Time: float64(n) * dt, DeltaT: dt})
			require.NoError(t, err)
			require.NoError(t, cgY.Add(g.TemporalField()))
			require.NoError(t, cgZ.Add(g.TemporalField()))
		}
		// The field falls to 1/e at the length scale, to within half a lattice spacing
		ny, nz := filter.GridUnits(Ly, g.Grid.DY), filter.GridUnits(Lz, g.Grid.DZ)
		assert.Equal(t, 4, ny, shape)
		assert.Equal(t, 4, nz, shape)
		lagY := diagnostics.CorrelationLength(cgY.Correlation(), g.Grid.DY) / g.Grid.DY
		lagZ := diagnostics.CorrelationLength(cgZ.Correlation(), g.Grid.DZ) / g.Grid.DZ
		assert.InDelta(t, float64(ny), lagY, 0.5, shape)
		assert.InDelta(t, float64(nz), lagZ, 0.5, shape)
	}
}

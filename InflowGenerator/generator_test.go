package InflowGenerator

import (
	"bytes"
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/notargets/inflowgen/InputParameters"
	"github.com/notargets/inflowgen/geometry2D"
	"github.com/notargets/inflowgen/lattice"
	"github.com/notargets/inflowgen/logging"
	"github.com/notargets/inflowgen/readfiles"
	"github.com/notargets/inflowgen/stress"
	"github.com/notargets/inflowgen/types"
)

// The unit square inlet with face centres on the nodes of a 10 x 8 lattice
func scenarioPatch() geometry2D.Patch {
	return geometry2D.NewRectangularPatch("inlet", 0, -1./14, 1+1./14, -0.1, 1.1, 8, 6)
}

func scenarioConfig() (ip *InputParameters.InflowParameters) {
	ip = InputParameters.NewInflowParameters()
	ip.LY, ip.LZ = 1, 1
	ip.GridFactor = 2
	ip.CorrelationShape = "gaussian"
	ip.NfK = 2
	ip.Seed = 2024
	ip.ProcLimit = 2
	return
}

func uniformProfile(U types.Vector, R types.SymmTensor, T float64) *readfiles.StaticProfileSource {
	return readfiles.UniformProfile(readfiles.ProfilePoint{
		U:  U,
		R:  R,
		Ly: types.Vector{0.3, 0.3, 0.3},
		Lz: types.Vector{0.45, 0.45, 0.45},
		T:  types.Vector{T, T, T},
	}, -0.2, 1.2, -0.2, 1.2, 3, 3)
}

func channelProfile() *readfiles.StaticProfileSource {
	return uniformProfile(types.Vector{10, 0, 0}, types.SymmTensor{1, -0.2, 0, 0.5, 0, 0.4}, 0.05)
}

func newGenerator(t *testing.T, cfg *InputParameters.InflowParameters, deps Dependencies) *Generator {
	if deps.Patch == nil {
		deps.Patch = scenarioPatch()
	}
	if deps.Profile == nil {
		deps.Profile = channelProfile()
	}
	g, err := NewGenerator(cfg, deps)
	require.NoError(t, err)
	return g
}

func run(t *testing.T, g *Generator, from, to int, dt float64) (out [][]types.Vector) {
	ctx := context.Background()
	for n := from; n <= to; n++ {
		u, err := g.Update(ctx, TimeStep{Index: n, Time: float64(n) * dt, DeltaT: dt})
		require.NoError(t, err)
		out = append(out, u)
	}
	return
}

func TestGeneratorLifecycle(t *testing.T) {
	ctx := context.Background()
	{ // Missing collaborators and invalid configuration
		_, err := NewGenerator(scenarioConfig(), Dependencies{Profile: channelProfile()})
		assert.Error(t, err)
		cfg := scenarioConfig()
		cfg.CorrelationShape = "tophat"
		_, err = NewGenerator(cfg, Dependencies{Patch: scenarioPatch(), Profile: channelProfile()})
		assert.Error(t, err)
	}
	{ // Nothing runs before initialization
		g := newGenerator(t, scenarioConfig(), Dependencies{})
		assert.Equal(t, Uninitialized, g.State())
		_, err := g.Update(ctx, TimeStep{Index: 1, DeltaT: 0.01})
		assert.True(t, errors.Is(err, ErrNotInitialized))
		assert.True(t, errors.Is(g.Checkpoint(ctx), ErrNotInitialized))
		assert.True(t, errors.Is(g.Rebuild(ctx, scenarioPatch()), ErrNotInitialized))
	}
	{ // Continuing without stored state is fatal
		cfg := scenarioConfig()
		cfg.CleanRestart = false
		g := newGenerator(t, cfg, Dependencies{})
		assert.True(t, errors.Is(g.Initialize(ctx), ErrNoRestartState))
		assert.Equal(t, Uninitialized, g.State())
	}
	{ // Configuration errors surface from initialization
		g := newGenerator(t, scenarioConfig(), Dependencies{
			Profile: uniformProfile(types.Vector{1, 0, 0}, types.NewSymmTensorDiag(1, -1, 1), 0.1),
		})
		assert.True(t, errors.Is(g.Initialize(ctx), stress.ErrNotPositiveSemiDefinite))
		g = newGenerator(t, scenarioConfig(), Dependencies{
			Patch: geometry2D.NewRectangularPatch("slit", 0, 0, 1, 0, 1, 1, 4),
		})
		assert.True(t, errors.Is(g.Initialize(ctx), lattice.ErrZeroExtent))
	}
	{ // Steps advance, repeated indices are cached
		var logs bytes.Buffer
		g := newGenerator(t, scenarioConfig(), Dependencies{
			Logger: logging.NewWithWriter(&logs, logging.Config{Level: "debug"}),
		})
		require.NoError(t, g.Initialize(ctx))
		assert.Equal(t, Initialized, g.State())
		assert.Equal(t, 10, g.Grid.NY)
		assert.Equal(t, 8, g.Grid.NZ)
		R := g.Stresses()
		require.Equal(t, 48, len(R))
		assert.InDeltaSlice(t, []float64{1, -0.2, 0, 0.5, 0, 0.4}, R[17][:], 1.e-12)
		assert.InDeltaSlice(t, []float64{10, 0, 0}, g.MeanVelocity()[3][:], 1.e-12)
		u1, err := g.Update(ctx, TimeStep{Index: 1, Time: 0.01, DeltaT: 0.01})
		require.NoError(t, err)
		assert.Equal(t, Running, g.State())
		assert.Equal(t, 48, len(u1))
		again, err := g.Update(ctx, TimeStep{Index: 1, Time: 0.01, DeltaT: 0.01})
		require.NoError(t, err)
		assert.True(t, &u1[0] == &again[0])
		u2, _ := g.Update(ctx, TimeStep{Index: 2, Time: 0.02, DeltaT: 0.01})
		assert.NotEqual(t, u1, u2)
		_, err = g.Update(ctx, TimeStep{Index: 1, Time: 0.01, DeltaT: 0.01})
		assert.Error(t, err)
		assert.Equal(t, 2, g.Time.Steps)
		assert.Equal(t, 2, g.Time.Index)
		assert.Equal(t, 0.02, g.Time.Time)
		assert.True(t, g.Time.Total() > 0)
		assert.Contains(t, logs.String(), "inflow generator initialized")
		assert.Contains(t, logs.String(), "inflow step")
	}
}

func TestGeneratorMassFlux(t *testing.T) {
	ctx := context.Background()
	for _, rule := range []string{"scale", "shift"} {
		cfg := scenarioConfig()
		cfg.MassFlowRule = rule
		g := newGenerator(t, cfg, Dependencies{})
		require.NoError(t, g.Initialize(ctx))
		// Mean flux through the patch of area 8/7 x 6/5, normal -x
		assert.InDelta(t, -10*8./7*6./5, g.Target, 1.e-10)
		for _, u := range run(t, g, 1, 20, 0.01) {
			assert.InDelta(t, g.Target, g.Corrector().Flux(u), 1.e-9)
		}
	}
	{ // The default rule keeps the turbulence of a weak and of a zero mean flow
		for _, Ux := range []float64{0.05, 0} {
			g := newGenerator(t, scenarioConfig(), Dependencies{
				Profile: uniformProfile(types.Vector{Ux, 0, 0}, types.NewSymmTensorDiag(1, 1, 1), 0.01),
			})
			require.NoError(t, g.Initialize(ctx))
			var sumSq types.Vector
			var maxU float64
			out := run(t, g, 1, 200, 0.01)
			for _, u := range out {
				assert.InDelta(t, g.Target, g.Corrector().Flux(u), 1.e-9)
				for _, v := range u {
					for c := 0; c < 3; c++ {
						sumSq[c] += v[c] * v[c]
						maxU = math.Max(maxU, math.Abs(v[c]))
					}
				}
			}
			count := float64(len(out) * len(out[0]))
			for c := 0; c < 3; c++ {
				assert.True(t, sumSq[c]/count > 0.5, "component %d, mean %g", c, Ux)
				assert.True(t, sumSq[c]/count < 1.5, "component %d, mean %g", c, Ux)
			}
			assert.True(t, maxU < 7, "max |u| = %g", maxU)
		}
	}
	{ // A configured target takes precedence
		cfg := scenarioConfig()
		cfg.TargetFlux = -5
		g := newGenerator(t, cfg, Dependencies{})
		require.NoError(t, g.Initialize(ctx))
		for _, u := range run(t, g, 1, 5, 0.01) {
			assert.InDelta(t, -5., g.Corrector().Flux(u), 1.e-9)
		}
	}
}

func TestGeneratorRestart(t *testing.T) {
	var (
		ctx = context.Background()
		dt  = 0.01
	)
	reference := run(t, func() *Generator {
		g := newGenerator(t, scenarioConfig(), Dependencies{})
		require.NoError(t, g.Initialize(ctx))
		return g
	}(), 1, 10, dt)

	{ // Continuation through a memory store reproduces the uninterrupted run exactly
		store := &MemoryStore{}
		first := newGenerator(t, scenarioConfig(), Dependencies{Store: store})
		require.NoError(t, first.Initialize(ctx))
		assert.Equal(t, reference[:4], run(t, first, 1, 4, dt))
		require.NoError(t, first.Checkpoint(ctx))

		cfg := scenarioConfig()
		cfg.CleanRestart = false
		second := newGenerator(t, cfg, Dependencies{Store: store})
		require.NoError(t, second.Initialize(ctx))
		assert.Equal(t, 4, second.Time.Index)
		assert.Equal(t, 4, second.Time.Steps)
		assert.Equal(t, reference[4:], run(t, second, 5, 10, dt))
	}
	{ // Through a file store
		store := &FileStore{FileName: filepath.Join(t.TempDir(), "restart.yaml")}
		first := newGenerator(t, scenarioConfig(), Dependencies{Store: store})
		require.NoError(t, first.Initialize(ctx))
		run(t, first, 1, 6, dt)
		require.NoError(t, first.Checkpoint(ctx))
		saved, err := first.snapshot()
		require.NoError(t, err)
		loaded, ok, err := store.Load(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, saved, loaded)

		cfg := scenarioConfig()
		cfg.CleanRestart = false
		second := newGenerator(t, cfg, Dependencies{Store: store})
		require.NoError(t, second.Initialize(ctx))
		for i, u := range run(t, second, 7, 10, dt) {
			for f := range u {
				for c := 0; c < 3; c++ {
					assert.InDelta(t, reference[6+i][f][c], u[f][c], 1.e-12)
				}
			}
		}
	}
	{ // A clean restart ignores stored state and resets the step count
		store := &MemoryStore{}
		first := newGenerator(t, scenarioConfig(), Dependencies{Store: store})
		require.NoError(t, first.Initialize(ctx))
		run(t, first, 1, 3, dt)
		require.NoError(t, first.Checkpoint(ctx))
		second := newGenerator(t, scenarioConfig(), Dependencies{Store: store})
		require.NoError(t, second.Initialize(ctx))
		assert.Equal(t, 0, second.Time.Steps)
		assert.Nil(t, second.TemporalField())
		assert.Equal(t, reference[:2], run(t, second, 1, 2, dt))
	}
	{ // Stored fields from a different lattice are remapped
		store := &MemoryStore{}
		first := newGenerator(t, scenarioConfig(), Dependencies{Store: store})
		require.NoError(t, first.Initialize(ctx))
		run(t, first, 1, 3, dt)
		require.NoError(t, first.Checkpoint(ctx))
		cfg := scenarioConfig()
		cfg.CleanRestart = false
		cfg.GridFactor = 3
		second := newGenerator(t, cfg, Dependencies{Store: store})
		require.NoError(t, second.Initialize(ctx))
		assert.False(t, first.Grid.SameLayout(second.Grid))
		assert.Equal(t, second.Grid.NumNodes(), len(second.TemporalField()))
		run(t, second, 4, 5, dt)
	}
}

func TestGeneratorRebuild(t *testing.T) {
	var (
		ctx = context.Background()
		reg = prometheus.NewRegistry()
	)
	m, err := NewMetrics(reg)
	require.NoError(t, err)
	g := newGenerator(t, scenarioConfig(), Dependencies{Metrics: m})
	require.NoError(t, g.Initialize(ctx))
	run(t, g, 1, 3, 0.01)
	assert.Equal(t, 3., testutil.ToFloat64(m.MapperRebuilds))
	finer := geometry2D.NewRectangularPatch("inlet", 0, -1./14, 1+1./14, -0.1, 1.1, 12, 9)
	require.NoError(t, g.Rebuild(ctx, finer))
	assert.Equal(t, 3, g.Time.Index)
	assert.Equal(t, 6., testutil.ToFloat64(m.MapperRebuilds))
	u := run(t, g, 4, 5, 0.01)
	assert.Equal(t, 108, len(u[1]))
	assert.InDelta(t, g.Target, g.Corrector().Flux(u[1]), 1.e-9)
	assert.Equal(t, 5., testutil.ToFloat64(m.Steps))
	assert.Equal(t, float64(g.Grid.NumNodes()), testutil.ToFloat64(m.LatticeNodes))
	assert.Equal(t, 0., testutil.ToFloat64(m.ClampedFaces))
	// Registering twice hands back the same collectors
	m2, err := NewMetrics(reg)
	require.NoError(t, err)
	assert.True(t, m.Steps == m2.Steps)
}

func TestGeneratorTracing(t *testing.T) {
	var (
		ctx = context.Background()
		sr  = tracetest.NewSpanRecorder()
		tp  = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	)
	g := newGenerator(t, scenarioConfig(), Dependencies{Tracer: tp.Tracer("test")})
	require.NoError(t, g.Initialize(ctx))
	run(t, g, 1, 2, 0.01)
	names := map[string]int{}
	for _, s := range sr.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["inflow.initialize"])
	assert.Equal(t, 2, names["inflow.update"])
	assert.Equal(t, 2, names["inflow.spatial"])
	assert.Equal(t, 2, names["inflow.massflow"])
}

func TestGeneratorTaylorTimeScale(t *testing.T) {
	pt := readfiles.ProfilePoint{
		U:  types.Vector{4, 0, 3},
		R:  types.NewSymmTensorDiag(1, 1, 1),
		Ly: types.Vector{0.3, 0.3, 0.3},
		Lz: types.Vector{0.45, 0.45, 0.45},
		T:  types.Vector{0, 0.2, 0},
		Lx: 1,
	}
	g := newGenerator(t, scenarioConfig(), Dependencies{
		Profile: readfiles.UniformProfile(pt, -0.2, 1.2, -0.2, 1.2, 2, 2),
	})
	require.NoError(t, g.Initialize(context.Background()))
	for _, T := range g.temporal.TimeScales {
		assert.InDelta(t, 0.2, T[0], 1.e-12)
		assert.InDelta(t, 0.2, T[1], 1.e-12)
		assert.InDelta(t, 0.2, T[2], 1.e-12)
	}
}

func TestGeneratorVarianceScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("long statistical run")
	}
	var (
		ctx    = context.Background()
		dt     = 0.01
		nSteps = 10000
		sumPre types.Vector // Fluctuations before the mass flow correction
		sumOut types.Vector
		sumM2  float64
		count  float64
	)
	g := newGenerator(t, scenarioConfig(), Dependencies{
		Profile: uniformProfile(types.Vector{}, types.NewSymmTensorDiag(1, 1, 1), dt),
	})
	require.NoError(t, g.Initialize(ctx))
	require.Equal(t, 10, g.Grid.NY)
	require.Equal(t, 8, g.Grid.NZ)
	require.Equal(t, 0., g.Target)
	area := g.Corrector().TotalArea
	for n := 1; n <= nSteps; n++ {
		u, err := g.Update(ctx, TimeStep{Index: n, Time: float64(n) * dt, DeltaT: dt})
		require.NoError(t, err)
		require.InDelta(t, 0., g.Corrector().Flux(u), 1.e-9)
		// The shift along -x added actual/area to every u
		m := g.Actual / area
		for _, v := range u {
			pre := types.Vector{v[0] - m, v[1], v[2]}
			for c := 0; c < 3; c++ {
				sumPre[c] += pre[c] * pre[c]
				sumOut[c] += v[c] * v[c]
			}
			sumM2 += m * m
			count++
		}
	}
	for c := 0; c < 3; c++ {
		assert.InDelta(t, 1., sumPre[c]/count, 0.05)
	}
	assert.Equal(t, sumPre[1], sumOut[1])
	assert.Equal(t, sumPre[2], sumOut[2])
	// Only the patch mean of u is removed
	assert.InDelta(t, sumPre[0], sumOut[0]+sumM2, 1.e-6*sumPre[0])
	assert.True(t, sumOut[0]/count > 0.5)
}

func TestTimeState(t *testing.T) {
	var ts TimeState
	ts.Add(PhaseSpatial, 3*time.Millisecond)
	ts.Add(PhaseSpatial, 2*time.Millisecond)
	ts.Add(PhaseMassFlow, time.Millisecond)
	ts.Advance(TimeStep{Index: 7, Time: 0.7, DeltaT: 0.1})
	assert.Equal(t, 5*time.Millisecond, ts.Elapsed[PhaseSpatial])
	assert.Equal(t, 6*time.Millisecond, ts.Total())
	assert.Equal(t, 1, ts.Steps)
	assert.Equal(t, 7, ts.Index)
	assert.Contains(t, ts.String(), "spatial 5ms")
	assert.Equal(t, "interpolation", PhaseInterpolation.String())
	assert.Equal(t, "Phase(9)", Phase(9).String())
	assert.Equal(t, "Running", Running.String())
}

package InflowGenerator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/notargets/inflowgen/InputParameters"
	"github.com/notargets/inflowgen/filter"
	"github.com/notargets/inflowgen/geometry2D"
	"github.com/notargets/inflowgen/interpolation"
	"github.com/notargets/inflowgen/lattice"
	"github.com/notargets/inflowgen/logging"
	"github.com/notargets/inflowgen/massflow"
	"github.com/notargets/inflowgen/readfiles"
	"github.com/notargets/inflowgen/stress"
	"github.com/notargets/inflowgen/types"
	"github.com/notargets/inflowgen/utils"
)

var (
	ErrNoRestartState = errors.New("continuation restart requested but no restart state is stored")
	ErrNotInitialized = errors.New("generator is not initialized")
)

type State int

const (
	Uninitialized State = iota
	Initialized
	Running
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Initialized:
		return "Initialized"
	case Running:
		return "Running"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// VelocityProvider is what a boundary condition calls once per time step
type VelocityProvider interface {
	Update(ctx context.Context, step TimeStep) ([]types.Vector, error)
}

// Dependencies are the collaborators of a Generator, only Patch and Profile are required
type Dependencies struct {
	Patch   geometry2D.Patch
	Profile readfiles.ProfileSource
	Store   Store
	Logger  logging.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

/*
Generator produces the inflow velocity on the faces of a patch, one field per time step:
white noise on a virtual lattice is filtered in space and in time, interpolated onto
the faces, scaled to the prescribed Reynolds stresses around the mean velocity and
corrected to the target flux.
*/
type Generator struct {
	cfg     *InputParameters.InflowParameters
	patch   geometry2D.Patch
	profile readfiles.ProfileSource
	store   Store
	log     logging.Logger
	metrics *Metrics
	tracer  trace.Tracer
	state   State

	points    []readfiles.ProfilePoint
	Grid      *lattice.Grid
	kernels   *filter.KernelFactory
	spatial   *filter.SpatialCorrelator
	temporal  *filter.TemporalCorrelator
	scaler    *stress.LundScaler
	corrector *massflow.Corrector
	Target    float64 // Flux enforced every step
	Actual    float64 // Flux before correction, last step

	inputToLattice *interpolation.Handle
	inputToPatch   *interpolation.Handle
	latticeToPatch *interpolation.Handle

	Time     TimeState
	last     []types.Vector
	lastStep int
	hasLast  bool
}

var _ VelocityProvider = (*Generator)(nil)

func NewGenerator(cfg *InputParameters.InflowParameters, deps Dependencies) (g *Generator, err error) {
	if deps.Patch == nil || deps.Profile == nil {
		err = fmt.Errorf("generator needs a patch and a profile source")
		return
	}
	if err = cfg.Validate(); err != nil {
		return
	}
	g = &Generator{
		cfg:     cfg,
		patch:   deps.Patch,
		profile: deps.Profile,
		store:   deps.Store,
		log:     deps.Logger,
		metrics: deps.Metrics,
		tracer:  deps.Tracer,
	}
	if g.store == nil {
		g.store = &MemoryStore{}
	}
	if g.log == nil {
		g.log = logging.Noop()
	}
	if g.tracer == nil {
		g.tracer = defaultTracer()
	}
	g.log = g.log.With(logging.String("patch", deps.Patch.Name()))
	if g.kernels, err = filter.NewKernelFactory(cfg.CorrelationShape, cfg.NfK); err != nil {
		return
	}
	g.inputToLattice = interpolation.NewHandle("input-to-lattice", interpolation.PlanarBuilder(cfg.Perturb))
	g.inputToPatch = interpolation.NewHandle("input-to-patch", interpolation.PlanarBuilder(cfg.Perturb))
	g.latticeToPatch = interpolation.NewHandle("lattice-to-patch",
		func(src, tgt []types.Point2) (*interpolation.Mapper, error) {
			return interpolation.NewLatticeMapper(g.Grid, tgt), nil
		})
	return
}

func (g *Generator) State() State {
	return g.state
}

/*
Initialize reads the profile, builds the lattice, the filters and the mappers, then
either starts from no temporal memory (clean restart) or reloads the stored state of a
previous run.
*/
func (g *Generator) Initialize(ctx context.Context) (err error) {
	ctx, span := g.tracer.Start(ctx, "inflow.initialize")
	defer func() { endSpan(span, err) }()

	if g.points, err = g.profile.Profile(ctx); err != nil {
		return
	}
	if err = stress.CheckProfile(readfiles.Stresses(g.points)); err != nil {
		return
	}
	if err = g.build(ctx); err != nil {
		return
	}
	g.Time = TimeState{}
	g.hasLast = false
	if g.cfg.CleanRestart {
		g.log.Info(ctx, "clean restart, starting without temporal history")
	} else {
		var (
			rs *RestartState
			ok bool
		)
		if rs, ok, err = g.store.Load(ctx); err != nil {
			return
		}
		if !ok {
			err = ErrNoRestartState
			return
		}
		if err = g.restore(ctx, rs); err != nil {
			return
		}
		g.metrics.incResumed()
		g.log.Info(ctx, "continuing from restart state",
			logging.Int("step", g.Time.Index), logging.Float("time", g.Time.Time))
	}
	g.state = Initialized
	g.log.Info(ctx, "inflow generator initialized",
		logging.Int("input_points", len(g.points)),
		logging.Int("faces", len(g.patch.FaceCentres())),
		logging.String("lattice", g.Grid.String()),
		logging.Int("workers", g.spatial.ParallelDegree()),
		logging.Float("target_flux", g.Target),
	)
	return
}

// build sets up everything that depends on the patch and the profile
func (g *Generator) build(ctx context.Context) (err error) {
	var (
		src          = readfiles.Points2(g.points)
		faces        = geometry2D.ProjectYZ(g.patch.FaceCentres())
		minLy, minLz float64
		m            *interpolation.Mapper
		rebuilds     = g.mapperBuilds()
	)
	if minLy, minLz, err = readfiles.MinLengthScales(g.points); err != nil {
		return
	}
	if g.Grid, err = lattice.Build(g.patch.BoundBox(), minLy, minLz, g.cfg.GridFactor, g.cfg.LY, g.cfg.LZ); err != nil {
		return
	}
	g.metrics.setLattice(g.Grid.NumNodes())

	// Length and time scales staged on the lattice
	if m, err = g.inputToLattice.Get(src, g.Grid.Points2()); err != nil {
		return
	}
	var (
		Ly, Lz = readfiles.LengthScales(g.points)
		T      = readfiles.TimeScales(g.points)
		LyL    []types.Vector
		LzL    []types.Vector
		TL     []types.Vector
		nk     []filter.NodeKernels
	)
	if LyL, err = m.ApplyVector(Ly); err != nil {
		return
	}
	if LzL, err = m.ApplyVector(Lz); err != nil {
		return
	}
	if TL, err = m.ApplyVector(T); err != nil {
		return
	}
	if nk, err = filter.KernelsFor(g.kernels, g.Grid, LyL, LzL); err != nil {
		return
	}
	if g.spatial, err = filter.NewSpatialCorrelator(g.Grid, nk, g.cfg.Seed, g.cfg.ProcLimit); err != nil {
		return
	}
	g.temporal = filter.NewTemporalCorrelator(TL)

	// Mean and stress go straight to the faces
	if m, err = g.inputToPatch.Get(src, faces); err != nil {
		return
	}
	var (
		U []types.Vector
		R []types.SymmTensor
	)
	if U, err = m.ApplyVector(readfiles.Means(g.points)); err != nil {
		return
	}
	if R, err = m.ApplySymmTensor(readfiles.Stresses(g.points)); err != nil {
		return
	}
	if g.scaler, err = stress.NewLundScaler(U, R); err != nil {
		return
	}
	if n := len(g.scaler.Clamped); n > 0 {
		g.metrics.addClamped(n)
		g.log.Warn(ctx, "clamped near singular Reynolds stress",
			logging.Int("faces", n), logging.Int("first_face", g.scaler.Clamped[0]))
	}
	if _, err = g.latticeToPatch.Get(g.Grid.Points2(), faces); err != nil {
		return
	}
	g.metrics.addRebuilds(g.mapperBuilds() - rebuilds)

	if g.corrector, err = massflow.NewCorrector(g.patch.FaceAreas(), U, g.cfg.MassFlowRule, g.cfg.ProcLimit); err != nil {
		return
	}
	g.Target = g.cfg.TargetFlux
	if g.Target == 0 {
		g.Target = g.corrector.MeanTotal
	}
	return
}

func (g *Generator) mapperBuilds() int {
	return g.inputToLattice.Rebuilds + g.inputToPatch.Rebuilds + g.latticeToPatch.Rebuilds
}

// restore loads stored state, remapping the temporal field when the lattice has changed since it was saved
func (g *Generator) restore(ctx context.Context, rs *RestartState) (err error) {
	if err = g.spatial.Noise.UnmarshalStreams(rs.Streams); err != nil {
		return
	}
	g.Time = rs.Time
	if rs.Temporal == nil {
		return
	}
	stored := lattice.FromLayout(rs.Lattice)
	temporal := rs.Temporal
	if !stored.SameLayout(g.Grid) {
		if len(temporal) != stored.NumNodes() {
			err = fmt.Errorf("restart temporal field has %d nodes, its lattice %d", len(temporal), stored.NumNodes())
			return
		}
		m := interpolation.NewLatticeMapper(stored, g.Grid.Points2())
		if temporal, err = m.ApplyVector(temporal); err != nil {
			return
		}
		g.log.Info(ctx, "remapped restart temporal field",
			logging.String("from", stored.String()), logging.String("to", g.Grid.String()))
	}
	if rs.Seed != g.cfg.Seed {
		g.log.Warn(ctx, "restart state was generated with a different seed",
			logging.Any("stored", rs.Seed), logging.Any("configured", g.cfg.Seed))
	}
	return g.temporal.SetState(temporal)
}

func (g *Generator) snapshot() (rs *RestartState, err error) {
	rs = &RestartState{
		Seed:     g.cfg.Seed,
		Time:     g.Time,
		Lattice:  g.Grid.Layout(),
		Temporal: g.temporal.State(),
	}
	rs.Streams, err = g.spatial.Noise.MarshalStreams()
	return
}

// Checkpoint saves what a continuation restart needs
func (g *Generator) Checkpoint(ctx context.Context) (err error) {
	if g.state == Uninitialized {
		return ErrNotInitialized
	}
	var rs *RestartState
	if rs, err = g.snapshot(); err != nil {
		return
	}
	if err = g.store.Save(ctx, rs); err != nil {
		return
	}
	g.log.Info(ctx, "checkpoint written", logging.Int("step", g.Time.Index))
	return
}

/*
Rebuild switches to a new patch, for instance after the host mesh was repartitioned. The
lattice and mappers are rebuilt for the new faces and the temporal field is carried over
through interpolation, so the correlation in time is not interrupted.
*/
func (g *Generator) Rebuild(ctx context.Context, patch geometry2D.Patch) (err error) {
	if g.state == Uninitialized {
		return ErrNotInitialized
	}
	ctx, span := g.tracer.Start(ctx, "inflow.rebuild")
	defer func() { endSpan(span, err) }()

	var rs *RestartState
	if rs, err = g.snapshot(); err != nil {
		return
	}
	timeState := g.Time
	g.patch = patch
	if err = g.build(ctx); err != nil {
		return
	}
	if err = g.restore(ctx, rs); err != nil {
		return
	}
	g.Time = timeState
	g.hasLast = false
	g.log.Info(ctx, "rebuilt for new patch", logging.String("lattice", g.Grid.String()))
	return
}

// Update returns the velocity on the patch faces for the step, computing it once per step index
func (g *Generator) Update(ctx context.Context, step TimeStep) (u []types.Vector, err error) {
	if g.state == Uninitialized {
		return nil, ErrNotInitialized
	}
	if g.hasLast && step.Index == g.lastStep {
		return g.last, nil
	}
	if g.hasLast && step.Index < g.lastStep {
		return nil, fmt.Errorf("step index %d is before the last step %d", step.Index, g.lastStep)
	}
	ctx, span := g.tracer.Start(ctx, "inflow.update",
		trace.WithAttributes(attribute.Int("step", step.Index), attribute.Float64("time", step.Time)))
	defer func() { endSpan(span, err) }()

	var (
		start   = time.Now()
		phases  [NumPhases]time.Duration
		psi     []types.Vector
		Psi     []types.Vector
		xi      []types.Vector
		m       *interpolation.Mapper
		actual  float64
		measure = func(p Phase, t0 time.Time) { phases[p] += time.Since(t0) }
	)
	_, sp := g.tracer.Start(ctx, "inflow.spatial")
	if psi, err = g.spatial.Correlate(ctx); err != nil {
		endSpan(sp, err)
		return
	}
	phases[PhaseRandom] = g.spatial.NoiseElapsed
	phases[PhaseSpatial] = g.spatial.FilterElapsed
	sp.End()

	t0 := time.Now()
	if Psi, err = g.temporal.Correlate(psi, step.DeltaT); err != nil {
		return
	}
	measure(PhaseTemporal, t0)

	t0 = time.Now()
	faces := geometry2D.ProjectYZ(g.patch.FaceCentres())
	if m, err = g.latticeToPatch.Get(g.Grid.Points2(), faces); err != nil {
		return
	}
	if xi, err = m.ApplyVector(Psi); err != nil {
		return
	}
	measure(PhaseInterpolation, t0)

	t0 = time.Now()
	if u, err = g.scaler.Scale(xi); err != nil {
		return
	}
	measure(PhaseScaling, t0)

	t0 = time.Now()
	_, sp = g.tracer.Start(ctx, "inflow.massflow")
	if actual, err = g.corrector.Correct(u, g.Target); err != nil {
		endSpan(sp, err)
		return
	}
	if utils.IsNan(u) {
		err = fmt.Errorf("step %d produced a non finite velocity, flux %g", step.Index, actual)
		endSpan(sp, err)
		return
	}
	sp.SetAttributes(attribute.Float64("flux", actual), attribute.Float64("target", g.Target))
	sp.End()
	measure(PhaseMassFlow, t0)

	for p, d := range phases {
		g.Time.Add(Phase(p), d)
	}
	g.Time.Advance(step)
	g.last, g.lastStep, g.hasLast = u, step.Index, true
	g.Actual = actual
	g.state = Running
	g.metrics.observeStep(time.Since(start), phases, actual, g.Target)
	g.log.Debug(ctx, "inflow step",
		logging.Int("step", step.Index),
		logging.Float("flux", actual),
		logging.Float("target", g.Target),
	)
	return
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Lattice field accessors for diagnostics

func (g *Generator) TemporalField() []types.Vector {
	if g.temporal == nil {
		return nil
	}
	return g.temporal.State()
}

func (g *Generator) MeanVelocity() []types.Vector {
	if g.scaler == nil {
		return nil
	}
	return g.scaler.Mean
}

func (g *Generator) Corrector() *massflow.Corrector {
	return g.corrector
}

// Stresses are the Reynolds stresses the scaling reproduces at each face, after any clamping
func (g *Generator) Stresses() (R []types.SymmTensor) {
	if g.scaler == nil {
		return nil
	}
	R = make([]types.SymmTensor, len(g.scaler.Factors))
	for f, L := range g.scaler.Factors {
		R[f] = L.OuterSelf()
	}
	return
}

package InflowGenerator

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes generator counters to Prometheus, a nil *Metrics records nothing
type Metrics struct {
	gatherer prometheus.Gatherer

	Steps           prometheus.Counter
	StepDuration    prometheus.Histogram
	PhaseSeconds    *prometheus.CounterVec
	MassFlux        prometheus.Gauge
	FluxCorrection  prometheus.Gauge
	ClampedFaces    prometheus.Counter
	MapperRebuilds  prometheus.Counter
	LatticeNodes    prometheus.Gauge
	RestartsResumed prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) (m *Metrics, err error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m = &Metrics{gatherer: prometheus.DefaultGatherer}
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}
	if m.Steps, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inflowgen_steps_total",
		Help: "Time steps generated.",
	})); err != nil {
		return
	}
	if m.StepDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "inflowgen_step_duration_seconds",
		Help:    "Wall time of one generator step.",
		Buckets: prometheus.ExponentialBuckets(1.e-5, 4, 10),
	})); err != nil {
		return
	}
	if m.PhaseSeconds, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inflowgen_phase_seconds_total",
		Help: "Wall time spent in each phase of the step.",
	}, []string{"phase"})); err != nil {
		return
	}
	if m.MassFlux, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inflowgen_mass_flux",
		Help: "Volume flux through the patch before correction, last step.",
	})); err != nil {
		return
	}
	if m.FluxCorrection, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inflowgen_mass_flux_correction",
		Help: "Target minus actual flux, last step.",
	})); err != nil {
		return
	}
	if m.ClampedFaces, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inflowgen_clamped_faces_total",
		Help: "Faces whose Reynolds stress was projected onto the positive semi-definite tensors.",
	})); err != nil {
		return
	}
	if m.MapperRebuilds, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inflowgen_mapper_rebuilds_total",
		Help: "Interpolation weight matrices built.",
	})); err != nil {
		return
	}
	if m.LatticeNodes, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inflowgen_lattice_nodes",
		Help: "Nodes of the virtual lattice.",
	})); err != nil {
		return
	}
	m.RestartsResumed, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inflowgen_restarts_resumed_total",
		Help: "Initializations that continued from stored restart state.",
	}))
	return
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return nil
	}
	return m.gatherer
}

func (m *Metrics) observeStep(d time.Duration, phases [NumPhases]time.Duration, actual, target float64) {
	if m == nil {
		return
	}
	m.Steps.Inc()
	m.StepDuration.Observe(d.Seconds())
	for p, e := range phases {
		m.PhaseSeconds.WithLabelValues(Phase(p).String()).Add(e.Seconds())
	}
	m.MassFlux.Set(actual)
	m.FluxCorrection.Set(target - actual)
}

func (m *Metrics) addClamped(n int) {
	if m == nil {
		return
	}
	m.ClampedFaces.Add(float64(n))
}

func (m *Metrics) addRebuilds(n int) {
	if m == nil {
		return
	}
	m.MapperRebuilds.Add(float64(n))
}

func (m *Metrics) setLattice(nodes int) {
	if m == nil {
		return
	}
	m.LatticeNodes.Set(float64(nodes))
}

func (m *Metrics) incResumed() {
	if m == nil {
		return
	}
	m.RestartsResumed.Inc()
}

// register returns the collector already registered under the same name when there is one
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return c, err
	}
	return c, nil
}

package knot

import (
	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/energy"
	"github.com/turtacn/KnotWeave/internal/domain/invariant"
	"github.com/turtacn/KnotWeave/internal/domain/statmech"
	"github.com/turtacn/KnotWeave/pkg/errors"
)

// BuilderConfig holds the engine constants a Builder needs.
type BuilderConfig struct {
	Temperature         float64
	Reference           statmech.Reference
	CrossingCeiling     int
	MaxResolutionStates int
}

// DefaultBuilderConfig returns T=1, reference [0,15] and the calculator's
// default limits.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		Temperature:         1,
		Reference:           statmech.DefaultReference,
		CrossingCeiling:     invariant.DefaultCrossingCeiling,
		MaxResolutionStates: invariant.DefaultMaxStates,
	}
}

// Builder derives Knots from braid words.  It is stateless apart from its
// configuration and safe for concurrent use.
type Builder struct {
	calc        *invariant.Calculator
	temperature float64
	ref         statmech.Reference
}

// NewBuilder validates cfg and returns a Builder.
func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if !(cfg.Temperature > 0) {
		return nil, errors.InvalidTemperature("builder temperature must be > 0").
			WithDetailf("temperature=%g", cfg.Temperature)
	}
	if cfg.Reference.Max <= cfg.Reference.Min {
		return nil, errors.InvalidParam("stability reference range is empty").
			WithDetailf("min=%g max=%g", cfg.Reference.Min, cfg.Reference.Max)
	}
	return &Builder{
		calc:        invariant.NewCalculator(cfg.CrossingCeiling, cfg.MaxResolutionStates),
		temperature: cfg.Temperature,
		ref:         cfg.Reference,
	}, nil
}

// Temperature returns the temperature knots are built at.
func (b *Builder) Temperature() float64 { return b.temperature }

// Build reduces w and derives a generation-0 Knot from it.
func (b *Builder) Build(w braid.Word) (*Knot, error) {
	return b.build(w, nil)
}

// Derive builds a Knot from w that records parent as its predecessor.
func (b *Builder) Derive(parent *Knot, w braid.Word) (*Knot, error) {
	return b.build(w, parent)
}

func (b *Builder) build(w braid.Word, parent *Knot) (*Knot, error) {
	inv, err := b.calc.Compute(w)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "compute invariants")
	}
	reduced := w.Reduce()

	ens, err := b.Ensemble(reduced)
	if err != nil {
		return nil, err
	}
	k := &Knot{
		word:       reduced,
		inv:        inv,
		energy:     ens.Energy,
		entropy:    ens.Entropy,
		freeEnergy: ens.FreeEnergy,
		stability:  ens.Stability,
	}
	if parent != nil {
		k.predecessor = parent
		k.generation = parent.generation + 1
	}
	return k, nil
}

// Ensemble evaluates the local Boltzmann ensemble of w at the builder's
// temperature.
func (b *Builder) Ensemble(w braid.Word) (statmech.Ensemble, error) {
	return b.EnsembleAt(w, b.temperature)
}

// EnsembleAt is Ensemble at an explicit temperature.
func (b *Builder) EnsembleAt(w braid.Word, t float64) (statmech.Ensemble, error) {
	e := energy.Of(w)
	return statmech.Evaluate(e, energy.Neighbourhood(w), w.Strands(), t, b.ref)
}

package matching

import (
	"context"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/internal/domain/compat"
	"github.com/turtacn/KnotWeave/internal/domain/dynamics"
	"github.com/turtacn/KnotWeave/internal/domain/invariant"
	"github.com/turtacn/KnotWeave/internal/domain/knot"
	"github.com/turtacn/KnotWeave/internal/domain/statmech"
	"github.com/turtacn/KnotWeave/pkg/errors"
	"github.com/turtacn/KnotWeave/pkg/types/common"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

// ResolveKnot turns a wire input into a knot.  An explicit braid wins over
// an attribute vector.
func ResolveKnot(ctx context.Context, svc Service, in dto.KnotInput) (*knot.Knot, error) {
	if in.Braid != nil {
		w, err := braid.New(in.Braid.Strands, in.Braid.Generators)
		if err != nil {
			return nil, err
		}
		return svc.BuildFromWord(ctx, w)
	}
	if len(in.Attributes) == 0 {
		return nil, errors.InvalidParam("knot input needs a braid or attributes")
	}
	et, err := common.ParseEntityType(in.EntityType)
	if err != nil {
		return nil, errors.InvalidEntityType(err.Error())
	}
	return svc.BuildKnot(ctx, in.Attributes, et)
}

// ResolveKnots resolves every input, failing on the first error.
func ResolveKnots(ctx context.Context, svc Service, ins []dto.KnotInput) ([]*knot.Knot, error) {
	out := make([]*knot.Knot, len(ins))
	for i, in := range ins {
		k, err := ResolveKnot(ctx, svc, in)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "resolve knot").WithDetailf("index=%d", i)
		}
		out[i] = k
	}
	return out, nil
}

// ToPerturbation converts a wire perturbation.
func ToPerturbation(p dto.Perturbation) dynamics.Perturbation {
	return dynamics.Perturbation{Mood: p.Mood, Energy: p.Energy, Stress: p.Stress}
}

// ToKnotDTO converts a knot for the wire.
func ToKnotDTO(k *knot.Knot) dto.Knot {
	w := k.Word()
	out := dto.Knot{
		Fingerprint:     k.Fingerprint(),
		Braid:           dto.Braid{Strands: w.Strands(), Generators: w.Ints()},
		Notation:        w.String(),
		CrossingNumber:  k.CrossingNumber(),
		Writhe:          k.Writhe(),
		Jones:           toTerms(k.Jones()),
		Alexander:       toTerms(k.Alexander()),
		Determinant:     k.Determinant(),
		Components:      k.Components(),
		BraidIndex:      k.BraidIndex(),
		Signature:       k.Signature(),
		UnknottingBound: k.UnknottingBound(),
		BridgeBound:     k.BridgeBound(),
		Energy:          k.Energy(),
		Entropy:         k.Entropy(),
		FreeEnergy:      k.FreeEnergy(),
		Stability:       k.Stability(),
		Generation:      k.Generation(),
	}
	if arf := k.Arf(); arf != invariant.ArfUndefined {
		out.Arf = &arf
	}
	if p := k.Predecessor(); p != nil {
		out.PredecessorFingerprint = p.Fingerprint()
	}
	return out
}

// ToRecordDTO converts an entity record for the wire.
func ToRecordDTO(r knot.EntityKnotRecord) dto.EntityKnotRecord {
	return dto.EntityKnotRecord{
		EntityID:    r.EntityID,
		EntityType:  r.EntityType.String(),
		GeneratedAt: r.GeneratedAt,
		Knot:        ToKnotDTO(r.Knot),
	}
}

// ToResultDTO converts a compatibility result for the wire.
func ToResultDTO(r compat.Result) dto.CompatibilityResult {
	r = r.Clone()
	return dto.CompatibilityResult{
		QuantumScore:     r.QuantumScore,
		TopologicalScore: r.TopologicalScore,
		WeaveScore:       r.WeaveScore,
		IntegratedScore:  r.IntegratedScore,
	}
}

// ToStabilityDTO converts an ensemble evaluated at temperature.
func ToStabilityDTO(k *knot.Knot, temperature float64, e statmech.Ensemble) dto.StabilityResponse {
	return dto.StabilityResponse{
		Fingerprint: k.Fingerprint(),
		Temperature: temperature,
		Energy:      e.Energy,
		Entropy:     e.Entropy,
		FreeEnergy:  e.FreeEnergy,
		Stability:   e.Stability,
	}
}

func toTerms(ts []invariant.Term) []dto.Term {
	out := make([]dto.Term, len(ts))
	for i, t := range ts {
		out[i] = dto.Term{Exponent: t.Exponent, Coefficient: t.Coefficient}
	}
	return out
}

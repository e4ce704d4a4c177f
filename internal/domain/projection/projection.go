// Package projection maps an entity's attribute vector onto a braid word.
// It is the only place where the entity type influences the math: once a
// word exists, every later computation is type-agnostic.
package projection

import (
	"math"

	"github.com/turtacn/KnotWeave/internal/domain/braid"
	"github.com/turtacn/KnotWeave/pkg/errors"
	"github.com/turtacn/KnotWeave/pkg/types/common"
)

// Threshold returns the minimum |correlation| that creates a crossing for
// entity type et.
func Threshold(et common.EntityType) (float64, error) {
	switch et {
	case common.EntityPerson:
		return 0.30, nil
	case common.EntityEvent:
		return 0.25, nil
	case common.EntityPlace:
		return 0.25, nil
	case common.EntityCompany:
		return 0.35, nil
	case common.EntityBrand:
		return 0.35, nil
	case common.EntitySponsorship:
		return 0.40, nil
	default:
		return 0, errors.InvalidEntityType("unknown entity type").WithDetailf("entity_type=%q", string(et))
	}
}

// Correlation returns 4(a−½)(b−½), which lies in [-1, 1] for a, b in [0, 1].
func Correlation(a, b float64) float64 {
	return 4 * (a - 0.5) * (b - 0.5)
}

// Validate checks that attrs has at least two dimensions, each in [0, 1].
func Validate(attrs []float64) error {
	if len(attrs) < braid.MinStrands {
		return errors.InvalidGenerator("attribute vector too short to form a braid").
			WithDetailf("dimensions=%d min=%d", len(attrs), braid.MinStrands)
	}
	for i, v := range attrs {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return errors.InvalidAttributes("attribute outside [0, 1]").
				WithDetailf("index=%d value=%g", i, v)
		}
	}
	return nil
}

// Project returns the braid word of attrs for entity type et.
//
// The strand count is len(attrs).  For every pair i<j, scanned in order, a
// crossing σ_{i+1} is appended when |Correlation(attrs[i], attrs[j])|
// exceeds the type's threshold; its sign is the sign of the correlation.
func Project(attrs []float64, et common.EntityType) (braid.Word, error) {
	threshold, err := Threshold(et)
	if err != nil {
		return braid.Word{}, err
	}
	if err := Validate(attrs); err != nil {
		return braid.Word{}, err
	}

	n := len(attrs)
	var gens []braid.Generator
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			c := Correlation(attrs[i], attrs[j])
			if math.Abs(c) <= threshold {
				continue
			}
			g := braid.Generator(i + 1)
			if c < 0 {
				g = -g
			}
			gens = append(gens, g)
		}
	}
	return braid.FromGenerators(n, gens)
}

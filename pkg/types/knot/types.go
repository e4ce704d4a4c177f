// Package knot defines the request and response shapes of the engine's HTTP
// and CLI boundaries.
package knot

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/KnotWeave/pkg/errors"
)

// Term is one (exponent, coefficient) pair of a Laurent polynomial.
type Term struct {
	Exponent    int     `json:"exponent" yaml:"exponent"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
}

// Braid is a braid word on the wire.  Its bounds are checked by the braid
// constructor so that generator errors keep their codes.
type Braid struct {
	Strands    int   `json:"strands" yaml:"strands"`
	Generators []int `json:"generators" yaml:"generators"`
}

// Knot is the serialised form of a built knot.
type Knot struct {
	Fingerprint            string   `json:"fingerprint" yaml:"fingerprint"`
	Braid                  Braid    `json:"braid" yaml:"braid"`
	Notation               string   `json:"notation" yaml:"notation"`
	CrossingNumber         uint32   `json:"crossing_number" yaml:"crossing_number"`
	Writhe                 int32    `json:"writhe" yaml:"writhe"`
	Jones                  []Term   `json:"jones" yaml:"jones"`
	Alexander              []Term   `json:"alexander" yaml:"alexander"`
	Determinant            *big.Int `json:"determinant" yaml:"determinant"`
	Components             int      `json:"components" yaml:"components"`
	BraidIndex             int      `json:"braid_index" yaml:"braid_index"`
	Signature              int      `json:"signature" yaml:"signature"`
	UnknottingBound        int      `json:"unknotting_bound" yaml:"unknotting_bound"`
	BridgeBound            int      `json:"bridge_bound" yaml:"bridge_bound"`
	// Arf is omitted for links.
	Arf                    *int     `json:"arf,omitempty" yaml:"arf,omitempty"`
	Energy                 float64  `json:"energy" yaml:"energy"`
	Entropy                float64  `json:"entropy" yaml:"entropy"`
	FreeEnergy             float64  `json:"free_energy" yaml:"free_energy"`
	Stability              float64  `json:"stability" yaml:"stability"`
	Generation             int      `json:"generation" yaml:"generation"`
	PredecessorFingerprint string   `json:"predecessor_fingerprint,omitempty" yaml:"predecessor_fingerprint,omitempty"`
}

// KnotInput identifies a knot either by an explicit braid or by an entity's
// attribute vector.
type KnotInput struct {
	Braid      *Braid    `json:"braid,omitempty" yaml:"braid,omitempty" validate:"required_without=Attributes"`
	EntityType string    `json:"entity_type,omitempty" yaml:"entity_type,omitempty" validate:"required_with=Attributes"`
	Attributes []float64 `json:"attributes,omitempty" yaml:"attributes,omitempty" validate:"required_without=Braid"`
}

// BuildKnotRequest projects an entity onto a knot.
type BuildKnotRequest struct {
	EntityID   string    `json:"entity_id,omitempty"`
	EntityType string    `json:"entity_type" validate:"required"`
	Attributes []float64 `json:"attributes" validate:"required"`
}

// EntityKnotRecord is the response to BuildKnotRequest.
type EntityKnotRecord struct {
	EntityID    string    `json:"entity_id" yaml:"entity_id"`
	EntityType  string    `json:"entity_type" yaml:"entity_type"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Knot        Knot      `json:"knot" yaml:"knot"`
}

// Perturbation is an external influence; components lie in [-1, 1].
type Perturbation struct {
	Mood   float64 `json:"mood" yaml:"mood"`
	Energy float64 `json:"energy" yaml:"energy"`
	Stress float64 `json:"stress" yaml:"stress"`
}

// EvolveRequest evolves a knot under a perturbation.  Steps defaults to 1.
type EvolveRequest struct {
	Knot         KnotInput    `json:"knot"`
	Perturbation Perturbation `json:"perturbation"`
	// Seed drives the mutation RNG.  0 selects the same stream as 1.
	Seed         int64        `json:"seed"`
	Steps        int          `json:"steps,omitempty" validate:"gte=0,lte=1000"`
}

// StabilityRequest evaluates a knot's stability, optionally at an explicit
// temperature.
type StabilityRequest struct {
	Knot        KnotInput `json:"knot"`
	Temperature *float64  `json:"temperature,omitempty" validate:"omitempty,gt=0"`
}

// StabilityResponse reports the local ensemble of a knot.
type StabilityResponse struct {
	Fingerprint string  `json:"fingerprint" yaml:"fingerprint"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Energy      float64 `json:"energy" yaml:"energy"`
	Entropy     float64 `json:"entropy" yaml:"entropy"`
	FreeEnergy  float64 `json:"free_energy" yaml:"free_energy"`
	Stability   float64 `json:"stability" yaml:"stability"`
}

// CompatibilityRequest scores two knots against an external quantum score.
type CompatibilityRequest struct {
	A            KnotInput `json:"a"`
	B            KnotInput `json:"b"`
	QuantumScore float64   `json:"quantum_score"`
}

// WeaveRequest scores three or more knots.  QuantumScores holds one score
// per pair i<j in lexicographic order.
type WeaveRequest struct {
	Knots         []KnotInput `json:"knots" validate:"required,min=3,dive"`
	QuantumScores []float64   `json:"quantum_scores" validate:"required"`
}

// CompatibilityResult is the response of both compatibility endpoints.
type CompatibilityResult struct {
	QuantumScore     float64  `json:"quantum_score" yaml:"quantum_score"`
	TopologicalScore float64  `json:"topological_score" yaml:"topological_score"`
	WeaveScore       *float64 `json:"weave_score,omitempty" yaml:"weave_score,omitempty"`
	IntegratedScore  float64  `json:"integrated_score" yaml:"integrated_score"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the struct tags of a request and reports every violation
// as one COMMON_002 error.
func Validate(req any) error {
	err := instance().Struct(req)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(err, errors.CodeInvalidParam, "invalid request")
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.InvalidParam("invalid request").WithDetail(strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}
	switch fe.Tag() {
	case "required", "required_with", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", field, fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}

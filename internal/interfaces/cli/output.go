package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/KnotWeave/pkg/errors"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

// parseKnotSpec reads a knot argument.  Two forms are accepted:
//
//	<entity_type>=<a1>,<a2>,...   an attribute vector, e.g. person=0.9,0.9,0.1
//	<strands>:<g1>,<g2>,...       a braid word, e.g. 2:1,1,1 (the fingerprint form)
func parseKnotSpec(spec string) (dto.KnotInput, error) {
	spec = strings.TrimSpace(spec)
	if et, vals, ok := strings.Cut(spec, "="); ok {
		attrs, err := parseFloats(vals)
		if err != nil {
			return dto.KnotInput{}, errors.InvalidAttributes("attributes are not numbers").WithDetail(err.Error())
		}
		return dto.KnotInput{EntityType: et, Attributes: attrs}, nil
	}
	if strands, gens, ok := strings.Cut(spec, ":"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(strands))
		if err != nil {
			return dto.KnotInput{}, errors.InvalidParam("braid strand count is not an integer").WithDetailf("spec=%s", spec)
		}
		word, err := parseInts(gens)
		if err != nil {
			return dto.KnotInput{}, errors.InvalidGenerator("braid generators are not integers").WithDetail(err.Error())
		}
		return dto.KnotInput{Braid: &dto.Braid{Strands: n, Generators: word}}, nil
	}
	return dto.KnotInput{}, errors.InvalidParam("knot must be <entity_type>=<attributes> or <strands>:<generators>").
		WithDetailf("spec=%s", spec)
}

func parseKnotSpecs(specs []string) ([]dto.KnotInput, error) {
	out := make([]dto.KnotInput, len(specs))
	for i, s := range specs {
		in, err := parseKnotSpec(s)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnknown, "parse knot").WithDetailf("index=%d", i)
		}
		out[i] = in
	}
	return out, nil
}

func splitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseFloats(s string) ([]float64, error) {
	parts := splitList(s)
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	parts := splitList(s)
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// formatPolynomial renders terms in the variable v, highest exponent last.
func formatPolynomial(terms []dto.Term, v string) string {
	if len(terms) == 0 {
		return "0"
	}
	var sb strings.Builder
	for i, t := range terms {
		c := t.Coefficient
		switch {
		case i == 0 && c < 0:
			sb.WriteString("-")
		case i > 0 && c < 0:
			sb.WriteString(" - ")
		case i > 0:
			sb.WriteString(" + ")
		}
		if c < 0 {
			c = -c
		}
		mag := strconv.FormatFloat(c, 'g', -1, 64)
		switch t.Exponent {
		case 0:
			sb.WriteString(mag)
			continue
		case 1:
			if mag != "1" {
				sb.WriteString(mag)
			}
			sb.WriteString(v)
		default:
			if mag != "1" {
				sb.WriteString(mag)
			}
			fmt.Fprintf(&sb, "%s^%d", v, t.Exponent)
		}
	}
	return sb.String()
}

func formatArf(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

var fieldValueHeaders = []string{"FIELD", "VALUE"}

// knotOutput renders a knot as field/value rows.
type knotOutput dto.Knot

func (k knotOutput) TableHeaders() []string { return fieldValueHeaders }

func (k knotOutput) TableRows() [][]string {
	rows := [][]string{
		{"fingerprint", k.Fingerprint},
		{"notation", k.Notation},
		{"crossing_number", strconv.FormatUint(uint64(k.CrossingNumber), 10)},
		{"writhe", strconv.Itoa(int(k.Writhe))},
		{"jones", formatPolynomial(k.Jones, "A")},
		{"alexander", formatPolynomial(k.Alexander, "t")},
		{"determinant", k.Determinant.String()},
		{"components", strconv.Itoa(k.Components)},
		{"braid_index", strconv.Itoa(k.BraidIndex)},
		{"signature", strconv.Itoa(k.Signature)},
		{"unknotting_bound", strconv.Itoa(k.UnknottingBound)},
		{"bridge_bound", strconv.Itoa(k.BridgeBound)},
		{"arf", formatArf(k.Arf)},
		{"energy", ftoa(k.Energy)},
		{"entropy", ftoa(k.Entropy)},
		{"free_energy", ftoa(k.FreeEnergy)},
		{"stability", ftoa(k.Stability)},
		{"generation", strconv.Itoa(k.Generation)},
	}
	if k.PredecessorFingerprint != "" {
		rows = append(rows, []string{"predecessor", k.PredecessorFingerprint})
	}
	return rows
}

// recordOutput renders an entity record as field/value rows.
type recordOutput dto.EntityKnotRecord

func (r recordOutput) TableHeaders() []string { return fieldValueHeaders }

func (r recordOutput) TableRows() [][]string {
	rows := [][]string{
		{"entity_id", r.EntityID},
		{"entity_type", r.EntityType},
		{"generated_at", r.GeneratedAt.Format("2006-01-02T15:04:05Z07:00")},
	}
	return append(rows, knotOutput(r.Knot).TableRows()...)
}

// stabilityOutput renders a stability evaluation.
type stabilityOutput dto.StabilityResponse

func (s stabilityOutput) TableHeaders() []string { return fieldValueHeaders }

func (s stabilityOutput) TableRows() [][]string {
	return [][]string{
		{"fingerprint", s.Fingerprint},
		{"temperature", ftoa(s.Temperature)},
		{"energy", ftoa(s.Energy)},
		{"entropy", ftoa(s.Entropy)},
		{"free_energy", ftoa(s.FreeEnergy)},
		{"stability", ftoa(s.Stability)},
	}
}

// resultOutput renders a compatibility result.
type resultOutput dto.CompatibilityResult

func (r resultOutput) TableHeaders() []string { return []string{"QUANTUM", "TOPOLOGICAL", "WEAVE", "INTEGRATED"} }

func (r resultOutput) TableRows() [][]string {
	weave := "-"
	if r.WeaveScore != nil {
		weave = ftoa(*r.WeaveScore)
	}
	return [][]string{{ftoa(r.QuantumScore), ftoa(r.TopologicalScore), weave, ftoa(r.IntegratedScore)}}
}

package handlers

import (
	"net/http"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/pkg/types/common"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

// KnotHandler serves knot construction, evolution and stability.
type KnotHandler struct {
	svc     matching.Service
	logger  logging.Logger
	maxBody int64
}

// NewKnotHandler creates a KnotHandler.  maxBody ≤ 0 selects
// DefaultMaxBodySize.
func NewKnotHandler(svc matching.Service, logger logging.Logger, maxBody int64) *KnotHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &KnotHandler{svc: svc, logger: logger, maxBody: maxBody}
}

// Build handles POST /api/v1/knots.
func (h *KnotHandler) Build(w http.ResponseWriter, r *http.Request) {
	var req dto.BuildKnotRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	rec, err := h.svc.BuildRecord(r.Context(), req.EntityID, req.Attributes, common.EntityType(req.EntityType))
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, matching.ToRecordDTO(rec))
}

// Evolve handles POST /api/v1/knots/evolve.
func (h *KnotHandler) Evolve(w http.ResponseWriter, r *http.Request) {
	var req dto.EvolveRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	k, err := matching.ResolveKnot(r.Context(), h.svc, req.Knot)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	steps := req.Steps
	if steps == 0 {
		steps = 1
	}
	out, err := h.svc.EvolveKnotSteps(r.Context(), k, matching.ToPerturbation(req.Perturbation), req.Seed, steps)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, matching.ToKnotDTO(out))
}

// Stability handles POST /api/v1/knots/stability.
func (h *KnotHandler) Stability(w http.ResponseWriter, r *http.Request) {
	var req dto.StabilityRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	k, err := matching.ResolveKnot(r.Context(), h.svc, req.Knot)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	t := h.svc.Temperature()
	if req.Temperature != nil {
		t = *req.Temperature
	}
	ens, err := h.svc.StabilityAt(r.Context(), k, t)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, matching.ToStabilityDTO(k, t, ens))
}

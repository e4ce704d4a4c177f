package handlers

import (
	"net/http"

	"github.com/turtacn/KnotWeave/internal/application/matching"
	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

// CompatHandler serves pairwise and group compatibility.
type CompatHandler struct {
	svc     matching.Service
	logger  logging.Logger
	maxBody int64
}

// NewCompatHandler creates a CompatHandler.
func NewCompatHandler(svc matching.Service, logger logging.Logger, maxBody int64) *CompatHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CompatHandler{svc: svc, logger: logger, maxBody: maxBody}
}

// Pair handles POST /api/v1/compatibility.
func (h *CompatHandler) Pair(w http.ResponseWriter, r *http.Request) {
	var req dto.CompatibilityRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	knots, err := matching.ResolveKnots(r.Context(), h.svc, []dto.KnotInput{req.A, req.B})
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Compatibility(r.Context(), knots[0], knots[1], req.QuantumScore)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, matching.ToResultDTO(res))
}

// Weave handles POST /api/v1/compatibility/weave.
func (h *CompatHandler) Weave(w http.ResponseWriter, r *http.Request) {
	var req dto.WeaveRequest
	if err := decodeJSON(w, r, h.maxBody, &req); err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	knots, err := matching.ResolveKnots(r.Context(), h.svc, req.Knots)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.WeaveCompatibility(r.Context(), knots, req.QuantumScores)
	if err != nil {
		writeAppError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, matching.ToResultDTO(res))
}

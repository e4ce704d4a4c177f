package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/KnotWeave/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KnotWeave/pkg/errors"
	"github.com/turtacn/KnotWeave/pkg/types/common"
	dto "github.com/turtacn/KnotWeave/pkg/types/knot"
)

// DefaultMaxBodySize bounds request bodies when the handler is not told
// otherwise.
const DefaultMaxBodySize = 1 << 20

// decodeJSON reads one JSON document into dst and validates its tags.
// Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBody int64, dst any) error {
	if maxBody <= 0 {
		maxBody = DefaultMaxBodySize
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.InvalidParam("request body too large").WithDetailf("limit=%d", maxErr.Limit)
		}
		if stderrors.Is(err, io.EOF) {
			return errors.InvalidParam("request body is empty")
		}
		return errors.InvalidParam("malformed JSON body").WithDetail(err.Error())
	}
	if dec.More() {
		return errors.InvalidParam("request body must hold a single JSON document")
	}
	return dto.Validate(dst)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeSuccess wraps data in the API envelope.
func writeSuccess[T any](w http.ResponseWriter, r *http.Request, statusCode int, data T) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = chimw.GetReqID(r.Context())
	writeJSON(w, statusCode, resp)
}

// writeAppError maps err onto its HTTP status through its code.  Errors
// without a code are masked as internal errors and logged.
func writeAppError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	code := errors.GetCode(err)
	message := err.Error()
	masked := false
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		code = errors.ErrCodeTimeout
	case stderrors.Is(err, context.Canceled):
		code = errors.ErrCodeServiceUnavailable
	case code == errors.CodeUnknown:
		logger.Error("unclassified handler error",
			logging.String("path", r.URL.Path), logging.Err(err))
		code = errors.ErrCodeInternal
		message = errors.DefaultMessageForCode(code)
		masked = true
	}
	status := errors.HTTPStatusForCode(code)

	var detail string
	var ae *errors.AppError
	if !masked && stderrors.As(err, &ae) {
		message = ae.Message
		detail = ae.Detail
		if inner := innermost(ae); inner != ae {
			detail = joinDetail(inner.Message, inner.Detail, detail)
		}
	}

	resp := common.NewErrorResponse(code.String(), message, detail)
	resp.RequestID = chimw.GetReqID(r.Context())
	writeJSON(w, status, resp)
}

// innermost returns the deepest AppError in e's cause chain.
func innermost(e *errors.AppError) *errors.AppError {
	for {
		var next *errors.AppError
		if e.Cause == nil || !stderrors.As(e.Cause, &next) {
			return e
		}
		e = next
	}
}

func joinDetail(msg, innerDetail, outerDetail string) string {
	out := msg
	if innerDetail != "" {
		out = fmt.Sprintf("%s: %s", out, innerDetail)
	}
	if outerDetail != "" {
		out = fmt.Sprintf("%s (%s)", out, outerDetail)
	}
	return out
}

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
)

type errorResponse struct {
	Error      string              `json:"error"`
	Details    string              `json:"details,omitempty"`
	Fields     []common.FieldError `json:"fields,omitempty"`
	Associated []string            `json:"associated,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

// statusFor maps an error to its HTTP status. conflictStatus is used for
// common.ErrConflict since taxonomy endpoints answer 400 there.
func statusFor(err error, conflictStatus int) int {
	switch {
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrConflict):
		return conflictStatus
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the structured error body for err. msg is the short
// message used for server-side failures.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error, msg string, conflictStatus int) {
	status := statusFor(err, conflictStatus)
	body := errorResponse{Error: msg}

	var (
		ve *common.ValidationError
		ce *common.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		body.Error = "validation failed"
		body.Fields = ve.Errors
		body.Details = ve.Error()
	case errors.As(err, &ce):
		body.Error = ce.Message
		body.Associated = ce.References
	case status == http.StatusNotFound:
		body.Error = "not found"
		body.Details = err.Error()
	case errors.Is(err, common.ErrConflict):
		body.Error = "already exists"
		body.Details = err.Error()
	default:
		body.Details = err.Error()
		h.logger.Error(r.Context(), msg, "error", err, "request_id", common.RequestIDFromContext(r.Context()))
	}

	writeJSON(w, status, body)
}

package web

import (
	"encoding/json"
	"net/http"

	"github.com/hpungsan/cadence/internal/errors"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail mirrors errors.CadenceError on the wire.
type ErrorDetail struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Status  int              `json:"status"`
	Details map[string]any   `json:"details,omitempty"`
}

// renderError writes err as the JSON envelope with its status code.
// Non-Cadence errors become INTERNAL.
func renderError(w http.ResponseWriter, err error) {
	ce, ok := errors.As(err)
	if !ok {
		ce = errors.NewInternal(err)
	}
	renderJSON(w, ce.Status, ErrorBody{Error: ErrorDetail{
		Code:    ce.Code,
		Message: ce.Message,
		Status:  ce.Status,
		Details: ce.Details,
	}})
}

// renderJSON writes data as JSON with the given status code.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeBody reads a JSON body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

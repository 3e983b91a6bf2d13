// Package httputil centralizes JSON response and error envelope handling so
// every handler speaks the same wire format.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "healthcert/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for failed requests.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a coded error to its HTTP status and envelope. Internal
// error messages are not echoed to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal {
		var e *dErrors.Error
		if errors.As(err, &e) {
			resp.ErrorDescription = e.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// Decode parses the request body into T.
//
// Errors: CodeBadRequest for anything that is not valid JSON for T.
func Decode[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return v, nil
}

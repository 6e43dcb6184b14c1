// Package httputil centralizes JSON response writing and the single
// error-code to HTTP-status mapping for the whole API surface.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "akashic/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON error envelope shared by all endpoints.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError translates a coded error into an HTTP response. Internal and
// render errors omit the description so upstream detail never leaks.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: string(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodeRender {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, statusOf(code), resp)
}

// statusOf is the only place error codes become HTTP statuses.
func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodePayment:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeForbidden, dErrors.CodeLocked:
		return http.StatusForbidden
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case dErrors.CodeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

package shared

import (
	"encoding/json"
	"net/http"
)

// errorBody is the machine-readable error envelope used by every API
// response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondJSON writes v as a JSON response with the given status.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError writes the stable error envelope.
func RespondError(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// Stable error codes surfaced to clients.
const (
	CodeUnauthenticated  = "unauthenticated"
	CodePermissionDenied = "permission_denied"
	CodeRateLimited      = "rate_limited"
	CodeInvalidRequest   = "invalid_request"
	CodeNotFound         = "not_found"
	CodeInternal         = "internal"
)

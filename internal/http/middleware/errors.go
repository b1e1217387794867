package middleware

import (
	"encoding/json"
	"net/http"
)

type errorPayload struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id"`
}

// WriteError writes the service's flat JSON error body.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorPayload{
		Error:     message,
		RequestID: GetRequestID(r.Context()),
	})
}

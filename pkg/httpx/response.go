// Package httpx holds small HTTP helpers shared by the login endpoints:
// JSON responses, client IP extraction, middleware chaining and a per-IP
// request limiter for the outer surface.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON error envelope returned by every login endpoint.
type ErrorResponse struct {
	Error        string `json:"error"`
	Description  string `json:"error_description,omitempty"`
	RetryIn      int    `json:"retry_in,omitempty"`      // seconds, rate-limit failures only
	AttemptsLeft *int   `json:"attempts_left,omitempty"` // incorrect-code failures, when disclosed
}

// WriteJSON writes a JSON response with the given status code. Login
// responses are sensitive, so caching is always disabled.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the standard error envelope.
func WriteError(w http.ResponseWriter, code int, resp ErrorResponse) {
	WriteJSON(w, code, resp)
}

// NoCache sets headers preventing any caching of the response.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

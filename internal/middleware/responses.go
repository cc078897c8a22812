// Package middleware wires the rate limiter, the schema validator, the
// sanitizer and the attempt logger into the HTTP request path.
package middleware

import (
	"encoding/json"
	"net/http"
)

// ErrCodeRateLimited is the machine-readable code clients key on.
const ErrCodeRateLimited = "RATE_LIMIT_EXCEEDED"

// Response is the JSON envelope every rejection uses. Clients only ever
// see this shape: no stack traces, paths or internal names.
type Response struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Error   string   `json:"error,omitempty"`
	Errors  []string `json:"errors,omitempty"`
	Data    any      `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

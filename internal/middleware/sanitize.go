package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"codepath-guard/internal/sanitize"
)

// SanitizeInput rewrites every string value in the JSON body and the
// query parameters through the sanitizer. Unconditional pass-through:
// it never rejects, and any body it cannot parse is forwarded intact
// for the schema middleware to deal with.
func SanitizeInput(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sanitizeQuery(r)
		sanitizeBody(r)
		next.ServeHTTP(w, r)
	})
}

func sanitizeQuery(r *http.Request) {
	query := r.URL.Query()
	changed := false
	for key, values := range query {
		for i, v := range values {
			cleaned := sanitize.CleanString(v)
			if cleaned != v {
				values[i] = cleaned
				changed = true
			}
		}
		query[key] = values
	}
	if changed {
		r.URL.RawQuery = query.Encode()
	}
}

func sanitizeBody(r *http.Request) {
	if r.Body == nil || !strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(nil))
		return
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		// Not a JSON object: forward untouched.
		r.Body = io.NopCloser(bytes.NewReader(body))
		return
	}

	for key, value := range data {
		data[key] = sanitize.Clean(value)
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		r.Body = io.NopCloser(bytes.NewReader(body))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(encoded))
	r.ContentLength = int64(len(encoded))
}
